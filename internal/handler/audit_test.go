package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const auditTestKey = "audit-test-key"

func openAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedAuditLog(t *testing.T, db *gorm.DB, body string) {
	t.Helper()

	enc, err := util.EncryptAES(auditTestKey, []byte(body))
	if err != nil {
		t.Fatalf("EncryptAES() error = %v", err)
	}
	adminID := uint(1)
	log := models.AuditLog{
		AdminID: &adminID,
		Path:    "/api/admin/links",
		Method:  "POST",
		BodyEnc: base64.StdEncoding.EncodeToString(enc),
		IP:      "127.0.0.1",
		Status:  200,
	}
	if err := db.Create(&log).Error; err != nil {
		t.Fatalf("create audit log: %v", err)
	}
}

// TestListAuditLogs 落盘加密的请求体在查询接口里解密返回
func TestListAuditLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := openAuditTestDB(t)
	const body = `{"to":"0xabcdefabcdefabcdefabcdefabcdefabcdefabcd","amount":"1"}`
	seedAuditLog(t, db, body)

	r := gin.New()
	r.GET("/audit-logs", NewAuditHandler(db, auditTestKey, 20).ListAuditLogs)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Items []auditResp `json:"items"`
			Total int64       `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Data.Total != 1 || len(resp.Data.Items) != 1 {
		t.Fatalf("total=%d items=%d, want 1/1", resp.Data.Total, len(resp.Data.Items))
	}
	if resp.Data.Items[0].Body != body {
		t.Fatalf("body = %q, want %q", resp.Data.Items[0].Body, body)
	}
	if resp.Data.Items[0].Path != "/api/admin/links" {
		t.Fatalf("path = %q", resp.Data.Items[0].Path)
	}
}

// TestListAuditLogs_WrongKey 密钥对不上时不返回乱码，密文字段置空
func TestListAuditLogs_WrongKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := openAuditTestDB(t)
	seedAuditLog(t, db, "secret body")

	r := gin.New()
	r.GET("/audit-logs", NewAuditHandler(db, "rotated-key", 20).ListAuditLogs)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
	r.ServeHTTP(w, req)

	var resp struct {
		Data struct {
			Items []auditResp `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Data.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Data.Items))
	}
	if resp.Data.Items[0].Body != "" {
		t.Fatalf("body = %q, want empty when key does not match", resp.Data.Items[0].Body)
	}
}
