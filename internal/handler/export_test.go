package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"walletlink/internal/ledger"
	"walletlink/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	exportTestFrom = "0x1234567890abcdef1234567890abcdef12345678"
	exportTestTo   = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"
)

func openExportTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.TransactionRecord{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// TestExportCSV_AllRows 导出必须包含全部记录，不受列表接口分页限制
func TestExportCSV_AllRows(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lg := ledger.New(openExportTestDB(t))

	const n = 25 // 大于列表接口的默认页大小
	for i := 0; i < n; i++ {
		if _, err := lg.Propose(ledger.ProposeInput{
			LinkID: "link-1",
			From:   exportTestFrom,
			To:     exportTestTo,
			Amount: fmt.Sprintf("%d", i+1),
		}); err != nil {
			t.Fatalf("Propose() error = %v", err)
		}
	}

	r := gin.New()
	r.GET("/export/csv", NewExportHandler(lg).ExportCSV)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export/csv", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// 去掉 BOM 后按 CSV 解析
	body := bytes.TrimPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	// 表头 + n 条记录
	if len(rows) != n+1 {
		t.Fatalf("csv rows = %d, want %d", len(rows), n+1)
	}
	if rows[0][0] != "transaction_id" {
		t.Fatalf("header = %v", rows[0])
	}
}

// TestExportCSV_StatusFilter 筛选条件透传到导出
func TestExportCSV_StatusFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	lg := ledger.New(openExportTestDB(t))

	first, err := lg.Propose(ledger.ProposeInput{
		LinkID: "link-1",
		From:   exportTestFrom,
		To:     exportTestTo,
		Amount: "1",
	})
	if err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if _, err := lg.Propose(ledger.ProposeInput{
		LinkID: "link-1",
		From:   exportTestFrom,
		To:     exportTestTo,
		Amount: "2",
	}); err != nil {
		t.Fatalf("Propose() error = %v", err)
	}
	if _, err := lg.Resolve(first.TransactionID, models.TxStatusExecuted, "0xhash1"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	r := gin.New()
	r.GET("/export/csv", NewExportHandler(lg).ExportCSV)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/export/csv?status=executed", nil)
	r.ServeHTTP(w, req)

	body := bytes.TrimPrefix(w.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("csv rows = %d, want 2（表头 + 1 条已执行）", len(rows))
	}
	if rows[1][0] != first.TransactionID {
		t.Fatalf("exported transaction = %s, want %s", rows[1][0], first.TransactionID)
	}
}
