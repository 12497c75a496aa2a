package handler

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuditHandler 负责审计日志查询接口（管理端）
type AuditHandler struct {
	DB         *gorm.DB
	EncryptKey string
	PageSize   int
}

func NewAuditHandler(db *gorm.DB, encryptKey string, pageSize int) *AuditHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &AuditHandler{
		DB:         db,
		EncryptKey: encryptKey,
		PageSize:   pageSize,
	}
}

type auditResp struct {
	ID        uint      `json:"id"`
	AdminID   *uint     `json:"admin_id,omitempty"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	Body      string    `json:"body,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// decryptBody 把落盘加密的请求体还原成明文；解不开的（密钥轮换过等）返回空
func (h *AuditHandler) decryptBody(enc string) string {
	if enc == "" || h.EncryptKey == "" {
		return enc
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return ""
	}
	plain, err := util.DecryptAES(h.EncryptKey, raw)
	if err != nil {
		return ""
	}
	return string(plain)
}

// ListAuditLogs 分页返回审计日志，请求体解密后返回
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.PageSize)))
	if size <= 0 || size > 100 {
		size = h.PageSize
	}

	base := h.DB.Model(&models.AuditLog{})

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	var logs []models.AuditLog
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&logs).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	items := make([]auditResp, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		items = append(items, auditResp{
			ID:        l.ID,
			AdminID:   l.AdminID,
			Path:      l.Path,
			Method:    l.Method,
			Body:      h.decryptBody(l.BodyEnc),
			IP:        l.IP,
			UserAgent: l.UserAgent,
			Status:    l.Status,
			CreatedAt: l.CreatedAt,
		})
	}

	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}
