package middleware

import (
	"bytes"
	"encoding/base64"
	"io"

	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func encryptField(encryptKey, plain string) (string, error) {
	if plain == "" || encryptKey == "" {
		return plain, nil
	}
	b, err := util.EncryptAES(encryptKey, []byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// AuditMiddleware 把管理员的写操作记入审计日志。
// 请求体可能包含收款地址和金额，加密后落盘。
func AuditMiddleware(db *gorm.DB, encryptKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 获取管理员 ID
		var adminID uint
		if v, ok := c.Get("currentAdmin"); ok {
			if admin, ok := v.(*models.Admin); ok && admin != nil {
				adminID = admin.ID
			}
		}

		// 读取请求体
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		// 执行请求
		c.Next()

		// 只记录登录管理员的操作
		if adminID == 0 {
			return
		}

		var bodyEnc string
		if len(bodyBytes) > 0 && len(bodyBytes) < 2000 {
			bodyEnc, _ = encryptField(encryptKey, string(bodyBytes))
		}

		log := models.AuditLog{
			AdminID:   &adminID,
			Path:      c.Request.URL.Path,
			Method:    c.Request.Method,
			BodyEnc:   bodyEnc,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Status:    c.Writer.Status(),
		}

		_ = db.Create(&log).Error
	}
}
