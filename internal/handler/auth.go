package handler

import (
	"net/http"
	"strings"
	"time"

	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler 负责管理端登录接口
type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret string
	TokenTTL  time.Duration
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, jwtSecret string, ttlHours int) *AuthHandler {
	if ttlHours <= 0 {
		ttlHours = 24
	}
	return &AuthHandler{
		DB:        db,
		JWTSecret: jwtSecret,
		TokenTTL:  time.Duration(ttlHours) * time.Hour,
	}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录，成功返回 JWT。
// 连续失败 5 次锁定 10 分钟。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	var admin models.Admin
	// 用户名不区分大小写匹配
	if err := h.DB.Where("LOWER(username) = LOWER(?)", req.Username).
		First(&admin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "用户名或密码错误")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询账号失败")
		}
		return
	}

	now := time.Now()

	// 检查是否被锁定
	if admin.LockedUntil != nil && now.Before(*admin.LockedUntil) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "账号已锁定，请稍后再试")
		return
	}

	// 校验密码
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		// 密码错误：递增失败次数，达到5次则锁定10分钟
		admin.FailedLoginAttempts++
		if admin.FailedLoginAttempts >= 5 {
			lockUntil := now.Add(10 * time.Minute)
			admin.LockedUntil = &lockUntil
			admin.FailedLoginAttempts = 0
		}
		_ = h.DB.Save(&admin).Error
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "用户名或密码错误")
		return
	}

	// 登录成功：重置失败次数和锁定时间，记录登录 IP 和时间
	admin.FailedLoginAttempts = 0
	admin.LockedUntil = nil
	admin.LastLoginIP = c.ClientIP()
	admin.LastLoginAt = &now
	_ = h.DB.Save(&admin).Error

	token, err := util.GenerateToken(h.JWTSecret, admin.ID, h.TokenTTL)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成 token 失败")
		return
	}

	util.Success(c, util.Response{
		"token": token,
		"admin": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
		},
	})
}
