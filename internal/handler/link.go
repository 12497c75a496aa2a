package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"walletlink/internal/coordinator"
	"walletlink/internal/ledger"
	"walletlink/internal/models"
	"walletlink/internal/session"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
)

// LinkHandler 负责连接链接相关接口：管理端签发/查询/删除，
// 远端校验链接和绑定钱包。
type LinkHandler struct {
	Co      *coordinator.Coordinator
	BaseURL string
}

func NewLinkHandler(co *coordinator.Coordinator, baseURL string) *LinkHandler {
	return &LinkHandler{
		Co:      co,
		BaseURL: baseURL,
	}
}

// ---------- 请求/响应结构 ----------

type sessionResp struct {
	LinkID        string     `json:"link_id"`
	Bound         bool       `json:"bound"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	ChainID       string     `json:"chain_id,omitempty"`
	WalletType    string     `json:"wallet_type,omitempty"`
	BoundAt       *time.Time `json:"bound_at,omitempty"`
	LastActivity  time.Time  `json:"last_activity"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

func toSessionResp(s *models.LinkSession) sessionResp {
	return sessionResp{
		LinkID:        s.LinkID,
		Bound:         s.Bound,
		WalletAddress: s.WalletAddress,
		ChainID:       s.ChainID,
		WalletType:    s.WalletType,
		BoundAt:       s.BoundAt,
		LastActivity:  s.LastActivity,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
	}
}

// requestMeta 提取请求方的描述性上下文，只做记录用
func requestMeta(c *gin.Context) map[string]interface{} {
	return map[string]interface{}{
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
	}
}

// respondSessionErr 把会话层的业务错误映射为统一返回
func respondSessionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "链接不存在")
	case errors.Is(err, session.ErrExpired):
		// 410：链接曾经存在但已失效，前端不应引导重试
		util.Error(c, http.StatusGone, util.CodeExpired, "链接已过期")
	case errors.Is(err, session.ErrAlreadyBound):
		util.Error(c, http.StatusConflict, util.CodeConflict, "链接已绑定钱包")
	default:
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "服务器错误")
	}
}

// ---------- 管理端 ----------

// CreateLink 签发一条新连接链接
func (h *LinkHandler) CreateLink(c *gin.Context) {
	sess, err := h.Co.CreateSession(requestMeta(c))
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建链接失败")
		return
	}

	util.Success(c, util.Response{
		"link_id":    sess.LinkID,
		"link":       fmt.Sprintf("%s/connect/%s", h.BaseURL, sess.LinkID),
		"expires_at": sess.ExpiresAt,
	})
}

// ListLinks 列出全部连接（按创建时间倒序）
func (h *LinkHandler) ListLinks(c *gin.Context) {
	sessions, err := h.Co.Sessions.List()
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	items := make([]sessionResp, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionResp(&sessions[i]))
	}

	util.Success(c, util.Response{
		"items": items,
		"total": len(items),
	})
}

// GetLink 查询单条链接（管理端视角，过期同样报告 410）
func (h *LinkHandler) GetLink(c *gin.Context) {
	sess, err := h.Co.Sessions.Get(c.Param("linkId"))
	if err != nil {
		respondSessionErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"session": toSessionResp(sess),
	})
}

// DeleteLink 删除链接（幂等）
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.Co.Sessions.Delete(c.Param("linkId")); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "删除失败")
		return
	}

	util.Success(c, util.Response{
		"message": "链接已删除",
	})
}

// ---------- 远端（无需管理端登录） ----------

// VerifyLink 校验链接是否有效，返回绑定状态
func (h *LinkHandler) VerifyLink(c *gin.Context) {
	result, err := h.Co.VerifySession(c.Param("linkId"))
	if err != nil {
		respondSessionErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"link_id":        result.LinkID,
		"bound":          result.Bound,
		"wallet_address": result.WalletAddress,
	})
}

type connectReq struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	ChainID       string `json:"chain_id" binding:"max=16"`
	WalletType    string `json:"wallet_type" binding:"max=32"`
}

// ConnectWallet 把钱包地址绑定到链接上（一次性）
func (h *LinkHandler) ConnectWallet(c *gin.Context) {
	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	sess, err := h.Co.BindWallet(c.Param("linkId"), req.WalletAddress, req.ChainID, req.WalletType, requestMeta(c))
	if err != nil {
		var ve *ledger.ValidationError
		if errors.As(err, &ve) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "钱包地址不能为空")
			return
		}
		respondSessionErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"message":        "钱包绑定成功",
		"wallet_address": sess.WalletAddress,
		"bound_at":       sess.BoundAt,
	})
}

// UpdateActivity 更新链接的最近活动时间
func (h *LinkHandler) UpdateActivity(c *gin.Context) {
	linkID := c.Param("linkId")
	if err := h.Co.Sessions.Touch(linkID); err != nil {
		respondSessionErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"message": "已记录活动",
	})
}
