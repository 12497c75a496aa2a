package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"walletlink/internal/coordinator"
	"walletlink/internal/ledger"
	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
)

// TransactionHandler 负责交易相关接口：管理端发起提案与查询账本，
// 远端读取待确认交易并给出 executed / failed 的最终结果。
type TransactionHandler struct {
	Co       *coordinator.Coordinator
	PageSize int
}

func NewTransactionHandler(co *coordinator.Coordinator, pageSize int) *TransactionHandler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &TransactionHandler{
		Co:       co,
		PageSize: pageSize,
	}
}

// ---------- 请求/响应结构 ----------

type txResp struct {
	TransactionID string     `json:"transaction_id"`
	LinkID        string     `json:"link_id"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	Value         string     `json:"value"`         // wei
	ValueDisplay  string     `json:"value_display"` // ETH，仅展示
	GasLimit      string     `json:"gas_limit"`
	GasPrice      string     `json:"gas_price"`
	Status        string     `json:"status"`
	TxHash        string     `json:"tx_hash,omitempty"`
	Network       string     `json:"network"`
	ChainID       string     `json:"chain_id"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func toTxResp(t *models.TransactionRecord) txResp {
	return txResp{
		TransactionID: t.TransactionID,
		LinkID:        t.LinkID,
		From:          t.FromAddress,
		To:            t.ToAddress,
		Value:         t.Value,
		ValueDisplay:  t.ValueDisplay,
		GasLimit:      t.GasLimit,
		GasPrice:      t.GasPrice,
		Status:        t.Status,
		TxHash:        t.TxHash,
		Network:       t.Network,
		ChainID:       t.ChainID,
		Note:          t.Note,
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
	}
}

// respondTxErr 把账本/编排层的业务错误映射为统一返回
func respondTxErr(c *gin.Context, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "交易参数不合法")
	case errors.Is(err, ledger.ErrNotFound):
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "交易不存在")
	case errors.Is(err, ledger.ErrAlreadyResolved):
		util.Error(c, http.StatusConflict, util.CodeConflict, "交易已经确认过")
	case errors.Is(err, coordinator.ErrNotReady):
		util.Error(c, http.StatusUnprocessableEntity, util.CodeNotReady, "链接尚未绑定钱包")
	default:
		respondSessionErr(c, err)
	}
}

// ---------- 管理端 ----------

type proposeReq struct {
	To       string `json:"to" binding:"required"`
	Amount   string `json:"amount" binding:"required"` // 最小单位（wei）
	GasLimit string `json:"gas_limit" binding:"max=32"`
	GasPrice string `json:"gas_price" binding:"max=32"`
	Note     string `json:"note" binding:"max=255"`
}

// ProposeTransaction 在指定链接上发起转账提案，创建即 pending，
// 等待远端确认。
func (h *TransactionHandler) ProposeTransaction(c *gin.Context) {
	var req proposeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	record, err := h.Co.ProposeTransaction(c.Param("linkId"), coordinator.ProposeArgs{
		To:       req.To,
		Amount:   req.Amount,
		GasLimit: req.GasLimit,
		GasPrice: req.GasPrice,
		Note:     req.Note,
		Meta:     requestMeta(c),
	})
	if err != nil {
		respondTxErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"transaction": toTxResp(record),
	})
}

// ListTransactions 分页查询账本，支持按状态和链接筛选
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	// 分页参数
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(h.PageSize)))
	if size <= 0 || size > 100 {
		size = h.PageSize
	}

	// 状态筛选：pending / executed / failed
	status := c.Query("status")
	if status != models.TxStatusPending && status != models.TxStatusExecuted && status != models.TxStatusFailed {
		status = ""
	}

	filter := ledger.Filter{
		LinkID: c.Query("link_id"),
		Status: status,
	}

	records, total, err := h.Co.Ledger.List(filter, page, size)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return
	}

	items := make([]txResp, 0, len(records))
	for i := range records {
		items = append(items, toTxResp(&records[i]))
	}

	// 相同筛选条件下按状态汇总
	counts, err := h.Co.Ledger.CountByStatus(filter)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
		"summary": gin.H{
			"pending":  counts[models.TxStatusPending],
			"executed": counts[models.TxStatusExecuted],
			"failed":   counts[models.TxStatusFailed],
		},
	})
}

// GetTransaction 查询单笔交易详情（管理端）
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	record, err := h.Co.Ledger.Get(c.Param("transactionId"))
	if err != nil {
		respondTxErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"transaction": toTxResp(record),
	})
}

// GetTransactionStats 账本统计：各状态数量 + 已执行金额的总和/平均值 + 最近几笔
func (h *TransactionHandler) GetTransactionStats(c *gin.Context) {
	lg := h.Co.Ledger

	counts, err := lg.CountByStatus(ledger.Filter{})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	// 金额统计只看已执行的交易
	stats, err := lg.Aggregate(ledger.Filter{Status: models.TxStatusExecuted})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	recent, _, err := lg.List(ledger.Filter{Status: models.TxStatusExecuted}, 1, 5)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}
	recentItems := make([]txResp, 0, len(recent))
	for i := range recent {
		recentItems = append(recentItems, toTxResp(&recent[i]))
	}

	util.Success(c, util.Response{
		"counts": gin.H{
			"total":    counts[models.TxStatusPending] + counts[models.TxStatusExecuted] + counts[models.TxStatusFailed],
			"pending":  counts[models.TxStatusPending],
			"executed": counts[models.TxStatusExecuted],
			"failed":   counts[models.TxStatusFailed],
		},
		"values": gin.H{
			"count":       stats.Count,
			"sum_value":   stats.Sum.String(),
			"avg_value":   stats.Avg.String(),
			"sum_display": util.FormatDisplay(stats.Sum),
			"avg_display": util.FormatDisplay(stats.Avg),
		},
		"recent_transactions": recentItems,
	})
}

// ---------- 远端（无需管理端登录） ----------

// GetPendingTransaction 远端确认页读取交易详情。
// 必须携带交易所属的 link_id，跨会话查询一律按不存在处理。
func (h *TransactionHandler) GetPendingTransaction(c *gin.Context) {
	linkID := c.Query("link_id")
	if linkID == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "缺少 link_id")
		return
	}

	record, err := h.Co.GetTransaction(c.Param("transactionId"), linkID)
	if err != nil {
		respondTxErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"transaction": toTxResp(record),
	})
}

type executeReq struct {
	LinkID string `json:"link_id" binding:"required"`
	TxHash string `json:"tx_hash" binding:"required,max=80"`
}

// ExecuteTransaction 远端确认交易：pending -> executed
func (h *TransactionHandler) ExecuteTransaction(c *gin.Context) {
	var req executeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	record, err := h.Co.ResolveTransaction(c.Param("transactionId"), req.LinkID, req.TxHash)
	if err != nil {
		respondTxErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"message":     "交易已执行",
		"tx_hash":     record.TxHash,
		"transaction": toTxResp(record),
	})
}

type rejectReq struct {
	LinkID string `json:"link_id" binding:"required"`
}

// RejectTransaction 远端拒绝交易：pending -> failed
func (h *TransactionHandler) RejectTransaction(c *gin.Context) {
	var req rejectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	record, err := h.Co.FailTransaction(c.Param("transactionId"), req.LinkID)
	if err != nil {
		respondTxErr(c, err)
		return
	}

	util.Success(c, util.Response{
		"message":     "交易已拒绝",
		"transaction": toTxResp(record),
	})
}
