package coordinator

import (
	"errors"

	"walletlink/internal/ledger"
	"walletlink/internal/models"
	"walletlink/internal/session"
)

// ErrNotReady 会话还没有绑定钱包，不能对它发起交易提案
var ErrNotReady = errors.New("coordinator: session not bound")

// Coordinator 编排握手流程：签发链接、绑定钱包、创建并驱动交易确认。
// 每个链接的状态机是 unbound -> bound；每笔交易的状态机归账本所有，
// 这里只负责驱动 pending -> executed / failed 的迁移。
type Coordinator struct {
	Sessions *session.Store
	Ledger   *ledger.Ledger
}

func New(sessions *session.Store, lg *ledger.Ledger) *Coordinator {
	return &Coordinator{
		Sessions: sessions,
		Ledger:   lg,
	}
}

// CreateSession 签发一条新链接。
func (co *Coordinator) CreateSession(meta map[string]interface{}) (*models.LinkSession, error) {
	return co.Sessions.Create(meta)
}

// VerifyResult 是 VerifySession 的返回值
type VerifyResult struct {
	LinkID        string
	Bound         bool
	WalletAddress string
}

// VerifySession 查询链接状态。过期的链接返回 session.ErrExpired——
// 链接曾经存在但已失效，调用方不应重试；这和 ErrNotFound 是两种信号。
func (co *Coordinator) VerifySession(linkID string) (*VerifyResult, error) {
	sess, err := co.Sessions.Get(linkID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		LinkID:        sess.LinkID,
		Bound:         sess.Bound,
		WalletAddress: sess.WalletAddress,
	}, nil
}

// BindWallet 把钱包地址一次性绑定到链接上。
// 第二个不同地址的绑定尝试会拿到 session.ErrAlreadyBound。
func (co *Coordinator) BindWallet(linkID, address, chainID, walletType string, meta map[string]interface{}) (*models.LinkSession, error) {
	if address == "" {
		return nil, &ledger.ValidationError{Field: "walletAddress", Msg: "address is empty"}
	}
	return co.Sessions.Bind(linkID, address, chainID, walletType, meta)
}

// ProposeArgs 创建交易提案的参数（from 不在这里：始终取会话绑定的地址）
type ProposeArgs struct {
	To       string
	Amount   string
	GasLimit string
	GasPrice string
	Note     string
	Meta     map[string]interface{}
}

// ProposeTransaction 在一条存活且已绑定的链接上创建 pending 交易。
// 未绑定的会话返回 ErrNotReady；from 取会话绑定的钱包地址，
// 这是后续所有操作的授权锚点。
func (co *Coordinator) ProposeTransaction(linkID string, args ProposeArgs) (*models.TransactionRecord, error) {
	sess, err := co.Sessions.Get(linkID)
	if err != nil {
		return nil, err
	}
	if !sess.Bound {
		return nil, ErrNotReady
	}

	chainID := sess.ChainID
	if chainID == "" {
		chainID = "1"
	}

	record, err := co.Ledger.Propose(ledger.ProposeInput{
		LinkID:   linkID,
		From:     sess.WalletAddress,
		To:       args.To,
		Amount:   args.Amount,
		GasLimit: args.GasLimit,
		GasPrice: args.GasPrice,
		Network:  "Ethereum Mainnet",
		ChainID:  chainID,
		Note:     args.Note,
		Meta:     args.Meta,
	})
	if err != nil {
		return nil, err
	}

	// 提案算一次会话活动
	_ = co.Sessions.Touch(linkID)
	return record, nil
}

// GetTransaction 返回指定交易，供远端确认页展示。
// 调用方必须提供交易所属的 linkId，跨会话的查询一律按不存在处理。
func (co *Coordinator) GetTransaction(transactionID, linkID string) (*models.TransactionRecord, error) {
	record, err := co.Ledger.Get(transactionID)
	if err != nil {
		return nil, err
	}
	if record.LinkID != linkID {
		return nil, ledger.ErrNotFound
	}
	return record, nil
}

// ResolveTransaction 远端确认交易：pending -> executed，写入 txHash。
// linkId 必须和记录的归属一致，防止跨会话确认。
func (co *Coordinator) ResolveTransaction(transactionID, linkID, txHash string) (*models.TransactionRecord, error) {
	return co.resolve(transactionID, linkID, models.TxStatusExecuted, txHash)
}

// FailTransaction 远端拒绝交易：pending -> failed。
func (co *Coordinator) FailTransaction(transactionID, linkID string) (*models.TransactionRecord, error) {
	return co.resolve(transactionID, linkID, models.TxStatusFailed, "")
}

func (co *Coordinator) resolve(transactionID, linkID, outcome, txHash string) (*models.TransactionRecord, error) {
	record, err := co.Ledger.Get(transactionID)
	if err != nil {
		return nil, err
	}
	if record.LinkID != linkID {
		// 不泄露其他会话的交易信息
		return nil, ledger.ErrNotFound
	}

	resolved, err := co.Ledger.Resolve(transactionID, outcome, txHash)
	if err != nil {
		return nil, err
	}

	_ = co.Sessions.Touch(linkID)
	return resolved, nil
}
