package coordinator

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"walletlink/internal/ledger"
	"walletlink/internal/models"
	"walletlink/internal/session"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	walletAddr = "0xABCD567890abcdef1234567890abcdef12345678"
	payeeAddr  = "0x1234567890abcdef1234567890abcdef12345678"
	oneEth     = "1000000000000000000"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.LinkSession{}, &models.TransactionRecord{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return New(session.NewStore(db, 0), ledger.New(db))
}

// TestHandshakeScenario 完整链路：签发链接 -> 绑定钱包 -> 提案 -> 确认执行
func TestHandshakeScenario(t *testing.T) {
	co := newTestCoordinator(t)

	sess, err := co.CreateSession(map[string]interface{}{"ip": "127.0.0.1"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// 绑定前：链接有效但未绑定
	result, err := co.VerifySession(sess.LinkID)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}
	if result.Bound {
		t.Fatal("fresh session reports bound")
	}

	if _, err := co.BindWallet(sess.LinkID, walletAddr, "1", "Trust Wallet", nil); err != nil {
		t.Fatalf("BindWallet() error = %v", err)
	}

	record, err := co.ProposeTransaction(sess.LinkID, ProposeArgs{
		To:     payeeAddr,
		Amount: oneEth,
	})
	if err != nil {
		t.Fatalf("ProposeTransaction() error = %v", err)
	}
	if record.Status != models.TxStatusPending {
		t.Fatalf("status = %s, want pending", record.Status)
	}
	// from 来自会话绑定的地址
	if record.FromAddress != walletAddr {
		t.Fatalf("from = %s, want %s", record.FromAddress, walletAddr)
	}

	resolved, err := co.ResolveTransaction(record.TransactionID, sess.LinkID, "0xhash1")
	if err != nil {
		t.Fatalf("ResolveTransaction() error = %v", err)
	}
	if resolved.Status != models.TxStatusExecuted || resolved.TxHash != "0xhash1" {
		t.Fatalf("resolved = %+v, want executed with 0xhash1", resolved)
	}
	if resolved.Value != oneEth {
		t.Fatalf("value = %s, want %s", resolved.Value, oneEth)
	}
}

// TestVerifySession_NotFoundVsExpired 未知链接和过期链接是两种信号
func TestVerifySession_NotFoundVsExpired(t *testing.T) {
	co := newTestCoordinator(t)

	_, err := co.VerifySession("no-such-link")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("VerifySession(unknown) error = %v, want ErrNotFound", err)
	}

	sess, err := co.CreateSession(nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// 人为把时钟拨过 TTL
	co.Sessions.Now = func() time.Time { return time.Now().Add(session.DefaultTTL + time.Minute) }
	_, err = co.VerifySession(sess.LinkID)
	if !errors.Is(err, session.ErrExpired) {
		t.Fatalf("VerifySession(expired) error = %v, want ErrExpired", err)
	}
}

// TestPropose_NotReady 未绑定的会话不能发起提案
func TestPropose_NotReady(t *testing.T) {
	co := newTestCoordinator(t)

	sess, err := co.CreateSession(nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = co.ProposeTransaction(sess.LinkID, ProposeArgs{To: payeeAddr, Amount: oneEth})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("ProposeTransaction() error = %v, want ErrNotReady", err)
	}
}

// TestResolve_CrossSession linkId 不匹配时按不存在处理，交易保持 pending
func TestResolve_CrossSession(t *testing.T) {
	co := newTestCoordinator(t)

	sess, err := co.CreateSession(nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := co.BindWallet(sess.LinkID, walletAddr, "1", "", nil); err != nil {
		t.Fatalf("BindWallet() error = %v", err)
	}
	record, err := co.ProposeTransaction(sess.LinkID, ProposeArgs{To: payeeAddr, Amount: oneEth})
	if err != nil {
		t.Fatalf("ProposeTransaction() error = %v", err)
	}

	other, err := co.CreateSession(nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	_, err = co.ResolveTransaction(record.TransactionID, other.LinkID, "0xhash1")
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("cross-session Resolve error = %v, want ErrNotFound", err)
	}
	_, err = co.GetTransaction(record.TransactionID, other.LinkID)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("cross-session Get error = %v, want ErrNotFound", err)
	}

	got, err := co.Ledger.Get(record.TransactionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.TxStatusPending {
		t.Fatalf("status = %s, want pending after rejected cross-session resolve", got.Status)
	}
}

// TestRejectTransaction 拒绝走 failed 分支
func TestRejectTransaction(t *testing.T) {
	co := newTestCoordinator(t)

	sess, err := co.CreateSession(nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := co.BindWallet(sess.LinkID, walletAddr, "1", "", nil); err != nil {
		t.Fatalf("BindWallet() error = %v", err)
	}
	record, err := co.ProposeTransaction(sess.LinkID, ProposeArgs{To: payeeAddr, Amount: oneEth})
	if err != nil {
		t.Fatalf("ProposeTransaction() error = %v", err)
	}

	failed, err := co.FailTransaction(record.TransactionID, sess.LinkID)
	if err != nil {
		t.Fatalf("FailTransaction() error = %v", err)
	}
	if failed.Status != models.TxStatusFailed || failed.TxHash != "" {
		t.Fatalf("failed = %+v, want failed without txHash", failed)
	}

	// 拒绝后不能再确认
	_, err = co.ResolveTransaction(record.TransactionID, sess.LinkID, "0xhash1")
	if !errors.Is(err, ledger.ErrAlreadyResolved) {
		t.Fatalf("Resolve after reject error = %v, want ErrAlreadyResolved", err)
	}
}
