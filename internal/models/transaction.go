package models

import (
	"time"

	"gorm.io/datatypes"
)

// 交易状态，只允许 pending -> executed 或 pending -> failed 单向迁移
const (
	TxStatusPending  = "pending"
	TxStatusExecuted = "executed"
	TxStatusFailed   = "failed"
)

// TransactionRecord 表示一笔待确认的转账及其最终结果（只追加，不删除）。
// 金额以最小单位（wei）的十进制字符串存储，避免浮点误差；
// ValueDisplay 只是展示值，由 Value 推导，永远不作为数据来源。
type TransactionRecord struct {
	ID            uint   `gorm:"primaryKey"`
	TransactionID string `gorm:"size:64;uniqueIndex;not null"` // UUID
	LinkID        string `gorm:"index:idx_link_created;not null"` // 弱引用，会话删除后记录仍保留用于审计

	FromAddress string `gorm:"size:128;not null"` // 提案时会话已绑定的钱包地址
	ToAddress   string `gorm:"size:128;not null"`

	Value        string `gorm:"size:80;not null"` // base units (wei)，最长 2^256 约 78 位
	ValueDisplay string `gorm:"size:64"`          // 人类可读（ETH），仅展示

	GasLimit string `gorm:"size:32"`
	GasPrice string `gorm:"size:32"`

	Status string `gorm:"size:16;index:idx_status_created;not null;default:'pending'"`
	TxHash string `gorm:"size:80"` // 仅在迁移到 executed 时写入

	Network string `gorm:"size:32"`
	ChainID string `gorm:"size:16"`
	Note    string `gorm:"size:255"`

	// Metadata holds descriptive request context (ip, user-agent, proposer). Never authoritative.
	Metadata datatypes.JSONMap

	CreatedAt  time.Time `gorm:"index:idx_link_created;index:idx_status_created"`
	ResolvedAt *time.Time // 终态迁移时一次性写入
}
