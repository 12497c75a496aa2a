package models

import (
	"time"

	"gorm.io/datatypes"
)

// LinkSession 表示一条一次性连接链接。
// 管理端生成 linkId 下发给对方，对方在有效期内绑定钱包地址，
// 绑定成功后 bound 置为 true，之后不允许再次绑定（防止会话被劫持）。
type LinkSession struct {
	ID     uint   `gorm:"primaryKey"`
	LinkID string `gorm:"size:64;uniqueIndex;not null"` // UUID

	WalletAddress string `gorm:"size:128"`       // 绑定后才有值
	Bound         bool   `gorm:"index;not null"` // 只允许绑定一次
	ChainID       string `gorm:"size:16"`
	WalletType    string `gorm:"size:32"`

	BoundAt      *time.Time
	LastActivity time.Time `gorm:"index"` // 最近一次有效操作时间，只增不减

	// Metadata holds descriptive request context (ip, user-agent). Never authoritative.
	Metadata datatypes.JSONMap

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"` // CreatedAt + TTL，过期后读取时惰性删除
}
