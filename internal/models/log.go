package models

import "time"

// AuditLog records operator actions for auditing.
type AuditLog struct {
	ID        uint   `gorm:"primaryKey"`
	AdminID   *uint  `gorm:"index"`
	Path      string `gorm:"size:255"`
	Method    string `gorm:"size:16"`
	BodyEnc   string `gorm:"size:4096"` // 加密后的请求体摘要（AES-GCM + base64）
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:255"`
	Status    int
	CreatedAt time.Time
}
