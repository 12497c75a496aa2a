package session

import (
	"errors"
	"fmt"
	"time"

	"walletlink/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 业务结果错误。调用方用 errors.Is 区分，不做内部重试；
// 其余错误都是存储层错误，统一用 %w 包装后抛给调用方。
var (
	// ErrNotFound 链接不存在（从未存在，或已被删除）
	ErrNotFound = errors.New("session: link not found")
	// ErrExpired 链接曾经存在但已过期，属于终态，调用方不应重试
	ErrExpired = errors.New("session: link expired")
	// ErrAlreadyBound 链接已绑定过钱包，不允许二次绑定
	ErrAlreadyBound = errors.New("session: wallet already bound")
)

// DefaultTTL 链接默认有效期
const DefaultTTL = 24 * time.Hour

// Store 管理 LinkSession 的生命周期：创建、查询（惰性过期）、一次性绑定、删除。
type Store struct {
	db  *gorm.DB
	ttl time.Duration

	// Now 可注入时钟，测试里用来构造过期会话
	Now func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		db:  db,
		ttl: ttl,
		Now: time.Now,
	}
}

// Create 生成一条新链接，bound=false，expiresAt = now + TTL。
func (s *Store) Create(meta map[string]interface{}) (*models.LinkSession, error) {
	now := s.Now()
	sess := models.LinkSession{
		LinkID:       uuid.NewString(),
		Bound:        false,
		LastActivity: now,
		Metadata:     datatypes.JSONMap(meta),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}

	if err := s.db.Create(&sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &sess, nil
}

// Get 按 linkId 查询会话，读取时执行惰性过期：
// 已过期的会话被顺手删除并返回 ErrExpired，绝不返回过期的旧状态。
func (s *Store) Get(linkID string) (*models.LinkSession, error) {
	var sess models.LinkSession
	if err := s.db.Where("link_id = ?", linkID).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	if !s.Now().Before(sess.ExpiresAt) {
		// 惰性过期：删除后报告 Expired 而不是 NotFound
		if err := s.db.Where("link_id = ?", linkID).Delete(&models.LinkSession{}).Error; err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrExpired
	}
	return &sess, nil
}

// Bind 把钱包地址绑定到会话上，只允许成功一次。
// 并发绑定同一 linkId 时由存储层的条件更新裁决：第一个写入者成功，
// 其余拿到 ErrAlreadyBound。进程内加锁不够，条件写才能跨进程生效。
func (s *Store) Bind(linkID, walletAddress, chainID, walletType string, meta map[string]interface{}) (*models.LinkSession, error) {
	// 先做一次带惰性过期的读取，把 NotFound/Expired 与绑定冲突区分开
	if _, err := s.Get(linkID); err != nil {
		return nil, err
	}

	now := s.Now()
	updates := map[string]interface{}{
		"wallet_address": walletAddress,
		"bound":          true,
		"chain_id":       chainID,
		"wallet_type":    walletType,
		"bound_at":       &now,
		"last_activity":  now,
	}
	if len(meta) > 0 {
		updates["metadata"] = datatypes.JSONMap(meta)
	}

	// 条件里同时带上存活检查：前面的 Get 和这次更新之间会话可能刚好过期，
	// 过期的行绝不能被标记为已绑定
	res := s.db.Model(&models.LinkSession{}).
		Where("link_id = ? AND bound = ? AND expires_at > ?", linkID, false, now).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("bind session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// 再读一次裁决失败原因：行没了 => NotFound，过期 => 惰性删除 + Expired，
		// 其余情况是已被别人绑定
		sess, err := s.Get(linkID)
		if err != nil {
			return nil, err
		}
		if sess.Bound {
			return nil, ErrAlreadyBound
		}
		return nil, ErrExpired
	}

	return s.Get(linkID)
}

// Touch 更新最近活动时间，不影响过期时间。
func (s *Store) Touch(linkID string) error {
	res := s.db.Model(&models.LinkSession{}).
		Where("link_id = ?", linkID).
		Update("last_activity", s.Now())
	if res.Error != nil {
		return fmt.Errorf("touch session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 删除会话，幂等：目标不存在也返回成功。
func (s *Store) Delete(linkID string) error {
	if err := s.db.Where("link_id = ?", linkID).Delete(&models.LinkSession{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List 返回全部会话（管理端连接列表），按创建时间倒序。
func (s *Store) List() ([]models.LinkSession, error) {
	var sessions []models.LinkSession
	if err := s.db.Order("created_at DESC, id DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SweepExpired 批量清理已过期的会话，返回删除数量。
// 只是存储卫生手段，正确性不依赖它——读取路径上的惰性过期才是权威判定。
func (s *Store) SweepExpired() (int64, error) {
	res := s.db.Where("expires_at <= ?", s.Now()).Delete(&models.LinkSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
