package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 交易记录不存在
	ErrNotFound = errors.New("ledger: transaction not found")
	// ErrAlreadyResolved 交易已经到达终态，不允许再次迁移
	ErrAlreadyResolved = errors.New("ledger: transaction already resolved")
)

// ValidationError 表示提案参数不合法（地址格式、金额格式等），
// 和存储层错误区分开，调用方据此返回 400 而不是 500。
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: invalid %s: %s", e.Field, e.Msg)
}

// Filter 列表/统计的筛选条件，零值表示不筛选
type Filter struct {
	LinkID string
	Status string
}

// Stats 聚合统计结果。金额是最小单位的精确整数；
// Count == 0 时 Sum/Avg 都是 0，不会出现除零。
type Stats struct {
	Count int64
	Sum   *big.Int
	Avg   *big.Int
}

// Ledger 只追加的交易账本：创建即 pending，之后唯一一次状态迁移到
// executed 或 failed，记录永不删除。
type Ledger struct {
	db *gorm.DB

	// Now 可注入时钟
	Now func() time.Time
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:  db,
		Now: time.Now,
	}
}

// ProposeInput 创建交易提案的输入。Amount 是最小单位的十进制字符串。
type ProposeInput struct {
	LinkID   string
	From     string
	To       string
	Amount   string
	GasLimit string
	GasPrice string
	Network  string
	ChainID  string
	Note     string
	Meta     map[string]interface{}
}

// Propose 校验参数后创建一条 pending 交易。
func (l *Ledger) Propose(in ProposeInput) (*models.TransactionRecord, error) {
	// 和金额一样，地址也按规范化后的形式落库
	in.To = strings.TrimSpace(in.To)
	if err := util.ValidateAddress(in.To); err != nil {
		return nil, &ValidationError{Field: "to", Msg: err.Error()}
	}
	value, err := util.ParseBaseUnits(in.Amount)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Msg: err.Error()}
	}
	if in.From == "" {
		return nil, &ValidationError{Field: "from", Msg: "from address is empty"}
	}

	if in.GasLimit == "" {
		in.GasLimit = "21000"
	}
	if in.GasPrice == "" {
		in.GasPrice = "20000000000" // 20 gwei
	}

	record := models.TransactionRecord{
		TransactionID: uuid.NewString(),
		LinkID:        in.LinkID,
		FromAddress:   in.From,
		ToAddress:     in.To,
		Value:         value.String(),
		ValueDisplay:  util.FormatDisplay(value), // 仅展示，不作为数据来源
		GasLimit:      in.GasLimit,
		GasPrice:      in.GasPrice,
		Status:        models.TxStatusPending,
		Network:       in.Network,
		ChainID:       in.ChainID,
		Note:          in.Note,
		Metadata:      datatypes.JSONMap(in.Meta),
		CreatedAt:     l.Now(),
	}

	if err := l.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &record, nil
}

// Resolve 把交易从 pending 一次性迁移到终态（executed 或 failed）。
// 用存储层的条件更新做 compare-and-set：并发确认同一笔交易时只有
// 一个写入者成功，其余拿到 ErrAlreadyResolved；txHash 和 resolvedAt
// 只由胜出者写入。
func (l *Ledger) Resolve(transactionID, outcome, txHash string) (*models.TransactionRecord, error) {
	if outcome != models.TxStatusExecuted && outcome != models.TxStatusFailed {
		return nil, &ValidationError{Field: "outcome", Msg: fmt.Sprintf("unknown outcome %q", outcome)}
	}

	now := l.Now()
	updates := map[string]interface{}{
		"status":      outcome,
		"resolved_at": &now,
	}
	if outcome == models.TxStatusExecuted {
		// txHash 只在成功执行时落库
		updates["tx_hash"] = txHash
	}

	res := l.db.Model(&models.TransactionRecord{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.TxStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("resolve transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var record models.TransactionRecord
		if err := l.db.Where("transaction_id = ?", transactionID).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("query transaction: %w", err)
		}
		return nil, ErrAlreadyResolved
	}

	return l.Get(transactionID)
}

// Get 按 transactionId 查询交易记录。
func (l *Ledger) Get(transactionID string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	if err := l.db.Where("transaction_id = ?", transactionID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return &record, nil
}

func (l *Ledger) filtered(f Filter) *gorm.DB {
	q := l.db.Model(&models.TransactionRecord{})
	if f.LinkID != "" {
		q = q.Where("link_id = ?", f.LinkID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// List 分页查询交易记录，按创建时间倒序（同一时刻按 id 倒序保证稳定），
// 返回记录和满足条件的总数。
func (l *Ledger) List(f Filter, page, pageSize int) ([]models.TransactionRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	base := l.filtered(f)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	var records []models.TransactionRecord
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	return records, total, nil
}

// ListAll 返回满足条件的全部交易记录（最多 limit 条），按创建时间倒序。
// 供导出等全量读取场景使用，不做 HTTP 分页钳制。
func (l *Ledger) ListAll(f Filter, limit int) ([]models.TransactionRecord, error) {
	q := l.filtered(f).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []models.TransactionRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return records, nil
}

// CountByStatus 返回满足条件的交易在各状态下的数量。
func (l *Ledger) CountByStatus(f Filter) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := l.filtered(f).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	counts := map[string]int64{
		models.TxStatusPending:  0,
		models.TxStatusExecuted: 0,
		models.TxStatusFailed:   0,
	}
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// Aggregate 计算满足条件的交易数量、金额总和与平均值。
// 金额存的是十进制字符串，SQL 里 SUM 会退化成浮点，所以取回来
// 用 big.Int 精确累加；avg = sum / count，count 为 0 时全部返回 0。
func (l *Ledger) Aggregate(f Filter) (*Stats, error) {
	var values []string
	if err := l.filtered(f).Pluck("value", &values).Error; err != nil {
		return nil, fmt.Errorf("aggregate transactions: %w", err)
	}

	stats := &Stats{
		Count: int64(len(values)),
		Sum:   new(big.Int),
		Avg:   new(big.Int),
	}
	if stats.Count == 0 {
		return stats, nil
	}

	for _, s := range values {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("aggregate transactions: corrupt value %q", s)
		}
		stats.Sum.Add(stats.Sum, v)
	}
	stats.Avg.Quo(stats.Sum, big.NewInt(stats.Count))
	return stats, nil
}
