package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"team-visualizer/internal/core/cache"
	"team-visualizer/internal/domain"
	"team-visualizer/pkg/utils"
)

const (
	HistoryMaxLimit = 5
	maxReasonLen    = 255
)

type AdjustResult struct {
	NewBalance decimal.Decimal `json:"newBalance"`
	RecordID   string          `json:"recordId"`
}

type Reconciliation struct {
	UserID     string          `json:"userId"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledgerSum"`
	Records    int64           `json:"records"`
	Drift      decimal.Decimal `json:"drift"`
	Consistent bool            `json:"consistent"`
}

// LedgerService 是唯一允许修改 users.service_hours 的地方：
// 余额更新与账本追加在同一个事务里提交或回滚。
type LedgerService struct {
	db       *gorm.DB
	users    domain.UserRepository
	hours    domain.HourRepository
	cache    *cache.Cache
	cacheTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

type LedgerOption func(*LedgerService)

func WithLedgerCache(c *cache.Cache, ttl time.Duration) LedgerOption {
	return func(s *LedgerService) { s.cache, s.cacheTTL = c, ttl }
}

func WithLedgerLogger(l *zap.Logger) LedgerOption {
	return func(s *LedgerService) { s.log = l }
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(db *gorm.DB, users domain.UserRepository, hours domain.HourRepository, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{db: db, users: users, hours: hours, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Adjust 对 key（邮箱或 ID）对应用户的余额加上 amount，并追加一条账本记录。
func (s *LedgerService) Adjust(ctx context.Context, key string, amount decimal.Decimal, reason string) (*AdjustResult, error) {
	start := time.Now()
	res, err := s.adjust(ctx, key, amount, reason)
	observeAdjust(err, amount, time.Since(start))
	return res, err
}

// RegisterHours 成员自助登记，只能加不能减
func (s *LedgerService) RegisterHours(ctx context.Context, key string, amount decimal.Decimal, reason string) (*AdjustResult, error) {
	if !amount.IsPositive() {
		observeAdjust(domain.ErrInvalidAmount, amount, 0)
		return nil, fmt.Errorf("%w: self-registered hours must be positive", domain.ErrInvalidAmount)
	}
	return s.Adjust(ctx, key, amount, reason)
}

func (s *LedgerService) adjust(ctx context.Context, key string, amount decimal.Decimal, reason string) (*AdjustResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrUserNotFound
	}
	reason = clipReason(reason)

	var (
		out    AdjustResult
		userID string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users, hours := s.users.WithTx(tx), s.hours.WithTx(tx)

		// 行锁：同一用户的并发调整在此排队
		u, err := users.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		if u == nil {
			return domain.ErrUserNotFound
		}
		userID = u.ID

		last, err := hours.Last(ctx, u.ID)
		if err != nil {
			return err
		}
		rec := &domain.HourRecord{
			ID:        utils.NewID(),
			UserID:    u.ID,
			Seq:       1,
			Amount:    amount,
			Reason:    reason,
			CreatedAt: s.now().UTC(),
		}
		if last != nil {
			rec.Seq = last.Seq + 1
			if rec.CreatedAt.Before(last.CreatedAt) {
				rec.CreatedAt = last.CreatedAt
			}
		}

		balance := u.ServiceHours.Add(amount)
		if err := users.UpdateBalance(ctx, u.ID, balance); err != nil {
			return err
		}
		if err := hours.Append(ctx, rec); err != nil {
			return err
		}
		out = AdjustResult{NewBalance: balance, RecordID: rec.ID}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.log.Error("ledger adjust failed",
			zap.String("key", key), zap.String("amount", amount.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: adjust: %v", domain.ErrInternal, err)
	}

	// 团队目录里也展示余额
	if err := s.cache.Del(ctx, historyCacheKey(userID), teamCacheKey); err != nil {
		s.log.Warn("cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.log.Info("ledger adjusted",
		zap.String("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("balance", out.NewBalance.String()),
		zap.String("record_id", out.RecordID))
	return &out, nil
}

// ClampLimit 把 limit 收敛到 [1, 5]；0 以下视为 1
func ClampLimit(limit int) int {
	return min(max(limit, 1), HistoryMaxLimit)
}

// History 返回最近 limit 条记录，新的在前
func (s *LedgerService) History(ctx context.Context, key string, limit int) ([]domain.HistoryEntry, error) {
	u, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	page, err := s.historyPage(ctx, u.ID)
	if err != nil {
		return nil, s.internal("history", err)
	}
	entries := page.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// historySnapshot 缓存里总是存最近 5 条，Seq 是其中最新一条的序号
type historySnapshot struct {
	Seq     int64                 `json:"seq"`
	Entries []domain.HistoryEntry `json:"entries"`
}

func (s *LedgerService) loadHistory(ctx context.Context, userID string) (historySnapshot, error) {
	recs, err := s.hours.Recent(ctx, userID, HistoryMaxLimit)
	if err != nil {
		return historySnapshot{}, err
	}
	snap := historySnapshot{Entries: make([]domain.HistoryEntry, 0, len(recs))}
	if len(recs) > 0 {
		snap.Seq = recs[0].Seq
	}
	for _, r := range recs {
		snap.Entries = append(snap.Entries, domain.NewHistoryEntry(r))
	}
	return snap, nil
}

// historyPage 读穿缓存后再用账本最新 seq 校验一次：
// 回源早于某次提交、写缓存晚于该次删除时，缓存里会留下旧页
func (s *LedgerService) historyPage(ctx context.Context, userID string) (historySnapshot, error) {
	key := historyCacheKey(userID)
	load := func(ctx context.Context) (historySnapshot, error) { return s.loadHistory(ctx, userID) }
	snap, err := cache.GetOrLoadJSON(s.cache, ctx, key, s.cacheTTL, load)
	if err != nil || !s.cache.Enabled() {
		return snap, err
	}
	last, err := s.hours.Last(ctx, userID)
	if err != nil {
		return historySnapshot{}, err
	}
	var seq int64
	if last != nil {
		seq = last.Seq
	}
	if seq == snap.Seq {
		return snap, nil
	}
	if snap, err = load(ctx); err != nil {
		return historySnapshot{}, err
	}
	if err := cache.SetJSON(s.cache, ctx, key, s.cacheTTL, snap); err != nil {
		s.log.Warn("history cache refill failed", zap.String("user_id", userID), zap.Error(err))
	}
	return snap, nil
}

// Balance 当前累计时长
func (s *LedgerService) Balance(ctx context.Context, key string) (decimal.Decimal, error) {
	u, err := s.resolve(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return u.ServiceHours, nil
}

// Verify 对账：余额应等于该用户全部账本金额之和
func (s *LedgerService) Verify(ctx context.Context, key string) (*Reconciliation, error) {
	u, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	sum, n, err := s.hours.Sum(ctx, u.ID)
	if err != nil {
		return nil, s.internal("verify", err)
	}
	balance := u.ServiceHours.Round(2)
	sum = sum.Round(2)
	r := &Reconciliation{
		UserID:     u.ID,
		Balance:    balance,
		LedgerSum:  sum,
		Records:    n,
		Drift:      balance.Sub(sum),
		Consistent: balance.Equal(sum),
	}
	if !r.Consistent {
		s.log.Warn("ledger drift detected",
			zap.String("user_id", u.ID),
			zap.String("balance", balance.String()),
			zap.String("ledger_sum", sum.String()))
	}
	return r, nil
}

func (s *LedgerService) resolve(ctx context.Context, key string) (*domain.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrUserNotFound
	}
	var (
		u   *domain.User
		err error
	)
	if domain.IsEmailKey(key) {
		u, err = s.users.FindByEmail(ctx, key)
	} else {
		u, err = s.users.FindByID(ctx, key)
	}
	if err != nil {
		return nil, s.internal("lookup user", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *LedgerService) internal(op string, err error) error {
	s.log.Error("ledger "+op+" failed", zap.Error(err))
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}

func historyCacheKey(userID string) string { return "hours:history:" + userID }

func clipReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) <= maxReasonLen {
		return reason
	}
	return string([]rune(reason)[:maxReasonLen])
}
