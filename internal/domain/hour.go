package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// HourRecord 账本条目：一次余额变动，只追加不修改
type HourRecord struct {
	ID     string          `gorm:"primaryKey;size:36" json:"id"`
	UserID string          `gorm:"size:36;not null;uniqueIndex:idx_hour_user_seq,priority:1" json:"userId"`
	Seq    int64           `gorm:"not null;uniqueIndex:idx_hour_user_seq,priority:2" json:"seq"`
	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason string          `gorm:"size:255" json:"reason,omitempty"`
	// 同一用户内单调不减
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

func (HourRecord) TableName() string { return "hour_records" }

type HourRepository interface {
	Append(ctx context.Context, r *HourRecord) error
	Last(ctx context.Context, userID string) (*HourRecord, error)
	Recent(ctx context.Context, userID string, limit int) ([]HourRecord, error)
	Sum(ctx context.Context, userID string) (decimal.Decimal, int64, error)
	WithTx(tx *gorm.DB) HourRepository
}

// HistoryEntry 历史查询的展示形态
type HistoryEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note"`
}

func NewHistoryEntry(r HourRecord) HistoryEntry {
	return HistoryEntry{ID: r.ID, Timestamp: r.CreatedAt, Amount: r.Amount, Note: NoteFor(r.Amount)}
}

// NoteFor 由金额正负推导说明，不落库
func NoteFor(amount decimal.Decimal) string {
	verb := "added"
	if amount.IsNegative() {
		verb = "removed"
	}
	abs := amount.Abs()
	unit := "hours"
	if abs.Equal(decimal.NewFromInt(1)) {
		unit = "hour"
	}
	return fmt.Sprintf("%s %s %s", verb, abs.String(), unit)
}
