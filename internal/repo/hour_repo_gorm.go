package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"team-visualizer/internal/domain"
)

type HourRepo struct{ db *gorm.DB }

func NewHourRepo(db *gorm.DB) *HourRepo { return &HourRepo{db: db} }

func (r *HourRepo) WithTx(tx *gorm.DB) domain.HourRepository { return &HourRepo{db: tx} }

func (r *HourRepo) Append(ctx context.Context, rec *domain.HourRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Last 无记录时返回 nil, nil
func (r *HourRepo) Last(ctx context.Context, userID string) (*domain.HourRecord, error) {
	var rec domain.HourRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("seq desc").Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *HourRepo) Recent(ctx context.Context, userID string, limit int) ([]domain.HourRecord, error) {
	recs := make([]domain.HourRecord, 0, limit)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("seq desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *HourRepo) Sum(ctx context.Context, userID string) (decimal.Decimal, int64, error) {
	var out struct {
		Total decimal.NullDecimal
		N     int64
	}
	err := r.db.WithContext(ctx).Model(&domain.HourRecord{}).
		Select("SUM(amount) AS total, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Scan(&out).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	if !out.Total.Valid {
		return decimal.Zero, out.N, nil
	}
	return out.Total.Decimal, out.N, nil
}
