package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"team-visualizer/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) WithTx(tx *gorm.DB) domain.UserRepository { return &UserRepo{db: tx} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	u.ServiceHours = decimal.Zero
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(r.db.WithContext(ctx), "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) LockByKey(ctx context.Context, key string) (*domain.User, error) {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	if domain.IsEmailKey(key) {
		return r.first(q, "email = ?", domain.NormalizeEmail(key))
	}
	return r.first(q, "id = ?", strings.TrimSpace(key))
}

// 查不到返回 nil, nil
func (r *UserRepo) first(q *gorm.DB, cond string, arg any) (*domain.User, error) {
	var u domain.User
	err := q.Where(cond, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(q); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("email LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := tx.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) ListByName(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Order("name asc").Order("email asc").Find(&users).Error
	return users, err
}

// UpdateProfile 只写资料字段，余额、密码、权限不在此处修改
func (r *UserRepo) UpdateProfile(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Model(&domain.User{ID: u.ID}).
		Select("name", "career", "member_type").
		Updates(map[string]any{"name": u.Name, "career": u.Career, "member_type": u.MemberType}).Error
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.updateColumn(ctx, id, "password_hash", hash)
}

func (r *UserRepo) SetAdmin(ctx context.Context, id string, admin bool) error {
	return r.updateColumn(ctx, id, "is_admin", admin)
}

// UpdateBalance 仅供 LedgerService 在事务内调用
func (r *UserRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.updateColumn(ctx, id, "service_hours", balance)
}

func (r *UserRepo) updateColumn(ctx context.Context, id, col string, v any) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update(col, v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
