package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MemberType string

const (
	MemberResearcher    MemberType = "researcher"
	MemberGraduate      MemberType = "graduate"
	MemberIntern        MemberType = "intern"
	MemberSocialService MemberType = "social-service"
)

// Label 团队页展示用
func (m MemberType) Label() string {
	switch m {
	case MemberResearcher:
		return "Contracted Researcher"
	case MemberGraduate:
		return "Graduate Student"
	case MemberIntern:
		return "Intern"
	case MemberSocialService:
		return "Social Service Member"
	default:
		return "Lab Member"
	}
}

type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name         string     `gorm:"size:64;not null" json:"name"`
	Career       string     `gorm:"size:128" json:"career"`
	MemberType   MemberType `gorm:"size:32" json:"memberType"`
	PasswordHash string     `gorm:"size:100;not null" json:"-"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"isAdmin"`
	// 累计服务时长（小时），只能经由 LedgerService 修改
	ServiceHours decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"serviceHours"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// NormalizeEmail 写入和查询前统一处理
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// IsEmailKey 带 @ 的 key 按邮箱查，否则按 ID
func IsEmailKey(key string) bool { return strings.Contains(key, "@") }

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// LockByKey 在事务内对用户行加 FOR UPDATE 锁，key 为邮箱或 ID
	LockByKey(ctx context.Context, key string) (*User, error)
	List(ctx context.Context, offset, limit int, q string) ([]User, int64, error)
	ListByName(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetAdmin(ctx context.Context, id string, admin bool) error
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	WithTx(tx *gorm.DB) UserRepository
}
