package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"team-visualizer/internal/core/cache"
	"team-visualizer/internal/domain"
	"team-visualizer/pkg/utils"
)

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Career     string
	MemberType domain.MemberType
}

type ProfileInput struct {
	Name       string
	Career     string
	MemberType domain.MemberType
}

type UserService struct {
	users   domain.UserRepository
	cache   *cache.Cache
	teamTTL time.Duration
	admins  map[string]struct{}
	log     *zap.Logger
}

func NewUserService(users domain.UserRepository, c *cache.Cache, teamTTL time.Duration, bootstrapAdmins []string, l *zap.Logger) *UserService {
	if l == nil {
		l = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(bootstrapAdmins))
	for _, e := range bootstrapAdmins {
		if e = domain.NormalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &UserService{users: users, cache: c, teamTTL: teamTTL, admins: admins, log: l}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("register lookup", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}
	_, admin := s.admins[email]
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Career:       strings.TrimSpace(in.Career),
		MemberType:   in.MemberType,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// 并发注册撞唯一索引
		if isDupKey(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, s.internal("create user", err)
	}
	s.invalidateTeam(ctx)
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.Bool("admin", admin))
	return u, nil
}

// Authenticate 邮箱不存在与密码错误返回同一个错误
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("login lookup", err)
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Me(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal("me", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(current, u.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return s.internal("hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return s.internal("update password", err)
	}
	return nil
}

// UpdateProfile 只改姓名、专业与成员类型
func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileInput) (*domain.User, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(in.Name)
	u.Career = strings.TrimSpace(in.Career)
	u.MemberType = in.MemberType
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, s.internal("update profile", err)
	}
	s.invalidateTeam(ctx)
	s.log.Info("profile updated", zap.String("user_id", u.ID))
	return u, nil
}

// Grant 授予管理员
func (s *UserService) Grant(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("grant lookup", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	if !u.IsAdmin {
		if err := s.users.SetAdmin(ctx, u.ID, true); err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, err
			}
			return nil, s.internal("grant", err)
		}
		u.IsAdmin = true
		s.invalidateTeam(ctx)
		s.log.Info("admin granted", zap.String("user_id", u.ID))
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset = max(offset, 0)
	users, total, err := s.users.List(ctx, offset, limit, q)
	if err != nil {
		return nil, 0, s.internal("list users", err)
	}
	return users, total, nil
}

func (s *UserService) internal(op string, err error) error {
	s.log.Error("user "+op+" failed", zap.Error(err))
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}

func isDupKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
