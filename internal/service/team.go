package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"team-visualizer/internal/core/cache"
	"team-visualizer/internal/domain"
)

const teamCacheKey = "team:directory"

type Member struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	Role         string            `json:"role"`
	Type         domain.MemberType `json:"type"`
	Initials     string            `json:"initials"`
	IsAdmin      bool              `json:"isAdmin"`
	ServiceHours decimal.Decimal   `json:"serviceHours"`
}

// Team 成员目录，按姓名排序
func (s *UserService) Team(ctx context.Context) ([]Member, error) {
	members, err := cache.GetOrLoadJSON(s.cache, ctx, teamCacheKey, s.teamTTL, func(ctx context.Context) ([]Member, error) {
		users, err := s.users.ListByName(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Member, 0, len(users))
		for _, u := range users {
			name := u.Name
			if strings.TrimSpace(name) == "" {
				name = u.Email
			}
			typ := u.MemberType
			if typ == "" {
				typ = "other"
			}
			out = append(out, Member{
				ID:           u.ID,
				Email:        u.Email,
				Name:         name,
				Role:         u.MemberType.Label(),
				Type:         typ,
				Initials:     Initials(u.Name, u.Email),
				IsAdmin:      u.IsAdmin,
				ServiceHours: u.ServiceHours,
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, s.internal("team", err)
	}
	return members, nil
}

// Initials 取姓名各段首字母（最多 3 个），姓名为空时用邮箱
func Initials(name, email string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base, _, _ = strings.Cut(strings.TrimSpace(email), "@")
	}
	out := make([]rune, 0, 3)
	for _, part := range strings.Fields(base) {
		if len(out) == 3 {
			break
		}
		out = append(out, unicode.ToUpper([]rune(part)[0]))
	}
	return string(out)
}

func (s *UserService) invalidateTeam(ctx context.Context) {
	if err := s.cache.Del(ctx, teamCacheKey); err != nil {
		s.log.Warn("team cache invalidation failed", zap.Error(err))
	}
}
