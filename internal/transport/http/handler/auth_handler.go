package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"team-visualizer/internal/core/auth"
	"team-visualizer/internal/domain"
	"team-visualizer/internal/service"
	"team-visualizer/internal/transport/http/ez"
)

type AuthHandler struct {
	users *service.UserService
	jwt   *auth.JWTer
	log   *zap.Logger
}

func NewAuthHandler(users *service.UserService, j *auth.JWTer, l *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwt: j, log: orNop(l)}
}

func (h *AuthHandler) Priority() int { return 10 }

func (h *AuthHandler) MountAPI(pub, authed *gin.RouterGroup) {
	ezPub, ezAuth := ez.New(pub, h.log), ez.New(authed, h.log)

	type registerIn struct {
		Name       string            `json:"name"       binding:"required,max=64"`
		Email      string            `json:"email"      binding:"required,email,max=191"`
		Password   string            `json:"password"   binding:"required,min=8,max=72"`
		Career     string            `json:"career"     binding:"max=128"`
		MemberType domain.MemberType `json:"memberType" binding:"omitempty,oneof=researcher graduate intern social-service"`
	}
	ez.RegisterAction(ezPub, ez.Action[registerIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *registerIn) (*domain.User, error) {
			return h.users.Register(c.Request.Context(), service.RegisterInput{
				Name:       in.Name,
				Email:      in.Email,
				Password:   in.Password,
				Career:     in.Career,
				MemberType: in.MemberType,
			})
		},
	})

	type loginIn struct {
		Email    string `json:"email"    binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	type loginOut struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	ez.RegisterAction(ezPub, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			u, err := h.users.Authenticate(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			tok, err := h.jwt.Issue(auth.Identity{UserID: u.ID, Email: u.Email, Admin: u.IsAdmin})
			if err != nil {
				return loginOut{}, err
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	ez.RegisterAction(ezAuth, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.users.Me(c.Request.Context(), caller(c).UserID)
		},
	})

	type profileIn struct {
		Name       string            `json:"name"       binding:"required,max=64"`
		Career     string            `json:"career"     binding:"max=128"`
		MemberType domain.MemberType `json:"memberType" binding:"omitempty,oneof=researcher graduate intern social-service"`
	}
	ez.RegisterAction(ezAuth, ez.Action[profileIn, *domain.User]{
		Method: http.MethodPut,
		Path:   "/me",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *profileIn) (*domain.User, error) {
			return h.users.UpdateProfile(c.Request.Context(), caller(c).UserID, service.ProfileInput{
				Name:       in.Name,
				Career:     in.Career,
				MemberType: in.MemberType,
			})
		},
	})

	type changePasswordIn struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword"     binding:"required,min=8,max=72"`
	}
	ez.RegisterAction(ezAuth, ez.Action[changePasswordIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/change-password",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *changePasswordIn) (gin.H, error) {
			if err := h.users.ChangePassword(c.Request.Context(), caller(c).UserID, in.CurrentPassword, in.NewPassword); err != nil {
				return nil, err
			}
			return gin.H{"ok": true}, nil
		},
	})
}

// caller 只在 Auth 动作里调用，身份一定存在
func caller(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return id
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
