package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"team-visualizer/internal/domain"
	"team-visualizer/internal/service"
	"team-visualizer/internal/transport/http/ez"
)

// AdminHandler 管理端：成员管理与代调整时长
type AdminHandler struct {
	users  *service.UserService
	ledger *service.LedgerService
	log    *zap.Logger
}

func NewAdminHandler(users *service.UserService, ledger *service.LedgerService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, ledger: ledger, log: orNop(l)}
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, h.log)

	// --- GET /admin/v1/users  用户列表 ---
	type listQ struct {
		Offset int    `form:"offset,default=0"`
		Limit  int    `form:"limit,default=20"`
		Q      string `form:"q"` // 按 email/name 模糊搜
	}
	type listOut struct {
		Total int64         `json:"total"`
		Items []domain.User `json:"items"`
	}
	ez.RegisterAction(e, ez.Action[listQ, listOut]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Admin:  true,
		Handler: func(c *gin.Context, in *listQ) (listOut, error) {
			users, total, err := h.users.List(c.Request.Context(), in.Offset, in.Limit, in.Q)
			if err != nil {
				return listOut{}, err
			}
			return listOut{Total: total, Items: users}, nil
		},
	})

	type grantIn struct {
		Email string `json:"email" binding:"required"`
	}
	ez.RegisterAction(e, ez.Action[grantIn, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/grant",
		Binder: ez.BindJSON,
		Admin:  true,
		Handler: func(c *gin.Context, in *grantIn) (*domain.User, error) {
			return h.users.Grant(c.Request.Context(), in.Email)
		},
	})

	// --- POST /admin/v1/hours  代成员加减时长 ---
	type adjustIn struct {
		Email  string          `json:"email"`
		Amount json.RawMessage `json:"amount"`
		Reason string          `json:"reason"`
	}
	ez.RegisterAction(e, ez.Action[adjustIn, *service.AdjustResult]{
		Method: http.MethodPost,
		Path:   "/hours",
		Binder: ez.BindJSON,
		Admin:  true,
		Handler: func(c *gin.Context, in *adjustIn) (*service.AdjustResult, error) {
			amount, err := domain.ParseAmount(in.Amount)
			if err != nil {
				return nil, err
			}
			res, err := h.ledger.Adjust(c.Request.Context(), in.Email, amount, in.Reason)
			if err != nil {
				return nil, err
			}
			h.log.Info("hours adjusted by admin",
				zap.String("admin", caller(c).Email),
				zap.String("target", domain.NormalizeEmail(in.Email)),
				zap.String("amount", amount.String()))
			return res, nil
		},
	})

	ez.RegisterAction(e, ez.Action[historyQ, []domain.HistoryEntry]{
		Method: http.MethodGet,
		Path:   "/hours/history",
		Binder: ez.BindQuery,
		Admin:  true,
		Handler: func(c *gin.Context, in *historyQ) ([]domain.HistoryEntry, error) {
			return h.ledger.History(c.Request.Context(), in.Email, in.limit())
		},
	})

	type verifyQ struct {
		Email string `form:"email" binding:"required"`
	}
	ez.RegisterAction(e, ez.Action[verifyQ, *service.Reconciliation]{
		Method: http.MethodGet,
		Path:   "/hours/verify",
		Binder: ez.BindQuery,
		Admin:  true,
		Handler: func(c *gin.Context, in *verifyQ) (*service.Reconciliation, error) {
			return h.ledger.Verify(c.Request.Context(), in.Email)
		},
	})
}
