package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"team-visualizer/internal/domain"
	"team-visualizer/internal/service"
	"team-visualizer/internal/transport/http/ez"
)

// HoursHandler 成员自己的时长：余额、自助登记、历史
type HoursHandler struct {
	ledger *service.LedgerService
	log    *zap.Logger
}

func NewHoursHandler(ledger *service.LedgerService, l *zap.Logger) *HoursHandler {
	return &HoursHandler{ledger: ledger, log: orNop(l)}
}

type historyQ struct {
	Email string `form:"email"`
	Limit *int   `form:"limit"`
}

func (q historyQ) limit() int {
	if q.Limit == nil {
		return service.HistoryMaxLimit
	}
	return *q.Limit
}

func (h *HoursHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed, h.log)

	type balanceOut struct {
		ServiceHours decimal.Decimal `json:"serviceHours"`
	}
	ez.RegisterAction(e, ez.Action[struct{}, balanceOut]{
		Method: http.MethodGet,
		Path:   "/hours/balance",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (balanceOut, error) {
			b, err := h.ledger.Balance(c.Request.Context(), caller(c).UserID)
			return balanceOut{ServiceHours: b}, err
		},
	})

	type registerIn struct {
		Amount json.RawMessage `json:"amount"`
		Reason string          `json:"reason"`
	}
	ez.RegisterAction(e, ez.Action[registerIn, *service.AdjustResult]{
		Method: http.MethodPost,
		Path:   "/hours/register",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *registerIn) (*service.AdjustResult, error) {
			amount, err := domain.ParseAmount(in.Amount)
			if err != nil {
				return nil, err
			}
			return h.ledger.RegisterHours(c.Request.Context(), caller(c).UserID, amount, in.Reason)
		},
	})

	// 不带 email 查自己；查别人需要管理员
	ez.RegisterAction(e, ez.Action[historyQ, []domain.HistoryEntry]{
		Method: http.MethodGet,
		Path:   "/hours/history",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *historyQ) ([]domain.HistoryEntry, error) {
			id := caller(c)
			key := id.UserID
			if email := domain.NormalizeEmail(in.Email); email != "" && email != id.Email {
				if !id.Admin {
					return nil, ez.Forbidden("history of other members is admin only")
				}
				key = email
			}
			return h.ledger.History(c.Request.Context(), key, in.limit())
		},
	})
}
