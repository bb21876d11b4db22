package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"team-visualizer/internal/service"
	"team-visualizer/internal/transport/http/ez"
)

type TeamHandler struct {
	users *service.UserService
	log   *zap.Logger
}

func NewTeamHandler(users *service.UserService, l *zap.Logger) *TeamHandler {
	return &TeamHandler{users: users, log: orNop(l)}
}

func (h *TeamHandler) MountAPI(_, authed *gin.RouterGroup) {
	ez.RegisterAction(ez.New(authed, h.log), ez.Action[struct{}, []service.Member]{
		Method: http.MethodGet,
		Path:   "/team",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]service.Member, error) {
			return h.users.Team(c.Request.Context())
		},
	})
}
