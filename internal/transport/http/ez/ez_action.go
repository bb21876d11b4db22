package ez

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"team-visualizer/internal/core/auth"
	"team-visualizer/internal/domain"
	mdw "team-visualizer/internal/transport/http/middleware"
	resp "team-visualizer/internal/transport/http/response"
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定
)

// AErr 传输层自己产生的错误（参数、鉴权）
type AErr struct {
	Status int
	Code   string
	Msg    string
}

func (e *AErr) Error() string { return e.Msg }

func BadRequest(msg string) error {
	return &AErr{Status: http.StatusBadRequest, Code: resp.ErrBadRequest, Msg: msg}
}
func Unauthorized(msg string) error {
	return &AErr{Status: http.StatusUnauthorized, Code: resp.ErrUnauthorized, Msg: msg}
}
func Forbidden(msg string) error {
	return &AErr{Status: http.StatusForbidden, Code: resp.ErrForbidden, Msg: msg}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string
	Binder  Binder
	Auth    bool // 要求 context 里有已验证身份
	Admin   bool // 要求管理员
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权
		if a.Auth || a.Admin {
			id, ok := auth.IdentityFrom(c.Request.Context())
			if !ok {
				e.fail(c, Unauthorized("unauthorized"))
				return
			}
			if a.Admin && !id.Admin {
				e.fail(c, Forbidden("admin only"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			e.log.Debug("bind failed",
				zap.String("rid", c.GetString(mdw.KeyRequestID)),
				zap.String("path", c.FullPath()),
				zap.Error(bindErr))
			e.fail(c, BadRequest(bindMessage(bindErr)))
			return
		}

		// 3) 执行
		out, err := a.Handler(c, &in)
		if err != nil {
			e.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

func (e EZ) fail(c *gin.Context, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		e.log.Error("request failed",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp.Error(status, code, msg))
}

// mapError 领域错误 -> HTTP 状态 + 稳定错误码；内部细节不外泄
func mapError(err error) (int, string, string) {
	var ae *AErr
	switch {
	case errors.As(err, &ae):
		return ae.Status, ae.Code, ae.Msg
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, resp.ErrUserNotFound, "user not found"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, resp.ErrInvalidAmount, err.Error()
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, resp.ErrEmailTaken, "email already registered"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, resp.ErrInvalidCredentials, "invalid email or password"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp.ErrTimeout, "timeout"
	default:
		return http.StatusInternalServerError, resp.ErrInternal, "internal error"
	}
}
