package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"team-visualizer/internal/core/auth"
	"team-visualizer/internal/core/server"
	mdw "team-visualizer/internal/transport/http/middleware"
	resp "team-visualizer/internal/transport/http/response"
)

// Deps engine 依赖
type Deps struct {
	Log     *zap.Logger
	JWT     *auth.JWTer
	Modules *Registry
	// Ready 健康检查探活（DB / Redis），为空时总是健康
	Ready func(ctx context.Context) error
	// 每 IP 每秒请求数，0 表示用默认值
	PerIPRate rate.Limit
}

func newEngine(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	perIP := d.PerIPRate
	if perIP == 0 {
		perIP = 50
	}
	r := server.NewRouter(d.Log, mdw.PanicResponse)
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.RateLimitPerIP(perIP, int(perIP)*2, 10*time.Minute),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				d.Log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, resp.Error(resp.CodeUnavailable, resp.ErrUnavailable, "not ready"))
				return
			}
		}
		c.JSON(http.StatusOK, resp.OK(gin.H{"ok": 1}))
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
