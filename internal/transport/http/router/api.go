package router

import (
	"github.com/gin-gonic/gin"

	mdw "team-visualizer/internal/transport/http/middleware"
)

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(d Deps) *gin.Engine {
	r := newEngine(d)
	api := r.Group("/api/v1")
	authed := api.Group("")
	authed.Use(mdw.AuthJWT(d.JWT, false))
	if d.Modules != nil {
		d.Modules.MountAPI(api, authed)
	}
	return r
}
