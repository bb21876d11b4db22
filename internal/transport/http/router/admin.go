package router

import (
	"github.com/gin-gonic/gin"

	mdw "team-visualizer/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1，统一要求 admin
func NewAdminEngine(d Deps) *gin.Engine {
	r := newEngine(d)
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.JWT, true))
	if d.Modules != nil {
		d.Modules.MountAdmin(admin)
	}
	return r
}
