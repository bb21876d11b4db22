package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "team-visualizer/internal/transport/http/response"
)

// PanicResponse 交给 ginzap 的 recovery 使用，日志由 ginzap 负责
func PanicResponse(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, resp.ErrInternal, ""))
}
