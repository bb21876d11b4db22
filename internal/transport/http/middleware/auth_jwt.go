package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"team-visualizer/internal/core/auth"
	resp "team-visualizer/internal/transport/http/response"
)

// AuthJWT 校验 Bearer token，把调用方身份放进请求 context
func AuthJWT(j *auth.JWTer, requireAdmin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, resp.ErrUnauthorized, "missing token"))
			return
		}
		claims, err := j.Parse(strings.TrimPrefix(ah, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, resp.ErrUnauthorized, "invalid token"))
			return
		}
		if requireAdmin && !claims.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, resp.ErrForbidden, "admin only"))
			return
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), claims.Identity()))
		c.Next()
	}
}
