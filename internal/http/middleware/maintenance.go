package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/services"
)

// Flags reads boolean platform settings
type Flags interface {
	Bool(ctx context.Context, key string) bool
}

// Maintenance rejects writes from non-admin users while maintenance mode is on.
// Reads keep working.
func Maintenance(flags Flags) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if Role(c) == domain.RoleAdmin || !flags.Bool(c.Request.Context(), services.SettingMaintenanceMode) {
			c.Next()
			return
		}
		c.Error(domain.NewServiceUnavailable("The marketplace is in maintenance mode, please try again later", nil))
		c.Abort()
	}
}
