package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/auth"
)

// Enforcer is the part of the casbin enforcer the middleware needs
type Enforcer interface {
	Enforce(rvals ...interface{}) (bool, error)
}

// CasbinMW authorizes requests by role against route templates
type CasbinMW struct {
	enforcer Enforcer
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(enforcer Enforcer) *CasbinMW {
	return &CasbinMW{enforcer: enforcer}
}

// Enforce returns the casbin authorization middleware. It must run after WithJWT.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			c.Error(domain.ErrUnauthorized)
			c.Abort()
			return
		}

		// Policies are written against route templates such as /api/listings/:id
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, err := mw.enforcer.Enforce(auth.Subject(role), path, c.Request.Method)
		if err != nil {
			c.Error(domain.NewInternal("Authorization check failed", err))
			c.Abort()
			return
		}
		if !allowed {
			slog.InfoContext(c.Request.Context(), "access denied", "role", role, "path", path, "method", c.Request.Method)
			c.Error(domain.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
