package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
)

// Context keys set by the auth and request ID middleware
const (
	KeyUserID    = "user_id"
	KeyUserRole  = "user_role"
	KeySessionID = "session_id"
	KeyRequestID = "request_id"
)

// UserID returns the authenticated user's ID
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(KeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(KeyUserRole)
}

func SessionID(c *gin.Context) string {
	return c.GetString(KeySessionID)
}

func RequestID(c *gin.Context) string {
	return c.GetString(KeyRequestID)
}

// Actor returns the authenticated caller, or false for anonymous requests
func Actor(c *gin.Context) (domain.Actor, bool) {
	id, ok := UserID(c)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: Role(c)}, true
}
