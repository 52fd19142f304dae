package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
)

// AuthMW wraps the token service and the session and user repositories for middleware
type AuthMW struct {
	tokenSvc    domain.TokenService
	sessionRepo domain.SessionRepository
	userRepo    domain.UserRepository
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(tokenSvc domain.TokenService, sessionRepo domain.SessionRepository, userRepo domain.UserRepository) *AuthMW {
	return &AuthMW{
		tokenSvc:    tokenSvc,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
	}
}

// WithJWT returns the JWT middleware function
func (mw *AuthMW) WithJWT() gin.HandlerFunc {
	return AuthMiddleware(mw.tokenSvc, mw.sessionRepo, mw.userRepo)
}

// Optional returns the middleware for routes that also serve anonymous callers
func (mw *AuthMW) Optional() gin.HandlerFunc {
	return OptionalAuthMiddleware(mw.tokenSvc, mw.sessionRepo, mw.userRepo)
}
