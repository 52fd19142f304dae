package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
)

// authenticate resolves a bearer token to its live session and user
func authenticate(ctx context.Context, header string, tokenSvc domain.TokenService, sessionRepo domain.SessionRepository, userRepo domain.UserRepository) (*domain.User, *domain.TokenClaims, error) {
	// Check Bearer token format
	tokenParts := strings.SplitN(header, " ", 2)
	if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") || tokenParts[1] == "" {
		return nil, nil, domain.NewUnauthorized("Invalid authorization header format")
	}

	claims, err := tokenSvc.ValidateAccessToken(tokenParts[1])
	if err != nil {
		return nil, nil, err
	}

	// The session must still exist in Redis; logout deletes it
	session, err := sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil || session == nil {
		return nil, nil, domain.ErrSessionExpired
	}
	if session.UserID != claims.UserID {
		return nil, nil, domain.ErrTokenInvalid
	}

	user, err := userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrTokenInvalid
		}
		return nil, nil, err
	}
	if user.Status == domain.UserStatusSuspended {
		return nil, nil, domain.ErrUserSuspended
	}
	return user, claims, nil
}

// AuthMiddleware requires a valid access token and sets user_id, user_role and session_id
func AuthMiddleware(tokenSvc domain.TokenService, sessionRepo domain.SessionRepository, userRepo domain.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Error(domain.ErrUnauthorized)
			c.Abort()
			return
		}

		user, claims, err := authenticate(c.Request.Context(), authHeader, tokenSvc, sessionRepo, userRepo)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		// The stored role wins over the token's so role changes apply immediately
		c.Set(KeyUserID, user.ID)
		c.Set(KeyUserRole, user.Role)
		c.Set(KeySessionID, claims.SessionID)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present
// and lets anonymous requests through otherwise
func OptionalAuthMiddleware(tokenSvc domain.TokenService, sessionRepo domain.SessionRepository, userRepo domain.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			if user, claims, err := authenticate(c.Request.Context(), authHeader, tokenSvc, sessionRepo, userRepo); err == nil {
				c.Set(KeyUserID, user.ID)
				c.Set(KeyUserRole, user.Role)
				c.Set(KeySessionID, claims.SessionID)
			}
		}
		c.Next()
	}
}
