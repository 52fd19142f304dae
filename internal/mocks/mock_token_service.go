package mocks

import (
	"fmt"
	"time"

	"github.com/you/mcmarket/domain"
)

// MockTokenService implements domain.TokenService interface for testing
type MockTokenService struct {
	GenerateAccessTokenFunc  func(userID uint, role string, sessionID string) (string, error)
	GenerateRefreshTokenFunc func(userID uint, role string, sessionID string) (string, *domain.TokenClaims, error)
	ValidateAccessTokenFunc  func(token string) (*domain.TokenClaims, error)
	ValidateRefreshTokenFunc func(token string) (*domain.TokenClaims, error)
	AccessTTLValue           time.Duration
	RefreshTTLValue          time.Duration
}

// NewMockTokenService creates a new MockTokenService with default behaviors
func NewMockTokenService() *MockTokenService {
	return &MockTokenService{
		AccessTTLValue:  15 * time.Minute,
		RefreshTTLValue: 7 * 24 * time.Hour,
	}
}

// GenerateAccessToken generates an access token for the user
func (m *MockTokenService) GenerateAccessToken(userID uint, role string, sessionID string) (string, error) {
	if m.GenerateAccessTokenFunc != nil {
		return m.GenerateAccessTokenFunc(userID, role, sessionID)
	}
	// Default behavior: return a mock access token
	return fmt.Sprintf("access_token_user_%d_%s_%s", userID, role, sessionID), nil
}

// GenerateRefreshToken generates a refresh token for the user
func (m *MockTokenService) GenerateRefreshToken(userID uint, role string, sessionID string) (string, *domain.TokenClaims, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(userID, role, sessionID)
	}
	// Default behavior: the jti is derived from the session so tests can predict it
	now := time.Now()
	claims := &domain.TokenClaims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		TokenID:   "jti_" + sessionID,
		Type:      "refresh",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.RefreshTTL()).Unix(),
	}
	return fmt.Sprintf("refresh_token_user_%d_%s_%s", userID, role, sessionID), claims, nil
}

// ValidateAccessToken validates an access token and returns claims
func (m *MockTokenService) ValidateAccessToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateAccessTokenFunc != nil {
		return m.ValidateAccessTokenFunc(token)
	}
	// Default behavior: return valid claims for properly formatted mock tokens
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	now := time.Now().Unix()
	return &domain.TokenClaims{
		UserID:    1,
		Role:      domain.RoleBuyer,
		SessionID: "mock_session_id",
		Type:      "access",
		IssuedAt:  now,
		ExpiresAt: now + 900, // 15 minutes
	}, nil
}

// ValidateRefreshToken validates a refresh token and returns claims
func (m *MockTokenService) ValidateRefreshToken(token string) (*domain.TokenClaims, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(token)
	}
	// Default behavior: return valid claims for properly formatted mock tokens
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	now := time.Now().Unix()
	return &domain.TokenClaims{
		UserID:    1,
		Role:      domain.RoleBuyer,
		SessionID: "mock_session_id",
		TokenID:   "jti_mock_session_id",
		Type:      "refresh",
		IssuedAt:  now,
		ExpiresAt: now + 604800, // 7 days
	}, nil
}

func (m *MockTokenService) AccessTTL() time.Duration  { return m.AccessTTLValue }
func (m *MockTokenService) RefreshTTL() time.Duration { return m.RefreshTTLValue }

// Compile-time interface compliance verification
var _ domain.TokenService = (*MockTokenService)(nil)
