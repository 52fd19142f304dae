package mocks

import (
	"context"

	"github.com/you/mcmarket/domain"
)

// MockTokenRepository implements domain.TokenRepository interface for testing
type MockTokenRepository struct {
	CreateRefreshTokenFunc          func(ctx context.Context, token *domain.RefreshToken) error
	FindRefreshTokenByHashFunc      func(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeRefreshTokenFunc          func(ctx context.Context, id uint) error
	RevokeSessionFunc               func(ctx context.Context, sessionID string) error
	RevokeAllRefreshTokensFunc      func(ctx context.Context, userID uint) error
	CreatePasswordResetFunc         func(ctx context.Context, token *domain.PasswordResetToken) error
	FindPasswordResetByHashFunc     func(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	MarkPasswordResetUsedFunc       func(ctx context.Context, id uint) error
	CreateEmailVerificationFunc     func(ctx context.Context, token *domain.EmailVerificationToken) error
	FindEmailVerificationByHashFunc func(ctx context.Context, hash string) (*domain.EmailVerificationToken, error)
	MarkEmailVerificationUsedFunc   func(ctx context.Context, id uint) error
}

// NewMockTokenRepository creates a new MockTokenRepository with default behaviors
func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{}
}

func (m *MockTokenRepository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	if m.CreateRefreshTokenFunc != nil {
		return m.CreateRefreshTokenFunc(ctx, token)
	}
	return nil
}

func (m *MockTokenRepository) FindRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	if m.FindRefreshTokenByHashFunc != nil {
		return m.FindRefreshTokenByHashFunc(ctx, hash)
	}
	return nil, domain.ErrTokenInvalid
}

func (m *MockTokenRepository) RevokeRefreshToken(ctx context.Context, id uint) error {
	if m.RevokeRefreshTokenFunc != nil {
		return m.RevokeRefreshTokenFunc(ctx, id)
	}
	return nil
}

func (m *MockTokenRepository) RevokeSession(ctx context.Context, sessionID string) error {
	if m.RevokeSessionFunc != nil {
		return m.RevokeSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockTokenRepository) RevokeAllRefreshTokens(ctx context.Context, userID uint) error {
	if m.RevokeAllRefreshTokensFunc != nil {
		return m.RevokeAllRefreshTokensFunc(ctx, userID)
	}
	return nil
}

func (m *MockTokenRepository) CreatePasswordReset(ctx context.Context, token *domain.PasswordResetToken) error {
	if m.CreatePasswordResetFunc != nil {
		return m.CreatePasswordResetFunc(ctx, token)
	}
	return nil
}

func (m *MockTokenRepository) FindPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	if m.FindPasswordResetByHashFunc != nil {
		return m.FindPasswordResetByHashFunc(ctx, hash)
	}
	return nil, domain.ErrInvalidResetToken
}

func (m *MockTokenRepository) MarkPasswordResetUsed(ctx context.Context, id uint) error {
	if m.MarkPasswordResetUsedFunc != nil {
		return m.MarkPasswordResetUsedFunc(ctx, id)
	}
	return nil
}

func (m *MockTokenRepository) CreateEmailVerification(ctx context.Context, token *domain.EmailVerificationToken) error {
	if m.CreateEmailVerificationFunc != nil {
		return m.CreateEmailVerificationFunc(ctx, token)
	}
	return nil
}

func (m *MockTokenRepository) FindEmailVerificationByHash(ctx context.Context, hash string) (*domain.EmailVerificationToken, error) {
	if m.FindEmailVerificationByHashFunc != nil {
		return m.FindEmailVerificationByHashFunc(ctx, hash)
	}
	return nil, domain.ErrInvalidVerifyToken
}

func (m *MockTokenRepository) MarkEmailVerificationUsed(ctx context.Context, id uint) error {
	if m.MarkEmailVerificationUsedFunc != nil {
		return m.MarkEmailVerificationUsedFunc(ctx, id)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.TokenRepository = (*MockTokenRepository)(nil)
