package mocks

import (
	"context"
	"time"

	"github.com/you/mcmarket/domain"
)

// MockAuthService implements domain.AuthService interface for testing
type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, input domain.RegisterInput) (*domain.User, error)
	LoginFunc              func(ctx context.Context, email, password string) (*domain.AuthResult, error)
	RefreshTokenFunc       func(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	LogoutFunc             func(ctx context.Context, sessionID string) error
	VerifyEmailFunc        func(ctx context.Context, token string) error
	ResendVerificationFunc func(ctx context.Context, email string) error
	ForgotPasswordFunc     func(ctx context.Context, email string) error
	ResetPasswordFunc      func(ctx context.Context, token, newPassword string) error
	ChangePasswordFunc     func(ctx context.Context, userID uint, current, next string) error
	GetUserProfileFunc     func(ctx context.Context, userID uint) (*domain.User, error)
	UpdateProfileFunc      func(ctx context.Context, userID uint, input domain.ProfileInput) (*domain.User, error)
}

// NewMockAuthService creates a new MockAuthService with default behaviors
func NewMockAuthService() *MockAuthService {
	return &MockAuthService{}
}

func mockUser(id uint, email, role string) *domain.User {
	return &domain.User{
		ID:        id,
		Email:     email,
		Role:      role,
		Status:    domain.UserStatusActive,
		CreatedAt: time.Now().Add(-24 * time.Hour),
		UpdatedAt: time.Now(),
	}
}

// Register registers a new user
func (m *MockAuthService) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, input)
	}
	// Default behavior: return a mock user
	u := mockUser(1, input.Email, input.Role)
	u.Name = input.Name
	u.Phone = input.Phone
	return u, nil
}

// Login authenticates a user and returns auth result
func (m *MockAuthService) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	// Default behavior: return successful auth result
	return &domain.AuthResult{
		User:         mockUser(1, email, domain.RoleBuyer),
		AccessToken:  "mock_access_token",
		RefreshToken: "mock_refresh_token",
		SessionID:    "mock_session_id",
		ExpiresIn:    900, // 15 minutes
	}, nil
}

// RefreshToken refreshes an access token using a refresh token
func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	// Default behavior: return new auth result
	return &domain.AuthResult{
		User:         mockUser(1, "test@example.com", domain.RoleBuyer),
		AccessToken:  "new_mock_access_token",
		RefreshToken: "new_mock_refresh_token",
		SessionID:    "mock_session_id",
		ExpiresIn:    900, // 15 minutes
	}, nil
}

// Logout logs out a user by terminating their session
func (m *MockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID)
	}
	// Default behavior: success
	return nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return nil
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return nil
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, current, next)
	}
	return nil
}

// GetUserProfile retrieves user profile information
func (m *MockAuthService) GetUserProfile(ctx context.Context, userID uint) (*domain.User, error) {
	if m.GetUserProfileFunc != nil {
		return m.GetUserProfileFunc(ctx, userID)
	}
	// Default behavior: return mock user profile
	return mockUser(userID, "test@example.com", domain.RoleBuyer), nil
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID uint, input domain.ProfileInput) (*domain.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, input)
	}
	u := mockUser(userID, "test@example.com", domain.RoleBuyer)
	if input.Name != nil {
		u.Name = *input.Name
	}
	return u, nil
}

// Compile-time interface compliance verification
var _ domain.AuthService = (*MockAuthService)(nil)
