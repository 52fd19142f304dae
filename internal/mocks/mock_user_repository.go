package mocks

import (
	"context"

	"github.com/you/mcmarket/domain"
)

// MockUserRepository implements domain.UserRepository interface for testing
type MockUserRepository struct {
	CreateFunc            func(ctx context.Context, user *domain.User) error
	FindByEmailFunc       func(ctx context.Context, email string) (*domain.User, error)
	FindByIDFunc          func(ctx context.Context, id uint) (*domain.User, error)
	FindByIDForUpdateFunc func(ctx context.Context, id uint) (*domain.User, error)
	UpdateFunc            func(ctx context.Context, user *domain.User) error
	UpdateCreditsFunc     func(ctx context.Context, userID uint, total, used int) error
	ListFunc              func(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]domain.User, int64, error)
	CountByRoleFunc       func(ctx context.Context) (map[string]int64, error)
}

// NewMockUserRepository creates a new MockUserRepository with default behaviors
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

// Create creates a new user
func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	// Default behavior: success
	return nil
}

// FindByEmail finds a user by email
func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	// Default behavior: not found
	return nil, domain.ErrUserNotFound
}

// FindByID finds a user by ID
func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	// Default behavior: not found
	return nil, domain.ErrUserNotFound
}

// FindByIDForUpdate falls back to FindByID when not configured
func (m *MockUserRepository) FindByIDForUpdate(ctx context.Context, id uint) (*domain.User, error) {
	if m.FindByIDForUpdateFunc != nil {
		return m.FindByIDForUpdateFunc(ctx, id)
	}
	return m.FindByID(ctx, id)
}

// Update updates an existing user
func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	// Default behavior: success
	return nil
}

// UpdateCredits sets the credit counters
func (m *MockUserRepository) UpdateCredits(ctx context.Context, userID uint, total, used int) error {
	if m.UpdateCreditsFunc != nil {
		return m.UpdateCreditsFunc(ctx, userID, total, used)
	}
	return nil
}

// List lists users
func (m *MockUserRepository) List(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]domain.User, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter, page)
	}
	return nil, 0, nil
}

// CountByRole counts users per role
func (m *MockUserRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	if m.CountByRoleFunc != nil {
		return m.CountByRoleFunc(ctx)
	}
	return map[string]int64{}, nil
}

// Compile-time interface compliance verification
var _ domain.UserRepository = (*MockUserRepository)(nil)
