package repositories

import (
	"context"
	"strings"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements domain.UserRepository using GORM
type UserRepositoryImpl struct {
	base
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &UserRepositoryImpl{base{db: db}}
}

// Create implements domain.UserRepository
func (r *UserRepositoryImpl) Create(ctx context.Context, user *domain.User) error {
	return r.conn(ctx).Create(user).Error
}

// FindByEmail implements domain.UserRepository
func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.conn(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// FindByID implements domain.UserRepository
func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := r.conn(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// FindByIDForUpdate implements domain.UserRepository
func (r *UserRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := forUpdate(r.conn(ctx)).First(&user, id).Error; err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &user, nil
}

// Update implements domain.UserRepository
// Credit counters are left alone; they change only through UpdateCredits.
func (r *UserRepositoryImpl) Update(ctx context.Context, user *domain.User) error {
	return r.conn(ctx).Omit("total_credits", "used_credits").Save(user).Error
}

// UpdateCredits implements domain.UserRepository
func (r *UserRepositoryImpl) UpdateCredits(ctx context.Context, userID uint, total, used int) error {
	return r.conn(ctx).Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"total_credits": total,
		"used_credits":  used,
	}).Error
}

// List implements domain.UserRepository
func (r *UserRepositoryImpl) List(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]domain.User, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Role != "" {
			db = db.Where("role = ?", filter.Role)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			db = db.Where("(LOWER(email) LIKE ? OR LOWER(name) LIKE ? OR LOWER(company) LIKE ?)", like, like, like)
		}
		return db
	}
	return findPage[domain.User](r.conn(ctx), scope, "created_at DESC", page)
}

// CountByRole implements domain.UserRepository
func (r *UserRepositoryImpl) CountByRole(ctx context.Context) (map[string]int64, error) {
	return countBy(r.conn(ctx), &domain.User{}, "role")
}
