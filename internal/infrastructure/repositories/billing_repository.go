package repositories

import (
	"context"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
)

// CreditRepositoryImpl implements domain.CreditRepository using GORM
type CreditRepositoryImpl struct {
	base
}

// NewCreditRepository creates a new credit ledger repository
func NewCreditRepository(db *gorm.DB) domain.CreditRepository {
	return &CreditRepositoryImpl{base{db: db}}
}

func (r *CreditRepositoryImpl) Create(ctx context.Context, entry *domain.CreditTransaction) error {
	return r.conn(ctx).Create(entry).Error
}

func (r *CreditRepositoryImpl) ListByUser(ctx context.Context, userID uint, page domain.Page) ([]domain.CreditTransaction, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
	return findPage[domain.CreditTransaction](r.conn(ctx), scope, "created_at DESC, id DESC", page)
}

// SubscriptionRepositoryImpl implements domain.SubscriptionRepository using GORM
type SubscriptionRepositoryImpl struct {
	base
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) domain.SubscriptionRepository {
	return &SubscriptionRepositoryImpl{base{db: db}}
}

func (r *SubscriptionRepositoryImpl) FindByUser(ctx context.Context, userID uint) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := r.conn(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound)
	}
	return &sub, nil
}

func (r *SubscriptionRepositoryImpl) FindByStripeID(ctx context.Context, stripeID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := r.conn(ctx).Where("stripe_subscription_id = ?", stripeID).First(&sub).Error; err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound)
	}
	return &sub, nil
}

// Save inserts or updates; one row per user
func (r *SubscriptionRepositoryImpl) Save(ctx context.Context, sub *domain.Subscription) error {
	return r.conn(ctx).Save(sub).Error
}
