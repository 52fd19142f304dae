package repositories

import (
	"context"
	"time"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OfferRepositoryImpl implements domain.OfferRepository using GORM
type OfferRepositoryImpl struct {
	base
}

// NewOfferRepository creates a new offer repository
func NewOfferRepository(db *gorm.DB) domain.OfferRepository {
	return &OfferRepositoryImpl{base{db: db}}
}

var openOfferStatuses = []string{domain.OfferPending, domain.OfferCountered}

func (r *OfferRepositoryImpl) Create(ctx context.Context, offer *domain.Offer) error {
	return r.conn(ctx).Omit(clause.Associations).Create(offer).Error
}

func (r *OfferRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Offer, error) {
	var offer domain.Offer
	if err := r.conn(ctx).Preload("Listing").First(&offer, id).Error; err != nil {
		return nil, notFound(err, domain.ErrOfferNotFound)
	}
	return &offer, nil
}

func (r *OfferRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uint) (*domain.Offer, error) {
	var offer domain.Offer
	if err := forUpdate(r.conn(ctx)).First(&offer, id).Error; err != nil {
		return nil, notFound(err, domain.ErrOfferNotFound)
	}
	return &offer, nil
}

func (r *OfferRepositoryImpl) Update(ctx context.Context, offer *domain.Offer) error {
	return r.conn(ctx).Omit(clause.Associations).Save(offer).Error
}

func (r *OfferRepositoryImpl) List(ctx context.Context, filter domain.OfferFilter, page domain.Page) ([]domain.Offer, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.BuyerID != 0 {
			db = db.Where("buyer_id = ?", filter.BuyerID)
		}
		if filter.SellerID != 0 {
			db = db.Where("seller_id = ?", filter.SellerID)
		}
		if filter.ListingID != 0 {
			db = db.Where("listing_id = ?", filter.ListingID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}
	return findPage[domain.Offer](r.conn(ctx), scope, "created_at DESC", page, "Listing")
}

// HasOpenOffer reports whether the buyer already has a pending or countered offer on the listing
func (r *OfferRepositoryImpl) HasOpenOffer(ctx context.Context, buyerID, listingID uint) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&domain.Offer{}).
		Where("buyer_id = ? AND listing_id = ? AND status IN ? AND expires_at > ?", buyerID, listingID, openOfferStatuses, time.Now()).
		Count(&count).Error
	return count > 0, err
}

// RejectOpenForListing closes every other open offer once one has been accepted
func (r *OfferRepositoryImpl) RejectOpenForListing(ctx context.Context, listingID, exceptOfferID uint, reason string) error {
	now := time.Now()
	return r.conn(ctx).Model(&domain.Offer{}).
		Where("listing_id = ? AND id <> ? AND status IN ?", listingID, exceptOfferID, openOfferStatuses).
		Updates(map[string]interface{}{
			"status":           domain.OfferRejected,
			"response_message": reason,
			"responded_at":     now,
			"updated_at":       now,
		}).Error
}
