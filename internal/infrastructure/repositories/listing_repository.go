package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
)

// ListingRepositoryImpl implements domain.ListingRepository using GORM
type ListingRepositoryImpl struct {
	base
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *gorm.DB) domain.ListingRepository {
	return &ListingRepositoryImpl{base{db: db}}
}

var listingOrder = map[string]string{
	"newest":     "is_premium DESC, created_at DESC",
	"oldest":     "created_at ASC",
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"popular":    "view_count DESC",
}

func (r *ListingRepositoryImpl) Create(ctx context.Context, listing *domain.Listing) error {
	return r.conn(ctx).Create(listing).Error
}

func (r *ListingRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Listing, error) {
	var listing domain.Listing
	if err := r.conn(ctx).Preload("Seller").First(&listing, id).Error; err != nil {
		return nil, notFound(err, domain.ErrListingNotFound)
	}
	return &listing, nil
}

func (r *ListingRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uint) (*domain.Listing, error) {
	var listing domain.Listing
	if err := forUpdate(r.conn(ctx)).First(&listing, id).Error; err != nil {
		return nil, notFound(err, domain.ErrListingNotFound)
	}
	return &listing, nil
}

func (r *ListingRepositoryImpl) Update(ctx context.Context, listing *domain.Listing) error {
	return r.conn(ctx).Omit("Seller").Save(listing).Error
}

func (r *ListingRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status string) error {
	res := r.conn(ctx).Model(&domain.Listing{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepositoryImpl) IncrementViews(ctx context.Context, id uint) error {
	return r.conn(ctx).Model(&domain.Listing{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

func (r *ListingRepositoryImpl) List(ctx context.Context, filter domain.ListingFilter, page domain.Page) ([]domain.Listing, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.SellerID != 0 {
			db = db.Where("seller_id = ?", filter.SellerID)
		}
		if filter.State != "" {
			db = db.Where("state = ?", strings.ToUpper(filter.State))
		}
		if filter.MinPrice != nil {
			db = db.Where("price >= ?", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			db = db.Where("price <= ?", *filter.MaxPrice)
		}
		if filter.MinYears > 0 {
			db = db.Where("years_active >= ?", filter.MinYears)
		}
		if filter.AmazonRelay != nil {
			db = db.Where("amazon_relay = ?", *filter.AmazonRelay)
		}
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			db = db.Where("(LOWER(title) LIKE ? OR mc_number LIKE ?)", like, like)
		}
		return db
	}

	order, ok := listingOrder[filter.Sort]
	if !ok {
		order = listingOrder["newest"]
	}
	return findPage[domain.Listing](r.conn(ctx), scope, order, page)
}

// MCInUse reports whether another live listing (not rejected or inactive) carries the MC number
func (r *ListingRepositoryImpl) MCInUse(ctx context.Context, mcNumber string, excludeID uint) (bool, error) {
	var count int64
	q := r.conn(ctx).Model(&domain.Listing{}).
		Where("mc_number = ? AND status NOT IN ?", mcNumber, []string{domain.ListingRejected, domain.ListingInactive})
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ListingRepositoryImpl) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countBy(r.conn(ctx), &domain.Listing{}, "status")
}

// FindUnlock returns nil without error when the user has not unlocked the listing
func (r *ListingRepositoryImpl) FindUnlock(ctx context.Context, userID, listingID uint) (*domain.ListingUnlock, error) {
	var unlock domain.ListingUnlock
	err := r.conn(ctx).Where("user_id = ? AND listing_id = ?", userID, listingID).First(&unlock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &unlock, nil
}

func (r *ListingRepositoryImpl) CreateUnlock(ctx context.Context, unlock *domain.ListingUnlock) error {
	return r.conn(ctx).Omit("Listing").Create(unlock).Error
}

func (r *ListingRepositoryImpl) ListUnlocked(ctx context.Context, userID uint, page domain.Page) ([]domain.ListingUnlock, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
	return findPage[domain.ListingUnlock](r.conn(ctx), scope, "created_at DESC", page, "Listing")
}

func (r *ListingRepositoryImpl) CreateDocument(ctx context.Context, doc *domain.ListingDocument) error {
	return r.conn(ctx).Create(doc).Error
}

func (r *ListingRepositoryImpl) ListDocuments(ctx context.Context, listingID uint) ([]domain.ListingDocument, error) {
	var docs []domain.ListingDocument
	err := r.conn(ctx).Where("listing_id = ?", listingID).Order("created_at ASC").Find(&docs).Error
	return docs, err
}
