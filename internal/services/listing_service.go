package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
)

// ListingInput carries the editable fields of a listing
type ListingInput struct {
	MCNumber        string
	DOTNumber       string
	Title           string
	Description     string
	Price           decimal.Decimal
	State           string
	YearsActive     int
	FleetSize       int
	SafetyRating    string
	InsuranceOnFile bool
	AmazonRelay     bool
}

// ListingView is a listing as shown to one caller
type ListingView struct {
	domain.Listing
	Unlocked bool `json:"unlocked"`
}

// Upload is a document received from a client
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ListingService manages MC authority listings, unlocks and documents
type ListingService struct {
	listings domain.ListingRepository
	users    domain.UserRepository
	tx       domain.TxManager
	credits  *CreditService
	settings *SettingsService
	carriers *CarrierService
	storage  domain.Storage
	notifier *NotificationService
	now      func() time.Time
}

func NewListingService(
	listings domain.ListingRepository,
	users domain.UserRepository,
	tx domain.TxManager,
	credits *CreditService,
	settings *SettingsService,
	carriers *CarrierService,
	storage domain.Storage,
	notifier *NotificationService,
) *ListingService {
	return &ListingService{
		listings: listings,
		users:    users,
		tx:       tx,
		credits:  credits,
		settings: settings,
		carriers: carriers,
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
	}
}

func (in *ListingInput) normalize() error {
	mc, ok := NormalizeNumber(in.MCNumber)
	if !ok {
		return domain.NewValidation("MC number must be 1 to 8 digits")
	}
	in.MCNumber = mc
	if in.DOTNumber != "" {
		dot, ok := NormalizeNumber(in.DOTNumber)
		if !ok {
			return domain.NewValidation("DOT number must be 1 to 8 digits")
		}
		in.DOTNumber = dot
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.NewValidation("Title is required")
	}
	if !in.Price.IsPositive() {
		return domain.NewValidation("Price must be greater than zero")
	}
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	if in.YearsActive < 0 || in.FleetSize < 0 {
		return domain.NewValidation("Years active and fleet size cannot be negative")
	}
	return nil
}

func (in ListingInput) apply(l *domain.Listing) {
	l.MCNumber = in.MCNumber
	l.DOTNumber = in.DOTNumber
	l.Title = in.Title
	l.Description = in.Description
	l.Price = in.Price.Round(2)
	l.State = in.State
	l.YearsActive = in.YearsActive
	l.FleetSize = in.FleetSize
	l.SafetyRating = in.SafetyRating
	l.InsuranceOnFile = in.InsuranceOnFile
	l.AmazonRelay = in.AmazonRelay
}

// attachCarrier copies the FMCSA registration into the listing. Lookup failures are logged only.
func (s *ListingService) attachCarrier(ctx context.Context, l *domain.Listing) {
	if s.carriers == nil {
		return
	}
	info, err := s.carriers.ByMCNumber(ctx, l.MCNumber)
	if err != nil {
		slog.InfoContext(ctx, "carrier lookup skipped", "mc_number", l.MCNumber, "error", err)
		return
	}
	l.LegalName = info.LegalName
	l.OperatingStatus = info.OperatingStatus
	l.PowerUnits = info.PowerUnits
	if l.DOTNumber == "" {
		l.DOTNumber = info.DOTNumber
	}
	if l.SafetyRating == "" {
		l.SafetyRating = info.SafetyRating
	}
}

// Create submits a listing for review
func (s *ListingService) Create(ctx context.Context, sellerID uint, in ListingInput) (*domain.Listing, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	inUse, err := s.listings.MCInUse(ctx, in.MCNumber, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check MC number: %w", err)
	}
	if inUse {
		return nil, domain.ErrDuplicateMC
	}

	l := &domain.Listing{SellerID: sellerID, Status: domain.ListingPending}
	in.apply(l)
	s.attachCarrier(ctx, l)

	if err := s.listings.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	slog.InfoContext(ctx, "listing created", "listing_id", l.ID, "seller_id", sellerID)
	return l, nil
}

// Update edits a listing. A rejected listing goes back to review.
func (s *ListingService) Update(ctx context.Context, actor domain.Actor, id uint, in ListingInput) (*domain.Listing, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var out *domain.Listing
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		l, err := s.listings.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID {
			return domain.ErrForbidden
		}
		switch l.Status {
		case domain.ListingPending, domain.ListingActive, domain.ListingRejected:
		default:
			return domain.ErrListingLocked
		}
		if in.MCNumber != l.MCNumber {
			inUse, err := s.listings.MCInUse(ctx, in.MCNumber, l.ID)
			if err != nil {
				return err
			}
			if inUse {
				return domain.ErrDuplicateMC
			}
		}

		mcChanged := in.MCNumber != l.MCNumber
		in.apply(l)
		if mcChanged {
			l.LegalName, l.OperatingStatus, l.PowerUnits = "", "", 0
			s.attachCarrier(ctx, l)
		}
		if l.Status == domain.ListingRejected {
			l.Status = domain.ListingPending
			l.RejectionReason = ""
		}
		if err := s.listings.Update(ctx, l); err != nil {
			return fmt.Errorf("failed to update listing: %w", err)
		}
		out = l
		return nil
	})
	return out, err
}

// Delete withdraws a listing from the market
func (s *ListingService) Delete(ctx context.Context, actor domain.Actor, id uint) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		l, err := s.listings.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(l.SellerID) {
			return domain.ErrForbidden
		}
		if l.Status == domain.ListingReserved || l.Status == domain.ListingSold {
			return domain.ErrListingLocked
		}
		return s.listings.UpdateStatus(ctx, l.ID, domain.ListingInactive)
	})
}

// Browse returns active listings with identifying details removed
func (s *ListingService) Browse(ctx context.Context, filter domain.ListingFilter, page domain.Page) ([]domain.Listing, int64, error) {
	filter.Status = domain.ListingActive
	filter.SellerID = 0
	items, total, err := s.listings.List(ctx, filter, page)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i] = items[i].Redacted()
	}
	return items, total, nil
}

// Get returns a listing and counts the view. Full details go to the owner, an
// admin, or a buyer who unlocked the listing; everyone else sees the redacted view.
// actor is nil for anonymous callers.
func (s *ListingService) Get(ctx context.Context, actor *domain.Actor, id uint) (*ListingView, error) {
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	privileged := actor != nil && actor.Owns(l.SellerID)
	if l.Status != domain.ListingActive && !privileged {
		return nil, domain.ErrListingNotFound
	}

	view := &ListingView{Listing: *l, Unlocked: privileged}
	if !privileged && actor != nil {
		unlock, err := s.listings.FindUnlock(ctx, actor.ID, l.ID)
		if err != nil {
			return nil, err
		}
		view.Unlocked = unlock != nil
	}
	if !view.Unlocked {
		view.Listing = l.Redacted()
	}

	if actor == nil || actor.ID != l.SellerID {
		if err := s.listings.IncrementViews(ctx, l.ID); err != nil {
			slog.WarnContext(ctx, "failed to count listing view", "listing_id", l.ID, "error", err)
		} else {
			view.ViewCount++
		}
	}
	return view, nil
}

// Unlock spends credits to reveal a listing's details. A repeated unlock
// returns the existing record and charged=false.
func (s *ListingService) Unlock(ctx context.Context, buyerID, listingID uint) (unlock *domain.ListingUnlock, charged bool, err error) {
	cost := s.settings.Int(ctx, SettingUnlockCost)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// the user row lock serialises concurrent unlocks by the same buyer
		if _, err := s.users.FindByIDForUpdate(ctx, buyerID); err != nil {
			return err
		}
		existing, err := s.listings.FindUnlock(ctx, buyerID, listingID)
		if err != nil {
			return err
		}
		if existing != nil {
			unlock = existing
			return nil
		}

		l, err := s.listings.FindByID(ctx, listingID)
		if err != nil {
			return err
		}
		if l.Status != domain.ListingActive {
			return domain.ErrListingNotActive
		}
		if l.SellerID == buyerID {
			return domain.NewValidation("Cannot unlock your own listing")
		}

		if cost > 0 {
			if _, err := s.credits.UseCredits(ctx, buyerID, cost, "Unlocked listing "+l.Title,
				Ref{Type: "listing", ID: refID(l.ID)}); err != nil {
				return err
			}
		}
		unlock = &domain.ListingUnlock{UserID: buyerID, ListingID: l.ID, CreditsUsed: cost}
		if err := s.listings.CreateUnlock(ctx, unlock); err != nil {
			return fmt.Errorf("failed to record unlock: %w", err)
		}
		charged = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if charged {
		slog.InfoContext(ctx, "listing unlocked", "listing_id", listingID, "user_id", buyerID, "credits", cost)
	}
	return unlock, charged, nil
}

// MyListings returns the seller's listings in every status
func (s *ListingService) MyListings(ctx context.Context, sellerID uint, status string, page domain.Page) ([]domain.Listing, int64, error) {
	return s.listings.List(ctx, domain.ListingFilter{SellerID: sellerID, Status: status}, page)
}

// Unlocked returns the listings the buyer has paid to see
func (s *ListingService) Unlocked(ctx context.Context, buyerID uint, page domain.Page) ([]domain.ListingUnlock, int64, error) {
	return s.listings.ListUnlocked(ctx, buyerID, page)
}

func (s *ListingService) ownedListing(ctx context.Context, actor domain.Actor, id uint) (*domain.Listing, error) {
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(l.SellerID) {
		return nil, domain.ErrForbidden
	}
	return l, nil
}

// UploadDocument stores a file and attaches it to the listing
func (s *ListingService) UploadDocument(ctx context.Context, actor domain.Actor, listingID uint, up Upload) (*domain.ListingDocument, error) {
	l, err := s.ownedListing(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Save(ctx, fmt.Sprintf("listings/%d", l.ID), up.FileName, up.ContentType, up.Body, up.Size)
	if err != nil {
		return nil, domain.NewServiceUnavailable("Failed to store document", err)
	}

	doc := &domain.ListingDocument{
		ListingID:   l.ID,
		UploadedBy:  actor.ID,
		FileName:    up.FileName,
		ObjectKey:   obj.Key,
		URL:         obj.URL,
		ContentType: up.ContentType,
		Size:        up.Size,
	}
	if err := s.listings.CreateDocument(ctx, doc); err != nil {
		if derr := s.storage.Delete(ctx, obj.Key); derr != nil {
			slog.WarnContext(ctx, "orphaned document left in storage", "key", obj.Key, "error", derr)
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

func (s *ListingService) Documents(ctx context.Context, actor domain.Actor, listingID uint) ([]domain.ListingDocument, error) {
	if _, err := s.ownedListing(ctx, actor, listingID); err != nil {
		return nil, err
	}
	return s.listings.ListDocuments(ctx, listingID)
}

// PendingReview lists listings awaiting moderation
func (s *ListingService) PendingReview(ctx context.Context, page domain.Page) ([]domain.Listing, int64, error) {
	return s.listings.List(ctx, domain.ListingFilter{Status: domain.ListingPending, Sort: "oldest"}, page)
}

// AdminList lists listings in any status
func (s *ListingService) AdminList(ctx context.Context, filter domain.ListingFilter, page domain.Page) ([]domain.Listing, int64, error) {
	return s.listings.List(ctx, filter, page)
}

// Approve publishes a pending listing
func (s *ListingService) Approve(ctx context.Context, id uint) (*domain.Listing, error) {
	return s.moderate(ctx, id, func(l *domain.Listing) (Notice, error) {
		if l.Status != domain.ListingPending && l.Status != domain.ListingRejected {
			return Notice{}, domain.ErrListingLocked
		}
		now := s.now()
		l.Status = domain.ListingActive
		l.RejectionReason = ""
		l.ApprovedAt = &now
		return Notice{
			UserID:  l.SellerID,
			Type:    domain.NotifyListingApproved,
			Title:   "Listing approved",
			Message: fmt.Sprintf("Your listing %q is now live.", l.Title),
			Link:    fmt.Sprintf("/listings/%d", l.ID),
			Email:   true,
		}, nil
	})
}

// Reject sends a pending listing back to the seller
func (s *ListingService) Reject(ctx context.Context, id uint, reason string) (*domain.Listing, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidation("A rejection reason is required")
	}
	return s.moderate(ctx, id, func(l *domain.Listing) (Notice, error) {
		if l.Status != domain.ListingPending && l.Status != domain.ListingActive {
			return Notice{}, domain.ErrListingLocked
		}
		l.Status = domain.ListingRejected
		l.RejectionReason = reason
		return Notice{
			UserID:  l.SellerID,
			Type:    domain.NotifyListingRejected,
			Title:   "Listing needs changes",
			Message: fmt.Sprintf("Your listing %q was not approved: %s", l.Title, reason),
			Link:    fmt.Sprintf("/listings/%d", l.ID),
			Email:   true,
		}, nil
	})
}

// SetPremium features or unfeatures a listing
func (s *ListingService) SetPremium(ctx context.Context, id uint, premium bool) (*domain.Listing, error) {
	return s.moderate(ctx, id, func(l *domain.Listing) (Notice, error) {
		l.IsPremium = premium
		return Notice{}, nil
	})
}

func (s *ListingService) moderate(ctx context.Context, id uint, fn func(l *domain.Listing) (Notice, error)) (*domain.Listing, error) {
	var (
		out    *domain.Listing
		notice Notice
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		l, err := s.listings.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		notice, err = fn(l)
		if err != nil {
			return err
		}
		if err := s.listings.Update(ctx, l); err != nil {
			return err
		}
		if notice.UserID != 0 {
			if err := s.notifier.Record(ctx, notice); err != nil {
				return err
			}
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notice.UserID != 0 {
		s.notifier.Deliver(ctx, notice)
	}
	return out, nil
}

// ActiveListing returns the listing when it is on the market
func (s *ListingService) ActiveListing(ctx context.Context, id uint) (*domain.Listing, error) {
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.ListingActive {
		return nil, domain.ErrListingNotActive
	}
	return l, nil
}
