package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
)

// OfferService handles bids on listings. Accepting an offer reserves the
// listing and opens the escrow transaction in the same database transaction.
type OfferService struct {
	offers   domain.OfferRepository
	listings domain.ListingRepository
	tx       domain.TxManager
	escrow   *TransactionService
	settings *SettingsService
	notifier *NotificationService
	now      func() time.Time
}

func NewOfferService(
	offers domain.OfferRepository,
	listings domain.ListingRepository,
	tx domain.TxManager,
	escrow *TransactionService,
	settings *SettingsService,
	notifier *NotificationService,
) *OfferService {
	return &OfferService{
		offers:   offers,
		listings: listings,
		tx:       tx,
		escrow:   escrow,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
	}
}

// OfferResult is an offer and, once accepted, the escrow transaction it opened
type OfferResult struct {
	Offer       *domain.Offer       `json:"offer"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

func offerLink(id uint) string { return fmt.Sprintf("/offers/%d", id) }

// Create places a buyer's offer on an active listing
func (s *OfferService) Create(ctx context.Context, buyerID, listingID uint, amount decimal.Decimal, message string) (*domain.Offer, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	l, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.ListingActive {
		return nil, domain.ErrListingNotActive
	}
	if l.SellerID == buyerID {
		return nil, domain.ErrOwnListing
	}
	open, err := s.offers.HasOpenOffer(ctx, buyerID, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open offers: %w", err)
	}
	if open {
		return nil, domain.ErrDuplicateOffer
	}

	days := s.settings.Int(ctx, SettingOfferExpiryDays)
	if days < 1 {
		days = 1
	}
	offer := &domain.Offer{
		ListingID: l.ID,
		BuyerID:   buyerID,
		SellerID:  l.SellerID,
		Amount:    amount.Round(2),
		Message:   strings.TrimSpace(message),
		Status:    domain.OfferPending,
		ExpiresAt: s.now().AddDate(0, 0, days),
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.notifier.Notify(ctx, Notice{
		UserID:  l.SellerID,
		Type:    domain.NotifyOfferReceived,
		Title:   "New offer received",
		Message: fmt.Sprintf("You received an offer of $%s on %q.", offer.Amount.StringFixed(2), l.Title),
		Link:    offerLink(offer.ID),
		Email:   true,
		SMS:     true,
	})
	slog.InfoContext(ctx, "offer created", "offer_id", offer.ID, "listing_id", l.ID, "buyer_id", buyerID)
	return offer, nil
}

// respond locks an open offer and applies fn. Expired offers are marked
// expired and rejected with ErrOfferExpired once the status change is committed.
func (s *OfferService) respond(ctx context.Context, id uint, fn func(ctx context.Context, o *domain.Offer) (*Notice, error)) (*domain.Offer, error) {
	var (
		out     *domain.Offer
		notice  *Notice
		expired bool
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.offers.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.Open() {
			return domain.ErrOfferNotOpen
		}
		if !s.now().Before(o.ExpiresAt) {
			o.Status = domain.OfferExpired
			if err := s.offers.Update(ctx, o); err != nil {
				return err
			}
			expired = true
			return nil
		}

		notice, err = fn(ctx, o)
		if err != nil {
			return err
		}
		now := s.now()
		o.RespondedAt = &now
		if err := s.offers.Update(ctx, o); err != nil {
			return fmt.Errorf("failed to update offer: %w", err)
		}
		if notice != nil {
			if err := s.notifier.Record(ctx, *notice); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, domain.ErrOfferExpired
	}
	if notice != nil {
		s.notifier.Deliver(ctx, *notice)
	}
	return out, nil
}

// closeDeal reserves the listing, rejects the competing offers and opens escrow at price
func (s *OfferService) closeDeal(ctx context.Context, o *domain.Offer, price decimal.Decimal) (*domain.Transaction, error) {
	l, err := s.listings.FindByIDForUpdate(ctx, o.ListingID)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.ListingActive {
		return nil, domain.ErrListingNotActive
	}
	if err := s.listings.UpdateStatus(ctx, l.ID, domain.ListingReserved); err != nil {
		return nil, err
	}
	if err := s.offers.RejectOpenForListing(ctx, l.ID, o.ID, "Another offer was accepted"); err != nil {
		return nil, fmt.Errorf("failed to close competing offers: %w", err)
	}
	o.Status = domain.OfferAccepted
	return s.escrow.open(ctx, o, price)
}

// Accept is the seller taking the buyer's offer as made
func (s *OfferService) Accept(ctx context.Context, sellerID, id uint) (*OfferResult, error) {
	var t *domain.Transaction
	o, err := s.respond(ctx, id, func(ctx context.Context, o *domain.Offer) (*Notice, error) {
		if o.SellerID != sellerID {
			return nil, domain.ErrForbidden
		}
		if o.Status != domain.OfferPending {
			return nil, domain.ErrOfferNotOpen
		}
		var err error
		if t, err = s.closeDeal(ctx, o, o.Amount); err != nil {
			return nil, err
		}
		return &Notice{
			UserID:  o.BuyerID,
			Type:    domain.NotifyOfferAccepted,
			Title:   "Offer accepted",
			Message: fmt.Sprintf("Your offer of $%s was accepted. Review and accept the escrow terms to continue.", o.Amount.StringFixed(2)),
			Link:    txLink(t.ID),
			Email:   true,
			SMS:     true,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &OfferResult{Offer: o, Transaction: t}, nil
}

// Reject declines a pending or countered offer
func (s *OfferService) Reject(ctx context.Context, sellerID, id uint, reason string) (*domain.Offer, error) {
	return s.respond(ctx, id, func(ctx context.Context, o *domain.Offer) (*Notice, error) {
		if o.SellerID != sellerID {
			return nil, domain.ErrForbidden
		}
		o.Status = domain.OfferRejected
		o.ResponseMessage = strings.TrimSpace(reason)
		msg := "Your offer was declined."
		if o.ResponseMessage != "" {
			msg += " " + o.ResponseMessage
		}
		return &Notice{
			UserID:  o.BuyerID,
			Type:    domain.NotifyOfferRejected,
			Title:   "Offer declined",
			Message: msg,
			Link:    offerLink(o.ID),
			Email:   true,
		}, nil
	})
}

// Counter proposes a different price to the buyer
func (s *OfferService) Counter(ctx context.Context, sellerID, id uint, amount decimal.Decimal, message string) (*domain.Offer, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	return s.respond(ctx, id, func(ctx context.Context, o *domain.Offer) (*Notice, error) {
		if o.SellerID != sellerID {
			return nil, domain.ErrForbidden
		}
		if o.Status != domain.OfferPending {
			return nil, domain.ErrOfferNotOpen
		}
		counter := amount.Round(2)
		o.Status = domain.OfferCountered
		o.CounterAmount = &counter
		o.ResponseMessage = strings.TrimSpace(message)
		return &Notice{
			UserID:  o.BuyerID,
			Type:    domain.NotifyOfferCountered,
			Title:   "Counter offer received",
			Message: fmt.Sprintf("The seller countered your offer with $%s.", counter.StringFixed(2)),
			Link:    offerLink(o.ID),
			Email:   true,
			SMS:     true,
		}, nil
	})
}

// AcceptCounter is the buyer agreeing to the seller's counter price
func (s *OfferService) AcceptCounter(ctx context.Context, buyerID, id uint) (*OfferResult, error) {
	var t *domain.Transaction
	o, err := s.respond(ctx, id, func(ctx context.Context, o *domain.Offer) (*Notice, error) {
		if o.BuyerID != buyerID {
			return nil, domain.ErrForbidden
		}
		if o.Status != domain.OfferCountered || o.CounterAmount == nil {
			return nil, domain.ErrNoCounterProposal
		}
		var err error
		if t, err = s.closeDeal(ctx, o, *o.CounterAmount); err != nil {
			return nil, err
		}
		return &Notice{
			UserID:  o.SellerID,
			Type:    domain.NotifyOfferAccepted,
			Title:   "Counter offer accepted",
			Message: fmt.Sprintf("The buyer accepted your counter of $%s. Review and accept the escrow terms to continue.", o.CounterAmount.StringFixed(2)),
			Link:    txLink(t.ID),
			Email:   true,
			SMS:     true,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &OfferResult{Offer: o, Transaction: t}, nil
}

// Withdraw lets the buyer take back an open offer
func (s *OfferService) Withdraw(ctx context.Context, buyerID, id uint) (*domain.Offer, error) {
	return s.respond(ctx, id, func(ctx context.Context, o *domain.Offer) (*Notice, error) {
		if o.BuyerID != buyerID {
			return nil, domain.ErrForbidden
		}
		o.Status = domain.OfferWithdrawn
		return &Notice{
			UserID:  o.SellerID,
			Type:    domain.NotifyOfferWithdrawn,
			Title:   "Offer withdrawn",
			Message: fmt.Sprintf("The buyer withdrew the $%s offer.", o.Amount.StringFixed(2)),
			Link:    offerLink(o.ID),
		}, nil
	})
}

// List returns offers the caller made (as=buyer) or received (as=seller); admins see all
func (s *OfferService) List(ctx context.Context, actor domain.Actor, as, status string, page domain.Page) ([]domain.Offer, int64, error) {
	filter := domain.OfferFilter{Status: status}
	switch {
	case as == "seller":
		filter.SellerID = actor.ID
	case as == "buyer":
		filter.BuyerID = actor.ID
	case actor.IsAdmin():
	case actor.Role == domain.RoleSeller:
		filter.SellerID = actor.ID
	default:
		filter.BuyerID = actor.ID
	}
	return s.offers.List(ctx, filter, page)
}

func (s *OfferService) Get(ctx context.Context, actor domain.Actor, id uint) (*domain.Offer, error) {
	o, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && o.BuyerID != actor.ID && o.SellerID != actor.ID {
		return nil, domain.ErrOfferNotFound
	}
	return o, nil
}
