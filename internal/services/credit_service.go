package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
)

// Balance is a user's credit position
type Balance struct {
	Total     int `json:"totalCredits"`
	Used      int `json:"usedCredits"`
	Available int `json:"availableCredits"`
}

// CreditService owns the credit ledger. Every balance change locks the user row
// and writes a CreditTransaction in the same database transaction.
type CreditService struct {
	users    domain.UserRepository
	ledger   domain.CreditRepository
	payments domain.PaymentRepository
	tx       domain.TxManager
	gateway  domain.PaymentGateway
	packages []config.CreditPackage
}

func NewCreditService(
	users domain.UserRepository,
	ledger domain.CreditRepository,
	payments domain.PaymentRepository,
	tx domain.TxManager,
	gateway domain.PaymentGateway,
	packages []config.CreditPackage,
) *CreditService {
	return &CreditService{
		users:    users,
		ledger:   ledger,
		payments: payments,
		tx:       tx,
		gateway:  gateway,
		packages: packages,
	}
}

func (s *CreditService) Balance(ctx context.Context, userID uint) (*Balance, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Balance{Total: user.TotalCredits, Used: user.UsedCredits, Available: user.AvailableCredits()}, nil
}

// Ref points a ledger row at the record that caused it
type Ref struct {
	Type string
	ID   string
}

func refID(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// UseCredits spends n credits. It fails with ErrInsufficientCredits when the
// available balance is below n.
func (s *CreditService) UseCredits(ctx context.Context, userID uint, n int, description string, ref Ref) (*domain.CreditTransaction, error) {
	if n <= 0 {
		return nil, domain.NewValidation("Credit amount must be positive")
	}
	var entry *domain.CreditTransaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.AvailableCredits() < n {
			return domain.ErrInsufficientCredits.WithDetails(map[string]int{
				"required":  n,
				"available": user.AvailableCredits(),
			})
		}

		used := user.UsedCredits + n
		if err := s.users.UpdateCredits(ctx, user.ID, user.TotalCredits, used); err != nil {
			return err
		}
		entry = &domain.CreditTransaction{
			UserID:        user.ID,
			Type:          domain.CreditUsage,
			Amount:        -n,
			BalanceAfter:  user.TotalCredits - used,
			Description:   description,
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
		}
		return s.ledger.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AddCredits grants n credits with the given ledger type
func (s *CreditService) AddCredits(ctx context.Context, userID uint, n int, kind, description string, ref Ref) (*domain.CreditTransaction, error) {
	if n <= 0 {
		return nil, domain.NewValidation("Credit amount must be positive")
	}
	var entry *domain.CreditTransaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		total := user.TotalCredits + n
		if err := s.users.UpdateCredits(ctx, user.ID, total, user.UsedCredits); err != nil {
			return err
		}
		entry = &domain.CreditTransaction{
			UserID:        user.ID,
			Type:          kind,
			Amount:        n,
			BalanceAfter:  total - user.UsedCredits,
			Description:   description,
			ReferenceType: ref.Type,
			ReferenceID:   ref.ID,
		}
		return s.ledger.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Adjust applies an admin correction. A negative delta lowers totalCredits but
// never below usedCredits.
func (s *CreditService) Adjust(ctx context.Context, adminID, userID uint, delta int, reason string) (*domain.CreditTransaction, error) {
	if delta == 0 {
		return nil, domain.NewValidation("Adjustment must not be zero")
	}
	var entry *domain.CreditTransaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		total := user.TotalCredits + delta
		if total < user.UsedCredits {
			return domain.NewValidation("Adjustment would leave a negative balance").WithDetails(map[string]int{
				"available": user.AvailableCredits(),
			})
		}
		if err := s.users.UpdateCredits(ctx, user.ID, total, user.UsedCredits); err != nil {
			return err
		}
		entry = &domain.CreditTransaction{
			UserID:        user.ID,
			Type:          domain.CreditAdjustment,
			Amount:        delta,
			BalanceAfter:  total - user.UsedCredits,
			Description:   reason,
			ReferenceType: "admin",
			ReferenceID:   refID(adminID),
		}
		return s.ledger.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *CreditService) History(ctx context.Context, userID uint, page domain.Page) ([]domain.CreditTransaction, int64, error) {
	return s.ledger.ListByUser(ctx, userID, page)
}

func (s *CreditService) Packages() []config.CreditPackage {
	return s.packages
}

func (s *CreditService) findPackage(id string) (config.CreditPackage, bool) {
	for _, p := range s.packages {
		if p.ID == id {
			return p, true
		}
	}
	return config.CreditPackage{}, false
}

// Purchase opens a checkout for a credit package. Credits are granted by the webhook.
func (s *CreditService) Purchase(ctx context.Context, userID uint, packageID string) (*domain.CheckoutSession, error) {
	pkg, ok := s.findPackage(packageID)
	if !ok {
		return nil, domain.ErrPackageNotFound
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		Mode:          "payment",
		CustomerEmail: user.Email,
		CustomerID:    user.StripeCustomerID,
		Description:   fmt.Sprintf("%s (%d credits)", pkg.Name, pkg.Credits),
		Amount:        pkg.Price,
		Metadata: map[string]string{
			"kind":       domain.PaymentCreditPurchase,
			"user_id":    refID(user.ID),
			"package_id": pkg.ID,
		},
	})
	if err != nil {
		return nil, domain.NewServiceUnavailable("Payment provider unavailable", err)
	}

	payment := &domain.Payment{
		UserID:            user.ID,
		Kind:              domain.PaymentCreditPurchase,
		Method:            domain.PaymentMethodStripe,
		Amount:            pkg.Price,
		Status:            domain.PaymentStatusPending,
		Reference:         pkg.ID,
		CheckoutSessionID: session.ID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return session, nil
}

// FulfillPurchase grants the credits of a completed checkout exactly once
func (s *CreditService) FulfillPurchase(ctx context.Context, ev *domain.PaymentEvent) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.payments.FindByCheckoutSession(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			slog.InfoContext(ctx, "credit purchase already fulfilled", "session_id", ev.SessionID)
			return nil
		}
		pkg, ok := s.findPackage(payment.Reference)
		if !ok {
			return domain.ErrPackageNotFound
		}

		payment.Status = domain.PaymentStatusPaid
		payment.PaymentIntentID = ev.PaymentIntentID
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		_, err = s.AddCredits(ctx, payment.UserID, pkg.Credits, domain.CreditPurchase,
			"Purchased "+pkg.Name, Ref{Type: "payment", ID: refID(payment.ID)})
		return err
	})
}
