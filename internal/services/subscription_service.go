package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
)

// SubscriptionService sells monthly plans that grant credits every billing period
type SubscriptionService struct {
	subs     domain.SubscriptionRepository
	users    domain.UserRepository
	payments domain.PaymentRepository
	tx       domain.TxManager
	gateway  domain.PaymentGateway
	credits  *CreditService
	notifier *NotificationService
	plans    []config.Plan
	now      func() time.Time
}

func NewSubscriptionService(
	subs domain.SubscriptionRepository,
	users domain.UserRepository,
	payments domain.PaymentRepository,
	tx domain.TxManager,
	gateway domain.PaymentGateway,
	credits *CreditService,
	notifier *NotificationService,
	plans []config.Plan,
) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		users:    users,
		payments: payments,
		tx:       tx,
		gateway:  gateway,
		credits:  credits,
		notifier: notifier,
		plans:    plans,
		now:      time.Now,
	}
}

func (s *SubscriptionService) Plans() []config.Plan {
	return s.plans
}

func (s *SubscriptionService) plan(id string) (config.Plan, bool) {
	for _, p := range s.plans {
		if p.ID == id {
			return p, true
		}
	}
	return config.Plan{}, false
}

// Current returns the caller's subscription
func (s *SubscriptionService) Current(ctx context.Context, userID uint) (*domain.Subscription, error) {
	return s.subs.FindByUser(ctx, userID)
}

// Subscribe opens a subscription checkout for a plan
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uint, planID string) (*domain.CheckoutSession, error) {
	plan, ok := s.plan(planID)
	if !ok || plan.StripePriceID == "" {
		return nil, domain.ErrPlanNotFound
	}
	existing, err := s.subs.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}
	if existing != nil && (existing.Status == domain.SubscriptionActive || existing.Status == domain.SubscriptionPastDue) {
		return nil, domain.ErrAlreadySubscribed
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		Mode:          "subscription",
		CustomerEmail: user.Email,
		CustomerID:    user.StripeCustomerID,
		Description:   plan.Name,
		PriceID:       plan.StripePriceID,
		Metadata: map[string]string{
			"kind":    domain.PaymentSubscription,
			"user_id": refID(user.ID),
			"plan_id": plan.ID,
		},
	})
	if err != nil {
		return nil, domain.NewServiceUnavailable("Payment provider unavailable", err)
	}

	if err := s.payments.Create(ctx, &domain.Payment{
		UserID:            user.ID,
		Kind:              domain.PaymentSubscription,
		Method:            domain.PaymentMethodStripe,
		Amount:            plan.Price,
		Status:            domain.PaymentStatusPending,
		Reference:         plan.ID,
		CheckoutSessionID: session.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return session, nil
}

// Activate handles a completed subscription checkout: it stores the subscription
// and grants the first period's credits once per checkout session.
func (s *SubscriptionService) Activate(ctx context.Context, ev *domain.PaymentEvent) error {
	var notice *Notice
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		payment, err := s.payments.FindByCheckoutSession(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			slog.InfoContext(ctx, "subscription checkout already applied", "session_id", ev.SessionID)
			return nil
		}
		plan, ok := s.plan(payment.Reference)
		if !ok {
			return domain.ErrPlanNotFound
		}

		payment.Status = domain.PaymentStatusPaid
		payment.PaymentIntentID = ev.PaymentIntentID
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}

		sub, err := s.subs.FindByUser(ctx, payment.UserID)
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			sub, err = &domain.Subscription{UserID: payment.UserID}, nil
		}
		if err != nil {
			return err
		}
		now := s.now()
		sub.PlanID = plan.ID
		sub.Status = domain.SubscriptionActive
		sub.CreditsPerPeriod = plan.Credits
		sub.StripeSubscriptionID = ev.SubscriptionID
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
		sub.CancelAtPeriodEnd = false
		if err := s.subs.Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		if ev.CustomerID != "" {
			user, err := s.users.FindByID(ctx, payment.UserID)
			if err != nil {
				return err
			}
			if user.StripeCustomerID != ev.CustomerID {
				user.StripeCustomerID = ev.CustomerID
				if err := s.users.Update(ctx, user); err != nil {
					return err
				}
			}
		}

		if _, err := s.credits.AddCredits(ctx, payment.UserID, plan.Credits, domain.CreditSubscription,
			plan.Name+" subscription", Ref{Type: "subscription", ID: refID(sub.ID)}); err != nil {
			return err
		}
		notice = &Notice{
			UserID:  payment.UserID,
			Type:    domain.NotifySubscription,
			Title:   "Subscription active",
			Message: fmt.Sprintf("Your %s plan is active and %d credits were added.", plan.Name, plan.Credits),
			Link:    "/billing",
			Email:   true,
		}
		return s.notifier.Record(ctx, *notice)
	})
	if err != nil {
		return err
	}
	if notice != nil {
		s.notifier.Deliver(ctx, *notice)
	}
	return nil
}

// Renew grants the credits of a paid renewal invoice and rolls the period
// forward. The first invoice of a subscription is skipped; Activate already
// granted that period. Each invoice is recorded as a payment and granted once.
func (s *SubscriptionService) Renew(ctx context.Context, ev *domain.PaymentEvent) error {
	if ev.BillingReason == "subscription_create" || ev.SubscriptionID == "" {
		return nil
	}
	if ev.InvoiceID == "" {
		return domain.NewValidation("Invoice event without invoice ID")
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := s.payments.FindByInvoice(ctx, ev.InvoiceID)
		if err == nil {
			slog.InfoContext(ctx, "renewal invoice already applied", "invoice_id", ev.InvoiceID)
			return nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return err
		}

		sub, err := s.subs.FindByStripeID(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		invoiceID := ev.InvoiceID
		if err := s.payments.Create(ctx, &domain.Payment{
			UserID:          sub.UserID,
			Kind:            domain.PaymentSubscription,
			Method:          domain.PaymentMethodStripe,
			Amount:          decimal.New(ev.AmountTotal, -2),
			Status:          domain.PaymentStatusPaid,
			Reference:       sub.PlanID,
			PaymentIntentID: ev.PaymentIntentID,
			InvoiceID:       &invoiceID,
		}); err != nil {
			return fmt.Errorf("failed to record renewal payment: %w", err)
		}
		sub.Status = domain.SubscriptionActive
		start := sub.CurrentPeriodEnd
		if now := s.now(); start.Before(now.AddDate(0, 0, -7)) {
			start = now
		}
		sub.CurrentPeriodStart = start
		sub.CurrentPeriodEnd = start.AddDate(0, 1, 0)
		if err := s.subs.Save(ctx, sub); err != nil {
			return err
		}
		_, err = s.credits.AddCredits(ctx, sub.UserID, sub.CreditsPerPeriod, domain.CreditSubscription,
			"Subscription renewal", Ref{Type: "subscription", ID: refID(sub.ID)})
		return err
	})
}

// subscriptionStatus maps the provider's subscription status onto ours
func subscriptionStatus(provider string) string {
	switch provider {
	case "active", "trialing":
		return domain.SubscriptionActive
	case "past_due", "unpaid":
		return domain.SubscriptionPastDue
	case "canceled":
		return domain.SubscriptionCancelled
	case "incomplete_expired":
		return domain.SubscriptionExpired
	}
	return ""
}

// Sync applies subscription updated/deleted events
func (s *SubscriptionService) Sync(ctx context.Context, ev *domain.PaymentEvent) error {
	sub, err := s.subs.FindByStripeID(ctx, ev.SubscriptionID)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		slog.WarnContext(ctx, "event for unknown subscription", "subscription_id", ev.SubscriptionID, "type", ev.Type)
		return nil
	}
	if err != nil {
		return err
	}

	if ev.Type == domain.EventSubscriptionDeleted {
		sub.Status = domain.SubscriptionCancelled
	} else if status := subscriptionStatus(ev.Status); status != "" {
		sub.Status = status
	}
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	if !ev.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodStart = ev.CurrentPeriodStart
		sub.CurrentPeriodEnd = ev.CurrentPeriodEnd
	}
	return s.subs.Save(ctx, sub)
}

// Cancel stops renewal at the end of the current period
func (s *SubscriptionService) Cancel(ctx context.Context, userID uint) (*domain.Subscription, error) {
	sub, err := s.subs.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.SubscriptionActive && sub.Status != domain.SubscriptionPastDue {
		return nil, domain.ErrSubscriptionNotFound
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}
	if sub.StripeSubscriptionID != "" {
		if err := s.gateway.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			return nil, domain.NewServiceUnavailable("Payment provider unavailable", err)
		}
	}
	sub.CancelAtPeriodEnd = true
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
