package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/database"
)

const webhookClaimTTL = 72 * time.Hour

// WebhookService verifies provider events and routes them to the billing services
type WebhookService struct {
	gateway       domain.PaymentGateway
	redis         *database.RedisClient
	credits       *CreditService
	subscriptions *SubscriptionService
	escrow        *TransactionService
}

func NewWebhookService(
	gateway domain.PaymentGateway,
	redis *database.RedisClient,
	credits *CreditService,
	subscriptions *SubscriptionService,
	escrow *TransactionService,
) *WebhookService {
	return &WebhookService{
		gateway:       gateway,
		redis:         redis,
		credits:       credits,
		subscriptions: subscriptions,
		escrow:        escrow,
	}
}

// HandleStripe verifies and applies one Stripe event. Each event ID is applied
// at most once; a failed event releases its claim so the provider's retry runs again.
func (s *WebhookService) HandleStripe(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	key := "webhook:stripe:" + ev.ID
	claimed, err := database.SetNX(ctx, s.redis, key, time.Now().Unix(), webhookClaimTTL)
	if err != nil {
		// without Redis the persisted payment rows (checkout session, invoice) still prevent double grants
		slog.WarnContext(ctx, "webhook idempotency unavailable", "event_id", ev.ID, "error", err)
		claimed = true
	}
	if !claimed {
		slog.InfoContext(ctx, "duplicate webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	if err := s.dispatch(ctx, ev); err != nil {
		if derr := s.redis.Del(ctx, key).Err(); derr != nil {
			slog.WarnContext(ctx, "failed to release webhook claim", "event_id", ev.ID, "error", derr)
		}
		slog.ErrorContext(ctx, "webhook handling failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		return err
	}
	slog.InfoContext(ctx, "webhook processed", "event_id", ev.ID, "type", ev.Type)
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, ev *domain.PaymentEvent) error {
	switch ev.Type {
	case domain.EventCheckoutCompleted:
		if ev.Status != "" && ev.Status != "paid" && ev.Status != "no_payment_required" {
			slog.InfoContext(ctx, "checkout completed without payment", "session_id", ev.SessionID, "status", ev.Status)
			return nil
		}
		switch ev.Metadata["kind"] {
		case domain.PaymentCreditPurchase:
			return s.credits.FulfillPurchase(ctx, ev)
		case domain.PaymentSubscription:
			return s.subscriptions.Activate(ctx, ev)
		case domain.PaymentDeposit, domain.PaymentFinal:
			return s.escrow.CompleteCheckout(ctx, ev)
		}
		slog.WarnContext(ctx, "checkout with unknown kind", "session_id", ev.SessionID, "kind", ev.Metadata["kind"])
	case domain.EventInvoicePaid:
		return s.subscriptions.Renew(ctx, ev)
	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		return s.subscriptions.Sync(ctx, ev)
	default:
		slog.DebugContext(ctx, "webhook event ignored", "type", ev.Type)
	}
	return nil
}
