package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
)

// StripeGateway implements domain.PaymentGateway with Stripe Checkout
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	currency      string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

// ToCents converts a decimal amount to the smallest currency unit
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	switch req.Mode {
	case "subscription":
		if req.PriceID == "" {
			return nil, domain.NewValidation("Plan is not available for purchase")
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		}
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: req.Metadata}
	default:
		if !req.Amount.IsPositive() {
			return nil, domain.ErrInvalidAmount
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(g.currency),
					UnitAmount: stripe.Int64(ToCents(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: req.Metadata}
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := g.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and flattens the events
// the billing services consume. Other event types come back with only ID and Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, &domain.AppError{Kind: domain.KindValidation, Message: domain.ErrWebhookSignature.Message, Err: err}
	}
	return toPaymentEvent(event)
}

func toPaymentEvent(event stripe.Event) (*domain.PaymentEvent, error) {
	out := &domain.PaymentEvent{ID: event.ID, Type: string(event.Type)}

	switch out.Type {
	case domain.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.SessionID = s.ID
		out.Status = string(s.PaymentStatus)
		out.AmountTotal = s.AmountTotal
		out.Metadata = s.Metadata
		if s.PaymentIntent != nil {
			out.PaymentIntentID = s.PaymentIntent.ID
		}
		if s.Subscription != nil {
			out.SubscriptionID = s.Subscription.ID
		}
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}

	case domain.EventInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out.InvoiceID = inv.ID
		out.BillingReason = string(inv.BillingReason)
		out.AmountTotal = inv.AmountPaid
		out.Status = string(inv.Status)
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		if inv.PaymentIntent != nil {
			out.PaymentIntentID = inv.PaymentIntent.ID
		}
		out.CurrentPeriodStart = unix(inv.PeriodStart)
		out.CurrentPeriodEnd = unix(inv.PeriodEnd)

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.SubscriptionID = sub.ID
		out.Status = string(sub.Status)
		out.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		out.CurrentPeriodStart = unix(sub.CurrentPeriodStart)
		out.CurrentPeriodEnd = unix(sub.CurrentPeriodEnd)
		out.Metadata = sub.Metadata
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
	}
	return out, nil
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
