package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

const maxWebhookBytes = 64 << 10

// BillingHandlers serves credits, subscriptions and the payment webhook
type BillingHandlers struct {
	credits       *services.CreditService
	subscriptions *services.SubscriptionService
	webhooks      *services.WebhookService
}

func NewBillingHandlers(credits *services.CreditService, subscriptions *services.SubscriptionService, webhooks *services.WebhookService) *BillingHandlers {
	return &BillingHandlers{credits: credits, subscriptions: subscriptions, webhooks: webhooks}
}

type PurchaseRequest struct {
	PackageID string `json:"packageId" binding:"required"`
}

type SubscribeRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

func (h *BillingHandlers) Balance(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	b, err := h.credits.Balance(c.Request.Context(), a.ID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, b)
}

func (h *BillingHandlers) History(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.credits.History(c.Request.Context(), a.ID, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *BillingHandlers) Packages(c *gin.Context) {
	response.OK(c, h.credits.Packages())
}

// Purchase opens a checkout session for a credit package
func (h *BillingHandlers) Purchase(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.credits.Purchase(c.Request.Context(), a.ID, req.PackageID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, session)
}

func (h *BillingHandlers) Plans(c *gin.Context) {
	response.OK(c, h.subscriptions.Plans())
}

func (h *BillingHandlers) CurrentSubscription(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Current(c.Request.Context(), a.ID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, sub)
}

func (h *BillingHandlers) Subscribe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.subscriptions.Subscribe(c.Request.Context(), a.ID, req.PlanID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, session)
}

// CancelSubscription stops renewal at the end of the current period
func (h *BillingHandlers) CancelSubscription(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Cancel(c.Request.Context(), a.ID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, sub)
}

// StripeWebhook needs the raw body for signature verification
func (h *BillingHandlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.Error(err)
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.Error(domain.ErrWebhookSignature)
		return
	}
	if err := h.webhooks.HandleStripe(c.Request.Context(), payload, signature); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
