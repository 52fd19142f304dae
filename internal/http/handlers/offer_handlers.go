package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// OfferHandlers serves negotiation endpoints
type OfferHandlers struct {
	offers *services.OfferService
}

func NewOfferHandlers(offers *services.OfferService) *OfferHandlers {
	return &OfferHandlers{offers: offers}
}

type OfferRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message" binding:"max=2000"`
}

type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// Create places an offer on the listing in the path
func (h *OfferHandlers) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OfferRequest
	if !bindJSON(c, &req) {
		return
	}
	offer, err := h.offers.Create(c.Request.Context(), a.ID, listingID, req.Amount, req.Message)
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, offer)
}

// List accepts ?as=buyer|seller and ?status=
func (h *OfferHandlers) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.offers.List(c.Request.Context(), a, c.Query("as"), c.Query("status"), page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *OfferHandlers) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	offer, err := h.offers.Get(c.Request.Context(), a, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, offer)
}

// Accept opens the escrow transaction for the offer
func (h *OfferHandlers) Accept(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.offers.Accept(c.Request.Context(), a.ID, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, result)
}

func (h *OfferHandlers) Reject(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	offer, err := h.offers.Reject(c.Request.Context(), a.ID, id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, offer)
}

func (h *OfferHandlers) Counter(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OfferRequest
	if !bindJSON(c, &req) {
		return
	}
	offer, err := h.offers.Counter(c.Request.Context(), a.ID, id, req.Amount, req.Message)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, offer)
}

func (h *OfferHandlers) AcceptCounter(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.offers.AcceptCounter(c.Request.Context(), a.ID, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, result)
}

func (h *OfferHandlers) Withdraw(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	offer, err := h.offers.Withdraw(c.Request.Context(), a.ID, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, offer)
}
