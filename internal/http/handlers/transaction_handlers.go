package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// TransactionHandlers serves the escrow workflow
type TransactionHandlers struct {
	txs *services.TransactionService
}

func NewTransactionHandlers(txs *services.TransactionService) *TransactionHandlers {
	return &TransactionHandlers{txs: txs}
}

// PaymentRequest records an off-platform transfer
type PaymentRequest struct {
	Method    string `json:"method" binding:"required,oneof=wire ach"`
	Reference string `json:"reference" binding:"required,max=255"`
}

type DisputeRequest struct {
	Reason string `json:"reason" binding:"required,min=10,max=5000"`
}

func (h *TransactionHandlers) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	status := domain.TransactionState(strings.ToUpper(c.Query("status")))
	items, total, err := h.txs.List(c.Request.Context(), a, status, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *TransactionHandlers) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.txs.Get(c.Request.Context(), a, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *TransactionHandlers) AcceptTerms(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.txs.AcceptTerms(c.Request.Context(), a, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *TransactionHandlers) SubmitDeposit(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.txs.SubmitDeposit(c.Request.Context(), a, id, req.Method, req.Reference)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

// DepositCheckout opens a card checkout for the deposit
func (h *TransactionHandlers) DepositCheckout(c *gin.Context) {
	h.checkout(c, domain.PaymentDeposit)
}

func (h *TransactionHandlers) FinalPaymentCheckout(c *gin.Context) {
	h.checkout(c, domain.PaymentFinal)
}

func (h *TransactionHandlers) checkout(c *gin.Context, kind string) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.txs.StartCheckout(c.Request.Context(), a, id, kind)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, session)
}

// Approve is the buyer's sign-off after reviewing the authority
func (h *TransactionHandlers) Approve(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.txs.Approve(c.Request.Context(), a, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *TransactionHandlers) SubmitFinalPayment(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.txs.SubmitFinalPayment(c.Request.Context(), a, id, req.Method, req.Reference)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *TransactionHandlers) Cancel(c *gin.Context) {
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
	t, err := h.txs.Cancel(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *TransactionHandlers) OpenDispute(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DisputeRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.txs.OpenDispute(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, d)
}
