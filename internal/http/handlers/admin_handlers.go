package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// AdminHandlers serves the back office. Routes sit behind the admin policy.
type AdminHandlers struct {
	admin *services.AdminService
}

func NewAdminHandlers(admin *services.AdminService) *AdminHandlers {
	return &AdminHandlers{admin: admin}
}

type CreditAdjustRequest struct {
	Delta  int    `json:"delta" binding:"required,ne=0"`
	Reason string `json:"reason" binding:"required,max=500"`
}

type FeatureRequest struct {
	Premium bool `json:"premium"`
}

type ShareRequest struct {
	Channels []string `json:"channels" binding:"omitempty,dive,oneof=facebook telegram"`
	Message  string   `json:"message" binding:"max=2000"`
}

type ResolveDisputeRequest struct {
	Outcome    string `json:"outcome" binding:"required,oneof=resume cancel"`
	Resolution string `json:"resolution" binding:"required,max=5000"`
}

type SettingRequest struct {
	Value string `json:"value" binding:"required,max=1000"`
}

type ConsultationUpdateRequest struct {
	Status *string `json:"status" binding:"omitempty,oneof=new contacted closed"`
	Notes  *string `json:"notes" binding:"omitempty,max=5000"`
}

func (h *AdminHandlers) Dashboard(c *gin.Context) {
	d, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, d)
}

// Users

func (h *AdminHandlers) ListUsers(c *gin.Context) {
	page := pageFrom(c)
	filter := domain.UserFilter{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: strings.TrimSpace(c.Query("search")),
	}
	items, total, err := h.admin.ListUsers(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.admin.GetUser(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, user)
}

func (h *AdminHandlers) SuspendUser(c *gin.Context) {
	by, ok := adminFrom(c)
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
	user, err := h.admin.SuspendUser(c.Request.Context(), by, id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, user)
}

func (h *AdminHandlers) ActivateUser(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.admin.ActivateUser(c.Request.Context(), by, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, user)
}

func (h *AdminHandlers) AdjustCredits(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CreditAdjustRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.admin.AdjustCredits(c.Request.Context(), by, id, req.Delta, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, entry)
}

// Listings

func (h *AdminHandlers) ListListings(c *gin.Context) {
	filter, ok := listingFilter(c)
	if !ok {
		return
	}
	filter.Status = c.Query("status")
	if raw := c.Query("sellerId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(domain.NewValidation("Invalid sellerId"))
			return
		}
		filter.SellerID = uint(id)
	}
	page := pageFrom(c)
	items, total, err := h.admin.ListListings(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) PendingListings(c *gin.Context) {
	page := pageFrom(c)
	items, total, err := h.admin.PendingListings(c.Request.Context(), page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) ApproveListing(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := h.admin.ApproveListing(c.Request.Context(), by, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, l)
}

func (h *AdminHandlers) RejectListing(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.admin.RejectListing(c.Request.Context(), by, id, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, l)
}

func (h *AdminHandlers) FeatureListing(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req FeatureRequest
	if !bindJSON(c, &req) {
		return
	}
	l, err := h.admin.FeatureListing(c.Request.Context(), by, id, req.Premium)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, l)
}

// ShareListing posts to every configured channel when none are named
func (h *AdminHandlers) ShareListing(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ShareRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	results, err := h.admin.ShareListing(c.Request.Context(), by, id, req.Channels, req.Message)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, results)
}

// Transactions

func (h *AdminHandlers) ListTransactions(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	status := domain.TransactionState(strings.ToUpper(c.Query("status")))
	items, total, err := h.admin.ListTransactions(c.Request.Context(), by, status, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) GetTransaction(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.admin.GetTransaction(c.Request.Context(), by, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

// transactionAction runs one admin escrow step against the :id in the path
func (h *AdminHandlers) transactionAction(c *gin.Context, fn func(by services.Admin, id uint) (*domain.Transaction, error)) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := fn(by, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, t)
}

func (h *AdminHandlers) VerifyDeposit(c *gin.Context) {
	h.transactionAction(c, func(by services.Admin, id uint) (*domain.Transaction, error) {
		return h.admin.VerifyDeposit(c.Request.Context(), by, id)
	})
}

func (h *AdminHandlers) VerifyFinalPayment(c *gin.Context) {
	h.transactionAction(c, func(by services.Admin, id uint) (*domain.Transaction, error) {
		return h.admin.VerifyFinalPayment(c.Request.Context(), by, id)
	})
}

func (h *AdminHandlers) ApproveTransaction(c *gin.Context) {
	h.transactionAction(c, func(by services.Admin, id uint) (*domain.Transaction, error) {
		return h.admin.ApproveTransaction(c.Request.Context(), by, id)
	})
}

func (h *AdminHandlers) CancelTransaction(c *gin.Context) {
	var req ReasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	h.transactionAction(c, func(by services.Admin, id uint) (*domain.Transaction, error) {
		return h.admin.CancelTransaction(c.Request.Context(), by, id, req.Reason)
	})
}

// Disputes

func (h *AdminHandlers) ListDisputes(c *gin.Context) {
	page := pageFrom(c)
	items, total, err := h.admin.ListDisputes(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) ResolveDispute(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.admin.ResolveDispute(c.Request.Context(), by, id, req.Outcome, req.Resolution)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, d)
}

// Settings and audit

func (h *AdminHandlers) Settings(c *gin.Context) {
	settings, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, settings)
}

func (h *AdminHandlers) UpdateSetting(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	var req SettingRequest
	if !bindJSON(c, &req) {
		return
	}
	setting, err := h.admin.UpdateSetting(c.Request.Context(), by, c.Param("key"), req.Value)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, setting)
}

func (h *AdminHandlers) Actions(c *gin.Context) {
	filter := domain.AdminLogFilter{
		Action:     c.Query("action"),
		TargetType: c.Query("targetType"),
	}
	if raw := c.Query("adminId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.Error(domain.NewValidation("Invalid adminId"))
			return
		}
		filter.AdminID = uint(id)
	}
	page := pageFrom(c)
	items, total, err := h.admin.Actions(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

// Consultations

func (h *AdminHandlers) Consultations(c *gin.Context) {
	page := pageFrom(c)
	items, total, err := h.admin.Consultations(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *AdminHandlers) UpdateConsultation(c *gin.Context) {
	by, ok := adminFrom(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ConsultationUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	consultation, err := h.admin.UpdateConsultation(c.Request.Context(), by, id, req.Status, req.Notes)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, consultation)
}
