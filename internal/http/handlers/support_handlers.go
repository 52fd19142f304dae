package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/middleware"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// NotificationHandlers serves the in-app inbox
type NotificationHandlers struct {
	notifications *services.NotificationService
}

func NewNotificationHandlers(notifications *services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{notifications: notifications}
}

func (h *NotificationHandlers) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.notifications.List(c.Request.Context(), a.ID, c.Query("unread") == "true", page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *NotificationHandlers) UnreadCount(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), a.ID)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, gin.H{"count": n})
}

func (h *NotificationHandlers) MarkRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), a.ID, id); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Notification marked as read")
}

func (h *NotificationHandlers) MarkAllRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllRead(c.Request.Context(), a.ID); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "All notifications marked as read")
}

// CarrierHandlers exposes FMCSA and credit lookups
type CarrierHandlers struct {
	carriers *services.CarrierService
}

func NewCarrierHandlers(carriers *services.CarrierService) *CarrierHandlers {
	return &CarrierHandlers{carriers: carriers}
}

func (h *CarrierHandlers) ByMC(c *gin.Context) {
	info, err := h.carriers.ByMCNumber(c.Request.Context(), c.Param("mc"))
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, info)
}

func (h *CarrierHandlers) ByDOT(c *gin.Context) {
	info, err := h.carriers.ByDOTNumber(c.Request.Context(), c.Param("dot"))
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, info)
}

// CreditReport takes ?company= and an optional ?state=
func (h *CarrierHandlers) CreditReport(c *gin.Context) {
	report, err := h.carriers.CreditReport(c.Request.Context(), c.Query("company"), c.Query("state"))
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, report)
}

// ConsultationHandlers takes consultation requests from visitors and members
type ConsultationHandlers struct {
	consultations *services.ConsultationService
}

func NewConsultationHandlers(consultations *services.ConsultationService) *ConsultationHandlers {
	return &ConsultationHandlers{consultations: consultations}
}

type ConsultationRequest struct {
	ListingID     *uint  `json:"listingId"`
	Name          string `json:"name" binding:"required,max=255"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"omitempty,max=32"`
	Message       string `json:"message" binding:"max=5000"`
	PreferredTime string `json:"preferredTime" binding:"max=255"`
}

func (h *ConsultationHandlers) Create(c *gin.Context) {
	var req ConsultationRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.ConsultationInput{
		ListingID:     req.ListingID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Message:       req.Message,
		PreferredTime: req.PreferredTime,
	}
	if id, ok := middleware.UserID(c); ok {
		in.UserID = &id
	}
	consultation, err := h.consultations.Create(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, consultation)
}

// HealthHandler answers liveness probes
type HealthHandler struct {
	health *services.HealthService
}

func NewHealthHandler(health *services.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) Check(c *gin.Context) {
	report := h.health.Check(c.Request.Context())
	if !report.Healthy() {
		c.JSON(http.StatusServiceUnavailable, response.Envelope{
			Success: false,
			Data:    report,
			Error:   &response.ErrorBody{Code: string(domain.KindServiceUnavailable), Message: "Database unavailable"},
		})
		return
	}
	response.OK(c, report)
}
