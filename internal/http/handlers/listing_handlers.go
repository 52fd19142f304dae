package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/middleware"
	"github.com/you/mcmarket/internal/http/response"
	"github.com/you/mcmarket/internal/services"
)

// ListingHandlers serves the marketplace listing endpoints
type ListingHandlers struct {
	listings *services.ListingService
}

func NewListingHandlers(listings *services.ListingService) *ListingHandlers {
	return &ListingHandlers{listings: listings}
}

// ListingRequest is the create and update body
type ListingRequest struct {
	MCNumber        string          `json:"mcNumber" binding:"required,mcnumber"`
	DOTNumber       string          `json:"dotNumber" binding:"omitempty,dotnumber"`
	Title           string          `json:"title" binding:"required,max=255"`
	Description     string          `json:"description" binding:"max=10000"`
	Price           decimal.Decimal `json:"price"`
	State           string          `json:"state" binding:"omitempty,len=2"`
	YearsActive     int             `json:"yearsActive" binding:"gte=0"`
	FleetSize       int             `json:"fleetSize" binding:"gte=0"`
	SafetyRating    string          `json:"safetyRating" binding:"max=64"`
	InsuranceOnFile bool            `json:"insuranceOnFile"`
	AmazonRelay     bool            `json:"amazonRelay"`
}

func (r ListingRequest) input() services.ListingInput {
	return services.ListingInput{
		MCNumber:        r.MCNumber,
		DOTNumber:       r.DOTNumber,
		Title:           r.Title,
		Description:     r.Description,
		Price:           r.Price,
		State:           r.State,
		YearsActive:     r.YearsActive,
		FleetSize:       r.FleetSize,
		SafetyRating:    r.SafetyRating,
		InsuranceOnFile: r.InsuranceOnFile,
		AmazonRelay:     r.AmazonRelay,
	}
}

// listingFilter reads the browse query string
func listingFilter(c *gin.Context) (domain.ListingFilter, bool) {
	f := domain.ListingFilter{
		State:  strings.ToUpper(strings.TrimSpace(c.Query("state"))),
		Search: strings.TrimSpace(c.Query("search")),
		Sort:   c.Query("sort"),
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			c.Error(domain.NewValidation("Invalid " + name))
			return f, false
		}
		*dst = &d
	}
	if raw := c.Query("minYears"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(domain.NewValidation("Invalid minYears"))
			return f, false
		}
		f.MinYears = n
	}
	if raw := c.Query("amazonRelay"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(domain.NewValidation("Invalid amazonRelay"))
			return f, false
		}
		f.AmazonRelay = &b
	}
	return f, true
}

// Browse lists active listings
func (h *ListingHandlers) Browse(c *gin.Context) {
	filter, ok := listingFilter(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.listings.Browse(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

// Get shows one listing. Authority numbers are revealed only to callers who may see them.
func (h *ListingHandlers) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var caller *domain.Actor
	if a, ok := middleware.Actor(c); ok {
		caller = &a
	}
	view, err := h.listings.Get(c.Request.Context(), caller, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, view)
}

func (h *ListingHandlers) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req ListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listings.Create(c.Request.Context(), a.ID, req.input())
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, listing)
}

func (h *ListingHandlers) Update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ListingRequest
	if !bindJSON(c, &req) {
		return
	}
	listing, err := h.listings.Update(c.Request.Context(), a, id, req.input())
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, listing)
}

func (h *ListingHandlers) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.listings.Delete(c.Request.Context(), a, id); err != nil {
		c.Error(err)
		return
	}
	response.Message(c, "Listing deleted")
}

// Unlock spends a credit to reveal the authority details. Repeat unlocks are free.
func (h *ListingHandlers) Unlock(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	unlock, charged, err := h.listings.Unlock(c.Request.Context(), a.ID, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, gin.H{"unlock": unlock, "charged": charged})
}

func (h *ListingHandlers) Mine(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.listings.MyListings(c.Request.Context(), a.ID, c.Query("status"), page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

func (h *ListingHandlers) Unlocked(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page := pageFrom(c)
	items, total, err := h.listings.Unlocked(c.Request.Context(), a.ID, page)
	if err != nil {
		c.Error(err)
		return
	}
	response.List(c, items, page, total)
}

// UploadDocument stores a supporting document sent as the "file" form field
func (h *ListingHandlers) UploadDocument(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.Error(err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.Error(domain.NewInternal("Failed to read upload", err))
		return
	}
	defer f.Close()

	doc, err := h.listings.UploadDocument(c.Request.Context(), a, id, services.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.Created(c, doc)
}

func (h *ListingHandlers) Documents(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	docs, err := h.listings.Documents(c.Request.Context(), a, id)
	if err != nil {
		c.Error(err)
		return
	}
	response.OK(c, docs)
}
