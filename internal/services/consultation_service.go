package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/you/mcmarket/domain"
)

// ConsultationInput is a public request for a call
type ConsultationInput struct {
	UserID        *uint
	ListingID     *uint
	Name          string
	Email         string
	Phone         string
	Message       string
	PreferredTime string
}

// ConsultationService records consultation requests and forwards them to the CRM
type ConsultationService struct {
	repo  domain.ConsultationRepository
	leads domain.LeadSink
}

func NewConsultationService(repo domain.ConsultationRepository, leads domain.LeadSink) *ConsultationService {
	return &ConsultationService{repo: repo, leads: leads}
}

func (s *ConsultationService) Create(ctx context.Context, in ConsultationInput) (*domain.Consultation, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.NewValidation("Name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, domain.NewValidation("A valid email is required")
	}

	c := &domain.Consultation{
		UserID:        in.UserID,
		ListingID:     in.ListingID,
		Name:          in.Name,
		Email:         strings.ToLower(addr.Address),
		Phone:         strings.TrimSpace(in.Phone),
		Message:       strings.TrimSpace(in.Message),
		PreferredTime: strings.TrimSpace(in.PreferredTime),
		Status:        domain.ConsultationNew,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save consultation: %w", err)
	}

	s.pushLead(ctx, c)
	return c, nil
}

// pushLead forwards the request to the CRM; failures are logged only
func (s *ConsultationService) pushLead(ctx context.Context, c *domain.Consultation) {
	if s.leads == nil {
		return
	}
	tags := []string{"consultation"}
	if c.ListingID != nil {
		tags = append(tags, fmt.Sprintf("listing-%d", *c.ListingID))
	}
	id, err := s.leads.PushLead(ctx, domain.Lead{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Source:  "mc-marketplace consultation",
		Tags:    tags,
		Message: c.Message,
	})
	if err != nil {
		slog.WarnContext(ctx, "crm lead push failed", "consultation_id", c.ID, "error", err)
		return
	}
	if id == "" {
		return
	}
	c.CRMContactID = id
	if err := s.repo.Update(ctx, c); err != nil {
		slog.WarnContext(ctx, "failed to store crm contact id", "consultation_id", c.ID, "error", err)
	}
}

func (s *ConsultationService) List(ctx context.Context, status string, page domain.Page) ([]domain.Consultation, int64, error) {
	return s.repo.List(ctx, status, page)
}

// Update changes the follow-up status and notes; nil leaves a field unchanged
func (s *ConsultationService) Update(ctx context.Context, id uint, status, notes *string) (*domain.Consultation, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status != nil {
		switch *status {
		case domain.ConsultationNew, domain.ConsultationContacted, domain.ConsultationClosed:
			c.Status = *status
		default:
			return nil, domain.NewValidation("Status must be new, contacted or closed")
		}
	}
	if notes != nil {
		c.Notes = *notes
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
