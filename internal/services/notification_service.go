package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/notifications"
)

// Notice is an in-app message and, optionally, its email/SMS delivery
type Notice struct {
	UserID  uint
	Type    string
	Title   string
	Message string
	Link    string
	Email   bool
	SMS     bool
}

// NotificationService stores in-app notifications and fans them out to email and SMS
type NotificationService struct {
	repo        domain.NotificationRepository
	users       domain.UserRepository
	mailer      domain.Mailer
	sms         domain.SMSSender
	frontendURL string
}

func NewNotificationService(
	repo domain.NotificationRepository,
	users domain.UserRepository,
	mailer domain.Mailer,
	sms domain.SMSSender,
	frontendURL string,
) *NotificationService {
	return &NotificationService{
		repo:        repo,
		users:       users,
		mailer:      mailer,
		sms:         sms,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Record writes the in-app row. It joins the caller's transaction when ctx carries one.
func (s *NotificationService) Record(ctx context.Context, n Notice) error {
	row := &domain.Notification{
		UserID:  n.UserID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
		Link:    n.Link,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// Deliver sends the external copies of n. Failures are logged and never returned;
// call it after the surrounding transaction has committed.
func (s *NotificationService) Deliver(ctx context.Context, n Notice) {
	if !n.Email && !n.SMS {
		return
	}
	user, err := s.users.FindByID(ctx, n.UserID)
	if err != nil {
		slog.WarnContext(ctx, "notification recipient not found", "user_id", n.UserID, "error", err)
		return
	}

	if n.Email {
		link := ""
		if n.Link != "" {
			link = s.frontendURL + n.Link
		}
		html, err := notifications.Render(notifications.Email{Heading: n.Title, Body: n.Message, Action: "Open", Link: link})
		if err == nil {
			err = s.mailer.SendEmail(ctx, user.Email, n.Title, html)
		}
		if err != nil {
			slog.WarnContext(ctx, "notification email failed", "user_id", user.ID, "type", n.Type, "error", err)
		}
	}
	if n.SMS && user.Phone != "" {
		if err := s.sms.SendSMS(ctx, user.Phone, n.Title+": "+n.Message); err != nil {
			slog.WarnContext(ctx, "notification sms failed", "user_id", user.ID, "type", n.Type, "error", err)
		}
	}
}

// Notify records n and delivers it; used outside transactions
func (s *NotificationService) Notify(ctx context.Context, n Notice) {
	if err := s.Record(ctx, n); err != nil {
		slog.WarnContext(ctx, "notification not recorded", "user_id", n.UserID, "type", n.Type, "error", err)
	}
	s.Deliver(ctx, n)
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, page domain.Page) ([]domain.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, page)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllRead(ctx, userID)
}
