package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/you/mcmarket/domain"
)

// ResendMailer implements domain.Mailer over the Resend API
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer creates a mailer. Without an API key mail is only logged.
func NewResendMailer(apiKey, from string) domain.Mailer {
	m := &ResendMailer{from: from}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	}
	return m
}

// SendEmail implements domain.Mailer
func (m *ResendMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	if m.client == nil {
		slog.InfoContext(ctx, "email not sent, resend not configured", "to", to, "subject", subject)
		return nil
	}

	sent, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.DebugContext(ctx, "email sent", "to", to, "id", sent.Id)
	return nil
}
