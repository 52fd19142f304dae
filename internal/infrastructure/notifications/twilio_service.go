package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/you/mcmarket/domain"
)

// TwilioSender implements domain.SMSSender
type TwilioSender struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewTwilioSender creates an SMS sender. Without a from number messages are only logged.
func NewTwilioSender(accountSID, authToken, fromNumber string) domain.SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{
		client:     client,
		fromNumber: fromNumber,
	}
}

// SendSMS implements domain.SMSSender
func (t *TwilioSender) SendSMS(ctx context.Context, to, message string) error {
	if t.fromNumber == "" {
		slog.InfoContext(ctx, "sms not sent, twilio not configured", "to", to, "message", message)
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp.Sid != nil {
		slog.DebugContext(ctx, "sms sent", "to", to, "sid", *resp.Sid)
	}
	return nil
}
