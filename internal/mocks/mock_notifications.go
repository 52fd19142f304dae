package mocks

import (
	"context"
	"sync"

	"github.com/you/mcmarket/domain"
)

// SentMessage is one message captured by MockMailer or MockSMSSender
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// MockMailer implements domain.Mailer and records every email
type MockMailer struct {
	SendEmailFunc func(ctx context.Context, to, subject, html string) error

	mu   sync.Mutex
	Sent []SentMessage
}

// NewMockMailer creates a new MockMailer with default behaviors
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

// SendEmail sends an email message
func (m *MockMailer) SendEmail(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Subject: subject, Body: html})
	m.mu.Unlock()
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, to, subject, html)
	}
	// Default behavior: success (no actual email sent in tests)
	return nil
}

// Last returns the most recent email, or false when none was sent
func (m *MockMailer) Last() (SentMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMessage{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}

// MockSMSSender implements domain.SMSSender and records every message
type MockSMSSender struct {
	SendSMSFunc func(ctx context.Context, to, message string) error

	mu   sync.Mutex
	Sent []SentMessage
}

// NewMockSMSSender creates a new MockSMSSender with default behaviors
func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{}
}

// SendSMS sends an SMS message
func (m *MockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Body: message})
	m.mu.Unlock()
	if m.SendSMSFunc != nil {
		return m.SendSMSFunc(ctx, to, message)
	}
	// Default behavior: success (no actual SMS sent in tests)
	return nil
}

// Count returns the number of messages sent
func (m *MockSMSSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// Compile-time interface compliance verification
var (
	_ domain.Mailer    = (*MockMailer)(nil)
	_ domain.SMSSender = (*MockSMSSender)(nil)
)
