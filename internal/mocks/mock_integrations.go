package mocks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/you/mcmarket/domain"
)

// MockPaymentGateway implements domain.PaymentGateway interface for testing
type MockPaymentGateway struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	CancelSubscriptionFunc    func(ctx context.Context, subscriptionID string) error
	ParseWebhookFunc          func(payload []byte, signature string) (*domain.PaymentEvent, error)

	mu       sync.Mutex
	Requests []domain.CheckoutRequest
}

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

// CreateCheckoutSession records req; by default it returns session cs_test_<n>
func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, req)
	}
	id := fmt.Sprintf("cs_test_%d", n)
	return &domain.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (m *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *MockPaymentGateway) ParseWebhook(payload []byte, signature string) (*domain.PaymentEvent, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, signature)
	}
	return nil, domain.ErrWebhookSignature
}

// MockCarrierLookup implements domain.CarrierLookup and domain.CreditReporter for testing
type MockCarrierLookup struct {
	ByMCNumberFunc  func(ctx context.Context, mc string) (*domain.CarrierInfo, error)
	ByDOTNumberFunc func(ctx context.Context, dot string) (*domain.CarrierInfo, error)
	ReportFunc      func(ctx context.Context, companyName, state string) (*domain.CreditReport, error)
	Calls           int
}

func NewMockCarrierLookup() *MockCarrierLookup {
	return &MockCarrierLookup{}
}

func (m *MockCarrierLookup) ByMCNumber(ctx context.Context, mc string) (*domain.CarrierInfo, error) {
	m.Calls++
	if m.ByMCNumberFunc != nil {
		return m.ByMCNumberFunc(ctx, mc)
	}
	return nil, domain.ErrCarrierNotFound
}

func (m *MockCarrierLookup) ByDOTNumber(ctx context.Context, dot string) (*domain.CarrierInfo, error) {
	m.Calls++
	if m.ByDOTNumberFunc != nil {
		return m.ByDOTNumberFunc(ctx, dot)
	}
	return nil, domain.ErrCarrierNotFound
}

func (m *MockCarrierLookup) Report(ctx context.Context, companyName, state string) (*domain.CreditReport, error) {
	m.Calls++
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, companyName, state)
	}
	return nil, domain.ErrCarrierNotFound
}

// MockPublisher implements domain.SocialPublisher for testing
type MockPublisher struct {
	ChannelName string
	PublishFunc func(ctx context.Context, message, link string) (string, error)
	Posts       []string
}

func NewMockPublisher(name string) *MockPublisher {
	return &MockPublisher{ChannelName: name}
}

func (m *MockPublisher) Name() string { return m.ChannelName }

func (m *MockPublisher) Publish(ctx context.Context, message, link string) (string, error) {
	m.Posts = append(m.Posts, message+"\n"+link)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, message, link)
	}
	return fmt.Sprintf("%s_post_%d", m.ChannelName, len(m.Posts)), nil
}

// MockLeadSink implements domain.LeadSink for testing
type MockLeadSink struct {
	PushLeadFunc func(ctx context.Context, lead domain.Lead) (string, error)
	Leads        []domain.Lead
}

func NewMockLeadSink() *MockLeadSink {
	return &MockLeadSink{}
}

func (m *MockLeadSink) PushLead(ctx context.Context, lead domain.Lead) (string, error) {
	m.Leads = append(m.Leads, lead)
	if m.PushLeadFunc != nil {
		return m.PushLeadFunc(ctx, lead)
	}
	return "contact_1", nil
}

// MockStorage implements domain.Storage in memory
type MockStorage struct {
	SaveFunc   func(ctx context.Context, prefix, fileName, contentType string, r io.Reader, size int64) (*domain.StoredObject, error)
	DeleteFunc func(ctx context.Context, key string) error

	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Objects: map[string][]byte{}}
}

func (m *MockStorage) Save(ctx context.Context, prefix, fileName, contentType string, r io.Reader, size int64) (*domain.StoredObject, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, prefix, fileName, contentType, r, size)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	key := prefix + "/" + fileName
	m.mu.Lock()
	m.Objects[key] = buf.Bytes()
	m.mu.Unlock()
	return &domain.StoredObject{Key: key, URL: "https://files.test/" + key}, nil
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	delete(m.Objects, key)
	m.mu.Unlock()
	return nil
}

// Compile-time interface compliance verification
var (
	_ domain.PaymentGateway  = (*MockPaymentGateway)(nil)
	_ domain.CarrierLookup   = (*MockCarrierLookup)(nil)
	_ domain.CreditReporter  = (*MockCarrierLookup)(nil)
	_ domain.SocialPublisher = (*MockPublisher)(nil)
	_ domain.LeadSink        = (*MockLeadSink)(nil)
	_ domain.Storage         = (*MockStorage)(nil)
)
