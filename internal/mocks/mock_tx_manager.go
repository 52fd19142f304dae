package mocks

import (
	"context"

	"github.com/you/mcmarket/domain"
)

// MockTxManager runs the callback directly; there is no database to roll back
type MockTxManager struct {
	Calls int
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	return fn(ctx)
}

// Compile-time interface compliance verification
var _ domain.TxManager = (*MockTxManager)(nil)
