package mocks

import (
	"context"
	"sync"

	"github.com/you/mcmarket/domain"
)

// MockSettingRepository keeps platform settings in memory
type MockSettingRepository struct {
	ListFunc func(ctx context.Context) ([]domain.PlatformSetting, error)

	mu   sync.Mutex
	rows map[string]domain.PlatformSetting
}

func NewMockSettingRepository(values map[string]string) *MockSettingRepository {
	m := &MockSettingRepository{rows: map[string]domain.PlatformSetting{}}
	for k, v := range values {
		m.rows[k] = domain.PlatformSetting{Key: k, Value: v}
	}
	return m
}

func (m *MockSettingRepository) List(ctx context.Context) ([]domain.PlatformSetting, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PlatformSetting, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockSettingRepository) FindByKey(ctx context.Context, key string) (*domain.PlatformSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[key]
	if !ok {
		return nil, domain.ErrSettingNotFound
	}
	return &r, nil
}

func (m *MockSettingRepository) Upsert(ctx context.Context, setting *domain.PlatformSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[setting.Key] = *setting
	return nil
}

// Compile-time interface compliance verification
var _ domain.SettingRepository = (*MockSettingRepository)(nil)
