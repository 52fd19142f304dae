package mocks

import (
	"regexp"
	"strings"

	"github.com/you/mcmarket/domain"
)

// MockCasbinEnforcer implements the CasbinEnforcer interface for testing
type MockCasbinEnforcer struct {
	AddPolicyFunc    func(params ...interface{}) (bool, error)
	RemovePolicyFunc func(params ...interface{}) (bool, error)
	EnforceFunc      func(rvals ...interface{}) (bool, error)
	GetPolicyFunc    func() ([][]string, error)
	SavePolicyFunc   func() error
	SaveCalls        int
	policies         [][]string
}

// Compile-time interface compliance verification
var _ domain.CasbinEnforcer = (*MockCasbinEnforcer)(nil)

// NewMockCasbinEnforcer creates a new MockCasbinEnforcer with default behaviors
func NewMockCasbinEnforcer() *MockCasbinEnforcer {
	return &MockCasbinEnforcer{
		policies: [][]string{
			{"role_admin", "/api/*", ".*"},
			{"role_seller", "/api/listings", "POST"},
			{"role_buyer", "/api/listings/:id/unlock", "POST"},
		},
	}
}

func toStrings(params []interface{}) []string {
	out := make([]string, len(params))
	for i, p := range params {
		if s, ok := p.(string); ok {
			out[i] = s
		}
	}
	return out
}

func samePolicy(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *MockCasbinEnforcer) indexOf(policy []string) int {
	for i, p := range m.policies {
		if samePolicy(p, policy) {
			return i
		}
	}
	return -1
}

// AddPolicy adds a new policy rule; an existing rule reports false
func (m *MockCasbinEnforcer) AddPolicy(params ...interface{}) (bool, error) {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(params...)
	}
	if len(params) < 3 {
		return false, nil
	}
	policy := toStrings(params)
	if m.indexOf(policy) >= 0 {
		return false, nil
	}
	m.policies = append(m.policies, policy)
	return true, nil
}

// RemovePolicy removes a policy rule
func (m *MockCasbinEnforcer) RemovePolicy(params ...interface{}) (bool, error) {
	if m.RemovePolicyFunc != nil {
		return m.RemovePolicyFunc(params...)
	}
	i := m.indexOf(toStrings(params))
	if i < 0 {
		return false, nil
	}
	m.policies = append(m.policies[:i], m.policies[i+1:]...)
	return true, nil
}

// Enforce checks stored policies: exact path or a trailing "/*" prefix, method as a regular expression
func (m *MockCasbinEnforcer) Enforce(rvals ...interface{}) (bool, error) {
	if m.EnforceFunc != nil {
		return m.EnforceFunc(rvals...)
	}
	if len(rvals) < 3 {
		return false, nil
	}
	req := toStrings(rvals)
	for _, p := range m.policies {
		if len(p) < 3 || p[0] != req[0] {
			continue
		}
		pathOK := p[1] == req[1] ||
			(strings.HasSuffix(p[1], "/*") && strings.HasPrefix(req[1], strings.TrimSuffix(p[1], "*")))
		if !pathOK {
			continue
		}
		if ok, _ := regexp.MatchString("^(?:"+p[2]+")$", req[2]); ok {
			return true, nil
		}
	}
	return false, nil
}

// GetPolicy returns all policies
func (m *MockCasbinEnforcer) GetPolicy() ([][]string, error) {
	if m.GetPolicyFunc != nil {
		return m.GetPolicyFunc()
	}
	// Return copy of internal policies
	result := make([][]string, len(m.policies))
	for i, policy := range m.policies {
		result[i] = append([]string(nil), policy...)
	}
	return result, nil
}

// SavePolicy saves all policies
func (m *MockCasbinEnforcer) SavePolicy() error {
	m.SaveCalls++
	if m.SavePolicyFunc != nil {
		return m.SavePolicyFunc()
	}
	// Default behavior: success
	return nil
}

// SetPolicies sets the internal policies (test helper)
func (m *MockCasbinEnforcer) SetPolicies(policies [][]string) {
	m.policies = make([][]string, len(policies))
	for i, policy := range policies {
		m.policies[i] = append([]string(nil), policy...)
	}
}
