package services

import (
	"regexp"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/auth"
)

// CasbinEnforcerWrapper wraps the real Casbin enforcer to implement our interface
type CasbinEnforcerWrapper struct {
	enforcer *casbin.Enforcer
}

// NewCasbinEnforcerWrapper creates a wrapper for the real Casbin enforcer
func NewCasbinEnforcerWrapper(enforcer *casbin.Enforcer) domain.CasbinEnforcer {
	return &CasbinEnforcerWrapper{enforcer: enforcer}
}

func (w *CasbinEnforcerWrapper) AddPolicy(params ...interface{}) (bool, error) {
	return w.enforcer.AddPolicy(params...)
}

func (w *CasbinEnforcerWrapper) RemovePolicy(params ...interface{}) (bool, error) {
	return w.enforcer.RemovePolicy(params...)
}

func (w *CasbinEnforcerWrapper) Enforce(rvals ...interface{}) (bool, error) {
	return w.enforcer.Enforce(rvals...)
}

func (w *CasbinEnforcerWrapper) GetPolicy() ([][]string, error) {
	return w.enforcer.GetPolicy()
}

func (w *CasbinEnforcerWrapper) SavePolicy() error {
	return w.enforcer.SavePolicy()
}

// Policy is one route permission: role may call Method on Path.
// Path is a route template ("/api/listings/:id"), Method a regular expression.
type Policy struct {
	Role   string `json:"role"`
	Path   string `json:"path"`
	Method string `json:"method"`
}

var policyRoles = map[string]bool{
	domain.RoleBuyer:  true,
	domain.RoleSeller: true,
	domain.RoleAdmin:  true,
	"member":          true,
}

// PolicyService manages route permissions stored by casbin
type PolicyService struct {
	enforcer domain.CasbinEnforcer
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer *casbin.Enforcer) *PolicyService {
	return &PolicyService{enforcer: NewCasbinEnforcerWrapper(enforcer)}
}

// NewPolicyServiceWithEnforcer creates a new policy service with a CasbinEnforcer interface (for testing)
func NewPolicyServiceWithEnforcer(enforcer domain.CasbinEnforcer) *PolicyService {
	return &PolicyService{enforcer: enforcer}
}

func (p Policy) validate() error {
	if !policyRoles[p.Role] {
		return domain.NewValidation("Role must be buyer, seller, admin or member")
	}
	if !strings.HasPrefix(p.Path, "/api/") {
		return domain.NewValidation("Path must start with /api/")
	}
	if p.Method == "" {
		return domain.NewValidation("Method is required")
	}
	if _, err := regexp.Compile(p.Method); err != nil {
		return domain.NewValidation("Method must be a valid regular expression")
	}
	return nil
}

func (p *PolicyService) AddPolicy(policy Policy) error {
	if err := policy.validate(); err != nil {
		return err
	}
	added, err := p.enforcer.AddPolicy(auth.Subject(policy.Role), policy.Path, policy.Method)
	if err != nil {
		return err
	}
	if !added {
		return domain.ErrPolicyExists
	}
	return p.enforcer.SavePolicy()
}

func (p *PolicyService) RemovePolicy(policy Policy) error {
	removed, err := p.enforcer.RemovePolicy(auth.Subject(policy.Role), policy.Path, policy.Method)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrPolicyNotFound
	}
	return p.enforcer.SavePolicy()
}

// CheckPermission reports whether role may call method on the route template path
func (p *PolicyService) CheckPermission(role, path, method string) (bool, error) {
	return p.enforcer.Enforce(auth.Subject(role), path, method)
}

// GetPolicies lists the stored permissions
func (p *PolicyService) GetPolicies() ([]Policy, error) {
	rows, err := p.enforcer.GetPolicy()
	if err != nil {
		return nil, err
	}
	out := make([]Policy, 0, len(rows))
	for _, r := range rows {
		if len(r) < 3 {
			continue
		}
		out = append(out, Policy{Role: strings.TrimPrefix(r[0], "role_"), Path: r[1], Method: r[2]})
	}
	return out, nil
}
