package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// rbacModel matches a role subject against route templates (c.FullPath()) and HTTP methods
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// Subject returns the casbin subject for a user role
func Subject(role string) string { return "role_" + role }

// DefaultGroupings let every role reach the endpoints shared by all members
var DefaultGroupings = [][]string{
	{"role_buyer", "role_member"},
	{"role_seller", "role_member"},
	{"role_admin", "role_member"},
}

// DefaultPolicies are seeded into an empty policy table
var DefaultPolicies = [][]string{
	{"role_admin", "/api/*", ".*"},

	{"role_member", "/api/auth/me", "(GET)|(PUT)"},
	{"role_member", "/api/auth/me/password", "PUT"},
	{"role_member", "/api/auth/logout", "POST"},
	{"role_member", "/api/notifications", "GET"},
	{"role_member", "/api/notifications/*", "(GET)|(POST)"},
	{"role_member", "/api/offers", "GET"},
	{"role_member", "/api/offers/:id", "GET"},
	{"role_member", "/api/transactions", "GET"},
	{"role_member", "/api/transactions/:id", "GET"},
	{"role_member", "/api/transactions/:id/accept-terms", "POST"},
	{"role_member", "/api/transactions/:id/approve", "POST"},
	{"role_member", "/api/transactions/:id/cancel", "POST"},
	{"role_member", "/api/transactions/:id/dispute", "POST"},
	{"role_member", "/api/credits/*", "GET"},
	{"role_member", "/api/subscriptions/*", "GET"},
	{"role_member", "/api/carriers/mc/:mc", "GET"},
	{"role_member", "/api/carriers/dot/:dot", "GET"},

	{"role_buyer", "/api/listings/unlocked", "GET"},
	{"role_buyer", "/api/listings/:id/unlock", "POST"},
	{"role_buyer", "/api/listings/:id/offers", "POST"},
	{"role_buyer", "/api/offers/:id/accept-counter", "POST"},
	{"role_buyer", "/api/offers/:id/withdraw", "POST"},
	{"role_buyer", "/api/transactions/:id/deposit", "POST"},
	{"role_buyer", "/api/transactions/:id/deposit/checkout", "POST"},
	{"role_buyer", "/api/transactions/:id/final-payment", "POST"},
	{"role_buyer", "/api/transactions/:id/final-payment/checkout", "POST"},
	{"role_buyer", "/api/credits/purchase", "POST"},
	{"role_buyer", "/api/subscriptions", "POST"},
	{"role_buyer", "/api/subscriptions/cancel", "POST"},

	{"role_seller", "/api/listings", "POST"},
	{"role_seller", "/api/listings/mine", "GET"},
	{"role_seller", "/api/listings/:id", "(PUT)|(DELETE)"},
	{"role_seller", "/api/listings/:id/documents", "(GET)|(POST)"},
	{"role_seller", "/api/offers/:id/accept", "POST"},
	{"role_seller", "/api/offers/:id/reject", "POST"},
	{"role_seller", "/api/offers/:id/counter", "POST"},
}

type CasbinService struct{ E *casbin.Enforcer }

// NewCasbinService builds the enforcer over the casbin_rule table
func NewCasbinService(db *gorm.DB) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}
	E, err := casbin.NewEnforcer(m, adp)
	if err != nil {
		return nil, err
	}
	if err := E.LoadPolicy(); err != nil {
		return nil, err
	}
	return &CasbinService{E}, nil
}

// SeedDefaults installs the default policy set when the table is empty.
// It reports whether anything was written.
func (s *CasbinService) SeedDefaults() (bool, error) {
	existing, err := s.E.GetPolicy()
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if _, err := s.E.AddPolicies(DefaultPolicies); err != nil {
		return false, fmt.Errorf("seed policies: %w", err)
	}
	if _, err := s.E.AddGroupingPolicies(DefaultGroupings); err != nil {
		return false, fmt.Errorf("seed groupings: %w", err)
	}
	return true, nil
}

// Enforce checks whether role may perform method on the route template path
func (s *CasbinService) Enforce(role, path, method string) (bool, error) {
	return s.E.Enforce(Subject(role), path, method)
}
