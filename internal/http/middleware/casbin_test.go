package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/internal/infrastructure/auth"
	"github.com/you/mcmarket/internal/mocks"
)

// createTestEnforcer builds an in-memory enforcer holding the default policy set
func createTestEnforcer(t *testing.T) *casbin.Enforcer {
	t.Helper()
	modelText := `
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
	m, err := model.NewModelFromString(modelText)
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = e.AddPolicies(auth.DefaultPolicies)
	require.NoError(t, err)
	_, err = e.AddGroupingPolicies(auth.DefaultGroupings)
	require.NoError(t, err)
	return e
}

func TestCasbinMW_Enforce(t *testing.T) {
	enforcer := createTestEnforcer(t)

	tests := []struct {
		name           string
		role           string
		method         string
		route          string
		target         string
		expectedStatus int
	}{
		{"no role in context", "", http.MethodGet, "/api/offers", "/api/offers", http.StatusUnauthorized},
		{"seller creates listing", "seller", http.MethodPost, "/api/listings", "/api/listings", http.StatusOK},
		{"buyer cannot create listing", "buyer", http.MethodPost, "/api/listings", "/api/listings", http.StatusForbidden},
		{"buyer unlocks listing", "buyer", http.MethodPost, "/api/listings/:id/unlock", "/api/listings/7/unlock", http.StatusOK},
		{"seller cannot unlock", "seller", http.MethodPost, "/api/listings/:id/unlock", "/api/listings/7/unlock", http.StatusForbidden},
		{"member route via grouping", "buyer", http.MethodGet, "/api/transactions/:id", "/api/transactions/3", http.StatusOK},
		{"seller deposit denied", "seller", http.MethodPost, "/api/transactions/:id/deposit", "/api/transactions/3/deposit", http.StatusForbidden},
		{"admin reaches back office", "admin", http.MethodDelete, "/api/admin/policies", "/api/admin/policies", http.StatusOK},
		{"buyer kept out of back office", "buyer", http.MethodGet, "/api/admin/users", "/api/admin/users", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler(false))
			r.Handle(tt.method, tt.route, func(c *gin.Context) {
				if tt.role != "" {
					c.Set(KeyUserRole, tt.role)
				}
				c.Next()
			}, NewCasbinMW(enforcer).Enforce(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestCasbinMW_EnforcerError(t *testing.T) {
	enforcer := mocks.NewMockCasbinEnforcer()
	enforcer.EnforceFunc = func(rvals ...interface{}) (bool, error) {
		return false, errors.New("adapter down")
	}

	r := gin.New()
	r.Use(ErrorHandler(true))
	r.GET("/api/offers", func(c *gin.Context) {
		c.Set(KeyUserRole, "buyer")
	}, NewCasbinMW(enforcer).Enforce(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/offers", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "Internal server error", env.Error.Message)
}
