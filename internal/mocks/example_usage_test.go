package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/mocks"
)

// Function fields override the defaults; unset fields fall back to them
func TestMockUserRepository_Defaults(t *testing.T) {
	ctx := context.Background()
	repo := mocks.NewMockUserRepository()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	repo.FindByIDFunc = func(ctx context.Context, id uint) (*domain.User, error) {
		return &domain.User{ID: id, Role: domain.RoleBuyer}, nil
	}
	u, err := repo.FindByIDForUpdate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), u.ID, "FindByIDForUpdate falls back to FindByID")
}

func TestMockTxManager_PropagatesErrors(t *testing.T) {
	tx := mocks.NewMockTxManager()
	boom := errors.New("boom")

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, tx.Calls)
}

func TestMockCasbinEnforcer(t *testing.T) {
	tests := []struct {
		name     string
		sub      string
		obj      string
		act      string
		expected bool
	}{
		{"admin wildcard", "role_admin", "/api/admin/users", "DELETE", true},
		{"seller creates listing", "role_seller", "/api/listings", "POST", true},
		{"buyer cannot create listing", "role_buyer", "/api/listings", "POST", false},
		{"buyer unlocks", "role_buyer", "/api/listings/:id/unlock", "POST", true},
		{"method must match fully", "role_seller", "/api/listings", "POSTX", false},
	}

	e := mocks.NewMockCasbinEnforcer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.Enforce(tt.sub, tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}

	added, _ := e.AddPolicy("role_buyer", "/api/listings", "POST")
	assert.True(t, added)
	added, _ = e.AddPolicy("role_buyer", "/api/listings", "POST")
	assert.False(t, added, "duplicate policies are not added twice")

	removed, _ := e.RemovePolicy("role_buyer", "/api/listings", "POST")
	assert.True(t, removed)
}

func TestMockPaymentGateway_RecordsRequests(t *testing.T) {
	gw := mocks.NewMockPaymentGateway()
	s1, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{Mode: "payment"})
	require.NoError(t, err)
	s2, _ := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{Mode: "subscription"})

	assert.NotEqual(t, s1.ID, s2.ID)
	require.Len(t, gw.Requests, 2)
	assert.Equal(t, "subscription", gw.Requests[1].Mode)
}
