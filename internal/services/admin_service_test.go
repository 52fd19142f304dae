package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
)

func adminLogCount(t *testing.T, e *testEnv, action domain.AdminAction) int64 {
	t.Helper()
	_, total, err := e.admin.Actions(context.Background(), domain.AdminLogFilter{Action: string(action)}, domain.Page{Page: 1, Limit: 50})
	require.NoError(t, err)
	return total
}

func TestAdminService_Users(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	by := Admin{ID: 1, IP: "10.0.0.1"}
	admin := e.seedUser(t, "admin@example.com", domain.RoleAdmin, 0)
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 2)

	_, err := e.admin.SuspendUser(ctx, by, admin.ID, "test")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindForbidden, appErr.Kind)

	require.NoError(t, e.tokens.CreateRefreshToken(ctx, &domain.RefreshToken{UserID: buyer.ID, SessionID: "s1", TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}))

	u, err := e.admin.SuspendUser(ctx, by, buyer.ID, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusSuspended, u.Status)

	stored, err := e.tokens.FindRefreshTokenByHash(ctx, "h1")
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt, "suspension revokes refresh tokens")

	u, err = e.admin.ActivateUser(ctx, by, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusActive, u.Status)

	entry, err := e.admin.AdjustCredits(ctx, by, buyer.ID, 3, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.BalanceAfter)

	_, err = e.admin.AdjustCredits(ctx, by, buyer.ID, -10, "too much")
	assert.Error(t, err)

	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionUserSuspended))
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionUserActivated))
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionCreditsAdjusted), "failed mutations are not logged")

	logs, _, err := e.admin.Actions(ctx, domain.AdminLogFilter{Action: string(domain.ActionUserSuspended)}, domain.Page{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.Contains(t, logs[0].Details, "chargeback")

	users, total, err := e.admin.ListUsers(ctx, domain.UserFilter{Role: domain.RoleBuyer}, domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, buyer.ID, users[0].ID)
}

func TestAdminService_ListingsAndTransactions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.seedUser(t, "admin@example.com", domain.RoleAdmin, 0)
	by := Admin{ID: admin.ID}
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	pending := e.seedListing(t, seller.ID, "765432", domain.ListingPending, 1000)

	_, err := e.admin.ApproveListing(ctx, by, pending.ID)
	require.NoError(t, err)
	_, err = e.admin.FeatureListing(ctx, by, pending.ID, true)
	require.NoError(t, err)
	results, err := e.admin.ShareListing(ctx, by, pending.ID, []string{"twitter"}, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "twitter_post_1", results[0].PostID)

	tx := e.openTransaction(t, buyer, seller, "765433", 10000)
	payDeposit(t, e, buyer, seller, tx.ID)
	_, err = e.admin.VerifyDeposit(ctx, by, tx.ID)
	require.NoError(t, err)
	_, err = e.escrow.Approve(ctx, actorOf(buyer), tx.ID)
	require.NoError(t, err)
	_, err = e.escrow.Approve(ctx, actorOf(seller), tx.ID)
	require.NoError(t, err)
	got, err := e.admin.ApproveTransaction(ctx, by, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.AdminApproved)
	assert.Equal(t, domain.TxApproved, got.Status)

	_, err = e.escrow.SubmitFinalPayment(ctx, actorOf(buyer), tx.ID, domain.PaymentMethodWire, "W2")
	require.NoError(t, err)
	got, err = e.admin.VerifyFinalPayment(ctx, by, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, got.Status)

	dash, err := e.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.UsersByRole[domain.RoleBuyer])
	assert.Equal(t, int64(1), dash.TransactionsByStatus[string(domain.TxCompleted)])
	assert.True(t, dash.CompletedVolume.Equal(decimal.NewFromInt(10000)))
	assert.Zero(t, dash.OpenDisputes)

	for _, a := range []domain.AdminAction{
		domain.ActionListingApproved, domain.ActionListingFeatured, domain.ActionListingShared,
		domain.ActionDepositVerified, domain.ActionTransactionApproved, domain.ActionFinalVerified,
	} {
		assert.Equal(t, int64(1), adminLogCount(t, e, a), string(a))
	}

	all, total, err := e.admin.ListTransactions(ctx, by, "", domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, all, 1)
}

func TestAdminService_DisputesAndSettings(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	by := Admin{ID: 1}
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	tx := e.openTransaction(t, buyer, seller, "135790", 10000)
	payDeposit(t, e, buyer, seller, tx.ID)

	d, err := e.escrow.OpenDispute(ctx, actorOf(seller), tx.ID, "wire bounced")
	require.NoError(t, err)

	dash, err := e.admin.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.OpenDisputes)

	resolved, err := e.admin.ResolveDispute(ctx, by, d.ID, domain.DisputeOutcomeCancel, "refund issued")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, resolved.TransactionID)
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionDisputeResolved))

	_, err = e.admin.UpdateSetting(ctx, by, SettingDepositPercentage, "150")
	assert.Error(t, err)
	_, err = e.admin.UpdateSetting(ctx, by, "unknown_key", "1")
	assert.ErrorIs(t, err, domain.ErrSettingNotFound)
	_, err = e.admin.UpdateSetting(ctx, by, SettingDepositPercentage, "15")
	require.NoError(t, err)
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionSettingUpdated))

	settings, err := e.admin.Settings(ctx)
	require.NoError(t, err)
	values := map[string]string{}
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	assert.Equal(t, "15", values[SettingDepositPercentage])
	assert.Equal(t, "1", values[SettingUnlockCost], "defaults are listed")

	next := e.openTransaction(t, buyer, seller, "135791", 10000)
	assert.True(t, next.DepositAmount.Equal(decimal.NewFromInt(1500)), "new deposit percentage applies")
}

func TestAdminService_ConsultationsAndPolicies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	by := Admin{ID: 1}

	c, err := e.consultations.Create(ctx, ConsultationInput{Name: "Pat", Email: "pat@example.com"})
	require.NoError(t, err)

	status := domain.ConsultationContacted
	notes := "called back"
	updated, err := e.admin.UpdateConsultation(ctx, by, c.ID, &status, &notes)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationContacted, updated.Status)
	assert.Equal(t, "called back", updated.Notes)
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionConsultationUpdated))

	p := Policy{Role: "seller", Path: "/api/listings/:id/share", Method: "POST"}
	require.NoError(t, e.admin.AddPolicy(ctx, by, p))
	assert.ErrorIs(t, e.admin.AddPolicy(ctx, by, p), domain.ErrPolicyExists)

	policies, err := e.admin.Policies()
	require.NoError(t, err)
	assert.Contains(t, policies, p)

	require.NoError(t, e.admin.RemovePolicy(ctx, by, p))
	assert.ErrorIs(t, e.admin.RemovePolicy(ctx, by, p), domain.ErrPolicyNotFound)
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionPolicyAdded))
	assert.Equal(t, int64(1), adminLogCount(t, e, domain.ActionPolicyRemoved))
}
