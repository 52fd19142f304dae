package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/mcmarket/domain"
)

func TestDepositFor(t *testing.T) {
	tests := []struct {
		name        string
		price       string
		pct         string
		wantDeposit string
		wantFinal   string
	}{
		{"ten percent", "50000", "10", "5000", "45000"},
		{"rounds to cents", "333.33", "10", "33.33", "300"},
		{"fractional percentage", "1000", "12.5", "125", "875"},
		{"zero percent", "1000", "0", "0", "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deposit, final := DepositFor(decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.pct))
			assert.True(t, deposit.Equal(decimal.RequireFromString(tt.wantDeposit)), "deposit %s", deposit)
			assert.True(t, final.Equal(decimal.RequireFromString(tt.wantFinal)), "final %s", final)
			assert.True(t, deposit.Add(final).Equal(decimal.RequireFromString(tt.price)))
		})
	}
}

// payDeposit moves a fresh transaction to DEPOSIT_PAID with a wire deposit
func payDeposit(t *testing.T, e *testEnv, buyer, seller *domain.User, id uint) {
	t.Helper()
	ctx := context.Background()
	_, err := e.escrow.AcceptTerms(ctx, actorOf(buyer), id)
	require.NoError(t, err)
	_, err = e.escrow.AcceptTerms(ctx, actorOf(seller), id)
	require.NoError(t, err)
	_, err = e.escrow.SubmitDeposit(ctx, actorOf(buyer), id, domain.PaymentMethodWire, "WIRE")
	require.NoError(t, err)
}

func TestTransactionService_HappyPath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	admin := adminActor()

	tx := e.openTransaction(t, buyer, seller, "123456", 50000)
	assert.Equal(t, domain.TxPending, tx.Status)
	assert.True(t, tx.DepositAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, tx.FinalAmount.Equal(decimal.NewFromInt(45000)))

	got, err := e.escrow.AcceptTerms(ctx, actorOf(buyer), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxPending, got.Status, "one acceptance is not enough")

	got, err = e.escrow.AcceptTerms(ctx, actorOf(seller), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxTermsAccepted, got.Status)

	got, err = e.escrow.SubmitDeposit(ctx, actorOf(buyer), tx.ID, domain.PaymentMethodWire, "WIRE-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxDepositPaid, got.Status)

	got, err = e.escrow.VerifyDeposit(ctx, admin.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxDepositVerified, got.Status)
	assert.NotNil(t, got.DepositVerifiedAt)

	for _, a := range []domain.Actor{actorOf(buyer), actorOf(seller)} {
		got, err = e.escrow.Approve(ctx, a, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxDepositVerified, got.Status)
	}
	got, err = e.escrow.Approve(ctx, admin, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxApproved, got.Status)

	got, err = e.escrow.SubmitFinalPayment(ctx, actorOf(buyer), tx.ID, domain.PaymentMethodACH, "ACH-9")
	require.NoError(t, err)
	assert.Equal(t, domain.TxFinalPaymentPaid, got.Status)

	got, err = e.escrow.VerifyFinalPayment(ctx, admin.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	var l domain.Listing
	e.reload(t, &l, tx.ListingID)
	assert.Equal(t, domain.ListingSold, l.Status)

	var verified int64
	e.db.Model(&domain.Payment{}).Where("transaction_id = ? AND status = ?", tx.ID, domain.PaymentStatusVerified).Count(&verified)
	assert.Equal(t, int64(2), verified)
	assert.NotEmpty(t, e.mailer.Sent)
}

func TestTransactionService_ApproveAsAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)

	tx := e.openTransaction(t, buyer, seller, "123457", 20000)
	payDeposit(t, e, buyer, seller, tx.ID)
	_, err := e.escrow.VerifyDeposit(ctx, 999, tx.ID)
	require.NoError(t, err)

	got, err := e.escrow.ApproveAsAdmin(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, got.AdminApproved)
	assert.False(t, got.BuyerApproved, "the platform approval never counts for a participant")
	assert.False(t, got.SellerApproved)
	assert.Equal(t, domain.TxDepositVerified, got.Status)

	_, err = e.escrow.Approve(ctx, domain.Actor{ID: 4242, Role: domain.RoleBuyer}, tx.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	for _, u := range []*domain.User{buyer, seller} {
		got, err = e.escrow.Approve(ctx, actorOf(u), tx.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, domain.TxApproved, got.Status)
}

func TestTransactionService_Guards(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	stranger := e.seedUser(t, "other@example.com", domain.RoleBuyer, 0)
	tx := e.openTransaction(t, buyer, seller, "222222", 10000)

	t.Run("stranger cannot accept terms", func(t *testing.T) {
		_, err := e.escrow.AcceptTerms(ctx, actorOf(stranger), tx.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("deposit before terms", func(t *testing.T) {
		_, err := e.escrow.SubmitDeposit(ctx, actorOf(buyer), tx.ID, domain.PaymentMethodWire, "W")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("seller cannot pay deposit", func(t *testing.T) {
		_, err := e.escrow.SubmitDeposit(ctx, actorOf(seller), tx.ID, domain.PaymentMethodWire, "W")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindForbidden, appErr.Kind)
	})

	t.Run("verify deposit out of order", func(t *testing.T) {
		_, err := e.escrow.VerifyDeposit(ctx, 999, tx.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		_, err := e.escrow.AcceptTerms(ctx, actorOf(buyer), tx.ID)
		require.NoError(t, err)
		_, err = e.escrow.AcceptTerms(ctx, actorOf(seller), tx.ID)
		require.NoError(t, err)

		_, err = e.escrow.SubmitDeposit(ctx, actorOf(buyer), tx.ID, "cash", "")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindValidation, appErr.Kind)

		var stored domain.Transaction
		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxTermsAccepted, stored.Status, "failed step must roll back")
	})

	t.Run("non participant cannot read", func(t *testing.T) {
		_, err := e.escrow.Get(ctx, actorOf(stranger), tx.ID)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

		got, err := e.escrow.Get(ctx, adminActor(), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, got.ID)
	})

	t.Run("list is scoped to participant", func(t *testing.T) {
		items, total, err := e.escrow.List(ctx, actorOf(stranger), "", domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, items)

		_, total, err = e.escrow.List(ctx, actorOf(buyer), domain.TxTermsAccepted, domain.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		_, _, err = e.escrow.List(ctx, actorOf(buyer), "BOGUS", domain.Page{})
		assert.Error(t, err)
	})
}

func TestTransactionService_Checkout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	tx := e.openTransaction(t, buyer, seller, "333333", 20000)

	_, err := e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, domain.PaymentDeposit)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "terms not yet accepted")

	_, err = e.escrow.AcceptTerms(ctx, actorOf(buyer), tx.ID)
	require.NoError(t, err)
	_, err = e.escrow.AcceptTerms(ctx, actorOf(seller), tx.ID)
	require.NoError(t, err)

	session, err := e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, domain.PaymentDeposit)
	require.NoError(t, err)
	require.Len(t, e.gateway.Requests, 1)
	req := e.gateway.Requests[0]
	assert.Equal(t, domain.PaymentDeposit, req.Metadata["kind"])
	assert.Equal(t, refID(tx.ID), req.Metadata["transaction_id"])
	assert.True(t, req.Amount.Equal(decimal.NewFromInt(2000)))

	ev := &domain.PaymentEvent{ID: "evt_1", Type: domain.EventCheckoutCompleted, SessionID: session.ID, PaymentIntentID: "pi_1", AmountTotal: 200000}
	require.NoError(t, e.escrow.CompleteCheckout(ctx, ev))

	var stored domain.Transaction
	e.reload(t, &stored, tx.ID)
	assert.Equal(t, domain.TxDepositPaid, stored.Status)

	// a replayed event leaves the state alone
	require.NoError(t, e.escrow.CompleteCheckout(ctx, ev))
	e.reload(t, &stored, tx.ID)
	assert.Equal(t, domain.TxDepositPaid, stored.Status)

	p, err := e.payments.FindByCheckoutSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, p.Status)
	assert.Equal(t, "pi_1", p.PaymentIntentID)

	_, err = e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, "tip")
	assert.Error(t, err)
}

func TestTransactionService_CheckoutNeedsReview(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)
	admin := e.seedUser(t, "admin@example.com", domain.RoleAdmin, 0)

	acceptedTx := func(t *testing.T, mc string) *domain.Transaction {
		tx := e.openTransaction(t, buyer, seller, mc, 20000)
		_, err := e.escrow.AcceptTerms(ctx, actorOf(buyer), tx.ID)
		require.NoError(t, err)
		_, err = e.escrow.AcceptTerms(ctx, actorOf(seller), tx.ID)
		require.NoError(t, err)
		return tx
	}

	t.Run("amount mismatch", func(t *testing.T) {
		tx := acceptedTx(t, "777001")
		session, err := e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, domain.PaymentDeposit)
		require.NoError(t, err)

		require.NoError(t, e.escrow.CompleteCheckout(ctx, &domain.PaymentEvent{
			ID: "evt_short", Type: domain.EventCheckoutCompleted, SessionID: session.ID, AmountTotal: 150000,
		}))

		var stored domain.Transaction
		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxTermsAccepted, stored.Status, "escrow does not advance on a short payment")

		p, err := e.payments.FindByCheckoutSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusReview, p.Status)
		assert.Equal(t, int64(1), countRows(t, e.db, &domain.Notification{}, "user_id = ? AND type = ?", admin.ID, domain.NotifyPaymentReview))
	})

	t.Run("second deposit after the first was paid", func(t *testing.T) {
		tx := acceptedTx(t, "777002")
		first, err := e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, domain.PaymentDeposit)
		require.NoError(t, err)
		second, err := e.escrow.StartCheckout(ctx, actorOf(buyer), tx.ID, domain.PaymentDeposit)
		require.NoError(t, err)

		require.NoError(t, e.escrow.CompleteCheckout(ctx, &domain.PaymentEvent{
			ID: "evt_a", Type: domain.EventCheckoutCompleted, SessionID: first.ID, AmountTotal: 200000,
		}))
		require.NoError(t, e.escrow.CompleteCheckout(ctx, &domain.PaymentEvent{
			ID: "evt_b", Type: domain.EventCheckoutCompleted, SessionID: second.ID, AmountTotal: 200000,
		}))

		var stored domain.Transaction
		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxDepositPaid, stored.Status)

		p1, err := e.payments.FindByCheckoutSession(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, p1.Status)
		p2, err := e.payments.FindByCheckoutSession(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusReview, p2.Status)
		assert.Equal(t, int64(2), countRows(t, e.db, &domain.Notification{}, "user_id = ? AND type = ?", admin.ID, domain.NotifyPaymentReview))

		// redelivery leaves the reviewed payment alone
		require.NoError(t, e.escrow.CompleteCheckout(ctx, &domain.PaymentEvent{
			ID: "evt_b", Type: domain.EventCheckoutCompleted, SessionID: second.ID, AmountTotal: 200000,
		}))
		assert.Equal(t, int64(2), countRows(t, e.db, &domain.Notification{}, "user_id = ? AND type = ?", admin.ID, domain.NotifyPaymentReview))
	})
}

func TestTransactionService_Cancel(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)

	t.Run("party cancels before verification", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "444444", 1000)
		got, err := e.escrow.Cancel(ctx, actorOf(seller), tx.ID, "changed my mind")
		require.NoError(t, err)
		assert.Equal(t, domain.TxCancelled, got.Status)
		assert.Equal(t, "changed my mind", got.CancelReason)
		require.NotNil(t, got.CancelledBy)
		assert.Equal(t, seller.ID, *got.CancelledBy)

		var l domain.Listing
		e.reload(t, &l, tx.ListingID)
		assert.Equal(t, domain.ListingActive, l.Status, "listing goes back on the market")

		_, err = e.escrow.Cancel(ctx, adminActor(), tx.ID, "again")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("only admin cancels after verification", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "555555", 1000)
		payDeposit(t, e, buyer, seller, tx.ID)
		_, err := e.escrow.VerifyDeposit(ctx, 999, tx.ID)
		require.NoError(t, err)

		_, err = e.escrow.Cancel(ctx, actorOf(buyer), tx.ID, "nope")
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindForbidden, appErr.Kind)

		got, err := e.escrow.Cancel(ctx, adminActor(), tx.ID, "fraud check")
		require.NoError(t, err)
		assert.Equal(t, domain.TxCancelled, got.Status)
	})
}

func TestTransactionService_Disputes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	buyer := e.seedUser(t, "buyer@example.com", domain.RoleBuyer, 0)
	seller := e.seedUser(t, "seller@example.com", domain.RoleSeller, 0)

	t.Run("resume returns to previous state", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "666666", 1000)
		payDeposit(t, e, buyer, seller, tx.ID)

		_, err := e.escrow.OpenDispute(ctx, actorOf(buyer), 0, "missing")
		assert.Error(t, err)

		d, err := e.escrow.OpenDispute(ctx, actorOf(buyer), tx.ID, "documents missing")
		require.NoError(t, err)
		assert.Equal(t, domain.DisputeOpen, d.Status)

		var stored domain.Transaction
		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxDisputed, stored.Status)
		assert.Equal(t, domain.TxDepositPaid, stored.StatusBeforeDispute)

		_, err = e.escrow.OpenDispute(ctx, actorOf(seller), tx.ID, "again")
		assert.ErrorIs(t, err, domain.ErrDisputeExists)

		_, err = e.escrow.VerifyDeposit(ctx, 999, tx.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "disputed transactions are frozen")

		resolved, err := e.escrow.ResolveDispute(ctx, 999, d.ID, domain.DisputeOutcomeResume, "documents received")
		require.NoError(t, err)
		assert.Equal(t, domain.DisputeResolved, resolved.Status)
		assert.Equal(t, domain.DisputeOutcomeResume, resolved.Outcome)

		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxDepositPaid, stored.Status)
		assert.Empty(t, stored.StatusBeforeDispute)

		_, err = e.escrow.ResolveDispute(ctx, 999, d.ID, domain.DisputeOutcomeResume, "twice")
		assert.ErrorIs(t, err, domain.ErrDisputeClosed)
	})

	t.Run("cancel outcome", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "777777", 1000)
		payDeposit(t, e, buyer, seller, tx.ID)
		d, err := e.escrow.OpenDispute(ctx, actorOf(seller), tx.ID, "buyer unresponsive")
		require.NoError(t, err)

		_, err = e.escrow.ResolveDispute(ctx, 999, d.ID, "refund", "x")
		assert.Error(t, err)

		_, err = e.escrow.ResolveDispute(ctx, 999, d.ID, domain.DisputeOutcomeCancel, "cancelled by support")
		require.NoError(t, err)

		var stored domain.Transaction
		e.reload(t, &stored, tx.ID)
		assert.Equal(t, domain.TxCancelled, stored.Status)

		var l domain.Listing
		e.reload(t, &l, tx.ListingID)
		assert.Equal(t, domain.ListingActive, l.Status)
	})

	t.Run("cancelling a disputed transaction closes the dispute", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "888888", 1000)
		payDeposit(t, e, buyer, seller, tx.ID)
		d, err := e.escrow.OpenDispute(ctx, actorOf(buyer), tx.ID, "price")
		require.NoError(t, err)

		_, err = e.escrow.Cancel(ctx, adminActor(), tx.ID, "settled")
		require.NoError(t, err)

		got, err := e.disputes.FindByID(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DisputeResolved, got.Status)
		assert.Equal(t, domain.DisputeOutcomeCancel, got.Outcome)
	})

	t.Run("pending transactions cannot be disputed", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "121212", 1000)
		_, err := e.escrow.OpenDispute(ctx, actorOf(buyer), tx.ID, "too early")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("stranger cannot dispute", func(t *testing.T) {
		tx := e.openTransaction(t, buyer, seller, "999999", 1000)
		_, err := e.escrow.OpenDispute(ctx, domain.Actor{ID: 4242, Role: domain.RoleBuyer}, tx.ID, "x")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	items, _, err := e.escrow.ListDisputes(ctx, domain.DisputeResolved, domain.Page{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
