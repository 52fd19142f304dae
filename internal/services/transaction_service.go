package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
)

// TransactionService drives the escrow workflow. Every operation locks the
// transaction row, checks the caller and the transition table, then writes
// the new state together with its payment and notification rows.
type TransactionService struct {
	txs      domain.TransactionRepository
	payments domain.PaymentRepository
	disputes domain.DisputeRepository
	listings domain.ListingRepository
	users    domain.UserRepository
	tx       domain.TxManager
	gateway  domain.PaymentGateway
	settings *SettingsService
	notifier *NotificationService
	now      func() time.Time
}

func NewTransactionService(
	txs domain.TransactionRepository,
	payments domain.PaymentRepository,
	disputes domain.DisputeRepository,
	listings domain.ListingRepository,
	users domain.UserRepository,
	tx domain.TxManager,
	gateway domain.PaymentGateway,
	settings *SettingsService,
	notifier *NotificationService,
) *TransactionService {
	return &TransactionService{
		txs:      txs,
		payments: payments,
		disputes: disputes,
		listings: listings,
		users:    users,
		tx:       tx,
		gateway:  gateway,
		settings: settings,
		notifier: notifier,
		now:      time.Now,
	}
}

var hundred = decimal.NewFromInt(100)

// DepositFor splits price into the escrow deposit (rounded to cents) and the final payment
func DepositFor(price, percentage decimal.Decimal) (deposit, final decimal.Decimal) {
	deposit = price.Mul(percentage).Div(hundred).Round(2)
	return deposit, price.Sub(deposit)
}

// open creates the escrow record for an accepted offer inside the caller's transaction
func (s *TransactionService) open(ctx context.Context, offer *domain.Offer, price decimal.Decimal) (*domain.Transaction, error) {
	deposit, final := DepositFor(price, s.settings.Decimal(ctx, SettingDepositPercentage))
	t := &domain.Transaction{
		ListingID:     offer.ListingID,
		OfferID:       offer.ID,
		BuyerID:       offer.BuyerID,
		SellerID:      offer.SellerID,
		AgreedPrice:   price,
		DepositAmount: deposit,
		FinalAmount:   final,
		Status:        domain.TxPending,
	}
	if err := s.txs.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return t, nil
}

// step is one state change computed under the row lock
type step struct {
	notices []Notice
}

func (st *step) notify(n Notice) { st.notices = append(st.notices, n) }

// mutate locks the transaction, runs fn and persists the row. Notifications
// queued by fn are recorded in the same database transaction and delivered after commit.
func (s *TransactionService) mutate(ctx context.Context, id uint, fn func(ctx context.Context, t *domain.Transaction, st *step) error) (*domain.Transaction, error) {
	st := &step{}
	var out *domain.Transaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.txs.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, t, st); err != nil {
			return err
		}
		if err := s.txs.Update(ctx, t); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		for _, n := range st.notices {
			if err := s.notifier.Record(ctx, n); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, n := range st.notices {
		s.notifier.Deliver(ctx, n)
	}
	return out, nil
}

// advance moves t to next when the transition table allows it
func advance(t *domain.Transaction, next domain.TransactionState) error {
	if !domain.CanTransition(t.Status, next) {
		return domain.ErrInvalidTransition.WithDetails(map[string]string{
			"status": string(t.Status),
			"target": string(next),
		})
	}
	t.Status = next
	return nil
}

func requireStatus(t *domain.Transaction, allowed ...domain.TransactionState) error {
	for _, a := range allowed {
		if t.Status == a {
			return nil
		}
	}
	return domain.ErrInvalidTransition.WithDetails(map[string]string{"status": string(t.Status)})
}

func requireParticipant(actor domain.Actor, t *domain.Transaction) error {
	if !t.Participant(actor.ID) {
		return domain.ErrForbidden
	}
	return nil
}

func requireBuyer(actor domain.Actor, t *domain.Transaction) error {
	if t.BuyerID != actor.ID {
		return domain.NewForbidden("Only the buyer can perform this action")
	}
	return nil
}

func txLink(id uint) string { return fmt.Sprintf("/transactions/%d", id) }

func updateNotice(userID uint, t *domain.Transaction, title, message string) Notice {
	return Notice{
		UserID:  userID,
		Type:    domain.NotifyTransactionUpdated,
		Title:   title,
		Message: message,
		Link:    txLink(t.ID),
		Email:   true,
	}
}

// notifyParties queues the notice for the buyer and seller except skip
func notifyParties(st *step, t *domain.Transaction, skip uint, title, message string) {
	for _, id := range []uint{t.BuyerID, t.SellerID} {
		if id != skip {
			st.notify(updateNotice(id, t, title, message))
		}
	}
}

// AcceptTerms records the caller's acceptance; once both parties accepted the
// transaction moves to TERMS_ACCEPTED.
func (s *TransactionService) AcceptTerms(ctx context.Context, actor domain.Actor, id uint) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireParticipant(actor, t); err != nil {
			return err
		}
		if err := requireStatus(t, domain.TxPending); err != nil {
			return err
		}
		if actor.ID == t.BuyerID {
			t.BuyerAcceptedTerms = true
		} else {
			t.SellerAcceptedTerms = true
		}
		if t.BuyerAcceptedTerms && t.SellerAcceptedTerms {
			if err := advance(t, domain.TxTermsAccepted); err != nil {
				return err
			}
			notifyParties(st, t, 0, "Terms accepted", "Both parties accepted the terms. The buyer can now pay the deposit.")
		}
		return nil
	})
}

// SubmitDeposit records an off-platform deposit (wire/ACH) awaiting admin verification
func (s *TransactionService) SubmitDeposit(ctx context.Context, actor domain.Actor, id uint, method, reference string) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireBuyer(actor, t); err != nil {
			return err
		}
		if err := requireStatus(t, domain.TxTermsAccepted); err != nil {
			return err
		}
		if err := s.recordPayment(ctx, t, domain.PaymentDeposit, method, reference, t.DepositAmount); err != nil {
			return err
		}
		if err := advance(t, domain.TxDepositPaid); err != nil {
			return err
		}
		notifyParties(st, t, actor.ID, "Deposit submitted", "The buyer submitted the escrow deposit. It will be verified by our team.")
		return nil
	})
}

func (s *TransactionService) recordPayment(ctx context.Context, t *domain.Transaction, kind, method, reference string, amount decimal.Decimal) error {
	if method != domain.PaymentMethodWire && method != domain.PaymentMethodACH {
		return domain.NewValidation("Payment method must be wire or ach")
	}
	txID := t.ID
	return s.payments.Create(ctx, &domain.Payment{
		TransactionID: &txID,
		UserID:        t.BuyerID,
		Kind:          kind,
		Method:        method,
		Amount:        amount,
		Status:        domain.PaymentStatusPending,
		Reference:     reference,
	})
}

// StartCheckout opens a Stripe checkout for the deposit or the final payment
func (s *TransactionService) StartCheckout(ctx context.Context, actor domain.Actor, id uint, kind string) (*domain.CheckoutSession, error) {
	t, err := s.txs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireBuyer(actor, t); err != nil {
		return nil, err
	}

	var amount decimal.Decimal
	var description string
	switch kind {
	case domain.PaymentDeposit:
		if err := requireStatus(t, domain.TxTermsAccepted); err != nil {
			return nil, err
		}
		amount, description = t.DepositAmount, fmt.Sprintf("Escrow deposit for transaction #%d", t.ID)
	case domain.PaymentFinal:
		if err := requireStatus(t, domain.TxApproved); err != nil {
			return nil, err
		}
		amount, description = t.FinalAmount, fmt.Sprintf("Final payment for transaction #%d", t.ID)
	default:
		return nil, domain.NewValidation("Unknown payment kind")
	}

	buyer, err := s.users.FindByID(ctx, t.BuyerID)
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutRequest{
		Mode:          "payment",
		CustomerEmail: buyer.Email,
		CustomerID:    buyer.StripeCustomerID,
		Description:   description,
		Amount:        amount,
		Metadata: map[string]string{
			"kind":           kind,
			"transaction_id": refID(t.ID),
			"user_id":        refID(buyer.ID),
		},
	})
	if err != nil {
		return nil, domain.NewServiceUnavailable("Payment provider unavailable", err)
	}

	txID := t.ID
	if err := s.payments.Create(ctx, &domain.Payment{
		TransactionID:     &txID,
		UserID:            buyer.ID,
		Kind:              kind,
		Method:            domain.PaymentMethodStripe,
		Amount:            amount,
		Status:            domain.PaymentStatusPending,
		CheckoutSessionID: session.ID,
	}); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return session, nil
}

// CompleteCheckout applies a paid escrow checkout reported by the webhook.
// A checkout whose amount differs from the payment row, or that lands while the
// transaction is no longer waiting for it, is parked in review and the admins
// are notified instead of moving the escrow forward.
func (s *TransactionService) CompleteCheckout(ctx context.Context, ev *domain.PaymentEvent) error {
	payment, err := s.payments.FindByCheckoutSession(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	if payment.TransactionID == nil {
		return domain.ErrPaymentNotFound
	}

	_, err = s.mutate(ctx, *payment.TransactionID, func(ctx context.Context, t *domain.Transaction, st *step) error {
		payment, err := s.payments.FindByCheckoutSession(ctx, ev.SessionID)
		if err != nil {
			return err
		}
		if payment.Status != domain.PaymentStatusPending {
			return nil
		}
		payment.PaymentIntentID = ev.PaymentIntentID

		var next domain.TransactionState
		switch {
		case payment.Kind == domain.PaymentDeposit && t.Status == domain.TxTermsAccepted:
			next = domain.TxDepositPaid
		case payment.Kind == domain.PaymentFinal && t.Status == domain.TxApproved:
			next = domain.TxFinalPaymentPaid
		}
		received := decimal.New(ev.AmountTotal, -2)

		if next == "" || !received.Equal(payment.Amount) {
			payment.Status = domain.PaymentStatusReview
			if err := s.payments.Update(ctx, payment); err != nil {
				return err
			}
			slog.WarnContext(ctx, "escrow checkout flagged for review",
				"transaction_id", t.ID, "status", t.Status, "kind", payment.Kind,
				"expected", payment.Amount.StringFixed(2), "received", received.StringFixed(2))
			return s.notifyAdmins(ctx, st, t, fmt.Sprintf(
				"A %s checkout of $%s was paid on transaction #%d while it is %s (expected $%s). Reconcile or refund it.",
				payment.Kind, received.StringFixed(2), t.ID, t.Status, payment.Amount.StringFixed(2)))
		}

		payment.Status = domain.PaymentStatusPaid
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		if err := advance(t, next); err != nil {
			return err
		}
		if next == domain.TxDepositPaid {
			notifyParties(st, t, 0, "Deposit received", "The escrow deposit was paid by card and awaits verification.")
		} else {
			notifyParties(st, t, 0, "Final payment received", "The final payment was paid by card and awaits verification.")
		}
		return nil
	})
	return err
}

// notifyAdmins queues an in-app and email notice for every admin account
func (s *TransactionService) notifyAdmins(ctx context.Context, st *step, t *domain.Transaction, message string) error {
	admins, _, err := s.users.List(ctx, domain.UserFilter{Role: domain.RoleAdmin}, domain.Page{Page: 1, Limit: 100})
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	for _, a := range admins {
		st.notify(Notice{
			UserID:  a.ID,
			Type:    domain.NotifyPaymentReview,
			Title:   "Payment needs review",
			Message: message,
			Link:    txLink(t.ID),
			Email:   true,
		})
	}
	return nil
}

// verifyLatest marks the newest payment of kind as verified by adminID
func (s *TransactionService) verifyLatest(ctx context.Context, t *domain.Transaction, kind string, adminID uint) error {
	payment, err := s.payments.Latest(ctx, t.ID, kind)
	if err != nil {
		return err
	}
	now := s.now()
	payment.Status = domain.PaymentStatusVerified
	payment.VerifiedBy = &adminID
	payment.VerifiedAt = &now
	return s.payments.Update(ctx, payment)
}

// VerifyDeposit is the admin confirmation that escrow holds the deposit
func (s *TransactionService) VerifyDeposit(ctx context.Context, adminID, id uint) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireStatus(t, domain.TxDepositPaid); err != nil {
			return err
		}
		if err := s.verifyLatest(ctx, t, domain.PaymentDeposit, adminID); err != nil {
			return err
		}
		now := s.now()
		t.DepositVerifiedAt = &now
		if err := advance(t, domain.TxDepositVerified); err != nil {
			return err
		}
		notifyParties(st, t, 0, "Deposit verified", "The escrow deposit has been verified. Buyer, seller and our team now approve the transfer.")
		return nil
	})
}

type approvalParty int

const (
	approveAsBuyer approvalParty = iota + 1
	approveAsSeller
	approveAsAdmin
)

// Approve records the caller's approval; buyer, seller and admin approvals move the
// transaction to APPROVED. A participant always approves as that party.
func (s *TransactionService) Approve(ctx context.Context, actor domain.Actor, id uint) (*domain.Transaction, error) {
	return s.approve(ctx, id, func(t *domain.Transaction) (approvalParty, error) {
		switch {
		case actor.ID == t.BuyerID:
			return approveAsBuyer, nil
		case actor.ID == t.SellerID:
			return approveAsSeller, nil
		case actor.IsAdmin():
			return approveAsAdmin, nil
		}
		return 0, domain.ErrForbidden
	})
}

// ApproveAsAdmin records the platform approval regardless of who the participants are
func (s *TransactionService) ApproveAsAdmin(ctx context.Context, id uint) (*domain.Transaction, error) {
	return s.approve(ctx, id, func(*domain.Transaction) (approvalParty, error) {
		return approveAsAdmin, nil
	})
}

func (s *TransactionService) approve(ctx context.Context, id uint, party func(t *domain.Transaction) (approvalParty, error)) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireStatus(t, domain.TxDepositVerified); err != nil {
			return err
		}
		p, err := party(t)
		if err != nil {
			return err
		}
		switch p {
		case approveAsBuyer:
			t.BuyerApproved = true
		case approveAsSeller:
			t.SellerApproved = true
		case approveAsAdmin:
			t.AdminApproved = true
		}
		if t.BuyerApproved && t.SellerApproved && t.AdminApproved {
			if err := advance(t, domain.TxApproved); err != nil {
				return err
			}
			notifyParties(st, t, 0, "Transfer approved", "All approvals are in. The buyer can now send the final payment.")
		}
		return nil
	})
}

// SubmitFinalPayment records the off-platform final payment
func (s *TransactionService) SubmitFinalPayment(ctx context.Context, actor domain.Actor, id uint, method, reference string) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireBuyer(actor, t); err != nil {
			return err
		}
		if err := requireStatus(t, domain.TxApproved); err != nil {
			return err
		}
		if err := s.recordPayment(ctx, t, domain.PaymentFinal, method, reference, t.FinalAmount); err != nil {
			return err
		}
		if err := advance(t, domain.TxFinalPaymentPaid); err != nil {
			return err
		}
		notifyParties(st, t, actor.ID, "Final payment submitted", "The buyer submitted the final payment. It will be verified by our team.")
		return nil
	})
}

// VerifyFinalPayment completes the sale; the listing becomes sold
func (s *TransactionService) VerifyFinalPayment(ctx context.Context, adminID, id uint) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireStatus(t, domain.TxFinalPaymentPaid); err != nil {
			return err
		}
		if err := s.verifyLatest(ctx, t, domain.PaymentFinal, adminID); err != nil {
			return err
		}
		if err := advance(t, domain.TxCompleted); err != nil {
			return err
		}
		now := s.now()
		t.CompletedAt = &now
		if err := s.listings.UpdateStatus(ctx, t.ListingID, domain.ListingSold); err != nil {
			return err
		}
		notifyParties(st, t, 0, "Transaction completed", "The final payment was verified and the sale is complete.")
		return nil
	})
}

// Cancel stops the transaction and puts the listing back on the market. Buyer and
// seller may cancel until the deposit is verified; an admin may cancel any open transaction.
func (s *TransactionService) Cancel(ctx context.Context, actor domain.Actor, id uint, reason string) (*domain.Transaction, error) {
	return s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		switch {
		case actor.IsAdmin():
		case t.Participant(actor.ID):
			if !t.Status.PartyCancellable() {
				return domain.NewForbidden("Only an admin can cancel after the deposit is verified")
			}
		default:
			return domain.ErrForbidden
		}
		if t.Status == domain.TxDisputed {
			if err := s.closeDispute(ctx, t.ID, actor.ID, domain.DisputeOutcomeCancel, reason); err != nil {
				return err
			}
		}
		return s.cancel(ctx, t, st, actor.ID, reason)
	})
}

func (s *TransactionService) cancel(ctx context.Context, t *domain.Transaction, st *step, by uint, reason string) error {
	if err := advance(t, domain.TxCancelled); err != nil {
		return err
	}
	t.CancelReason = reason
	t.CancelledBy = &by
	if err := s.listings.UpdateStatus(ctx, t.ListingID, domain.ListingActive); err != nil {
		return err
	}
	notifyParties(st, t, by, "Transaction cancelled", "The transaction was cancelled. "+reason)
	return nil
}

// OpenDispute freezes the workflow until an admin resolves it
func (s *TransactionService) OpenDispute(ctx context.Context, actor domain.Actor, id uint, reason string) (*domain.Dispute, error) {
	var dispute *domain.Dispute
	_, err := s.mutate(ctx, id, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireParticipant(actor, t); err != nil {
			return err
		}
		existing, err := s.disputes.FindOpenByTransaction(ctx, t.ID)
		if err != nil && !errors.Is(err, domain.ErrDisputeNotFound) {
			return err
		}
		if existing != nil {
			return domain.ErrDisputeExists
		}
		previous := t.Status
		if err := advance(t, domain.TxDisputed); err != nil {
			return err
		}
		t.StatusBeforeDispute = previous

		dispute = &domain.Dispute{
			TransactionID: t.ID,
			RaisedBy:      actor.ID,
			Reason:        reason,
			Status:        domain.DisputeOpen,
		}
		if err := s.disputes.Create(ctx, dispute); err != nil {
			return err
		}
		for _, id := range []uint{t.BuyerID, t.SellerID} {
			if id != actor.ID {
				st.notify(Notice{
					UserID:  id,
					Type:    domain.NotifyDisputeOpened,
					Title:   "Dispute opened",
					Message: "A dispute was opened on your transaction: " + reason,
					Link:    txLink(t.ID),
					Email:   true,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *TransactionService) closeDispute(ctx context.Context, txID, adminID uint, outcome, resolution string) error {
	d, err := s.disputes.FindOpenByTransaction(ctx, txID)
	if errors.Is(err, domain.ErrDisputeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := s.now()
	d.Status = domain.DisputeResolved
	d.Outcome = outcome
	d.Resolution = resolution
	d.ResolvedBy = &adminID
	d.ResolvedAt = &now
	return s.disputes.Update(ctx, d)
}

// ResolveDispute settles a dispute: resume returns the transaction to the state it
// was disputed from, cancel cancels it.
func (s *TransactionService) ResolveDispute(ctx context.Context, adminID, disputeID uint, outcome, resolution string) (*domain.Dispute, error) {
	if outcome != domain.DisputeOutcomeResume && outcome != domain.DisputeOutcomeCancel {
		return nil, domain.NewValidation("Outcome must be resume or cancel")
	}
	d, err := s.disputes.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DisputeOpen {
		return nil, domain.ErrDisputeClosed
	}

	_, err = s.mutate(ctx, d.TransactionID, func(ctx context.Context, t *domain.Transaction, st *step) error {
		if err := requireStatus(t, domain.TxDisputed); err != nil {
			return err
		}
		if err := s.closeDispute(ctx, t.ID, adminID, outcome, resolution); err != nil {
			return err
		}
		for _, id := range []uint{t.BuyerID, t.SellerID} {
			st.notify(Notice{
				UserID:  id,
				Type:    domain.NotifyDisputeResolved,
				Title:   "Dispute resolved",
				Message: resolution,
				Link:    txLink(t.ID),
				Email:   true,
			})
		}
		if outcome == domain.DisputeOutcomeCancel {
			return s.cancel(ctx, t, &step{}, adminID, resolution)
		}
		if err := advance(t, t.StatusBeforeDispute); err != nil {
			return err
		}
		t.StatusBeforeDispute = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.disputes.FindByID(ctx, disputeID)
}

// Get returns a transaction with its payments to a participant or an admin
func (s *TransactionService) Get(ctx context.Context, actor domain.Actor, id uint) (*domain.Transaction, error) {
	t, err := s.txs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !t.Participant(actor.ID) {
		return nil, domain.ErrTransactionNotFound
	}
	return t, nil
}

// List returns the caller's transactions, or all of them for an admin
func (s *TransactionService) List(ctx context.Context, actor domain.Actor, status domain.TransactionState, page domain.Page) ([]domain.Transaction, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, domain.NewValidation("Unknown transaction status")
	}
	filter := domain.TransactionFilter{Status: status}
	if !actor.IsAdmin() {
		filter.ParticipantID = actor.ID
	}
	return s.txs.List(ctx, filter, page)
}

func (s *TransactionService) ListDisputes(ctx context.Context, status string, page domain.Page) ([]domain.Dispute, int64, error) {
	return s.disputes.List(ctx, status, page)
}
