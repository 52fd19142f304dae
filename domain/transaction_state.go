package domain

// TransactionState is the escrow workflow status.
type TransactionState string

const (
	TxPending          TransactionState = "PENDING"
	TxTermsAccepted    TransactionState = "TERMS_ACCEPTED"
	TxDepositPaid      TransactionState = "DEPOSIT_PAID"
	TxDepositVerified  TransactionState = "DEPOSIT_VERIFIED"
	TxApproved         TransactionState = "APPROVED"
	TxFinalPaymentPaid TransactionState = "FINAL_PAYMENT_PAID"
	TxCompleted        TransactionState = "COMPLETED"
	TxCancelled        TransactionState = "CANCELLED"
	TxDisputed         TransactionState = "DISPUTED"
)

var transactionTransitions = map[TransactionState][]TransactionState{
	TxPending:          {TxTermsAccepted, TxCancelled},
	TxTermsAccepted:    {TxDepositPaid, TxCancelled},
	TxDepositPaid:      {TxDepositVerified, TxCancelled, TxDisputed},
	TxDepositVerified:  {TxApproved, TxCancelled, TxDisputed},
	TxApproved:         {TxFinalPaymentPaid, TxCancelled, TxDisputed},
	TxFinalPaymentPaid: {TxCompleted, TxCancelled, TxDisputed},
	// a resolved dispute either resumes the interrupted step or cancels
	TxDisputed: {TxDepositPaid, TxDepositVerified, TxApproved, TxFinalPaymentPaid, TxCancelled},
}

// CanTransition reports whether the workflow permits moving from one state to another.
func CanTransition(from, to TransactionState) bool {
	for _, next := range transactionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s TransactionState) Terminal() bool {
	return s == TxCompleted || s == TxCancelled
}

// PartyCancellable reports whether a buyer or seller may still cancel without an admin.
// Once the deposit has been verified only an admin can cancel.
func (s TransactionState) PartyCancellable() bool {
	return s == TxPending || s == TxTermsAccepted || s == TxDepositPaid
}

// Valid reports whether s is a known state.
func (s TransactionState) Valid() bool {
	switch s {
	case TxPending, TxTermsAccepted, TxDepositPaid, TxDepositVerified, TxApproved,
		TxFinalPaymentPaid, TxCompleted, TxCancelled, TxDisputed:
		return true
	}
	return false
}
