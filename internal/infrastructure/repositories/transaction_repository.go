package repositories

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/you/mcmarket/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionRepositoryImpl implements domain.TransactionRepository using GORM
type TransactionRepositoryImpl struct {
	base
}

// NewTransactionRepository creates a new escrow transaction repository
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &TransactionRepositoryImpl{base{db: db}}
}

func (r *TransactionRepositoryImpl) Create(ctx context.Context, tx *domain.Transaction) error {
	return r.conn(ctx).Omit(clause.Associations).Create(tx).Error
}

func (r *TransactionRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.conn(ctx).
		Preload("Listing").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&tx, id).Error
	if err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) FindByIDForUpdate(ctx context.Context, id uint) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := forUpdate(r.conn(ctx)).First(&tx, id).Error; err != nil {
		return nil, notFound(err, domain.ErrTransactionNotFound)
	}
	return &tx, nil
}

func (r *TransactionRepositoryImpl) Update(ctx context.Context, tx *domain.Transaction) error {
	return r.conn(ctx).Omit(clause.Associations).Save(tx).Error
}

func (r *TransactionRepositoryImpl) List(ctx context.Context, filter domain.TransactionFilter, page domain.Page) ([]domain.Transaction, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.ParticipantID != 0 {
			db = db.Where("(buyer_id = ? OR seller_id = ?)", filter.ParticipantID, filter.ParticipantID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		return db
	}
	return findPage[domain.Transaction](r.conn(ctx), scope, "created_at DESC", page, "Listing")
}

func (r *TransactionRepositoryImpl) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countBy(r.conn(ctx), &domain.Transaction{}, "status")
}

// CompletedVolume sums the agreed price of completed sales
func (r *TransactionRepositoryImpl) CompletedVolume(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.conn(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(agreed_price), 0)").
		Where("status = ?", domain.TxCompleted).
		Row().Scan(&total)
	return total, err
}

// PaymentRepositoryImpl implements domain.PaymentRepository using GORM
type PaymentRepositoryImpl struct {
	base
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) domain.PaymentRepository {
	return &PaymentRepositoryImpl{base{db: db}}
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, payment *domain.Payment) error {
	return r.conn(ctx).Create(payment).Error
}

func (r *PaymentRepositoryImpl) Update(ctx context.Context, payment *domain.Payment) error {
	return r.conn(ctx).Save(payment).Error
}

func (r *PaymentRepositoryImpl) FindByCheckoutSession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := r.conn(ctx).Where("checkout_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound)
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) FindByInvoice(ctx context.Context, invoiceID string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := r.conn(ctx).Where("invoice_id = ?", invoiceID).First(&payment).Error; err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound)
	}
	return &payment, nil
}

func (r *PaymentRepositoryImpl) Latest(ctx context.Context, transactionID uint, kind string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.conn(ctx).
		Where("transaction_id = ? AND kind = ?", transactionID, kind).
		Order("created_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		return nil, notFound(err, domain.ErrPaymentNotFound)
	}
	return &payment, nil
}

// DisputeRepositoryImpl implements domain.DisputeRepository using GORM
type DisputeRepositoryImpl struct {
	base
}

// NewDisputeRepository creates a new dispute repository
func NewDisputeRepository(db *gorm.DB) domain.DisputeRepository {
	return &DisputeRepositoryImpl{base{db: db}}
}

func (r *DisputeRepositoryImpl) Create(ctx context.Context, dispute *domain.Dispute) error {
	return r.conn(ctx).Create(dispute).Error
}

func (r *DisputeRepositoryImpl) FindByID(ctx context.Context, id uint) (*domain.Dispute, error) {
	var dispute domain.Dispute
	if err := r.conn(ctx).First(&dispute, id).Error; err != nil {
		return nil, notFound(err, domain.ErrDisputeNotFound)
	}
	return &dispute, nil
}

func (r *DisputeRepositoryImpl) FindOpenByTransaction(ctx context.Context, transactionID uint) (*domain.Dispute, error) {
	var dispute domain.Dispute
	err := r.conn(ctx).Where("transaction_id = ? AND status = ?", transactionID, domain.DisputeOpen).First(&dispute).Error
	if err != nil {
		return nil, notFound(err, domain.ErrDisputeNotFound)
	}
	return &dispute, nil
}

func (r *DisputeRepositoryImpl) Update(ctx context.Context, dispute *domain.Dispute) error {
	return r.conn(ctx).Save(dispute).Error
}

func (r *DisputeRepositoryImpl) List(ctx context.Context, status string, page domain.Page) ([]domain.Dispute, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}
	return findPage[domain.Dispute](r.conn(ctx), scope, "created_at DESC", page)
}

func (r *DisputeRepositoryImpl) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&domain.Dispute{}).Where("status = ?", domain.DisputeOpen).Count(&count).Error
	return count, err
}
