package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/you/mcmarket/domain"
)

// Admin identifies the administrator behind a mutating call
type Admin struct {
	ID uint
	IP string
}

func (a Admin) actor() domain.Actor { return domain.Actor{ID: a.ID, Role: domain.RoleAdmin} }

func (a Admin) event(action domain.AdminAction, targetType string, targetID uint) *domain.AdminEvent {
	return domain.NewAdminEvent(a.ID, action, targetType, targetID).WithIP(a.IP)
}

// Dashboard summarises platform activity
type Dashboard struct {
	UsersByRole          map[string]int64 `json:"usersByRole"`
	ListingsByStatus     map[string]int64 `json:"listingsByStatus"`
	TransactionsByStatus map[string]int64 `json:"transactionsByStatus"`
	CompletedVolume      decimal.Decimal  `json:"completedVolume"`
	OpenDisputes         int64            `json:"openDisputes"`
}

// AdminService is the back office. Every mutation is recorded in the admin action log.
type AdminService struct {
	users         domain.UserRepository
	tokens        domain.TokenRepository
	sessions      domain.SessionRepository
	listingRepo   domain.ListingRepository
	txRepo        domain.TransactionRepository
	disputes      domain.DisputeRepository
	actions       domain.AdminLogRepository
	listings      *ListingService
	escrow        *TransactionService
	credits       *CreditService
	settings      *SettingsService
	marketing     *MarketingService
	consultations *ConsultationService
	policies      *PolicyService
}

// AdminDeps groups the collaborators of AdminService
type AdminDeps struct {
	Users         domain.UserRepository
	Tokens        domain.TokenRepository
	Sessions      domain.SessionRepository
	Listings      domain.ListingRepository
	Transactions  domain.TransactionRepository
	Disputes      domain.DisputeRepository
	Actions       domain.AdminLogRepository
	ListingSvc    *ListingService
	Escrow        *TransactionService
	Credits       *CreditService
	Settings      *SettingsService
	Marketing     *MarketingService
	Consultations *ConsultationService
	Policies      *PolicyService
}

func NewAdminService(d AdminDeps) *AdminService {
	return &AdminService{
		users:         d.Users,
		tokens:        d.Tokens,
		sessions:      d.Sessions,
		listingRepo:   d.Listings,
		txRepo:        d.Transactions,
		disputes:      d.Disputes,
		actions:       d.Actions,
		listings:      d.ListingSvc,
		escrow:        d.Escrow,
		credits:       d.Credits,
		settings:      d.Settings,
		marketing:     d.Marketing,
		consultations: d.Consultations,
		policies:      d.Policies,
	}
}

// audit persists ev. The mutation has already happened, so a failed write is logged, not returned.
func (s *AdminService) audit(ctx context.Context, ev *domain.AdminEvent) {
	entry := ev.Log()
	if err := s.actions.Create(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to write admin action log", "action", entry.Action, "admin_id", entry.AdminID, "error", err)
		return
	}
	slog.InfoContext(ctx, "admin action", "action", entry.Action, "admin_id", entry.AdminID,
		"target_type", entry.TargetType, "target_id", entry.TargetID)
}

func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{}
	var err error
	if d.UsersByRole, err = s.users.CountByRole(ctx); err != nil {
		return nil, err
	}
	if d.ListingsByStatus, err = s.listingRepo.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if d.TransactionsByStatus, err = s.txRepo.CountByStatus(ctx); err != nil {
		return nil, err
	}
	if d.CompletedVolume, err = s.txRepo.CompletedVolume(ctx); err != nil {
		return nil, err
	}
	if d.OpenDisputes, err = s.disputes.CountOpen(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Users

func (s *AdminService) ListUsers(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]domain.User, int64, error) {
	return s.users.List(ctx, filter, page)
}

func (s *AdminService) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// SuspendUser blocks an account and ends all of its sessions
func (s *AdminService) SuspendUser(ctx context.Context, by Admin, id uint, reason string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return nil, domain.NewForbidden("Administrators cannot be suspended")
	}
	user.Status = domain.UserStatusSuspended
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeAllRefreshTokens(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "failed to delete sessions of suspended user", "user_id", user.ID, "error", err)
	}
	s.audit(ctx, by.event(domain.ActionUserSuspended, domain.TargetUser, user.ID).WithMetadata("reason", reason))
	return user, nil
}

func (s *AdminService) ActivateUser(ctx context.Context, by Admin, id uint) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Status = domain.UserStatusActive
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionUserActivated, domain.TargetUser, user.ID))
	return user, nil
}

func (s *AdminService) AdjustCredits(ctx context.Context, by Admin, userID uint, delta int, reason string) (*domain.CreditTransaction, error) {
	entry, err := s.credits.Adjust(ctx, by.ID, userID, delta, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionCreditsAdjusted, domain.TargetUser, userID).
		WithMetadata("delta", delta).
		WithMetadata("reason", reason).
		WithMetadata("balance_after", entry.BalanceAfter))
	return entry, nil
}

// Listings

func (s *AdminService) ListListings(ctx context.Context, filter domain.ListingFilter, page domain.Page) ([]domain.Listing, int64, error) {
	return s.listings.AdminList(ctx, filter, page)
}

func (s *AdminService) PendingListings(ctx context.Context, page domain.Page) ([]domain.Listing, int64, error) {
	return s.listings.PendingReview(ctx, page)
}

func (s *AdminService) ApproveListing(ctx context.Context, by Admin, id uint) (*domain.Listing, error) {
	l, err := s.listings.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionListingApproved, domain.TargetListing, id))
	return l, nil
}

func (s *AdminService) RejectListing(ctx context.Context, by Admin, id uint, reason string) (*domain.Listing, error) {
	l, err := s.listings.Reject(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionListingRejected, domain.TargetListing, id).WithMetadata("reason", reason))
	return l, nil
}

func (s *AdminService) FeatureListing(ctx context.Context, by Admin, id uint, premium bool) (*domain.Listing, error) {
	l, err := s.listings.SetPremium(ctx, id, premium)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionListingFeatured, domain.TargetListing, id).WithMetadata("premium", premium))
	return l, nil
}

func (s *AdminService) ShareListing(ctx context.Context, by Admin, id uint, channels []string, message string) ([]ShareResult, error) {
	results, err := s.marketing.ShareListing(ctx, id, channels, message)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionListingShared, domain.TargetListing, id).WithMetadata("results", results))
	return results, nil
}

// Transactions

func (s *AdminService) ListTransactions(ctx context.Context, by Admin, status domain.TransactionState, page domain.Page) ([]domain.Transaction, int64, error) {
	return s.escrow.List(ctx, by.actor(), status, page)
}

func (s *AdminService) GetTransaction(ctx context.Context, by Admin, id uint) (*domain.Transaction, error) {
	return s.escrow.Get(ctx, by.actor(), id)
}

func (s *AdminService) VerifyDeposit(ctx context.Context, by Admin, id uint) (*domain.Transaction, error) {
	t, err := s.escrow.VerifyDeposit(ctx, by.ID, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionDepositVerified, domain.TargetTransaction, id).
		WithMetadata("amount", t.DepositAmount.StringFixed(2)))
	return t, nil
}

func (s *AdminService) VerifyFinalPayment(ctx context.Context, by Admin, id uint) (*domain.Transaction, error) {
	t, err := s.escrow.VerifyFinalPayment(ctx, by.ID, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionFinalVerified, domain.TargetTransaction, id).
		WithMetadata("amount", t.FinalAmount.StringFixed(2)))
	return t, nil
}

func (s *AdminService) ApproveTransaction(ctx context.Context, by Admin, id uint) (*domain.Transaction, error) {
	t, err := s.escrow.ApproveAsAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionTransactionApproved, domain.TargetTransaction, id).
		WithMetadata("status", string(t.Status)))
	return t, nil
}

func (s *AdminService) CancelTransaction(ctx context.Context, by Admin, id uint, reason string) (*domain.Transaction, error) {
	t, err := s.escrow.Cancel(ctx, by.actor(), id, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionTransactionCanceled, domain.TargetTransaction, id).WithMetadata("reason", reason))
	return t, nil
}

// Disputes

func (s *AdminService) ListDisputes(ctx context.Context, status string, page domain.Page) ([]domain.Dispute, int64, error) {
	return s.escrow.ListDisputes(ctx, status, page)
}

func (s *AdminService) ResolveDispute(ctx context.Context, by Admin, id uint, outcome, resolution string) (*domain.Dispute, error) {
	d, err := s.escrow.ResolveDispute(ctx, by.ID, id, outcome, resolution)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionDisputeResolved, domain.TargetDispute, id).
		WithMetadata("outcome", outcome).
		WithMetadata("transaction_id", d.TransactionID))
	return d, nil
}

// Settings

func (s *AdminService) Settings(ctx context.Context) ([]domain.PlatformSetting, error) {
	return s.settings.List(ctx)
}

func (s *AdminService) UpdateSetting(ctx context.Context, by Admin, key, value string) (*domain.PlatformSetting, error) {
	setting, err := s.settings.Update(ctx, by.ID, key, value)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionSettingUpdated, domain.TargetSetting, setting.ID).
		WithMetadata("key", key).
		WithMetadata("value", value))
	return setting, nil
}

// Action log

func (s *AdminService) Actions(ctx context.Context, filter domain.AdminLogFilter, page domain.Page) ([]domain.AdminActionLog, int64, error) {
	return s.actions.List(ctx, filter, page)
}

// Consultations

func (s *AdminService) Consultations(ctx context.Context, status string, page domain.Page) ([]domain.Consultation, int64, error) {
	return s.consultations.List(ctx, status, page)
}

func (s *AdminService) UpdateConsultation(ctx context.Context, by Admin, id uint, status, notes *string) (*domain.Consultation, error) {
	c, err := s.consultations.Update(ctx, id, status, notes)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, by.event(domain.ActionConsultationUpdated, domain.TargetConsultation, id).WithMetadata("status", c.Status))
	return c, nil
}

// Policies

func (s *AdminService) Policies() ([]Policy, error) {
	return s.policies.GetPolicies()
}

func (s *AdminService) AddPolicy(ctx context.Context, by Admin, p Policy) error {
	if err := s.policies.AddPolicy(p); err != nil {
		return err
	}
	s.audit(ctx, by.event(domain.ActionPolicyAdded, domain.TargetPolicy, 0).
		WithMetadata("role", p.Role).WithMetadata("path", p.Path).WithMetadata("method", p.Method))
	return nil
}

func (s *AdminService) RemovePolicy(ctx context.Context, by Admin, p Policy) error {
	if err := s.policies.RemovePolicy(p); err != nil {
		return err
	}
	s.audit(ctx, by.event(domain.ActionPolicyRemoved, domain.TargetPolicy, 0).
		WithMetadata("role", p.Role).WithMetadata("path", p.Path).WithMetadata("method", p.Method))
	return nil
}
