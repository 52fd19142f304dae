package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// TxManager runs fn inside a database transaction. Repositories called with
// the context handed to fn participate in that transaction.
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserFilter narrows admin user listings
type UserFilter struct {
	Role   string
	Status string
	Search string
}

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id uint) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdateCredits(ctx context.Context, userID uint, total, used int) error
	List(ctx context.Context, filter UserFilter, page Page) ([]User, int64, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

// TokenRepository stores refresh, password reset and email verification tokens
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshTokenByHash(ctx context.Context, hash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id uint) error
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uint) error

	CreatePasswordReset(ctx context.Context, token *PasswordResetToken) error
	FindPasswordResetByHash(ctx context.Context, hash string) (*PasswordResetToken, error)
	MarkPasswordResetUsed(ctx context.Context, id uint) error

	CreateEmailVerification(ctx context.Context, token *EmailVerificationToken) error
	FindEmailVerificationByHash(ctx context.Context, hash string) (*EmailVerificationToken, error)
	MarkEmailVerificationUsed(ctx context.Context, id uint) error
}

// SessionRepository defines session data access operations
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByUser(ctx context.Context, userID uint) error
}

// ListingFilter narrows listing searches
type ListingFilter struct {
	Status      string
	SellerID    uint
	State       string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	MinYears    int
	AmazonRelay *bool
	Search      string
	Sort        string
}

// ListingRepository defines listing data access operations
type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id uint) (*Listing, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*Listing, error)
	Update(ctx context.Context, listing *Listing) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	IncrementViews(ctx context.Context, id uint) error
	List(ctx context.Context, filter ListingFilter, page Page) ([]Listing, int64, error)
	MCInUse(ctx context.Context, mcNumber string, excludeID uint) (bool, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// FindUnlock returns nil, nil when no unlock exists.
	FindUnlock(ctx context.Context, userID, listingID uint) (*ListingUnlock, error)
	CreateUnlock(ctx context.Context, unlock *ListingUnlock) error
	ListUnlocked(ctx context.Context, userID uint, page Page) ([]ListingUnlock, int64, error)

	CreateDocument(ctx context.Context, doc *ListingDocument) error
	ListDocuments(ctx context.Context, listingID uint) ([]ListingDocument, error)
}

// OfferFilter narrows offer listings
type OfferFilter struct {
	BuyerID   uint
	SellerID  uint
	ListingID uint
	Status    string
}

// OfferRepository defines offer data access operations
type OfferRepository interface {
	Create(ctx context.Context, offer *Offer) error
	FindByID(ctx context.Context, id uint) (*Offer, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*Offer, error)
	Update(ctx context.Context, offer *Offer) error
	List(ctx context.Context, filter OfferFilter, page Page) ([]Offer, int64, error)
	HasOpenOffer(ctx context.Context, buyerID, listingID uint) (bool, error)
	RejectOpenForListing(ctx context.Context, listingID, exceptOfferID uint, reason string) error
}

// TransactionFilter narrows escrow transaction listings
type TransactionFilter struct {
	ParticipantID uint
	Status        TransactionState
}

// TransactionRepository defines escrow transaction data access operations
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	FindByID(ctx context.Context, id uint) (*Transaction, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) error
	List(ctx context.Context, filter TransactionFilter, page Page) ([]Transaction, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CompletedVolume(ctx context.Context) (decimal.Decimal, error)
}

// PaymentRepository defines payment data access operations
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	FindByCheckoutSession(ctx context.Context, sessionID string) (*Payment, error)
	FindByInvoice(ctx context.Context, invoiceID string) (*Payment, error)
	// Latest returns the newest payment of a kind for a transaction.
	Latest(ctx context.Context, transactionID uint, kind string) (*Payment, error)
}

// DisputeRepository defines dispute data access operations
type DisputeRepository interface {
	Create(ctx context.Context, dispute *Dispute) error
	FindByID(ctx context.Context, id uint) (*Dispute, error)
	FindOpenByTransaction(ctx context.Context, transactionID uint) (*Dispute, error)
	Update(ctx context.Context, dispute *Dispute) error
	List(ctx context.Context, status string, page Page) ([]Dispute, int64, error)
	CountOpen(ctx context.Context) (int64, error)
}

// CreditRepository stores credit ledger rows
type CreditRepository interface {
	Create(ctx context.Context, entry *CreditTransaction) error
	ListByUser(ctx context.Context, userID uint, page Page) ([]CreditTransaction, int64, error)
}

// SubscriptionRepository defines subscription data access operations
type SubscriptionRepository interface {
	FindByUser(ctx context.Context, userID uint) (*Subscription, error)
	FindByStripeID(ctx context.Context, stripeID string) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
}

// NotificationRepository defines in-app notification data access operations
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) error
}

// SettingRepository defines platform setting data access operations
type SettingRepository interface {
	List(ctx context.Context) ([]PlatformSetting, error)
	FindByKey(ctx context.Context, key string) (*PlatformSetting, error)
	Upsert(ctx context.Context, setting *PlatformSetting) error
}

// AdminLogFilter narrows the admin action trail
type AdminLogFilter struct {
	AdminID    uint
	Action     string
	TargetType string
}

// AdminLogRepository stores admin actions
type AdminLogRepository interface {
	Create(ctx context.Context, entry *AdminActionLog) error
	List(ctx context.Context, filter AdminLogFilter, page Page) ([]AdminActionLog, int64, error)
}

// ConsultationRepository defines consultation data access operations
type ConsultationRepository interface {
	Create(ctx context.Context, c *Consultation) error
	FindByID(ctx context.Context, id uint) (*Consultation, error)
	Update(ctx context.Context, c *Consultation) error
	List(ctx context.Context, status string, page Page) ([]Consultation, int64, error)
}

// AuthService defines authentication business logic
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID uint, current, next string) error
	GetUserProfile(ctx context.Context, userID uint) (*User, error)
	UpdateProfile(ctx context.Context, userID uint, input ProfileInput) (*User, error)
}

// RegisterInput carries the registration form
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Company  string
	Role     string
}

// ProfileInput carries editable profile fields; nil leaves a field unchanged
type ProfileInput struct {
	Name    *string
	Phone   *string
	Company *string
}

// PasswordService defines password operations
type PasswordService interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// TokenService defines token operations
type TokenService interface {
	GenerateAccessToken(userID uint, role string, sessionID string) (string, error)
	GenerateRefreshToken(userID uint, role string, sessionID string) (string, *TokenClaims, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	ValidateRefreshToken(token string) (*TokenClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	TokenID   string `json:"jti,omitempty"`
	Type      string `json:"typ"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Mailer delivers transactional email
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// SMSSender delivers text messages
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// StoredObject describes an uploaded file
type StoredObject struct {
	Key string
	URL string
}

// Storage persists uploaded documents
type Storage interface {
	Save(ctx context.Context, prefix, fileName, contentType string, r io.Reader, size int64) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// CheckoutRequest describes a hosted checkout to create with the payment provider
type CheckoutRequest struct {
	Mode          string // "payment" or "subscription"
	CustomerEmail string
	CustomerID    string
	Description   string
	Amount        decimal.Decimal
	PriceID       string
	Metadata      map[string]string
}

// CheckoutSession is the provider's answer to a CheckoutRequest
type CheckoutSession struct {
	ID  string
	URL string
}

// Payment event types understood by the billing services
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventInvoicePaid         = "invoice.paid"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// PaymentEvent is a verified, provider-neutral webhook event
type PaymentEvent struct {
	ID                 string
	Type               string
	SessionID          string
	InvoiceID          string
	PaymentIntentID    string
	SubscriptionID     string
	CustomerID         string
	BillingReason      string
	Status             string
	AmountTotal        int64
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Metadata           map[string]string
}

// PaymentGateway abstracts the card payment provider
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}

// CarrierInfo is the public FMCSA registration of a motor carrier
type CarrierInfo struct {
	LegalName        string `json:"legalName"`
	DBAName          string `json:"dbaName,omitempty"`
	DOTNumber        string `json:"dotNumber"`
	MCNumber         string `json:"mcNumber,omitempty"`
	AllowedToOperate bool   `json:"allowedToOperate"`
	OperatingStatus  string `json:"operatingStatus"`
	State            string `json:"state"`
	PowerUnits       int    `json:"powerUnits"`
	Drivers          int    `json:"drivers"`
	SafetyRating     string `json:"safetyRating,omitempty"`
}

// CreditReport is a business credit summary
type CreditReport struct {
	CompanyID   string  `json:"companyId"`
	CompanyName string  `json:"companyName"`
	Score       int     `json:"score"`
	Rating      string  `json:"rating"`
	CreditLimit float64 `json:"creditLimit"`
}

// CarrierLookup queries FMCSA carrier registrations
type CarrierLookup interface {
	ByMCNumber(ctx context.Context, mc string) (*CarrierInfo, error)
	ByDOTNumber(ctx context.Context, dot string) (*CarrierInfo, error)
}

// CreditReporter queries business credit reports
type CreditReporter interface {
	Report(ctx context.Context, companyName, state string) (*CreditReport, error)
}

// SocialPublisher posts marketing messages to a channel
type SocialPublisher interface {
	Name() string
	Publish(ctx context.Context, message, link string) (string, error)
}

// Lead is a contact pushed to the CRM
type Lead struct {
	Name    string
	Email   string
	Phone   string
	Source  string
	Tags    []string
	Message string
}

// LeadSink receives marketing leads
type LeadSink interface {
	PushLead(ctx context.Context, lead Lead) (string, error)
}

// CasbinEnforcer is the subset of the casbin enforcer used for policy management
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
