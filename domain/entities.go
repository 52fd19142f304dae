package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Roles
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User account status
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// User represents a platform account. The credit balance is kept as two
// counters; AvailableCredits is always TotalCredits - UsedCredits.
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Email            string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash     string         `gorm:"column:password;not null" json:"-"`
	Name             string         `gorm:"size:255" json:"name"`
	Phone            string         `gorm:"size:32" json:"phone,omitempty"`
	Company          string         `gorm:"size:255" json:"company,omitempty"`
	Role             string         `gorm:"index;size:32;not null" json:"role"`
	Status           string         `gorm:"index;size:32;not null;default:active" json:"status"`
	EmailVerified    bool           `gorm:"not null;default:false" json:"emailVerified"`
	TotalCredits     int            `gorm:"not null;default:0" json:"totalCredits"`
	UsedCredits      int            `gorm:"not null;default:0" json:"usedCredits"`
	StripeCustomerID string         `gorm:"size:64" json:"-"`
	LastLoginAt      *time.Time     `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// AvailableCredits returns the spendable balance.
func (u *User) AvailableCredits() int {
	return u.TotalCredits - u.UsedCredits
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken is the persisted half of a login session. Only a hash of the
// token identifier is stored.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	SessionID string     `gorm:"index;size:64;not null"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}

// Active reports whether the token can still be exchanged.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// PasswordResetToken is a single-use token emailed to the user.
type PasswordResetToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EmailVerificationToken confirms ownership of the account email.
type EmailVerificationToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Session represents a user session held in Redis
type Session struct {
	ID        string
	UserID    uint
	Role      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Listing status
const (
	ListingPending  = "pending"
	ListingActive   = "active"
	ListingRejected = "rejected"
	ListingReserved = "reserved"
	ListingSold     = "sold"
	ListingInactive = "inactive"
)

// Listing is an MC authority offered for sale.
type Listing struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SellerID        uint            `gorm:"index;not null" json:"sellerId"`
	MCNumber        string          `gorm:"index;size:16;not null" json:"mcNumber,omitempty"`
	DOTNumber       string          `gorm:"size:16" json:"dotNumber,omitempty"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	State           string          `gorm:"index;size:2" json:"state"`
	YearsActive     int             `json:"yearsActive"`
	FleetSize       int             `json:"fleetSize"`
	SafetyRating    string          `gorm:"size:32" json:"safetyRating"`
	InsuranceOnFile bool            `json:"insuranceOnFile"`
	AmazonRelay     bool            `gorm:"index" json:"amazonRelay"`
	Status          string          `gorm:"index;size:16;not null" json:"status"`
	IsPremium       bool            `gorm:"index" json:"isPremium"`
	ViewCount       int             `gorm:"not null;default:0" json:"viewCount"`
	RejectionReason string          `gorm:"size:500" json:"rejectionReason,omitempty"`
	LegalName       string          `gorm:"size:255" json:"legalName,omitempty"`
	OperatingStatus string          `gorm:"size:64" json:"operatingStatus,omitempty"`
	PowerUnits      int             `json:"powerUnits,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	Seller *User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// Redacted returns a copy safe for anonymous browsing: identifying numbers,
// carrier legal name and seller contact are stripped.
func (l Listing) Redacted() Listing {
	l.MCNumber = ""
	l.DOTNumber = ""
	l.LegalName = ""
	l.Seller = nil
	return l
}

// ListingUnlock records that a buyer spent credits to see a listing's details.
type ListingUnlock struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex:ux_unlock_user_listing,priority:1;not null" json:"userId"`
	ListingID   uint      `gorm:"uniqueIndex:ux_unlock_user_listing,priority:2;not null" json:"listingId"`
	CreditsUsed int       `gorm:"not null" json:"creditsUsed"`
	CreatedAt   time.Time `json:"createdAt"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// ListingDocument is a file attached to a listing (authority letters, insurance certificates).
type ListingDocument struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ListingID   uint      `gorm:"index;not null" json:"listingId"`
	UploadedBy  uint      `gorm:"not null" json:"uploadedBy"`
	FileName    string    `gorm:"size:255;not null" json:"fileName"`
	ObjectKey   string    `gorm:"size:512;not null" json:"-"`
	URL         string    `gorm:"size:1024" json:"url"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Offer status
const (
	OfferPending   = "pending"
	OfferAccepted  = "accepted"
	OfferRejected  = "rejected"
	OfferCountered = "countered"
	OfferWithdrawn = "withdrawn"
	OfferExpired   = "expired"
)

// Offer is a buyer's bid on a listing.
type Offer struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	ListingID       uint             `gorm:"index;not null" json:"listingId"`
	BuyerID         uint             `gorm:"index;not null" json:"buyerId"`
	SellerID        uint             `gorm:"index;not null" json:"sellerId"`
	Amount          decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"amount"`
	CounterAmount   *decimal.Decimal `gorm:"type:decimal(14,2)" json:"counterAmount,omitempty"`
	Message         string           `gorm:"size:2000" json:"message,omitempty"`
	ResponseMessage string           `gorm:"size:2000" json:"responseMessage,omitempty"`
	Status          string           `gorm:"index;size:16;not null" json:"status"`
	ExpiresAt       time.Time        `gorm:"index" json:"expiresAt"`
	RespondedAt     *time.Time       `json:"respondedAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// Open reports whether the seller or buyer can still act on the offer.
func (o *Offer) Open() bool {
	return o.Status == OfferPending || o.Status == OfferCountered
}

// Transaction is the escrow record for one sale.
type Transaction struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	ListingID           uint             `gorm:"index;not null" json:"listingId"`
	OfferID             uint             `gorm:"uniqueIndex;not null" json:"offerId"`
	BuyerID             uint             `gorm:"index;not null" json:"buyerId"`
	SellerID            uint             `gorm:"index;not null" json:"sellerId"`
	AgreedPrice         decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"agreedPrice"`
	DepositAmount       decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"depositAmount"`
	FinalAmount         decimal.Decimal  `gorm:"type:decimal(14,2);not null" json:"finalAmount"`
	Status              TransactionState `gorm:"index;size:32;not null" json:"status"`
	StatusBeforeDispute TransactionState `gorm:"size:32" json:"-"`
	BuyerAcceptedTerms  bool             `json:"buyerAcceptedTerms"`
	SellerAcceptedTerms bool             `json:"sellerAcceptedTerms"`
	BuyerApproved       bool             `json:"buyerApproved"`
	SellerApproved      bool             `json:"sellerApproved"`
	AdminApproved       bool             `json:"adminApproved"`
	CancelReason        string           `gorm:"size:1000" json:"cancelReason,omitempty"`
	CancelledBy         *uint            `json:"cancelledBy,omitempty"`
	DepositVerifiedAt   *time.Time       `json:"depositVerifiedAt,omitempty"`
	CompletedAt         *time.Time       `json:"completedAt,omitempty"`
	CreatedAt           time.Time        `gorm:"index" json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`

	Listing  *Listing  `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Payments []Payment `gorm:"foreignKey:TransactionID" json:"payments,omitempty"`
}

// Participant reports whether userID is the buyer or seller.
func (t *Transaction) Participant(userID uint) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// Payment kinds
const (
	PaymentDeposit        = "deposit"
	PaymentFinal          = "final"
	PaymentCreditPurchase = "credit_purchase"
	PaymentSubscription   = "subscription"
)

// Payment status
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusVerified = "verified"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
	// PaymentStatusReview holds an escrow checkout that did not match what the
	// transaction expected. An admin settles it by hand.
	PaymentStatusReview   = "review"
)

// Payment methods
const (
	PaymentMethodStripe = "stripe"
	PaymentMethodWire   = "wire"
	PaymentMethodACH    = "ach"
)

// Payment is a money movement tied to a transaction or a credit/subscription purchase.
type Payment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TransactionID     *uint           `gorm:"index" json:"transactionId,omitempty"`
	UserID            uint            `gorm:"index;not null" json:"userId"`
	Kind              string          `gorm:"index;size:32;not null" json:"kind"`
	Method            string          `gorm:"size:16;not null" json:"method"`
	Amount            decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Status            string          `gorm:"index;size:16;not null" json:"status"`
	Reference         string          `gorm:"size:255" json:"reference,omitempty"`
	CheckoutSessionID string          `gorm:"index;size:255" json:"-"`
	PaymentIntentID   string          `gorm:"size:255" json:"-"`
	InvoiceID         *string         `gorm:"uniqueIndex;size:255" json:"-"`
	VerifiedBy        *uint           `json:"verifiedBy,omitempty"`
	VerifiedAt        *time.Time      `json:"verifiedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Credit ledger entry types
const (
	CreditPurchase     = "purchase"
	CreditSubscription = "subscription"
	CreditUsage        = "usage"
	CreditRefund       = "refund"
	CreditAdjustment   = "admin_adjustment"
	CreditBonus        = "bonus"
)

// CreditTransaction is the audit row written for every balance change.
type CreditTransaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"userId"`
	Type          string    `gorm:"index;size:32;not null" json:"type"`
	Amount        int       `gorm:"not null" json:"amount"`
	BalanceAfter  int       `gorm:"not null" json:"balanceAfter"`
	Description   string    `gorm:"size:500" json:"description"`
	ReferenceType string    `gorm:"size:32" json:"referenceType,omitempty"`
	ReferenceID   string    `gorm:"size:64" json:"referenceId,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
}

// Subscription status
const (
	SubscriptionActive    = "active"
	SubscriptionPastDue   = "past_due"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is a recurring plan granting credits each period.
type Subscription struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"uniqueIndex;not null" json:"userId"`
	PlanID               string    `gorm:"size:32;not null" json:"planId"`
	Status               string    `gorm:"index;size:16;not null" json:"status"`
	CreditsPerPeriod     int       `gorm:"not null" json:"creditsPerPeriod"`
	StripeSubscriptionID string    `gorm:"index;size:255" json:"-"`
	CurrentPeriodStart   time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool      `json:"cancelAtPeriodEnd"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Notification is an in-app message.
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"userId"`
	Type      string     `gorm:"size:48;not null" json:"type"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Message   string     `gorm:"size:2000" json:"message"`
	Link      string     `gorm:"size:512" json:"link,omitempty"`
	ReadAt    *time.Time `gorm:"index" json:"readAt,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
}

// PlatformSetting is a key/value tunable editable by admins.
type PlatformSetting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"uniqueIndex;size:64;not null" json:"key"`
	Value       string    `gorm:"size:1000;not null" json:"value"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	UpdatedBy   *uint     `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AdminActionLog is the persisted trail of admin mutations.
type AdminActionLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AdminID    uint      `gorm:"index;not null" json:"adminId"`
	Action     string    `gorm:"index;size:64;not null" json:"action"`
	TargetType string    `gorm:"size:32" json:"targetType"`
	TargetID   uint      `json:"targetId"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string    `gorm:"size:64" json:"ipAddress,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// Dispute status
const (
	DisputeOpen     = "open"
	DisputeResolved = "resolved"
)

// Dispute outcomes
const (
	DisputeOutcomeResume = "resume"
	DisputeOutcomeCancel = "cancel"
)

// Dispute is raised by a transaction participant and settled by an admin.
type Dispute struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TransactionID uint       `gorm:"index;not null" json:"transactionId"`
	RaisedBy      uint       `gorm:"not null" json:"raisedBy"`
	Reason        string     `gorm:"size:2000;not null" json:"reason"`
	Status        string     `gorm:"index;size:16;not null" json:"status"`
	Outcome       string     `gorm:"size:16" json:"outcome,omitempty"`
	Resolution    string     `gorm:"size:2000" json:"resolution,omitempty"`
	ResolvedBy    *uint      `json:"resolvedBy,omitempty"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Consultation status
const (
	ConsultationNew       = "new"
	ConsultationContacted = "contacted"
	ConsultationClosed    = "closed"
)

// Consultation is an inbound lead asking for a call with the brokerage team.
type Consultation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        *uint     `gorm:"index" json:"userId,omitempty"`
	ListingID     *uint     `gorm:"index" json:"listingId,omitempty"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;not null" json:"email"`
	Phone         string    `gorm:"size:32" json:"phone,omitempty"`
	Message       string    `gorm:"size:4000" json:"message"`
	PreferredTime string    `gorm:"size:128" json:"preferredTime,omitempty"`
	Status        string    `gorm:"index;size:16;not null" json:"status"`
	Notes         string    `gorm:"type:text" json:"notes,omitempty"`
	CRMContactID  string    `gorm:"size:128" json:"crmContactId,omitempty"`
	CreatedAt     time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AuthRequest represents authentication credentials
type AuthRequest struct {
	Email    string
	Password string
}

// AuthResult represents authentication outcome
type AuthResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    int64
}

// Page describes the slice of a list to load.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Pagination is returned alongside list payloads.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(p Page, total int64) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
