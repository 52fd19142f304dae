package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an AppError and selects its HTTP status.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindPaymentRequired    ErrorKind = "PAYMENT_REQUIRED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindConflict           ErrorKind = "CONFLICT"
	KindTooManyRequests    ErrorKind = "TOO_MANY_REQUESTS"
	KindInternal           ErrorKind = "INTERNAL_SERVER_ERROR"
	KindServiceUnavailable ErrorKind = "SERVICE_UNAVAILABLE"
)

// Status returns the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the application error type translated by the HTTP error middleware.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches copies made by WithDetails against the sentinel they came from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// Status returns the HTTP status code.
func (e *AppError) Status() int { return e.Kind.Status() }

// WithDetails returns a copy carrying extra response details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func newError(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func NewNotFound(resource string) *AppError {
	return newError(KindNotFound, resource+" not found")
}

func NewValidation(msg string) *AppError { return newError(KindValidation, msg) }

func NewUnauthorized(msg string) *AppError { return newError(KindUnauthorized, msg) }

func NewPaymentRequired(msg string) *AppError { return newError(KindPaymentRequired, msg) }

func NewForbidden(msg string) *AppError { return newError(KindForbidden, msg) }

func NewConflict(msg string) *AppError { return newError(KindConflict, msg) }

func NewTooManyRequests(msg string) *AppError { return newError(KindTooManyRequests, msg) }

func NewServiceUnavailable(msg string, err error) *AppError {
	return &AppError{Kind: KindServiceUnavailable, Message: msg, Err: err}
}

func NewInternal(msg string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Authentication errors
var (
	ErrUserNotFound       = NewNotFound("User")
	ErrInvalidCredentials = NewUnauthorized("Invalid email or password")
	ErrEmailTaken         = NewConflict("Email already registered")
	ErrUserSuspended      = NewForbidden("Account is suspended")
	ErrEmailNotVerified   = NewForbidden("Email address not verified")
	ErrInvalidRole        = NewValidation("Role must be buyer or seller")
	ErrWrongPassword      = NewValidation("Current password is incorrect")
	ErrInvalidResetToken  = NewValidation("Invalid or expired reset token")
	ErrInvalidVerifyToken = NewValidation("Invalid or expired verification token")
)

// Token errors
var (
	ErrTokenInvalid   = NewUnauthorized("Invalid token")
	ErrTokenExpired   = NewUnauthorized("Token expired")
	ErrTokenMalformed = NewUnauthorized("Malformed token")
	ErrTokenRevoked   = NewUnauthorized("Token has been revoked")
)

// Session errors
var (
	ErrSessionNotFound = NewUnauthorized("Session not found")
	ErrSessionExpired  = NewUnauthorized("Session expired")
)

// Authorization errors
var (
	ErrUnauthorized = NewUnauthorized("Authentication required")
	ErrForbidden    = NewForbidden("Access denied")
)

// Listing errors
var (
	ErrListingNotFound     = NewNotFound("Listing")
	ErrListingNotActive    = NewConflict("Listing is not available")
	ErrDuplicateMC         = NewConflict("An active listing already exists for this MC number")
	ErrListingLocked       = NewConflict("Listing cannot be modified in its current status")
	ErrDocumentNotFound    = NewNotFound("Document")
	ErrUnsupportedFileType = NewValidation("Unsupported file type")
)

// Offer errors
var (
	ErrOfferNotFound     = NewNotFound("Offer")
	ErrOfferNotOpen      = NewConflict("Offer is no longer open")
	ErrOfferExpired      = NewConflict("Offer has expired")
	ErrOwnListing        = NewValidation("Cannot make an offer on your own listing")
	ErrDuplicateOffer    = NewConflict("You already have an open offer on this listing")
	ErrInvalidAmount     = NewValidation("Amount must be greater than zero")
	ErrNoCounterProposal = NewConflict("Offer has no counter proposal")
)

// Transaction errors
var (
	ErrTransactionNotFound = NewNotFound("Transaction")
	ErrInvalidTransition   = NewConflict("Action not allowed in the current transaction status")
	ErrDisputeNotFound     = NewNotFound("Dispute")
	ErrDisputeExists       = NewConflict("Transaction already has an open dispute")
	ErrDisputeClosed       = NewConflict("Dispute is already resolved")
	ErrPaymentNotFound     = NewNotFound("Payment")
)

// Credit and billing errors
var (
	ErrInsufficientCredits  = NewPaymentRequired("Insufficient credits")
	ErrPackageNotFound      = NewNotFound("Credit package")
	ErrPlanNotFound         = NewNotFound("Subscription plan")
	ErrSubscriptionNotFound = NewNotFound("Subscription")
	ErrAlreadySubscribed    = NewConflict("An active subscription already exists")
	ErrWebhookSignature     = NewValidation("Invalid webhook signature")
)

// Misc
var (
	ErrNotificationNotFound = NewNotFound("Notification")
	ErrConsultationNotFound = NewNotFound("Consultation")
	ErrSettingNotFound      = NewNotFound("Setting")
	ErrCarrierNotFound      = NewNotFound("Carrier")
	ErrRateLimited          = NewTooManyRequests("Too many requests, please try again later")
	ErrPolicyExists         = NewConflict("Policy already exists")
	ErrPolicyNotFound       = NewNotFound("Policy")
)
