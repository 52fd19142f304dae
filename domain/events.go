package domain

import (
	"encoding/json"
	"time"
)

// AdminAction names a mutating admin operation recorded in the action log
type AdminAction string

const (
	ActionUserSuspended       AdminAction = "USER_SUSPENDED"
	ActionUserActivated       AdminAction = "USER_ACTIVATED"
	ActionCreditsAdjusted     AdminAction = "CREDITS_ADJUSTED"
	ActionListingApproved     AdminAction = "LISTING_APPROVED"
	ActionListingRejected     AdminAction = "LISTING_REJECTED"
	ActionListingFeatured     AdminAction = "LISTING_FEATURED"
	ActionListingShared       AdminAction = "LISTING_SHARED"
	ActionDepositVerified     AdminAction = "DEPOSIT_VERIFIED"
	ActionFinalVerified       AdminAction = "FINAL_PAYMENT_VERIFIED"
	ActionTransactionApproved AdminAction = "TRANSACTION_APPROVED"
	ActionTransactionCanceled AdminAction = "TRANSACTION_CANCELLED"
	ActionDisputeResolved     AdminAction = "DISPUTE_RESOLVED"
	ActionSettingUpdated      AdminAction = "SETTING_UPDATED"
	ActionPolicyAdded         AdminAction = "POLICY_ADDED"
	ActionPolicyRemoved       AdminAction = "POLICY_REMOVED"
	ActionConsultationUpdated AdminAction = "CONSULTATION_UPDATED"
)

// Target types for the action log
const (
	TargetUser         = "user"
	TargetListing      = "listing"
	TargetTransaction  = "transaction"
	TargetDispute      = "dispute"
	TargetSetting      = "setting"
	TargetPolicy       = "policy"
	TargetConsultation = "consultation"
)

// AdminEvent collects the fields of one admin action before it is persisted
type AdminEvent struct {
	AdminID    uint
	Action     AdminAction
	TargetType string
	TargetID   uint
	IPAddress  string
	Metadata   map[string]interface{}
}

// NewAdminEvent creates a new admin event with common fields populated
func NewAdminEvent(adminID uint, action AdminAction, targetType string, targetID uint) *AdminEvent {
	return &AdminEvent{
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   make(map[string]interface{}),
	}
}

// WithMetadata adds metadata to the event
func (e *AdminEvent) WithMetadata(key string, value interface{}) *AdminEvent {
	e.Metadata[key] = value
	return e
}

// WithIP sets the client address
func (e *AdminEvent) WithIP(ip string) *AdminEvent {
	e.IPAddress = ip
	return e
}

// Log converts the event into its persisted row
func (e *AdminEvent) Log() *AdminActionLog {
	entry := &AdminActionLog{
		AdminID:    e.AdminID,
		Action:     string(e.Action),
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		IPAddress:  e.IPAddress,
		CreatedAt:  time.Now().UTC(),
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			entry.Details = string(b)
		}
	}
	return entry
}

// Notification types
const (
	NotifyOfferReceived      = "offer_received"
	NotifyOfferAccepted      = "offer_accepted"
	NotifyOfferRejected      = "offer_rejected"
	NotifyOfferCountered     = "offer_countered"
	NotifyOfferWithdrawn     = "offer_withdrawn"
	NotifyTransactionUpdated = "transaction_updated"
	NotifyDisputeOpened      = "dispute_opened"
	NotifyDisputeResolved    = "dispute_resolved"
	NotifyListingApproved    = "listing_approved"
	NotifyListingRejected    = "listing_rejected"
	NotifyCreditsAdded       = "credits_added"
	NotifySubscription       = "subscription"
	NotifyPaymentReview      = "payment_review"
)
