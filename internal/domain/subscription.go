package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the coarse status mirrored onto the profile.
type SubscriptionStatus string

const (
	SubscriptionStatusFree   SubscriptionStatus = "free"
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// SubscriptionState is the billing provider's view of one user as of the
// last sync. Only the sync path writes it.
type SubscriptionState struct {
	UserID           uuid.UUID
	Subscribed       bool
	TierName         string          // valid only when Subscribed
	BillingInterval  BillingInterval // valid only when Subscribed
	PeriodEnd        *time.Time
	StripeCustomerID string
	SubscriptionID   string
	SyncedAt         time.Time
}

// Status returns the profile status implied by this state.
func (s *SubscriptionState) Status() SubscriptionStatus {
	if s != nil && s.Subscribed {
		return SubscriptionStatusActive
	}
	return SubscriptionStatusFree
}

// Entitlement is what a user may consume right now. A zero Entitlement with
// Subscribed false means the user falls back to the free trial.
type Entitlement struct {
	Subscribed           bool
	TierName             string
	FileSizeLimitMB      float64
	EffectiveUploadLimit int
	BillingInterval      BillingInterval
	PeriodEnd            *time.Time
}

// Unsubscribed is the entitlement of a user without an active subscription.
var Unsubscribed = Entitlement{}

// Profile is the account record the trial flag lives on.
type Profile struct {
	UserID             uuid.UUID
	Email              string
	TrialUsed          bool
	SubscriptionStatus SubscriptionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TrialState is the per-user free trial flag. It flips to true once and
// never resets, independent of any subscription.
type TrialState struct {
	UserID    uuid.UUID
	TrialUsed bool
}
