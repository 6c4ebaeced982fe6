package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the per-user quota counter for the current period.
type UsageRecord struct {
	UserID               uuid.UUID
	BaselineTier         string // tier recorded at the last reset, "" when unsubscribed
	EffectiveUploadLimit int
	UploadsUsed          int
	UpdatedAt            time.Time
}

// Remaining returns the uploads left in the period, never negative.
func (u *UsageRecord) Remaining() int {
	if u.UploadsUsed >= u.EffectiveUploadLimit {
		return 0
	}
	return u.EffectiveUploadLimit - u.UploadsUsed
}

// Exhausted returns true when no further commit can succeed.
func (u *UsageRecord) Exhausted() bool {
	return u.UploadsUsed >= u.EffectiveUploadLimit
}

// Reconciliation is the outcome of aligning a usage record with a new
// entitlement.
type Reconciliation struct {
	Record       *UsageRecord
	PreviousTier string
	Reset        bool
}

// AdmissionPath tells the caller which gate admitted a request.
type AdmissionPath string

const (
	AdmissionPaid  AdmissionPath = "paid"
	AdmissionTrial AdmissionPath = "trial"
)

// Reservation is an allowed checkAndReserve. On the paid path the quota unit
// has already been committed; on the trial path the caller must confirm
// trial use once processing succeeds.
type Reservation struct {
	Path            AdmissionPath
	TierName        string
	UploadsUsed     int
	UploadLimit     int
	Remaining       int
	FileSizeLimitMB float64
}

// NeedsTrialConfirmation reports whether the caller must confirm trial use
// after processing succeeds.
func (r *Reservation) NeedsTrialConfirmation() bool {
	return r.Path == AdmissionTrial
}

// EntitlementSnapshot is the read-only view behind GET entitlement: what the
// user is entitled to, how much is left, and whether the trial is available.
type EntitlementSnapshot struct {
	Entitlement
	UploadsUsed    int
	Remaining      int
	TrialUsed      bool
	TrialAvailable bool
}
