package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type SubscriptionTier struct {
	TierName           string
	DisplayName        string
	Rank               int32
	MonthlyUploadLimit int32
	FileSizeLimitMb    float64
	MonthlyPriceCents  int64
	YearlyPriceCents   int64
	Features           pqtype.NullRawMessage
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Profile struct {
	UserID             uuid.UUID
	Email              string
	TrialUsed          bool
	SubscriptionStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type SubscriptionState struct {
	UserID               uuid.UUID
	Subscribed           bool
	TierName             sql.NullString
	BillingInterval      sql.NullString
	PeriodEnd            sql.NullTime
	StripeCustomerID     sql.NullString
	StripeSubscriptionID sql.NullString
	SyncedAt             time.Time
}

type UsageRecord struct {
	UserID               uuid.UUID
	BaselineTier         string
	EffectiveUploadLimit int32
	UploadsUsed          int32
	UpdatedAt            time.Time
}

type Report struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Filename       string
	ReportType     string
	Status         string
	Content        string
	DocumentKey    string
	AdmissionPath  string
	ComplianceData pqtype.NullRawMessage
	FailureReason  sql.NullString
	CreatedAt      time.Time
	CompletedAt    sql.NullTime
}
