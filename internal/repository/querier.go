package repository

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	// Tiers
	ListSubscriptionTiers(ctx context.Context) ([]SubscriptionTier, error)
	UpsertSubscriptionTier(ctx context.Context, arg UpsertSubscriptionTierParams) (SubscriptionTier, error)

	// Profiles
	EnsureProfile(ctx context.Context, arg EnsureProfileParams) (Profile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	MarkTrialUsed(ctx context.Context, userID uuid.UUID) (int64, error)
	UpdateProfileSubscriptionStatus(ctx context.Context, arg UpdateProfileSubscriptionStatusParams) error

	// Subscription states
	GetSubscriptionState(ctx context.Context, userID uuid.UUID) (SubscriptionState, error)
	GetSubscriptionStateByCustomerID(ctx context.Context, stripeCustomerID string) (SubscriptionState, error)
	UpsertSubscriptionState(ctx context.Context, arg UpsertSubscriptionStateParams) (SubscriptionState, error)
	ListSubscriptionStatesDue(ctx context.Context, arg ListSubscriptionStatesDueParams) ([]SubscriptionState, error)

	// Usage
	GetUsageRecord(ctx context.Context, userID uuid.UUID) (UsageRecord, error)
	EnsureUsageRecord(ctx context.Context, userID uuid.UUID) (UsageRecord, error)
	ReconcileUsageRecord(ctx context.Context, arg ReconcileUsageRecordParams) (ReconcileUsageRecordRow, error)
	IncrementUploadsUsed(ctx context.Context, userID uuid.UUID) (UsageRecord, error)

	// Reports
	CreateReport(ctx context.Context, arg CreateReportParams) (Report, error)
	CompleteReport(ctx context.Context, arg CompleteReportParams) (Report, error)
	FailReport(ctx context.Context, arg FailReportParams) error
	ListReportsByUser(ctx context.Context, arg ListReportsByUserParams) ([]Report, error)
}

var _ Querier = (*Queries)(nil)
