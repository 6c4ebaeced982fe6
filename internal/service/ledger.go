// Package service contains the business logic layer.
//
// This file implements the usage ledger. It is the only writer of
// uploads_used.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageLedger tracks per-user upload counts for the current period.
type UsageLedger interface {
	// GetUsage returns the user's usage record, creating a zeroed one if absent.
	GetUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error)

	// ReconcileOnEntitlementChange recomputes the effective limit from the
	// entitlement resolver and resets uploads_used when newTierName differs
	// from the tier recorded at the last reset.
	ReconcileOnEntitlementChange(ctx context.Context, userID uuid.UUID, newTierName string) (*domain.Reconciliation, error)

	// Commit atomically consumes one upload. It returns a QuotaExceeded error
	// without mutating anything when the limit is reached.
	Commit(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageLedger struct {
	queries  repository.Querier
	resolver EntitlementResolver
	logger   *slog.Logger
}

// NewUsageLedger creates a new UsageLedger.
func NewUsageLedger(queries repository.Querier, resolver EntitlementResolver, logger *slog.Logger) UsageLedger {
	return &usageLedger{
		queries:  queries,
		resolver: resolver,
		logger:   logger,
	}
}

func (l *usageLedger) GetUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	const op = "usage.get"

	row, err := l.queries.EnsureUsageRecord(ctx, userID)
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to load usage record", err)
	}
	return usageRecordToDomain(row), nil
}

func (l *usageLedger) ReconcileOnEntitlementChange(ctx context.Context, userID uuid.UUID, newTierName string) (*domain.Reconciliation, error) {
	const op = "usage.reconcile"

	ent, err := l.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	baseline := catalog.Normalize(newTierName)
	if !ent.Subscribed {
		baseline = ""
	} else if baseline != ent.TierName {
		// The stored state moved on since the caller read it; the resolver
		// is authoritative.
		l.logger.Warn("reconcile tier differs from resolved tier",
			"user_id", userID,
			"requested_tier", newTierName,
			"resolved_tier", ent.TierName,
		)
		baseline = ent.TierName
	}

	row, err := l.queries.ReconcileUsageRecord(ctx, repository.ReconcileUsageRecordParams{
		UserID:               userID,
		BaselineTier:         baseline,
		EffectiveUploadLimit: int32(ent.EffectiveUploadLimit),
	})
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to reconcile usage record", err)
	}

	result := &domain.Reconciliation{
		Record: &domain.UsageRecord{
			UserID:               row.UserID,
			BaselineTier:         row.BaselineTier,
			EffectiveUploadLimit: int(row.EffectiveUploadLimit),
			UploadsUsed:          int(row.UploadsUsed),
			UpdatedAt:            row.UpdatedAt,
		},
		PreviousTier: row.PreviousTier.String,
		Reset:        row.PreviousTier.Valid && row.PreviousTier.String != baseline,
	}

	if result.Reset {
		metrics.UsageResetsTotal.Inc()
		l.logger.Info("usage reset on tier change",
			"user_id", userID,
			"previous_tier", result.PreviousTier,
			"tier", baseline,
			"limit", result.Record.EffectiveUploadLimit,
		)
	}

	return result, nil
}

func (l *usageLedger) Commit(ctx context.Context, userID uuid.UUID) (*domain.UsageRecord, error) {
	const op = "usage.commit"

	row, err := l.queries.IncrementUploadsUsed(ctx, userID)
	if err == nil {
		metrics.UsageCommitsTotal.WithLabelValues("committed").Inc()
		return usageRecordToDomain(row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.UsageCommitsTotal.WithLabelValues("error").Inc()
		return nil, domain.UpstreamUnavailable(op, "failed to record upload", err)
	}

	// No row matched: either the quota is used up or the record is missing.
	// Both mean no unit was consumed.
	current, gerr := l.GetUsage(ctx, userID)
	if gerr != nil {
		metrics.UsageCommitsTotal.WithLabelValues("error").Inc()
		return nil, gerr
	}
	metrics.UsageCommitsTotal.WithLabelValues("quota_exceeded").Inc()
	return nil, domain.QuotaExceeded(op, current.UploadsUsed, current.EffectiveUploadLimit, planLabel(current.BaselineTier))
}

func planLabel(tier string) string {
	if tier == "" {
		return "current"
	}
	return tier
}
