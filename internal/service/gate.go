// Package service contains the business logic layer.
//
// This file implements the quota gate, the decision point invoked before any
// billable action.
package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaGate decides whether a user may consume a quota unit.
type QuotaGate interface {
	// CheckAndReserve validates the file size and remaining quota and, on the
	// paid path, commits one upload. Denials are returned as domain errors
	// whose domain.DenyReasonOf is the reason. Size and subscription checks
	// happen before any state changes, so a denial never consumes quota.
	CheckAndReserve(ctx context.Context, userID uuid.UUID, fileSizeMB float64) (*domain.Reservation, error)

	// Snapshot returns the user's entitlement and remaining quota without
	// consuming anything.
	Snapshot(ctx context.Context, userID uuid.UUID) (*domain.EntitlementSnapshot, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaGate struct {
	resolver EntitlementResolver
	ledger   UsageLedger
	trial    FreeTrialGate
	catalog  *catalog.Catalog
	logger   *slog.Logger
}

// NewQuotaGate creates a new QuotaGate.
func NewQuotaGate(resolver EntitlementResolver, ledger UsageLedger, trial FreeTrialGate, cat *catalog.Catalog, logger *slog.Logger) QuotaGate {
	return &quotaGate{
		resolver: resolver,
		ledger:   ledger,
		trial:    trial,
		catalog:  cat,
		logger:   logger,
	}
}

func (g *quotaGate) CheckAndReserve(ctx context.Context, userID uuid.UUID, fileSizeMB float64) (*domain.Reservation, error) {
	const op = "gate.check_and_reserve"

	if math.IsNaN(fileSizeMB) || math.IsInf(fileSizeMB, 0) || fileSizeMB < 0 {
		return nil, domain.Invalid(op, "File size must be a non-negative number of megabytes.")
	}

	ent, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, g.deny(op, "", userID, err)
	}

	if !ent.Subscribed {
		return g.reserveTrial(ctx, op, userID, fileSizeMB)
	}

	if fileSizeMB > ent.FileSizeLimitMB {
		return nil, g.deny(op, domain.AdmissionPaid, userID, domain.FileTooLarge(op, fileSizeMB, ent.FileSizeLimitMB))
	}

	if err := g.alignLedger(ctx, userID, ent); err != nil {
		return nil, g.deny(op, domain.AdmissionPaid, userID, err)
	}

	rec, err := g.ledger.Commit(ctx, userID)
	if err != nil {
		return nil, g.deny(op, domain.AdmissionPaid, userID, err)
	}

	metrics.Allowed(domain.AdmissionPaid)
	g.logger.Debug("upload reserved",
		"user_id", userID,
		"tier", ent.TierName,
		"used", rec.UploadsUsed,
		"limit", rec.EffectiveUploadLimit,
	)

	return &domain.Reservation{
		Path:            domain.AdmissionPaid,
		TierName:        ent.TierName,
		UploadsUsed:     rec.UploadsUsed,
		UploadLimit:     rec.EffectiveUploadLimit,
		Remaining:       rec.Remaining(),
		FileSizeLimitMB: ent.FileSizeLimitMB,
	}, nil
}

// reserveTrial admits an unsubscribed user through the free-trial gate. The
// trial document is held to the entry tier's file size limit.
func (g *quotaGate) reserveTrial(ctx context.Context, op string, userID uuid.UUID, fileSizeMB float64) (*domain.Reservation, error) {
	if err := g.trial.CheckAndReserve(ctx, userID); err != nil {
		if domain.IsCode(err, domain.ETRIAL) {
			err = domain.Errorf(domain.ETRIAL, op,
				"You do not have an active subscription and your free trial has already been used. Please subscribe to process more documents.")
		}
		return nil, g.deny(op, domain.AdmissionTrial, userID, err)
	}

	limitMB := g.catalog.Lowest().FileSizeLimitMB
	if fileSizeMB > limitMB {
		return nil, g.deny(op, domain.AdmissionTrial, userID, domain.FileTooLarge(op, fileSizeMB, limitMB))
	}

	metrics.Allowed(domain.AdmissionTrial)
	return &domain.Reservation{
		Path:            domain.AdmissionTrial,
		UploadLimit:     1,
		Remaining:       1,
		FileSizeLimitMB: limitMB,
	}, nil
}

// alignLedger reconciles the usage record when it was created lazily or its
// limit no longer matches the resolved entitlement.
func (g *quotaGate) alignLedger(ctx context.Context, userID uuid.UUID, ent *domain.Entitlement) error {
	usage, err := g.ledger.GetUsage(ctx, userID)
	if err != nil {
		return err
	}
	if usage.BaselineTier == ent.TierName && usage.EffectiveUploadLimit == ent.EffectiveUploadLimit {
		return nil
	}
	_, err = g.ledger.ReconcileOnEntitlementChange(ctx, userID, ent.TierName)
	return err
}

// deny records and logs a refusal. User-actionable denials log at info;
// configuration and upstream failures log at error with the wrapped cause.
func (g *quotaGate) deny(op string, path domain.AdmissionPath, userID uuid.UUID, err error) error {
	metrics.Denied(path, err)

	switch domain.ErrorCode(err) {
	case domain.ETOOLARGE, domain.EQUOTA, domain.ETRIAL, domain.EINVALID:
		g.logger.Info("upload denied",
			"user_id", userID,
			"path", path,
			"reason", domain.DenyReasonOf(err),
			"message", domain.ErrorMessage(err),
		)
	default:
		g.logger.Error("upload denied: entitlement could not be determined",
			"op", op,
			"user_id", userID,
			"path", path,
			"code", domain.ErrorCode(err),
			"error", err,
		)
	}
	return err
}

func (g *quotaGate) Snapshot(ctx context.Context, userID uuid.UUID) (*domain.EntitlementSnapshot, error) {
	ent, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	trial, err := g.trial.State(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := &domain.EntitlementSnapshot{
		Entitlement:    *ent,
		TrialUsed:      trial.TrialUsed,
		TrialAvailable: !ent.Subscribed && !trial.TrialUsed,
	}

	if !ent.Subscribed {
		snap.FileSizeLimitMB = g.catalog.Lowest().FileSizeLimitMB
		if snap.TrialAvailable {
			snap.Remaining = 1
		}
		return snap, nil
	}

	usage, err := g.ledger.GetUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap.UploadsUsed = usage.UploadsUsed
	// Until the ledger is aligned, report against the resolved limit.
	if usage.BaselineTier != ent.TierName {
		snap.UploadsUsed = 0
	}
	snap.Remaining = ent.EffectiveUploadLimit - snap.UploadsUsed
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	return snap, nil
}
