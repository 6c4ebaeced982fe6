// Package service contains the business logic layer.
//
// This file implements tier administration: loading the catalog from the
// subscription_tiers table and changing a tier without breaking the catalog
// invariants.
package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// TierAdmin reads and changes the stored tier catalog.
type TierAdmin interface {
	// Load builds a validated catalog from the stored tiers. An empty or
	// invalid table is a configuration error; the server refuses to start.
	Load(ctx context.Context) (*catalog.Catalog, error)

	// List returns the stored tiers as they are, without validation. A row
	// whose features do not decode is a configuration error.
	List(ctx context.Context) ([]domain.TierDefinition, error)

	// Upsert writes def after checking that the catalog including it is
	// still valid. Running processes pick the change up on restart.
	Upsert(ctx context.Context, def domain.TierDefinition) (*catalog.Catalog, error)

	// Apply writes several tiers at once. Only the complete result is
	// validated, so limits can be raised or lowered across tiers together.
	Apply(ctx context.Context, defs []domain.TierDefinition) (*catalog.Catalog, error)
}

// =============================================================================
// Implementation
// =============================================================================

type tierAdmin struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewTierAdmin creates a new TierAdmin.
func NewTierAdmin(queries repository.Querier, logger *slog.Logger) TierAdmin {
	return &tierAdmin{
		queries: queries,
		logger:  logger,
	}
}

func (a *tierAdmin) List(ctx context.Context) ([]domain.TierDefinition, error) {
	const op = "tiers.list"

	rows, err := a.queries.ListSubscriptionTiers(ctx)
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to list tiers", err)
	}

	defs := make([]domain.TierDefinition, 0, len(rows))
	for _, row := range rows {
		def, err := tierToDomain(row)
		if err != nil {
			return nil, domain.ConfigurationError(op, "stored tier is unreadable", err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (a *tierAdmin) Load(ctx context.Context) (*catalog.Catalog, error) {
	const op = "tiers.load"

	defs, err := a.List(ctx)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(defs)
	if err != nil {
		return nil, domain.ConfigurationError(op, "stored tier catalog is invalid", err)
	}

	a.logger.Info("tier catalog loaded", "tiers", cat.Len(), "lowest", cat.Lowest().Name)
	return cat, nil
}

func (a *tierAdmin) Upsert(ctx context.Context, def domain.TierDefinition) (*catalog.Catalog, error) {
	return a.Apply(ctx, []domain.TierDefinition{def})
}

func (a *tierAdmin) Apply(ctx context.Context, defs []domain.TierDefinition) (*catalog.Catalog, error) {
	const op = "tiers.apply"

	if len(defs) == 0 {
		return nil, domain.Invalid(op, "no tiers given")
	}

	changed := make(map[string]bool, len(defs))
	for i := range defs {
		defs[i].Name = catalog.Normalize(defs[i].Name)
		if err := defs[i].Validate(); err != nil {
			return nil, domain.Invalid(op, err.Error())
		}
		changed[defs[i].Name] = true
	}

	current, err := a.List(ctx)
	if err != nil {
		return nil, err
	}

	next := make([]domain.TierDefinition, 0, len(current)+len(defs))
	for _, existing := range current {
		if !changed[catalog.Normalize(existing.Name)] {
			next = append(next, existing)
		}
	}
	next = append(next, defs...)

	cat, err := catalog.New(next)
	if err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	for _, def := range defs {
		params, err := tierToParams(def)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to encode tier features")
		}
		if _, err := a.queries.UpsertSubscriptionTier(ctx, params); err != nil {
			return nil, domain.UpstreamUnavailable(op, "failed to store tier", err)
		}
		a.logger.Info("tier stored",
			"tier", def.Name,
			"rank", def.Rank,
			"monthly_upload_limit", def.MonthlyUploadLimit,
			"file_size_limit_mb", def.FileSizeLimitMB,
		)
	}

	return cat, nil
}
