// Package service contains the business logic layer.
//
// This file implements the entitlement resolver: the one place a user's
// subscription state is turned into upload and file-size limits.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementResolver determines what a user may consume right now.
type EntitlementResolver interface {
	// Resolve returns the user's entitlement. Users never synced with the
	// billing provider resolve to domain.Unsubscribed, not an error. Unknown
	// tiers are a configuration error; store failures are upstream errors.
	Resolve(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error)

	// ResolveState derives an entitlement from an already loaded state.
	ResolveState(state *domain.SubscriptionState) (*domain.Entitlement, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementResolver struct {
	queries repository.Querier
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewEntitlementResolver creates a new EntitlementResolver.
func NewEntitlementResolver(queries repository.Querier, cat *catalog.Catalog, logger *slog.Logger) EntitlementResolver {
	return &entitlementResolver{
		queries: queries,
		catalog: cat,
		logger:  logger,
	}
}

func (r *entitlementResolver) Resolve(ctx context.Context, userID uuid.UUID) (*domain.Entitlement, error) {
	const op = "entitlement.resolve"

	row, err := r.queries.GetSubscriptionState(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			unsubscribed := domain.Unsubscribed
			return &unsubscribed, nil
		}
		r.logger.Error("failed to read subscription state", "user_id", userID, "error", err)
		return nil, domain.UpstreamUnavailable(op, "failed to read subscription state", err)
	}

	ent, err := r.ResolveState(subscriptionStateToDomain(row))
	if err != nil {
		r.logger.Error("entitlement resolution failed",
			"user_id", userID,
			"tier", row.TierName.String,
			"billing_interval", row.BillingInterval.String,
			"error", err,
		)
		return nil, err
	}
	return ent, nil
}

func (r *entitlementResolver) ResolveState(state *domain.SubscriptionState) (*domain.Entitlement, error) {
	const op = "entitlement.resolve_state"

	if state == nil || !state.Subscribed {
		unsubscribed := domain.Unsubscribed
		return &unsubscribed, nil
	}

	def, err := r.catalog.Lookup(state.TierName)
	if err != nil {
		return nil, domain.ConfigurationError(op, "subscription references unknown tier "+strconv.Quote(state.TierName), err)
	}

	if !state.BillingInterval.IsValid() {
		return nil, domain.ConfigurationError(op, "subscription has invalid billing interval "+strconv.Quote(string(state.BillingInterval)), nil)
	}

	return &domain.Entitlement{
		Subscribed:           true,
		TierName:             def.Name,
		FileSizeLimitMB:      def.FileSizeLimitMB,
		EffectiveUploadLimit: def.EffectiveUploadLimit(state.BillingInterval),
		BillingInterval:      state.BillingInterval,
		PeriodEnd:            state.PeriodEnd,
	}, nil
}
