// Package service contains the business logic layer.
//
// This file implements the subscription sync path: the only writer of
// subscription state. It is driven by the explicit status check, the Stripe
// webhook and the expired-period sweep.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
)

// Sync triggers, used as metric labels.
const (
	TriggerCheck   = "check"
	TriggerWebhook = "webhook"
	TriggerSweep   = "sweep"
)

// SyncResult is what a sync leaves behind.
type SyncResult struct {
	State          *domain.SubscriptionState
	Entitlement    *domain.Entitlement
	Usage          *domain.UsageRecord
	Reconciliation *domain.Reconciliation
}

// SubscriptionSync pulls subscription state from the billing provider.
type SubscriptionSync interface {
	// Sync refreshes the user's subscription from the billing provider. The
	// stored customer id is preferred; email is used for first contact.
	Sync(ctx context.Context, userID uuid.UUID, email, trigger string) (*SyncResult, error)

	// SyncCustomer refreshes the user owning a Stripe customer. When the
	// customer is not yet linked, clientReferenceID (our user id, set at
	// checkout) identifies the user. Unknown customers return NotFound.
	SyncCustomer(ctx context.Context, customerID, clientReferenceID string) (*SyncResult, error)

	// State returns the stored subscription state, or nil if the user was
	// never synced.
	State(ctx context.Context, userID uuid.UUID) (*domain.SubscriptionState, error)

	// SweepExpired re-syncs up to batch users whose billing period ended
	// before now. It returns how many were synced successfully.
	SweepExpired(ctx context.Context, now time.Time, batch int) (int, error)
}

type subscriptionSync struct {
	queries  repository.Querier
	billing  billing.Service
	resolver EntitlementResolver
	ledger   UsageLedger
	logger   *slog.Logger
}

// NewSubscriptionSync creates a new SubscriptionSync.
func NewSubscriptionSync(queries repository.Querier, billingService billing.Service, resolver EntitlementResolver, ledger UsageLedger, logger *slog.Logger) SubscriptionSync {
	return &subscriptionSync{
		queries:  queries,
		billing:  billingService,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
	}
}

func (s *subscriptionSync) Sync(ctx context.Context, userID uuid.UUID, email, trigger string) (result *SyncResult, err error) {
	const op = "subscription.sync"

	start := time.Now()
	defer func() {
		metrics.SyncCompleted(trigger, time.Since(start), err)
	}()

	profile, err := s.queries.EnsureProfile(ctx, repository.EnsureProfileParams{UserID: userID, Email: email})
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to load profile", err)
	}

	prior, err := s.queries.GetSubscriptionState(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.UpstreamUnavailable(op, "failed to read subscription state", err)
	}

	var snap *billing.Snapshot
	switch {
	case prior.StripeCustomerID.Valid && prior.StripeCustomerID.String != "":
		snap, err = s.billing.LookupByCustomer(ctx, prior.StripeCustomerID.String)
	case profile.Email != "":
		snap, err = s.billing.LookupByEmail(ctx, profile.Email)
	default:
		return nil, domain.Invalid(op, "An email address is required to look up your subscription.")
	}
	if err != nil {
		s.logger.Error("billing lookup failed", "user_id", userID, "trigger", trigger, "error", err)
		return nil, domain.UpstreamUnavailable(op, "billing provider unavailable", err)
	}

	return s.apply(ctx, userID, snap, trigger)
}

// apply persists a billing snapshot and reconciles the ledger against it.
func (s *subscriptionSync) apply(ctx context.Context, userID uuid.UUID, snap *billing.Snapshot, trigger string) (*SyncResult, error) {
	const op = "subscription.apply"

	params := repository.UpsertSubscriptionStateParams{
		UserID:               userID,
		Subscribed:           snap.Subscribed,
		StripeCustomerID:     nullString(snap.CustomerID),
		StripeSubscriptionID: nullString(snap.SubscriptionID),
	}
	if snap.Subscribed {
		params.TierName = nullString(catalog.Normalize(snap.TierName))
		params.BillingInterval = nullString(string(snap.Interval))
		if snap.PeriodEnd != nil {
			params.PeriodEnd = sql.NullTime{Time: *snap.PeriodEnd, Valid: true}
		}
	}

	row, err := s.queries.UpsertSubscriptionState(ctx, params)
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to store subscription state", err)
	}
	state := subscriptionStateToDomain(row)

	if err := s.queries.UpdateProfileSubscriptionStatus(ctx, repository.UpdateProfileSubscriptionStatusParams{
		UserID:             userID,
		SubscriptionStatus: string(state.Status()),
	}); err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to update profile", err)
	}

	// Resolve before reconciling so an unknown tier surfaces here rather
	// than at the next upload.
	ent, err := s.resolver.ResolveState(state)
	if err != nil {
		s.logger.Error("synced subscription does not resolve",
			"user_id", userID,
			"tier", state.TierName,
			"price_id", snap.PriceID,
			"error", err,
		)
		return nil, err
	}

	rec, err := s.ledger.ReconcileOnEntitlementChange(ctx, userID, ent.TierName)
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription synced",
		"user_id", userID,
		"trigger", trigger,
		"subscribed", state.Subscribed,
		"tier", state.TierName,
		"billing_interval", state.BillingInterval,
		"usage_reset", rec.Reset,
	)

	return &SyncResult{
		State:          state,
		Entitlement:    ent,
		Usage:          rec.Record,
		Reconciliation: rec,
	}, nil
}

func (s *subscriptionSync) SyncCustomer(ctx context.Context, customerID, clientReferenceID string) (*SyncResult, error) {
	const op = "subscription.sync_customer"

	userID, err := s.userForCustomer(ctx, customerID, clientReferenceID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := s.billing.LookupByCustomer(ctx, customerID)
	if err != nil {
		err = domain.UpstreamUnavailable(op, "billing provider unavailable", err)
		metrics.SyncCompleted(TriggerWebhook, time.Since(start), err)
		return nil, err
	}

	result, err := s.apply(ctx, userID, snap, TriggerWebhook)
	metrics.SyncCompleted(TriggerWebhook, time.Since(start), err)
	return result, err
}

func (s *subscriptionSync) userForCustomer(ctx context.Context, customerID, clientReferenceID string) (uuid.UUID, error) {
	const op = "subscription.user_for_customer"

	if customerID == "" {
		return uuid.Nil, domain.Invalid(op, "customer id is required")
	}

	row, err := s.queries.GetSubscriptionStateByCustomerID(ctx, customerID)
	if err == nil {
		return row.UserID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, domain.UpstreamUnavailable(op, "failed to look up customer", err)
	}

	if clientReferenceID != "" {
		userID, perr := uuid.Parse(clientReferenceID)
		if perr != nil {
			return uuid.Nil, domain.Invalid(op, "client reference id is not a user id")
		}
		if _, err := s.queries.EnsureProfile(ctx, repository.EnsureProfileParams{UserID: userID}); err != nil {
			return uuid.Nil, domain.UpstreamUnavailable(op, "failed to load profile", err)
		}
		return userID, nil
	}

	return uuid.Nil, domain.NotFound(op, "customer", customerID)
}

func (s *subscriptionSync) SweepExpired(ctx context.Context, now time.Time, batch int) (int, error) {
	const op = "subscription.sweep_expired"

	if batch <= 0 {
		batch = 100
	}

	rows, err := s.queries.ListSubscriptionStatesDue(ctx, repository.ListSubscriptionStatesDueParams{
		Before: now,
		Limit:  int32(batch),
	})
	if err != nil {
		return 0, domain.UpstreamUnavailable(op, "failed to list expired subscriptions", err)
	}

	synced := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if _, err := s.Sync(ctx, row.UserID, "", TriggerSweep); err != nil {
			s.logger.Warn("sweep sync failed", "user_id", row.UserID, "error", err)
			continue
		}
		synced++
	}

	if len(rows) > 0 {
		s.logger.Info("expired subscriptions swept", "due", len(rows), "synced", synced)
	}
	return synced, nil
}

func (s *subscriptionSync) State(ctx context.Context, userID uuid.UUID) (*domain.SubscriptionState, error) {
	const op = "subscription.state"

	row, err := s.queries.GetSubscriptionState(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.UpstreamUnavailable(op, "failed to read subscription state", err)
	}
	return subscriptionStateToDomain(row), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
