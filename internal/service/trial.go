// Package service contains the business logic layer.
//
// This file implements the free-trial gate: one free document per user,
// independent of any paid subscription.
package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
)

// FreeTrialGate admits and confirms the single free-trial document.
type FreeTrialGate interface {
	// CheckAndReserve allows the request if the trial is unused. It does not
	// mark the trial used; callers confirm once processing succeeds.
	CheckAndReserve(ctx context.Context, userID uuid.UUID) error

	// Confirm marks the trial used. It succeeds exactly once per user; later
	// calls return a TrialAlreadyUsed error and change nothing.
	Confirm(ctx context.Context, userID uuid.UUID) error

	// State returns the user's trial flag, creating the profile if needed.
	State(ctx context.Context, userID uuid.UUID) (*domain.TrialState, error)
}

type freeTrialGate struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewFreeTrialGate creates a new FreeTrialGate.
func NewFreeTrialGate(queries repository.Querier, logger *slog.Logger) FreeTrialGate {
	return &freeTrialGate{
		queries: queries,
		logger:  logger,
	}
}

func (g *freeTrialGate) State(ctx context.Context, userID uuid.UUID) (*domain.TrialState, error) {
	const op = "trial.state"

	profile, err := g.queries.EnsureProfile(ctx, repository.EnsureProfileParams{UserID: userID})
	if err != nil {
		return nil, domain.UpstreamUnavailable(op, "failed to load profile", err)
	}
	return &domain.TrialState{UserID: userID, TrialUsed: profile.TrialUsed}, nil
}

func (g *freeTrialGate) CheckAndReserve(ctx context.Context, userID uuid.UUID) error {
	const op = "trial.check_and_reserve"

	state, err := g.State(ctx, userID)
	if err != nil {
		return err
	}
	if state.TrialUsed {
		return domain.TrialAlreadyUsed(op)
	}
	return nil
}

func (g *freeTrialGate) Confirm(ctx context.Context, userID uuid.UUID) error {
	const op = "trial.confirm"

	if _, err := g.queries.EnsureProfile(ctx, repository.EnsureProfileParams{UserID: userID}); err != nil {
		metrics.TrialConfirmationsTotal.WithLabelValues("error").Inc()
		return domain.UpstreamUnavailable(op, "failed to load profile", err)
	}

	n, err := g.queries.MarkTrialUsed(ctx, userID)
	if err != nil {
		metrics.TrialConfirmationsTotal.WithLabelValues("error").Inc()
		return domain.UpstreamUnavailable(op, "failed to mark trial used", err)
	}
	if n == 0 {
		metrics.TrialConfirmationsTotal.WithLabelValues("already_used").Inc()
		g.logger.Info("trial already used", "user_id", userID)
		return domain.TrialAlreadyUsed(op)
	}

	metrics.TrialConfirmationsTotal.WithLabelValues("confirmed").Inc()
	g.logger.Info("trial confirmed", "user_id", userID)
	return nil
}
