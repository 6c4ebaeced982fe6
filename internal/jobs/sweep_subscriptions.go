// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/compliq/internal/service"
)

// JobTypeSweepSubscriptions identifies the expired-period sweep.
const JobTypeSweepSubscriptions = "sweep_subscriptions"

// SweepSubscriptionsHandler re-syncs users whose billing period ended, so
// renewals and cancellations land even when a webhook was missed.
type SweepSubscriptionsHandler struct {
	sync   service.SubscriptionSync
	batch  int
	now    func() time.Time
	logger *slog.Logger
}

// NewSweepSubscriptionsHandler creates the sweep job. batch bounds how many
// users one run syncs.
func NewSweepSubscriptionsHandler(sync service.SubscriptionSync, batch int, logger *slog.Logger) *SweepSubscriptionsHandler {
	return &SweepSubscriptionsHandler{
		sync:   sync,
		batch:  batch,
		now:    time.Now,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SweepSubscriptionsHandler) Type() string {
	return JobTypeSweepSubscriptions
}

// Handle runs one sweep.
func (h *SweepSubscriptionsHandler) Handle(ctx context.Context) error {
	synced, err := h.sync.SweepExpired(ctx, h.now(), h.batch)
	if err != nil {
		return err
	}

	if synced > 0 {
		h.logger.Info("expired subscriptions re-synced", "count", synced)
	}
	if synced == h.batch {
		h.logger.Warn("sweep hit its batch size, remaining users wait for the next run", "batch", h.batch)
	}
	return nil
}
