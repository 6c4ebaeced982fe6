package service

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/DukeRupert/compliq/internal/testutil"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires the quota components over an in-memory store.
type fixture struct {
	store    *testutil.Store
	catalog  *catalog.Catalog
	resolver EntitlementResolver
	ledger   UsageLedger
	trial    FreeTrialGate
	gate     QuotaGate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return buildFixture(catalog.MustDefault())
}

func buildFixture(cat *catalog.Catalog) *fixture {
	logger := testLogger()
	store := testutil.NewStore()
	resolver := NewEntitlementResolver(store, cat, logger)
	ledger := NewUsageLedger(store, resolver, logger)
	trial := NewFreeTrialGate(store, logger)
	return &fixture{
		store:    store,
		catalog:  cat,
		resolver: resolver,
		ledger:   ledger,
		trial:    trial,
		gate:     NewQuotaGate(resolver, ledger, trial, cat, logger),
	}
}

// subscribe stores an active subscription for a new user and returns the id.
func (f *fixture) subscribe(tier string, interval domain.BillingInterval) uuid.UUID {
	userID := uuid.New()
	f.setTier(userID, tier, interval)
	return userID
}

func (f *fixture) setTier(userID uuid.UUID, tier string, interval domain.BillingInterval) {
	end := time.Now().Add(30 * 24 * time.Hour)
	f.store.SetSubscription(repository.SubscriptionState{
		UserID:          userID,
		Subscribed:      true,
		TierName:        sql.NullString{String: tier, Valid: true},
		BillingInterval: sql.NullString{String: string(interval), Valid: true},
		PeriodEnd:       sql.NullTime{Time: end, Valid: true},
	})
}

func (f *fixture) setUsage(userID uuid.UUID, tier string, limit, used int) {
	f.store.SetUsage(repository.UsageRecord{
		UserID:               userID,
		BaselineTier:         tier,
		EffectiveUploadLimit: int32(limit),
		UploadsUsed:          int32(used),
		UpdatedAt:            time.Now(),
	})
}

func (f *fixture) used(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	rec, ok := f.store.Usage(userID)
	if !ok {
		return 0
	}
	return int(rec.UploadsUsed)
}
