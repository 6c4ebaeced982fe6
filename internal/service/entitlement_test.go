package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitlementResolver_NeverSynced(t *testing.T) {
	f := newFixture(t)

	ent, err := f.resolver.Resolve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ent.Subscribed)
	assert.Equal(t, 0, ent.EffectiveUploadLimit)
	assert.Equal(t, "", ent.TierName)
}

func TestEntitlementResolver_Limits(t *testing.T) {
	tests := []struct {
		name      string
		tier      string
		interval  domain.BillingInterval
		wantTier  string
		wantLimit int
		wantMB    float64
	}{
		{"starter monthly", "starter", domain.BillingIntervalMonthly, "starter", 100, 1},
		{"starter yearly", "starter", domain.BillingIntervalYearly, "starter", 1200, 1},
		{"professional monthly", "professional", domain.BillingIntervalMonthly, "professional", 250, 2},
		{"professional yearly", "professional", domain.BillingIntervalYearly, "professional", 3000, 2},
		{"enterprise monthly", "enterprise", domain.BillingIntervalMonthly, "enterprise", 1000, 3},
		{"tier name is case-insensitive", "  Professional ", domain.BillingIntervalMonthly, "professional", 250, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			userID := f.subscribe(tt.tier, tt.interval)

			ent, err := f.resolver.Resolve(context.Background(), userID)
			require.NoError(t, err)
			assert.True(t, ent.Subscribed)
			assert.Equal(t, tt.wantTier, ent.TierName)
			assert.Equal(t, tt.wantLimit, ent.EffectiveUploadLimit)
			assert.Equal(t, tt.wantMB, ent.FileSizeLimitMB)
			assert.Equal(t, tt.interval, ent.BillingInterval)
			assert.NotNil(t, ent.PeriodEnd)
		})
	}
}

func TestEntitlementResolver_UnknownTierIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("gold", domain.BillingIntervalMonthly)

	_, err := f.resolver.Resolve(context.Background(), userID)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFIG, domain.ErrorCode(err))
	assert.Equal(t, domain.DenyConfigurationError, domain.DenyReasonOf(err))
}

func TestEntitlementResolver_InvalidIntervalIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingInterval("weekly"))

	_, err := f.resolver.Resolve(context.Background(), userID)
	assert.Equal(t, domain.ECONFIG, domain.ErrorCode(err))
}

func TestEntitlementResolver_LapsedSubscription(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	f.store.SetSubscription(repository.SubscriptionState{
		UserID:     userID,
		Subscribed: false,
		TierName:   sql.NullString{String: "enterprise", Valid: true},
	})

	ent, err := f.resolver.Resolve(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ent.Subscribed)
	assert.Equal(t, 0, ent.EffectiveUploadLimit)
}

func TestEntitlementResolver_StoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("connection refused")

	_, err := f.resolver.Resolve(context.Background(), uuid.New())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestEntitlementResolver_ResolveStateNil(t *testing.T) {
	f := newFixture(t)

	ent, err := f.resolver.ResolveState(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Unsubscribed, *ent)
}
