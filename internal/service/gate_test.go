package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaGate_PaidUploadCommits(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 0.5)
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionPaid, res.Path)
	assert.Equal(t, "starter", res.TierName)
	assert.Equal(t, 1, res.UploadsUsed)
	assert.Equal(t, 100, res.UploadLimit)
	assert.Equal(t, 99, res.Remaining)
	assert.False(t, res.NeedsTrialConfirmation())
	assert.Equal(t, 1, f.used(t, userID))
}

func TestQuotaGate_FileTooLargeConsumesNothing(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)

	_, err := f.gate.CheckAndReserve(context.Background(), userID, 1.5)
	require.Error(t, err)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
	assert.Equal(t, domain.DenyFileTooLarge, domain.DenyReasonOf(err))
	assert.Contains(t, domain.ErrorMessage(err), "1 MB limit")
	assert.Equal(t, 0, f.used(t, userID))
}

func TestQuotaGate_FileAtLimitIsAllowed(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("professional", domain.BillingIntervalMonthly)

	_, err := f.gate.CheckAndReserve(context.Background(), userID, 2.0)
	assert.NoError(t, err)
}

func TestQuotaGate_LastUploadThenQuotaExceeded(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)
	f.setUsage(userID, "starter", 100, 99)

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 100, res.UploadsUsed)
	assert.Equal(t, 0, res.Remaining)

	_, err = f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	require.Error(t, err)
	assert.Equal(t, domain.DenyQuotaExceeded, domain.DenyReasonOf(err))
	assert.Equal(t, "File upload limit reached. You have used 100/100 uploads for your starter plan.", domain.ErrorMessage(err))
	assert.Equal(t, 100, f.used(t, userID))
}

func TestQuotaGate_YearlyMultipliesLimit(t *testing.T) {
	defs := catalog.Defaults()
	for i := range defs {
		if defs[i].Name == "professional" {
			defs[i].MonthlyUploadLimit = 50
		}
	}
	defs[0].MonthlyUploadLimit = 25
	cat, err := catalog.New(defs)
	require.NoError(t, err)

	f := buildFixture(cat)
	userID := f.subscribe("professional", domain.BillingIntervalYearly)
	f.setUsage(userID, "professional", 600, 599)

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 1)
	require.NoError(t, err)
	assert.Equal(t, 600, res.UploadLimit)
	assert.Equal(t, 600, res.UploadsUsed)

	_, err = f.gate.CheckAndReserve(context.Background(), userID, 1)
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
}

func TestQuotaGate_ReconcilesDriftBeforeCommit(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("professional", domain.BillingIntervalMonthly)
	f.setUsage(userID, "starter", 100, 100)

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UploadsUsed)
	assert.Equal(t, 250, res.UploadLimit)
}

func TestQuotaGate_TrialPath(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 0.9)
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionTrial, res.Path)
	assert.True(t, res.NeedsTrialConfirmation())
	assert.Equal(t, 1.0, res.FileSizeLimitMB)

	// Reserving does not consume the trial or any paid quota.
	profile, ok := f.store.Profile(userID)
	require.True(t, ok)
	assert.False(t, profile.TrialUsed)
	assert.Equal(t, 0, f.used(t, userID))
}

func TestQuotaGate_TrialUsed(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	require.NoError(t, f.trial.Confirm(context.Background(), userID))

	_, err := f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	require.Error(t, err)
	assert.Equal(t, domain.DenyNotSubscribedAndTrialUsed, domain.DenyReasonOf(err))
	assert.Contains(t, domain.ErrorMessage(err), "subscribe")
}

func TestQuotaGate_TrialFileTooLarge(t *testing.T) {
	f := newFixture(t)

	_, err := f.gate.CheckAndReserve(context.Background(), uuid.New(), 2.5)
	assert.Equal(t, domain.DenyFileTooLarge, domain.DenyReasonOf(err))
}

func TestQuotaGate_TrialUsedDoesNotAffectSubscriber(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)
	require.NoError(t, f.trial.Confirm(context.Background(), userID))

	res, err := f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionPaid, res.Path)
}

func TestQuotaGate_UnknownTierDenies(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("gold", domain.BillingIntervalMonthly)

	_, err := f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	assert.Equal(t, domain.DenyConfigurationError, domain.DenyReasonOf(err))
	assert.Equal(t, 0, f.used(t, userID))
}

func TestQuotaGate_InvalidSize(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)

	for _, size := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := f.gate.CheckAndReserve(context.Background(), userID, size)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err), "size %v", size)
	}
}

func TestQuotaGate_StoreFailureDenies(t *testing.T) {
	f := newFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly)
	f.store.Err = errors.New("connection reset")

	_, err := f.gate.CheckAndReserve(context.Background(), userID, 0.1)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, "Something went wrong. Please try again.", domain.ErrorMessage(err))
}

func TestQuotaGate_Snapshot(t *testing.T) {
	t.Run("subscriber", func(t *testing.T) {
		f := newFixture(t)
		userID := f.subscribe("professional", domain.BillingIntervalMonthly)
		f.setUsage(userID, "professional", 250, 40)

		snap, err := f.gate.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, snap.Subscribed)
		assert.Equal(t, 40, snap.UploadsUsed)
		assert.Equal(t, 210, snap.Remaining)
		assert.False(t, snap.TrialAvailable)
		assert.Equal(t, 40, f.used(t, userID), "snapshot does not consume")
	})

	t.Run("pending tier change", func(t *testing.T) {
		f := newFixture(t)
		userID := f.subscribe("enterprise", domain.BillingIntervalMonthly)
		f.setUsage(userID, "starter", 100, 80)

		snap, err := f.gate.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, 0, snap.UploadsUsed)
		assert.Equal(t, 1000, snap.Remaining)
	})

	t.Run("trial available", func(t *testing.T) {
		f := newFixture(t)

		snap, err := f.gate.Snapshot(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.False(t, snap.Subscribed)
		assert.True(t, snap.TrialAvailable)
		assert.Equal(t, 1, snap.Remaining)
		assert.Equal(t, 1.0, snap.FileSizeLimitMB)
	})

	t.Run("trial used", func(t *testing.T) {
		f := newFixture(t)
		userID := uuid.New()
		require.NoError(t, f.trial.Confirm(context.Background(), userID))

		snap, err := f.gate.Snapshot(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, snap.TrialUsed)
		assert.False(t, snap.TrialAvailable)
		assert.Equal(t, 0, snap.Remaining)
	})
}
