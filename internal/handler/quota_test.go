package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaHandler_RequiresUser(t *testing.T) {
	f := newAPIFixture(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/entitlement"},
		{"POST", "/api/uploads/reserve"},
		{"POST", "/api/trial/confirm"},
	} {
		rec := f.do(tc.method, tc.path, uuid.Nil, `{"file_size_mb":0.5}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, domain.EUNAUTHORIZED, decodeError(t, rec).Error.Code, tc.path)
	}
}

func TestQuotaHandler_EntitlementUnsubscribed(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do("GET", "/api/entitlement", uuid.New(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[EntitlementResponse](t, rec)
	assert.False(t, got.Subscribed)
	assert.Empty(t, got.Tier)
	assert.True(t, got.TrialAvailable)
	assert.False(t, got.TrialUsed)
	assert.Equal(t, 1, got.Remaining)
	assert.Equal(t, 1.0, got.FileSizeLimitMB)
}

func TestQuotaHandler_EntitlementSubscribed(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.subscribe("professional", domain.BillingIntervalYearly, "cus_1")

	rec := f.do("GET", "/api/entitlement", userID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[EntitlementResponse](t, rec)
	assert.True(t, got.Subscribed)
	assert.Equal(t, "professional", got.Tier)
	assert.Equal(t, "yearly", got.BillingInterval)
	assert.Equal(t, 3000, got.UploadLimit)
	assert.Equal(t, 3000, got.Remaining)
	assert.Equal(t, 2.0, got.FileSizeLimitMB)
	assert.NotNil(t, got.PeriodEnd)
	assert.False(t, got.TrialAvailable, "subscribers never see the trial")
}

func TestQuotaHandler_ReservePaid(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly, "")

	rec := f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[ReservationResponse](t, rec)
	assert.True(t, got.Allowed)
	assert.Equal(t, "paid", got.Path)
	assert.Equal(t, "starter", got.Tier)
	assert.Equal(t, 1, got.UploadsUsed)
	assert.Equal(t, 99, got.Remaining)
	assert.False(t, got.RequiresTrialConfirmation)

	usage, ok := f.store.Usage(userID)
	require.True(t, ok)
	assert.EqualValues(t, 1, usage.UploadsUsed)
}

func TestQuotaHandler_ReserveDenials(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *apiFixture) uuid.UUID
		body   string
		status int
		reason string
	}{
		{
			name: "file over tier limit",
			setup: func(f *apiFixture) uuid.UUID {
				return f.subscribe("starter", domain.BillingIntervalMonthly, "")
			},
			body:   `{"file_size_mb":1.5}`,
			status: http.StatusRequestEntityTooLarge,
			reason: "file_too_large",
		},
		{
			name: "quota used up",
			setup: func(f *apiFixture) uuid.UUID {
				id := f.subscribe("starter", domain.BillingIntervalMonthly, "")
				f.setUsage(id, "starter", 100, 100)
				return id
			},
			body:   `{"file_size_mb":0.5}`,
			status: http.StatusForbidden,
			reason: "quota_exceeded",
		},
		{
			name: "trial file over lowest tier limit",
			setup: func(f *apiFixture) uuid.UUID {
				return uuid.New()
			},
			body:   `{"file_size_mb":1.01}`,
			status: http.StatusRequestEntityTooLarge,
			reason: "file_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			userID := tt.setup(f)

			rec := f.do("POST", "/api/uploads/reserve", userID, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.reason, decodeError(t, rec).Error.Reason)
		})
	}
}

func TestQuotaHandler_ReserveBoundaryIsInclusive(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly, "")

	rec := f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":1}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestQuotaHandler_ReserveValidation(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing size", `{}`, "file_size_mb"},
		{"negative size", `{"file_size_mb":-1}`, "file_size_mb"},
		{"unknown field", `{"file_size_mb":1,"tier":"enterprise"}`, ""},
		{"not json", `file_size_mb=1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do("POST", "/api/uploads/reserve", userID, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decodeError(t, rec)
			assert.Equal(t, domain.EINVALID, body.Error.Code)
			if tt.field != "" {
				assert.Contains(t, body.Error.Fields, tt.field)
			}
		})
	}

	_, touched := f.store.Usage(userID)
	assert.False(t, touched, "invalid requests never reach the ledger")
}

func TestQuotaHandler_TrialFlow(t *testing.T) {
	f := newAPIFixture(t)
	userID := uuid.New()

	rec := f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[ReservationResponse](t, rec)
	assert.Equal(t, "trial", res.Path)
	assert.True(t, res.RequiresTrialConfirmation)

	// Reserving does not consume the trial.
	rec = f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":0.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do("POST", "/api/trial/confirm", userID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"trial_used":true}`, rec.Body.String())

	rec = f.do("POST", "/api/trial/confirm", userID, "")
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "not_subscribed_and_trial_used", decodeError(t, rec).Error.Reason)

	rec = f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":0.5}`)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "not_subscribed_and_trial_used", decodeError(t, rec).Error.Reason)

	rec = f.do("GET", "/api/entitlement", userID, "")
	got := decodeBody[EntitlementResponse](t, rec)
	assert.True(t, got.TrialUsed)
	assert.False(t, got.TrialAvailable)
	assert.Equal(t, 0, got.Remaining)
}

func TestQuotaHandler_StoreUnavailable(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.subscribe("starter", domain.BillingIntervalMonthly, "")
	f.store.Err = errors.New("dial tcp 10.0.0.5:5432: connection refused")

	rec := f.do("POST", "/api/uploads/reserve", userID, `{"file_size_mb":0.5}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, domain.EUNAVAILABLE, body.Error.Code)
	assert.Empty(t, body.Error.Reason)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
