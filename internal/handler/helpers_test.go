package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	aimock "github.com/DukeRupert/compliq/internal/ai/mock"
	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/billing"
	"github.com/DukeRupert/compliq/internal/catalog"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/repository"
	"github.com/DukeRupert/compliq/internal/service"
	"github.com/DukeRupert/compliq/internal/storage"
	"github.com/DukeRupert/compliq/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL = "https://app.compliq.test"

	// Test-only identity headers read by requireTestUser in place of a JWT.
	testUserHeader  = "X-Test-User"
	testEmailHeader = "X-Test-Email"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requireTestUser stands in for the auth middleware.
func requireTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(testUserHeader))
		if err != nil {
			UnauthorizedResponse(w, r, testLogger())
			return
		}
		ctx := auth.SetIdentity(r.Context(), &auth.Identity{
			UserID: userID,
			Email:  r.Header.Get(testEmailHeader),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiFixture serves the JSON API over the real services and an in-memory store.
type apiFixture struct {
	store     *testutil.Store
	billing   *testutil.Billing
	generator *aimock.Provider
	mux       *http.ServeMux
	limited   int
}

type fixtureOption func(*fixtureOptions)

type fixtureOptions struct {
	withoutBilling bool
}

func withoutBilling() fixtureOption {
	return func(o *fixtureOptions) { o.withoutBilling = true }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()

	var o fixtureOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := testLogger()
	cat := catalog.MustDefault()
	f := &apiFixture{
		store:     testutil.NewStore(),
		billing:   new(testutil.Billing),
		generator: aimock.New(logger),
		mux:       http.NewServeMux(),
	}

	var billingService billing.Service = f.billing
	if o.withoutBilling {
		billingService = nil
	}

	resolver := service.NewEntitlementResolver(f.store, cat, logger)
	ledger := service.NewUsageLedger(f.store, resolver, logger)
	trial := service.NewFreeTrialGate(f.store, logger)
	gate := service.NewQuotaGate(resolver, ledger, trial, cat, logger)
	sync := service.NewSubscriptionSync(f.store, billingService, resolver, ledger, logger)

	local, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)
	reports := service.NewReportService(f.store, gate, trial, f.generator, local, logger)

	countingLimit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.limited++
			next.ServeHTTP(w, r)
		})
	}

	v := NewValidator()
	NewQuotaHandler(gate, trial, v, logger).RegisterRoutes(f.mux, requireTestUser)
	NewDocumentHandler(reports, v, 10, logger).RegisterRoutes(f.mux, requireTestUser, countingLimit)
	NewBillingHandler(billingService, sync, testBaseURL, v, logger).RegisterRoutes(f.mux, requireTestUser)
	NewWebhookHandler(billingService, sync, logger).RegisterRoutes(f.mux)

	t.Cleanup(func() { f.billing.AssertExpectations(t) })
	return f
}

// do sends a request as userID. uuid.Nil sends it unauthenticated.
func (f *apiFixture) do(method, path string, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		req.Header.Set(testUserHeader, userID.String())
		req.Header.Set(testEmailHeader, emailFor(userID))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func emailFor(userID uuid.UUID) string {
	return "user-" + userID.String()[:8] + "@example.com"
}

// subscribe stores an active subscription for a new user.
func (f *apiFixture) subscribe(tier string, interval domain.BillingInterval, customerID string) uuid.UUID {
	userID := uuid.New()
	end := time.Now().Add(30 * 24 * time.Hour)
	f.store.SetSubscription(repository.SubscriptionState{
		UserID:           userID,
		Subscribed:       true,
		TierName:         sql.NullString{String: tier, Valid: true},
		BillingInterval:  sql.NullString{String: string(interval), Valid: true},
		PeriodEnd:        sql.NullTime{Time: end, Valid: true},
		StripeCustomerID: sql.NullString{String: customerID, Valid: customerID != ""},
	})
	return userID
}

func (f *apiFixture) setUsage(userID uuid.UUID, tier string, limit, used int) {
	f.store.SetUsage(repository.UsageRecord{
		UserID:               userID,
		BaselineTier:         tier,
		EffectiveUploadLimit: int32(limit),
		UploadsUsed:          int32(used),
		UpdatedAt:            time.Now(),
	})
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) JSONError {
	t.Helper()
	return decodeBody[JSONError](t, rec)
}
