package service

import (
	"context"
	"strings"
	"testing"

	"github.com/DukeRupert/compliq/internal/ai"
	aimock "github.com/DukeRupert/compliq/internal/ai/mock"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/DukeRupert/compliq/internal/storage"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	*fixture
	generator *aimock.Provider
	storage   *storage.LocalStorage
	service   ReportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	f := newFixture(t)
	gen := aimock.New(testLogger())
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)
	return &reportFixture{
		fixture:   f,
		generator: gen,
		storage:   store,
		service:   NewReportService(f.store, f.gate, f.trial, gen, store, testLogger()),
	}
}

func textDocument(n int) []byte {
	return []byte(strings.Repeat("a", n))
}

func TestReportService_PaidDocument(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()
	userID := rf.subscribe("starter", domain.BillingIntervalMonthly)

	res, err := rf.service.ProcessDocument(ctx, ProcessDocumentParams{
		UserID:     userID,
		Filename:   "policy.txt",
		Document:   []byte("We process customer emails for marketing."),
		ReportType: domain.ReportTypeGDPR,
		Context:    &domain.ComplianceContext{Country: "DE"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionPaid, res.Path)
	assert.False(t, res.TrialUsed)
	assert.Equal(t, 99, res.Remaining)
	assert.Equal(t, domain.ReportStatusCompleted, res.Report.Status)
	assert.Contains(t, res.Report.Content, "GDPR")
	assert.JSONEq(t, `{"country":"DE"}`, string(res.Report.ComplianceData))

	ok, err := rf.storage.Exists(ctx, res.Report.DocumentKey)
	require.NoError(t, err)
	assert.True(t, ok, "document archived")
	ok, err = rf.storage.Exists(ctx, storage.ReportKey(userID, res.Report.ID))
	require.NoError(t, err)
	assert.True(t, ok, "report archived")

	assert.Equal(t, 1, rf.generator.CallCount())
	assert.Equal(t, "DE", rf.generator.LastParams.Context.Country)
}

func TestReportService_TrialConfirmedAfterSuccess(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	res, err := rf.service.ProcessDocument(ctx, ProcessDocumentParams{
		UserID:     userID,
		Filename:   "report.pdf",
		Document:   []byte("%PDF-1.4 sustainability"),
		ReportType: domain.ReportTypeCSRD,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AdmissionTrial, res.Path)
	assert.True(t, res.TrialUsed)
	assert.Equal(t, 0, res.Remaining)

	profile, _ := rf.store.Profile(userID)
	assert.True(t, profile.TrialUsed)

	_, err = rf.service.ProcessDocument(ctx, ProcessDocumentParams{
		UserID:     userID,
		Filename:   "second.pdf",
		Document:   []byte("%PDF-1.4"),
		ReportType: domain.ReportTypeCSRD,
	})
	assert.Equal(t, domain.DenyNotSubscribedAndTrialUsed, domain.DenyReasonOf(err))
	assert.Equal(t, 1, rf.generator.CallCount())
}

// racingTrial confirms the trial on behalf of another request just before
// the wrapped confirmation runs.
type racingTrial struct {
	FreeTrialGate
}

func (r racingTrial) Confirm(ctx context.Context, userID uuid.UUID) error {
	if err := r.FreeTrialGate.Confirm(ctx, userID); err != nil {
		return err
	}
	return r.FreeTrialGate.Confirm(ctx, userID)
}

func TestReportService_TrialConfirmRaceLostIsCounted(t *testing.T) {
	rf := newReportFixture(t)
	svc := NewReportService(rf.store, rf.gate, racingTrial{rf.trial}, rf.generator, rf.storage, testLogger())
	lost := metrics.TrialReportsUnconfirmedTotal.WithLabelValues("lost_race")
	before := promtestutil.ToFloat64(lost)
	userID := uuid.New()

	res, err := svc.ProcessDocument(context.Background(), ProcessDocumentParams{
		UserID:     userID,
		Filename:   "report.pdf",
		Document:   []byte("%PDF-1.4 sustainability"),
		ReportType: domain.ReportTypeCSRD,
	})
	require.NoError(t, err, "the generated report is still delivered")
	assert.Equal(t, domain.AdmissionTrial, res.Path)
	assert.True(t, res.TrialUsed)

	assert.Equal(t, before+1, promtestutil.ToFloat64(lost))
	profile, _ := rf.store.Profile(userID)
	assert.True(t, profile.TrialUsed)
}

func TestReportService_TrialNotConsumedOnFailure(t *testing.T) {
	rf := newReportFixture(t)
	rf.generator.Err = ai.WrapError("generate report", ai.EAIUnavailable)
	userID := uuid.New()

	_, err := rf.service.ProcessDocument(context.Background(), ProcessDocumentParams{
		UserID:     userID,
		Filename:   "doc.docx",
		Document:   []byte("PK\x03\x04"),
		ReportType: domain.ReportTypeESG,
	})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	profile, _ := rf.store.Profile(userID)
	assert.False(t, profile.TrialUsed)

	reports := rf.store.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, string(domain.ReportStatusFailed), reports[0].Status)
}

func TestReportService_PaidFailureIsNotRefunded(t *testing.T) {
	rf := newReportFixture(t)
	rf.generator.Err = ai.WrapError("generate report", ai.EAITimeout)
	userID := rf.subscribe("starter", domain.BillingIntervalMonthly)

	_, err := rf.service.ProcessDocument(context.Background(), ProcessDocumentParams{
		UserID:     userID,
		Filename:   "doc.txt",
		Document:   []byte("plain text"),
		ReportType: domain.ReportTypeGDPR,
	})
	require.Error(t, err)
	assert.Equal(t, 1, rf.used(t, userID))
}

func TestReportService_RejectsBeforeReserving(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		document   []byte
		reportType domain.ReportType
		wantCode   string
	}{
		{"unknown report type", "a.pdf", []byte("x"), "sox", domain.EINVALID},
		{"unsupported extension", "a.exe", []byte("x"), domain.ReportTypeGDPR, domain.EINVALID},
		{"empty document", "a.pdf", nil, domain.ReportTypeGDPR, domain.EINVALID},
		{"script in text", "a.txt", []byte("hello <script>alert(1)</script>"), domain.ReportTypeGDPR, domain.EINVALID},
		{"over tier limit", "a.txt", textDocument(domain.BytesPerMB + 1), domain.ReportTypeGDPR, domain.ETOOLARGE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := newReportFixture(t)
			userID := rf.subscribe("starter", domain.BillingIntervalMonthly)

			_, err := rf.service.ProcessDocument(context.Background(), ProcessDocumentParams{
				UserID:     userID,
				Filename:   tt.filename,
				Document:   tt.document,
				ReportType: tt.reportType,
			})
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			assert.Equal(t, 0, rf.used(t, userID))
			assert.Equal(t, 0, rf.generator.CallCount())
		})
	}
}

func TestReportService_ListReports(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()
	userID := rf.subscribe("professional", domain.BillingIntervalMonthly)

	for i := 0; i < 3; i++ {
		_, err := rf.service.ProcessDocument(ctx, ProcessDocumentParams{
			UserID:     userID,
			Filename:   "doc.txt",
			Document:   []byte("text"),
			ReportType: domain.ReportTypeESG,
		})
		require.NoError(t, err)
	}

	reports, err := rf.service.ListReports(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	others, err := rf.service.ListReports(ctx, uuid.New(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, others)
}
