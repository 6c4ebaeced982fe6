package metrics

import (
	"time"

	"github.com/DukeRupert/compliq/internal/domain"
)

// Allowed records an admitted reservation.
func Allowed(path domain.AdmissionPath) {
	QuotaDecisionsTotal.WithLabelValues("allow", string(path), "").Inc()
}

// Denied records a refused reservation. Errors without a deny reason (for
// example an unreachable store) are recorded as "unavailable".
func Denied(path domain.AdmissionPath, err error) {
	reason := string(domain.DenyReasonOf(err))
	if reason == "" {
		reason = domain.ErrorCode(err)
	}
	QuotaDecisionsTotal.WithLabelValues("deny", string(path), reason).Inc()
}

// SyncCompleted records a billing provider sync.
func SyncCompleted(trigger string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = domain.ErrorCode(err)
	}
	SubscriptionSyncsTotal.WithLabelValues(trigger, result).Inc()
	SubscriptionSyncDuration.Observe(duration.Seconds())
}

// ReportFinished records the outcome of one report generation.
func ReportFinished(reportType domain.ReportType, provider string, duration time.Duration, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	ReportsGenerated.WithLabelValues(string(reportType), status).Inc()
	ReportGenerationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// TrialUnconfirmed records a trial-path report whose confirmation failed. A
// TrialAlreadyUsed error means a concurrent request confirmed first.
func TrialUnconfirmed(err error) {
	result := "error"
	if domain.ErrorCode(err) == domain.ETRIAL {
		result = "lost_race"
	}
	TrialReportsUnconfirmedTotal.WithLabelValues(result).Inc()
}
