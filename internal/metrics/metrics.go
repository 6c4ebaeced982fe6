package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "compliq"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Background job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"type", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time distribution",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type"},
	)
)

// Quota metrics
var (
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "checkAndReserve outcomes by admission path and deny reason",
		},
		[]string{"outcome", "path", "reason"},
	)

	UsageCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_commits_total",
			Help:      "Usage ledger commits by result",
		},
		[]string{"result"}, // "committed", "quota_exceeded", "error"
	)

	UsageResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_resets_total",
			Help:      "Usage counters reset because the subscribed tier changed",
		},
	)

	UnrefundedFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unrefunded_failures_total",
			Help:      "Paid quota units consumed by report generations that then failed",
		},
	)

	TrialConfirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_confirmations_total",
			Help:      "confirmTrialUse calls by result",
		},
		[]string{"result"}, // "confirmed", "already_used", "error"
	)

	TrialReportsUnconfirmedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trial_reports_unconfirmed_total",
			Help:      "Reports delivered on the trial path whose trial confirmation failed",
		},
		[]string{"result"}, // "lost_race", "error"
	)
)

// Billing sync metrics
var (
	SubscriptionSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_syncs_total",
			Help:      "Billing provider syncs by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	SubscriptionSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subscription_sync_duration_seconds",
			Help:      "Billing provider sync latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Report generation metrics
var (
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		},
		[]string{"report_type", "status"},
	)

	ReportGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_generation_duration_seconds",
			Help:      "Report generator latency",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	AIAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_api_calls_total",
			Help:      "Total number of AI API calls",
		},
		[]string{"provider", "status"},
	)
)

// AI cost tracking metrics (aggregate totals - no user label to avoid cardinality)
var (
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Total AI tokens consumed",
		},
		[]string{"provider", "type"}, // type is "input" or "output"
	)

	AICostCentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_cost_cents_total",
			Help:      "Total AI cost in cents",
		},
		[]string{"provider"},
	)
)
