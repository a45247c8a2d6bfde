package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "holdergate"

var (
	// Verification queue
	VerificationAttemptsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "attempts_started_total",
		Help:      "Total verification attempts accepted into the queue",
	})

	VerificationAttemptsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "attempts_resolved_total",
		Help:      "Total verification attempts leaving the queue, by outcome",
	}, []string{"outcome"})

	VerificationPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "pending_attempts",
		Help:      "Verification attempts currently waiting for a matching self-transfer",
	})

	VerificationLookupErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "lookup_errors_total",
		Help:      "Self-transfer lookups that failed and were treated as no match",
	})

	VerificationPollLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "verification",
		Name:      "poll_duration_seconds",
		Help:      "Duration of one verification queue poll",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Cool-down gate
	CooldownRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cooldown",
		Name:      "rejections_total",
		Help:      "Verify requests rejected by the per-identity cool-down",
	})

	CooldownRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cooldown",
		Name:      "records",
		Help:      "Identities currently tracked by the cool-down gate",
	})

	// Reconciliation
	ReconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "runs_total",
		Help:      "Total holder reconciliations, by result",
	}, []string{"result"})

	RoleMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "role_mutations_total",
		Help:      "Role additions and removals attempted on members",
	}, []string{"op", "status"})

	SweepLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full reconciliation sweep",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})

	VerifiedHolders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "verified_holders",
		Help:      "Verified holders known to the process",
	})

	// Chain data sources
	SourceCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "source_calls_total",
		Help:      "Calls to chain data sources, by status classification",
	}, []string{"source", "method", "status"})

	SourceRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "rate_limit_waits_total",
		Help:      "Times a chain source call waited for the outbound rate limiter",
	}, []string{"source"})

	SourceBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per source (0=closed, 1=open, 2=half-open)",
	}, []string{"source"})

	HoldingsCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "holdings_cache_lookups_total",
		Help:      "Holdings cache lookups, by result",
	}, []string{"result"})

	// Setup wizard
	SetupSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "setup",
		Name:      "sessions_total",
		Help:      "Setup wizard sessions, by outcome",
	}, []string{"outcome"})

	// Backup
	BackupDumpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "dumps_total",
		Help:      "Backup messages written to channels, by status",
	}, []string{"status"})

	RestoredHoldersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "restored_holders_total",
		Help:      "Holders restored from backup messages",
	})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent, by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by cooldown, by channel and type",
	}, []string{"channel", "type"})
)
