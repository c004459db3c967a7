package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poller metrics
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztconsole_poll_cycles_total",
			Help: "Total number of poll cycles run",
		},
		[]string{"subscription", "result"}, // result: ok/error/panic
	)

	PollCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ztconsole_poll_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		},
		[]string{"subscription"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ztconsole_active_subscriptions",
			Help: "Number of running poll subscriptions",
		},
	)

	// Authorization API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztconsole_api_requests_total",
			Help: "Total number of authorization API requests",
		},
		[]string{"op", "kind"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ztconsole_api_request_duration_seconds",
			Help:    "Authorization API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"op"},
	)

	// Reconciliation metrics
	PendingIntents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ztconsole_pending_intents",
			Help: "Optimistic admin intents awaiting confirmation",
		},
	)

	IntentConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztconsole_intent_conflicts_total",
			Help: "Intents contradicted by consecutive snapshots",
		},
		[]string{"kind"},
	)

	AdminActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ztconsole_admin_actions_total",
			Help: "Admin mutations issued through the gateway",
		},
		[]string{"action", "result"},
	)

	AuditChainBreaks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ztconsole_audit_chain_breaks",
			Help: "Audit chain linkage mismatches in the last verified chain",
		},
	)
)
