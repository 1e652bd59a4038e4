package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NOTE: All metrics are defined globally here. Both binaries initialize
// the full set, so the syncer exports API metrics with zero values and
// vice versa. Harmless today; split into sub-packages if the set grows.

// namespace defines the global prefix for all metrics (rules_...).
const namespace = "rules"

// lowLatencyBuckets gives millisecond resolution for the event dispatch
// hot path. Standard buckets start at 5ms, which is too coarse for
// cache-backed predicate evaluation. Range: 1ms to 500ms.
var lowLatencyBuckets = []float64{.001, .002, .005, .010, .015, .020, .025, .030, .050, .100, .500}

var (
	// -------------------------------------------------------------------------
	// API (HTTP)
	// -------------------------------------------------------------------------

	// APIReqDuration measures the latency of HTTP requests.
	// Metric: rules_api_http_handling_seconds
	APIReqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_handling_seconds",
		Help:      "Time taken to handle HTTP requests",
		Buckets:   prometheus.DefBuckets, // Admin traffic runs at human speed
	}, []string{"method", "path"})

	// APIReqTotal counts the total number of HTTP requests.
	// Metric: rules_api_http_requests_total
	APIReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "path", "code"})

	// -------------------------------------------------------------------------
	// ENGINE (event dispatch hot path)
	// -------------------------------------------------------------------------

	// EngineEventsProcessed counts events run through ProcessEvent.
	// Metric: rules_engine_events_processed_total
	EngineEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "events_processed_total",
		Help:      "Total events evaluated against cached predicates",
	}, []string{"entity"})

	// EngineRulesTriggered counts rule matches across all events.
	// Metric: rules_engine_rules_triggered_total
	EngineRulesTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "rules_triggered_total",
		Help:      "Total rules whose predicate matched an event",
	}, []string{"entity"})

	// EngineDispatchDuration measures one full ProcessEvent call,
	// including action fan-out.
	// Metric: rules_engine_dispatch_seconds
	EngineDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "dispatch_seconds",
		Help:      "Time taken to evaluate one event and execute matching actions",
		Buckets:   lowLatencyBuckets,
	}, []string{"entity"})

	// EngineCacheFailures counts events dropped to "no rules match"
	// because the predicate cache was unavailable.
	// Metric: rules_engine_cache_failures_total
	EngineCacheFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "cache_failures_total",
		Help:      "Total events degraded to no-match due to cache unavailability",
	})

	// ActionsExecuted counts action executions by kind and outcome.
	// Metric: rules_engine_actions_executed_total
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "actions_executed_total",
		Help:      "Total actions executed, labeled by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome: success, failure

	// -------------------------------------------------------------------------
	// PREDICATE CACHE
	// -------------------------------------------------------------------------

	// PredicateCacheOps counts cache operations by op and outcome.
	// Metric: rules_predicate_cache_operations_total
	PredicateCacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "predicate_cache",
		Name:      "operations_total",
		Help:      "Total predicate cache operations",
	}, []string{"op", "outcome"}) // op: put, delete, list

	// PredicateCachePoisonEntries counts cached blobs that failed to
	// decode and were skipped. A non-zero rate means a version skew or a
	// corrupted write; the syncer repairs both on its next cycle.
	// Metric: rules_predicate_cache_poison_entries_total
	PredicateCachePoisonEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "predicate_cache",
		Name:      "poison_entries_total",
		Help:      "Total cached predicates skipped because they failed to decode",
	})

	// -------------------------------------------------------------------------
	// SYNCER
	// -------------------------------------------------------------------------

	// SyncerCycleDuration measures one full reconciliation cycle.
	// Metric: rules_syncer_cycle_duration_seconds
	SyncerCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "cycle_duration_seconds",
		Help:      "Time taken to reconcile the predicate cache with the rules table",
		Buckets:   prometheus.DefBuckets,
	})

	// SyncerRulesSynced counts per-rule reconciliation outcomes.
	// Metric: rules_syncer_rules_total
	SyncerRulesSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "rules_total",
		Help:      "Total rules reconciled into the predicate cache",
	}, []string{"status"}) // published, removed, fail
)
