// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides comprehensive instrumentation for:
// - Quota ledger spend and denials
// - Discovery cycle throughput per tier
// - Platform API client latency, retries, and circuit breaker state
// - Event transport (publish/consume/poison)
// - BadgerDB store operations
// - Risk rescoring and tier transitions

var (
	// Quota Ledger Metrics
	QuotaUnitsUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quota_units_used",
			Help: "Units spent so far today per ledger",
		},
		[]string{"ledger"},
	)

	QuotaUnitsCharged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_units_charged_total",
			Help: "Total units charged per ledger and operation",
		},
		[]string{"ledger", "operation"},
	)

	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Total charges refused because the ledger budget was exhausted",
		},
		[]string{"ledger", "operation"},
	)

	QuotaUtilization = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quota_utilization_ratio",
			Help: "Fraction of the daily budget spent per ledger (0..1)",
		},
		[]string{"ledger"},
	)

	QuotaRollovers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_rollovers_total",
			Help: "Total UTC day rollovers observed per ledger",
		},
		[]string{"ledger"},
	)

	// Discovery Cycle Metrics
	DiscoveryCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cycles_total",
			Help: "Total discovery cycles by outcome",
		},
		[]string{"outcome"}, // "completed", "exhausted", "deadline", "error"
	)

	DiscoveryCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_cycle_duration_seconds",
			Help:    "Duration of discovery cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Cycles can take minutes
		},
	)

	DiscoveryVideosIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_videos_ingested_total",
			Help: "Total candidate videos returned by the platform per tier",
		},
		[]string{"tier"}, // "fresh", "trending", "channels", "rotation"
	)

	DiscoveryVideosPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_videos_persisted_total",
			Help: "Total new video records created per tier",
		},
		[]string{"tier"},
	)

	DiscoveryVideosDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_videos_deduplicated_total",
			Help: "Total candidates already known within the dedupe window",
		},
	)

	DiscoveryVideosSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_videos_skipped_total",
			Help: "Total candidates dropped before persistence",
		},
		[]string{"reason"}, // "no_ip_match", "no_details", "budget", "malformed"
	)

	DiscoveryTierBudget = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discovery_tier_budget_units",
			Help: "Quota units allocated to each tier in the latest cycle",
		},
		[]string{"tier"},
	)

	DiscoveryLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_last_success_timestamp",
			Help: "Unix timestamp of the last completed discovery cycle",
		},
	)

	// Platform API Client Metrics
	PlatformCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_api_calls_total",
			Help: "Total platform API calls by operation and result",
		},
		[]string{"operation", "result"}, // result: "success", "transient", "malformed", "quota", "rejected"
	)

	PlatformCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "platform_api_call_duration_seconds",
			Help:    "Duration of platform API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PlatformRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_api_retries_total",
			Help: "Total retry attempts against the platform API",
		},
		[]string{"operation"},
	)

	PlatformMalformedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "platform_malformed_items_total",
			Help: "Total response items dropped or defaulted during extraction",
		},
		[]string{"field"}, // "duration", "thumbnail", "statistics", "item"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Transport Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total events published per topic",
		},
		[]string{"topic"},
	)

	EventsPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_publish_failed_total",
			Help: "Total publish attempts that failed after breaker and retries",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total events consumed per handler",
		},
		[]string{"handler"},
	)

	EventsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "events_processing_duration_seconds",
			Help:    "Duration of event handler executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	EventsPoisoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_poisoned_total",
			Help: "Total events routed to the poison queue after retry exhaustion",
		},
		[]string{"topic"},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_deduplicated_total",
			Help: "Total events skipped by router deduplication",
		},
	)

	// Store Metrics (BadgerDB)
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of store transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "entity"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total store transaction errors",
		},
		[]string{"operation", "entity"},
	)

	StoreTxnConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_txn_conflicts_total",
			Help: "Total optimistic transaction conflicts (retried or surfaced)",
		},
	)

	StoreStaleWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_stale_writes_total",
			Help: "Total writes abandoned after exhausting conflict retries",
		},
	)

	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total value-log garbage collection attempts by result",
		},
		[]string{"result"}, // "reclaimed", "noop", "error"
	)

	// Risk Rescoring Metrics
	RescoreRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescore_runs_total",
			Help: "Total rescore ticks by outcome",
		},
		[]string{"outcome"}, // "completed", "budget_exhausted", "canceled", "error"
	)

	RescoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rescore_duration_seconds",
			Help:    "Duration of rescore ticks in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	RescoreVideos = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rescore_videos_total",
			Help: "Total videos handled by the rescore loop by outcome",
		},
		[]string{"outcome"}, // "rescored", "stale", "budget_denied", "error"
	)

	RiskTierTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_tier_transitions_total",
			Help: "Total risk tier changes observed during rescoring",
		},
		[]string{"from", "to"},
	)

	HighRiskPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "high_risk_published_total",
			Help: "Total high-risk events published by trigger reason",
		},
		[]string{"reason"}, // "initial", "threshold_cross", "feedback"
	)

	VelocityClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "velocity_classifications_total",
			Help: "Total view velocity computations by class",
		},
		[]string{"class"}, // "EXPLOSIVE", "VIRAL", "TRENDING", "GROWING", "STABLE", "INSUFFICIENT_DATA", "UNKNOWN"
	)

	// Intel Registry Metrics
	KeywordPriorityChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyword_priority_changes_total",
			Help: "Total keyword priority changes by direction",
		},
		[]string{"direction"}, // "promoted", "demoted"
	)

	ChannelsByTier = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channels_by_tier",
			Help: "Known channels per monitoring tier",
		},
		[]string{"tier"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordQuotaCharge records a successful ledger charge and refreshes the
// spend gauges for the ledger.
func RecordQuotaCharge(ledger, operation string, units, used, limit int64) {
	QuotaUnitsCharged.WithLabelValues(ledger, operation).Add(float64(units))
	QuotaUnitsUsed.WithLabelValues(ledger).Set(float64(used))
	if limit > 0 {
		QuotaUtilization.WithLabelValues(ledger).Set(float64(used) / float64(limit))
	}
}

// RecordQuotaDenial records a charge refused for lack of budget.
func RecordQuotaDenial(ledger, operation string) {
	QuotaDenials.WithLabelValues(ledger, operation).Inc()
}

// RecordQuotaRollover records a UTC day boundary reset.
func RecordQuotaRollover(ledger string) {
	QuotaRollovers.WithLabelValues(ledger).Inc()
	QuotaUnitsUsed.WithLabelValues(ledger).Set(0)
	QuotaUtilization.WithLabelValues(ledger).Set(0)
}

// RecordDiscoveryCycle records one finished cycle.
func RecordDiscoveryCycle(outcome string, duration time.Duration) {
	DiscoveryCycles.WithLabelValues(outcome).Inc()
	DiscoveryCycleDuration.Observe(duration.Seconds())
	if outcome == "completed" {
		DiscoveryLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordPlatformCall records one platform API call with its result class.
func RecordPlatformCall(operation, result string, duration time.Duration) {
	PlatformCalls.WithLabelValues(operation, result).Inc()
	PlatformCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStoreOp records a store transaction and its error, if any.
func RecordStoreOp(operation, entity string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(operation, entity).Inc()
	}
}

// RecordEventPublish records a publish attempt per topic.
func RecordEventPublish(topic string, err error) {
	if err != nil {
		EventsPublishFailed.WithLabelValues(topic).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventHandled records one handler execution.
func RecordEventHandled(handler string, duration time.Duration) {
	EventsConsumed.WithLabelValues(handler).Inc()
	EventsProcessingDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRiskTierTransition records a tier change when from and to differ.
func RecordRiskTierTransition(from, to string) {
	if from == to {
		return
	}
	RiskTierTransitions.WithLabelValues(from, to).Inc()
}
