// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements comprehensive application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - Quota ledger spend, denials, and day rollovers
  - Discovery cycle throughput and per-tier allocation
  - Platform API call latency, retries, and malformed-item handling
  - Circuit breaker state transitions
  - Event transport publish/consume/poison counts
  - BadgerDB store transaction latency and conflicts
  - Risk rescoring outcomes, tier transitions, and velocity classes

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8085/metrics

# Available Metrics

Quota Metrics:
  - quota_units_used: Units spent today per ledger (gauge)
    Labels: ledger (discovery, rescan)
  - quota_units_charged_total: Charged units (counter)
    Labels: ledger, operation (search, video_details, trending, channel_details, channel_uploads)
  - quota_denials_total: Refused charges (counter)
    Labels: ledger, operation
  - quota_utilization_ratio: used/limit per ledger (gauge)
  - quota_rollovers_total: UTC day resets (counter)

Discovery Metrics:
  - discovery_cycles_total: Finished cycles (counter)
    Labels: outcome (completed, exhausted, deadline, error)
  - discovery_cycle_duration_seconds: Cycle duration (histogram)
    Buckets: 1, 5, 10, 30, 60, 120, 300, 600
  - discovery_videos_ingested_total / _persisted_total: Per-tier throughput (counter)
    Labels: tier (fresh, trending, channels, rotation)
  - discovery_videos_deduplicated_total: Candidates inside the dedupe window (counter)
  - discovery_videos_skipped_total: Dropped candidates (counter)
    Labels: reason (no_ip_match, malformed, cap_reached)
  - discovery_tier_budget_units: Latest cycle's per-tier budget (gauge)
  - discovery_last_success_timestamp: Unix time of last completed cycle (gauge)

Platform Metrics:
  - platform_api_calls_total: Calls by result class (counter)
    Labels: operation, result (success, transient, malformed, quota, rejected)
  - platform_api_call_duration_seconds: Call latency (histogram)
  - platform_api_retries_total: Retry attempts (counter)
  - platform_malformed_items_total: Dropped or defaulted response items (counter)
    Labels: field (duration, thumbnail, statistics, item)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests by result (counter)
    Labels: name, result (success, failure, rejected)
  - circuit_breaker_state_transitions_total: Transitions (counter)
    Labels: name, from_state, to_state

Event Transport Metrics:
  - events_published_total / events_publish_failed_total: Publishes (counter)
    Labels: topic
  - events_consumed_total: Handler executions (counter)
    Labels: handler
  - events_processing_duration_seconds: Handler latency (histogram)
  - events_poisoned_total: Messages sent to the poison queue (counter)
  - events_deduplicated_total: Router-level duplicate drops (counter)

Store Metrics:
  - store_operation_duration_seconds: Transaction latency (histogram)
    Labels: operation, entity
  - store_operation_errors_total: Failed transactions (counter)
  - store_txn_conflicts_total: Optimistic conflicts (counter)
  - store_stale_writes_total: Writes abandoned after retries (counter)
  - store_gc_runs_total: Value-log GC attempts (counter)
    Labels: result (reclaimed, noop, error)

Rescoring Metrics:
  - rescore_runs_total: Rescore ticks (counter)
    Labels: outcome (completed, budget_exhausted, error)
  - rescore_duration_seconds: Tick duration (histogram)
  - rescore_videos_total: Videos handled (counter)
    Labels: outcome (rescored, stale, budget_denied, error)
  - risk_tier_transitions_total: Tier changes (counter)
    Labels: from, to
  - high_risk_published_total: High-risk events (counter)
    Labels: reason (initial, threshold_cross, feedback)
  - velocity_classifications_total: Velocity computations (counter)
    Labels: class

# Usage Patterns

Collectors are package-level and registered during init via promauto, so
recording a metric is a single call with no setup:

	metrics.RecordQuotaCharge("discovery", "search", 100, used, limit)
	metrics.RecordPlatformCall("video_details", "success", elapsed)
	metrics.DiscoveryVideosIngested.WithLabelValues("fresh").Add(float64(n))

Helpers exist where several collectors move together (charges update the
counter, the gauge, and the utilization ratio at once).

# Cardinality

Label values are drawn from small closed sets (ledger names, operation
names, tiers, outcome classes). No label carries video ids, channel ids,
keywords, or other unbounded values.
*/
package metrics
