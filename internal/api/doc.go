// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package api is the operational HTTP surface of the Excubitor process.
//
// The pipeline itself is event-driven; this package only exposes what an
// operator needs while it runs:
//
//   - GET  /api/v1/health/live   — liveness probe
//   - GET  /api/v1/health/ready  — readiness probe (store + transport)
//   - GET  /api/v1/status        — last cycle/tick reports, tier counts
//   - GET  /api/v1/quota         — both daily ledgers
//   - POST /api/v1/discovery/run — manual cycle trigger (rate-limited)
//   - GET  /metrics              — Prometheus exposition
//
// Routing is chi with per-route httprate limits; responses use the
// standardized APIResponse envelope with request IDs for tracing.
package api
