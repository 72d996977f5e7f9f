// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package platform is the sole external I/O surface the discovery core
// consumes. It exposes four fetch operations behind the Client
// interface, each mapped one-to-one to a quota ledger operation:
// keyword search, trending chart, channel uploads and video details.
//
// The HTTP implementation paces requests with a client-side rate
// limiter, retries transient failures (network errors and 5xx) with
// exponential backoff, and never retries 403/429 quota rejections.
// BreakerClient layers a circuit breaker on top so a dead platform
// stops consuming retry budget; breaker rejections surface as
// ErrTransient.
//
// Errors are classified into three sentinels: ErrTransient (retryable
// transport failures), ErrMalformed (undecodable responses, non-quota
// 4xx) and ErrRemoteQuota (403/429). Callers branch on errors.Is.
package platform
