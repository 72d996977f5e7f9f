// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package store is the embedded BadgerDB persistence layer. Five
// collections back the pipeline: videos, channels, keywords, view
// snapshots and quota day rows, each as JSON values under a typed key
// prefix.
//
// Scheduling queries come from two secondary indexes maintained
// transactionally with their rows: videos sort by (next_scan_at,
// current risk descending) and channels by (tier rank, next_scan_at).
// Index keys embed fixed-width encodings so Badger's lexicographic
// iteration is the scheduling order.
//
// Concurrent writers use optimistic transactions. Read-modify-write
// updates replay on commit conflict up to casRetries times and then
// surface ErrStaleWrite; the caller's next scheduled pass retries
// naturally. View snapshots carry a retention TTL and the GC service
// reclaims their value-log space.
package store
