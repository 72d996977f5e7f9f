// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package models

import "time"

// ViewSnapshot is one append-only sample of a video's view count, used to
// derive view velocity. Snapshots are keyed by (video_id, second-granularity
// timestamp) so duplicate deliveries collapse, and expire after 30 days.
type ViewSnapshot struct {
	VideoID   string    `json:"video_id"`
	ViewCount int64     `json:"view_count"`
	Timestamp time.Time `json:"timestamp"`
}

// QuotaUsage is the persisted per-day spend for one ledger. The per-operation
// breakdown always sums to UsedUnits.
type QuotaUsage struct {
	Ledger          string           `json:"ledger"`
	Date            string           `json:"date"` // UTC day, YYYY-MM-DD
	UsedUnits       int64            `json:"used_units"`
	UsedByOperation map[string]int64 `json:"used_by_operation"`
}
