// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package velocity derives view growth rates from stored view count
// snapshots. Fast-moving videos get a risk boost so the rescore loop
// surfaces them before they finish going viral.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// Class buckets a video's view growth over the lookback window.
type Class string

const (
	ClassExplosive        Class = "EXPLOSIVE"
	ClassViral            Class = "VIRAL"
	ClassTrending         Class = "TRENDING"
	ClassGrowing          Class = "GROWING"
	ClassStable           Class = "STABLE"
	ClassInsufficientData Class = "INSUFFICIENT_DATA"
	ClassUnknown          Class = "UNKNOWN"
)

// Views-per-hour thresholds for the growth classes.
const (
	explosiveVPH = 10000
	viralVPH     = 1000
	trendingVPH  = 100
	growingVPH   = 10
)

const (
	// defaultLookback bounds how far back the baseline sample may be.
	defaultLookback = 24 * time.Hour

	// minSpan is the shortest observation window that yields a usable
	// rate. Below it, one refresh jitter dominates the signal.
	minSpan = 6 * time.Minute
)

// Result is one velocity computation.
type Result struct {
	ViewsPerHour float64 `json:"views_per_hour"`
	Class        Class   `json:"class"`
	Boost        int     `json:"boost"`
}

// SnapshotStore is the persistence surface the tracker needs.
type SnapshotStore interface {
	Record(ctx context.Context, snap *models.ViewSnapshot) error
	ListSince(ctx context.Context, videoID string, since time.Time) ([]models.ViewSnapshot, error)
}

// Tracker records view samples and classifies growth.
type Tracker struct {
	repo     SnapshotStore
	lookback time.Duration
}

// NewTracker creates a tracker with the standard 24h lookback.
func NewTracker(repo SnapshotStore) *Tracker {
	return &Tracker{repo: repo, lookback: defaultLookback}
}

// RecordSnapshot stores one view count sample. Negative counts are
// rejected; the platform never reports them, so one indicates a decode
// bug upstream.
func (t *Tracker) RecordSnapshot(ctx context.Context, videoID string, viewCount int64, ts time.Time) error {
	if viewCount < 0 {
		return fmt.Errorf("snapshot for %s: negative view count %d", videoID, viewCount)
	}
	return t.repo.Record(ctx, &models.ViewSnapshot{
		VideoID:   videoID,
		ViewCount: viewCount,
		Timestamp: ts,
	})
}

// Velocity computes views-per-hour growth against the oldest sample
// inside the lookback window.
//
// No samples yields UNKNOWN and a window shorter than minSpan yields
// INSUFFICIENT_DATA, both with zero boost. A shrinking view count
// (deletion sweep or platform correction) clamps to zero rather than
// going negative.
func (t *Tracker) Velocity(ctx context.Context, videoID string, now time.Time, currentViews int64) (Result, error) {
	snaps, err := t.repo.ListSince(ctx, videoID, now.Add(-t.lookback))
	if err != nil {
		return Result{}, fmt.Errorf("load snapshots for %s: %w", videoID, err)
	}
	if len(snaps) == 0 {
		return t.finish(Result{Class: ClassUnknown}), nil
	}

	oldest := snaps[0]
	span := now.Sub(oldest.Timestamp)
	if span < minSpan {
		return t.finish(Result{Class: ClassInsufficientData}), nil
	}

	delta := currentViews - oldest.ViewCount
	if delta < 0 {
		logging.Warn().
			Str("video_id", videoID).
			Int64("current_views", currentViews).
			Int64("baseline_views", oldest.ViewCount).
			Msg("View count decreased, clamping velocity to zero")
		delta = 0
	}

	vph := float64(delta) / span.Hours()
	class, boost := classify(vph)
	return t.finish(Result{ViewsPerHour: vph, Class: class, Boost: boost}), nil
}

func (t *Tracker) finish(r Result) Result {
	metrics.VelocityClassifications.WithLabelValues(string(r.Class)).Inc()
	return r
}

func classify(vph float64) (Class, int) {
	switch {
	case vph >= explosiveVPH:
		return ClassExplosive, 30
	case vph >= viralVPH:
		return ClassViral, 20
	case vph >= trendingVPH:
		return ClassTrending, 10
	case vph >= growingVPH:
		return ClassGrowing, 5
	default:
		return ClassStable, 0
	}
}
