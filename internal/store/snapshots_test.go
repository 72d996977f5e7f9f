// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/models"
)

func TestSnapshotRecordAndListSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	samples := []struct {
		at    time.Time
		views int64
	}{
		{base.Add(-48 * time.Hour), 1000},
		{base.Add(-24 * time.Hour), 5000},
		{base.Add(-1 * time.Hour), 9000},
		{base, 12000},
	}
	for _, sm := range samples {
		err := s.Snapshots.Record(ctx, &models.ViewSnapshot{VideoID: "vid1", ViewCount: sm.views, Timestamp: sm.at})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	// Another video's samples must not bleed into vid1's range.
	err := s.Snapshots.Record(ctx, &models.ViewSnapshot{VideoID: "vid2", ViewCount: 77, Timestamp: base})
	if err != nil {
		t.Fatalf("Record vid2: %v", err)
	}

	got, err := s.Snapshots.ListSince(ctx, "vid1", base.Add(-25*time.Hour))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListSince = %d rows, want 3", len(got))
	}
	// Oldest first.
	if got[0].ViewCount != 5000 || got[2].ViewCount != 12000 {
		t.Errorf("order = %d..%d, want 5000..12000", got[0].ViewCount, got[2].ViewCount)
	}
	for _, snap := range got {
		if snap.VideoID != "vid1" {
			t.Errorf("foreign row %q in vid1 range", snap.VideoID)
		}
	}

	all, err := s.Snapshots.ListSince(ctx, "vid1", time.Time{})
	if err != nil {
		t.Fatalf("ListSince zero: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("ListSince zero = %d rows, want 4", len(all))
	}
}

func TestSnapshotSameSecondCollapses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	// Duplicate delivery inside the same second overwrites rather than
	// accumulating a second sample.
	for _, views := range []int64{100, 150} {
		err := s.Snapshots.Record(ctx, &models.ViewSnapshot{VideoID: "vid1", ViewCount: views, Timestamp: at.Add(200 * time.Millisecond)})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Snapshots.ListSince(ctx, "vid1", time.Time{})
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("same-second samples = %d rows, want 1", len(got))
	}
	if got[0].ViewCount != 150 {
		t.Errorf("ViewCount = %d, want last write 150", got[0].ViewCount)
	}
}

func TestSnapshotCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := s.Snapshots.Record(ctx, &models.ViewSnapshot{
			VideoID:   "vid1",
			ViewCount: int64(i * 100),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	n, err := s.Snapshots.Count(ctx, "vid1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}

	n, err = s.Snapshots.Count(ctx, "vid-none")
	if err != nil {
		t.Fatalf("Count empty: %v", err)
	}
	if n != 0 {
		t.Errorf("Count empty = %d, want 0", n)
	}
}
