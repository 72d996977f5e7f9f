// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"testing"

	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/quota"
)

var _ quota.Persister = (*QuotaRepo)(nil)

func TestQuotaSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	usage := &models.QuotaUsage{
		Ledger:    "discovery",
		Date:      "2026-08-25",
		UsedUnits: 4200,
		UsedByOperation: map[string]int64{
			"search":        4000,
			"video_details": 150,
			"trending":      50,
		},
	}
	if err := s.Quota.SaveQuotaUsage(ctx, usage); err != nil {
		t.Fatalf("SaveQuotaUsage: %v", err)
	}

	got, err := s.Quota.GetQuotaUsage(ctx, "discovery", "2026-08-25")
	if err != nil {
		t.Fatalf("GetQuotaUsage: %v", err)
	}
	if got == nil {
		t.Fatal("GetQuotaUsage returned nil for a saved row")
	}
	if got.UsedUnits != 4200 || got.UsedByOperation["search"] != 4000 {
		t.Errorf("row = %+v", got)
	}

	// Overwrite with the newer counter; last writer wins.
	usage.UsedUnits = 4300
	usage.UsedByOperation["video_details"] = 250
	if err := s.Quota.SaveQuotaUsage(ctx, usage); err != nil {
		t.Fatalf("SaveQuotaUsage overwrite: %v", err)
	}
	got, err = s.Quota.GetQuotaUsage(ctx, "discovery", "2026-08-25")
	if err != nil {
		t.Fatalf("GetQuotaUsage after overwrite: %v", err)
	}
	if got.UsedUnits != 4300 {
		t.Errorf("UsedUnits = %d, want 4300", got.UsedUnits)
	}
}

func TestQuotaGetMissingDay(t *testing.T) {
	s := newTestStore(t)

	// A fresh day has no row; the ledger treats nil as zero spend.
	got, err := s.Quota.GetQuotaUsage(context.Background(), "discovery", "2026-01-01")
	if err != nil {
		t.Fatalf("GetQuotaUsage: %v", err)
	}
	if got != nil {
		t.Errorf("missing day = %+v, want nil", got)
	}
}

func TestQuotaHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, date := range []string{"2026-08-21", "2026-08-22", "2026-08-23", "2026-08-24"} {
		err := s.Quota.SaveQuotaUsage(ctx, &models.QuotaUsage{
			Ledger:    "rescan",
			Date:      date,
			UsedUnits: int64((i + 1) * 100),
		})
		if err != nil {
			t.Fatalf("SaveQuotaUsage %s: %v", date, err)
		}
	}
	// Another ledger's rows must not appear in the rescan history.
	err := s.Quota.SaveQuotaUsage(ctx, &models.QuotaUsage{Ledger: "discovery", Date: "2026-08-25", UsedUnits: 9999})
	if err != nil {
		t.Fatalf("SaveQuotaUsage discovery: %v", err)
	}

	hist, err := s.Quota.History(ctx, "rescan", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("History = %d rows, want 3", len(hist))
	}
	want := []string{"2026-08-24", "2026-08-23", "2026-08-22"}
	for i, row := range hist {
		if row.Date != want[i] {
			t.Errorf("hist[%d].Date = %s, want %s", i, row.Date, want[i])
		}
		if row.Ledger != "rescan" {
			t.Errorf("hist[%d].Ledger = %s", i, row.Ledger)
		}
	}
}
