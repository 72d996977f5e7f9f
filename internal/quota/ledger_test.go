// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/models"
)

// memPersister is an in-memory Persister for tests.
type memPersister struct {
	mu    sync.Mutex
	rows  map[string]*models.QuotaUsage
	saves int
	fail  bool
}

func newMemPersister() *memPersister {
	return &memPersister{rows: make(map[string]*models.QuotaUsage)}
}

func (p *memPersister) SaveQuotaUsage(_ context.Context, usage *models.QuotaUsage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("persist failure")
	}
	cp := *usage
	p.rows[usage.Ledger+"/"+usage.Date] = &cp
	p.saves++
	return nil
}

func (p *memPersister) GetQuotaUsage(_ context.Context, ledger, date string) (*models.QuotaUsage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if row, ok := p.rows[ledger+"/"+date]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOpCosts(t *testing.T) {
	tests := []struct {
		op   Op
		want int64
	}{
		{OpSearch, 100},
		{OpVideoDetails, 1},
		{OpTrending, 1},
		{OpChannelDetails, 3},
		{OpChannelUploads, 3},
		{Op("bogus"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			if got := tt.op.Cost(); got != tt.want {
				t.Errorf("Cost(%s) = %d, want %d", tt.op, got, tt.want)
			}
		})
	}
}

func TestChargeAndRemaining(t *testing.T) {
	ctx := context.Background()
	l, err := NewLedger(ctx, "discovery", 10000, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	if got := l.Remaining(); got != 10000 {
		t.Fatalf("Remaining() = %d, want 10000", got)
	}

	if err := l.Charge(ctx, OpSearch, 2); err != nil {
		t.Fatalf("Charge(search, 2) error = %v", err)
	}
	if err := l.Charge(ctx, OpVideoDetails, 50); err != nil {
		t.Fatalf("Charge(video_details, 50) error = %v", err)
	}

	if got := l.Remaining(); got != 10000-200-50 {
		t.Errorf("Remaining() = %d, want 9750", got)
	}
	if got := l.Utilization(); got != 0.025 {
		t.Errorf("Utilization() = %v, want 0.025", got)
	}

	snap := l.Snapshot()
	if snap.UsedUnits != 250 {
		t.Errorf("Snapshot().UsedUnits = %d, want 250", snap.UsedUnits)
	}
	if snap.UsedByOperation["search"] != 200 {
		t.Errorf("UsedByOperation[search] = %d, want 200", snap.UsedByOperation["search"])
	}
	if snap.UsedByOperation["video_details"] != 50 {
		t.Errorf("UsedByOperation[video_details] = %d, want 50", snap.UsedByOperation["video_details"])
	}

	// Breakdown sums to the total
	var sum int64
	for _, units := range snap.UsedByOperation {
		sum += units
	}
	if sum != snap.UsedUnits {
		t.Errorf("per-operation sum = %d, want %d", sum, snap.UsedUnits)
	}
}

// TestBudgetCapDenial verifies that a denied charge leaves the counter
// untouched: with 9950 of 10000 units used, one search (100 units) must be
// denied and the spend must remain exactly 9950.
func TestBudgetCapDenial(t *testing.T) {
	ctx := context.Background()
	l, err := NewLedger(ctx, "discovery", 10000, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	// Pre-fill to 9950: 99 searches + 50 details.
	if err := l.Charge(ctx, OpSearch, 99); err != nil {
		t.Fatalf("pre-fill searches: %v", err)
	}
	if err := l.Charge(ctx, OpVideoDetails, 50); err != nil {
		t.Fatalf("pre-fill details: %v", err)
	}
	if got := l.Snapshot().UsedUnits; got != 9950 {
		t.Fatalf("pre-fill used = %d, want 9950", got)
	}

	if l.CanAfford(OpSearch, 1) {
		t.Errorf("CanAfford(search, 1) = true with 50 units remaining")
	}

	err = l.Charge(ctx, OpSearch, 1)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Charge(search, 1) error = %v, want ErrBudgetExceeded", err)
	}

	if got := l.Snapshot().UsedUnits; got != 9950 {
		t.Errorf("used after denial = %d, want 9950", got)
	}

	// Cheaper operations still fit in the remaining 50 units.
	if !l.CanAfford(OpVideoDetails, 50) {
		t.Errorf("CanAfford(video_details, 50) = false, want true")
	}
	if err := l.Charge(ctx, OpVideoDetails, 50); err != nil {
		t.Errorf("Charge(video_details, 50) error = %v", err)
	}
	if l.CanAfford(OpVideoDetails, 1) {
		t.Errorf("CanAfford(video_details, 1) = true at exact ceiling")
	}
}

func TestChargeExactCeiling(t *testing.T) {
	ctx := context.Background()
	l, err := NewLedger(ctx, "discovery", 100, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	// Exactly at the ceiling is allowed: (used + n·cost) ≤ ceiling.
	if err := l.Charge(ctx, OpSearch, 1); err != nil {
		t.Fatalf("Charge(search, 1) at exact ceiling error = %v", err)
	}
	if got := l.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestChargeInvalidCount(t *testing.T) {
	ctx := context.Background()
	l, err := NewLedger(ctx, "discovery", 100, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	if err := l.Charge(ctx, OpSearch, 0); err == nil {
		t.Errorf("Charge(search, 0) should fail")
	}
	if err := l.Charge(ctx, OpSearch, -3); err == nil {
		t.Errorf("Charge(search, -3) should fail")
	}
}

func TestConcurrentChargesNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	l, err := NewLedger(ctx, "discovery", 1000, nil)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	// 50 goroutines each try 10 charges of 3 units; 1500 requested units
	// against a 1000 ceiling.
	var wg sync.WaitGroup
	var denied int64
	var deniedMu sync.Mutex
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if err := l.Charge(ctx, OpChannelDetails, 1); err != nil {
					deniedMu.Lock()
					denied++
					deniedMu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	if snap.UsedUnits > 1000 {
		t.Errorf("used = %d, ceiling 1000 overshot", snap.UsedUnits)
	}
	// 500 charges of 3 units against 1000: 333 succeed (999), 167 denied.
	if snap.UsedUnits != 999 {
		t.Errorf("used = %d, want 999", snap.UsedUnits)
	}
	if denied != 167 {
		t.Errorf("denied = %d, want 167", denied)
	}
}

func TestUTCDayRollover(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	l, err := NewLedger(ctx, "discovery", 10000, nil, WithClock(clock))
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	if err := l.Charge(ctx, OpSearch, 30); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if got := l.Snapshot().UsedUnits; got != 3000 {
		t.Fatalf("used = %d, want 3000", got)
	}

	// Cross UTC midnight.
	mu.Lock()
	now = time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)
	mu.Unlock()

	if got := l.Remaining(); got != 10000 {
		t.Errorf("Remaining() after rollover = %d, want 10000", got)
	}
	snap := l.Snapshot()
	if snap.UsedUnits != 0 {
		t.Errorf("used after rollover = %d, want 0", snap.UsedUnits)
	}
	if snap.Date != "2026-03-15" {
		t.Errorf("date after rollover = %q, want 2026-03-15", snap.Date)
	}

	// ResetDaily is idempotent.
	l.ResetDaily()
	l.ResetDaily()
	if got := l.Snapshot().Date; got != "2026-03-15" {
		t.Errorf("date after ResetDaily = %q, want 2026-03-15", got)
	}
}

func TestPersistenceRestore(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	clock := fixedClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	l, err := NewLedger(ctx, "discovery", 10000, p, WithClock(clock))
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	if err := l.Charge(ctx, OpSearch, 10); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if err := l.Charge(ctx, OpTrending, 3); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	// Simulated restart on the same day must restore the spend.
	restored, err := NewLedger(ctx, "discovery", 10000, p, WithClock(clock))
	if err != nil {
		t.Fatalf("NewLedger() restore error = %v", err)
	}
	snap := restored.Snapshot()
	if snap.UsedUnits != 1003 {
		t.Errorf("restored used = %d, want 1003", snap.UsedUnits)
	}
	if snap.UsedByOperation["search"] != 1000 {
		t.Errorf("restored search units = %d, want 1000", snap.UsedByOperation["search"])
	}

	// Ledgers are isolated by name: a rescan ledger sees no discovery spend.
	rescan, err := NewLedger(ctx, "rescan", 2000, p, WithClock(clock))
	if err != nil {
		t.Fatalf("NewLedger(rescan) error = %v", err)
	}
	if got := rescan.Snapshot().UsedUnits; got != 0 {
		t.Errorf("rescan ledger used = %d, want 0", got)
	}
}

func TestPersistFailureDoesNotBlockCharges(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	l, err := NewLedger(ctx, "discovery", 10000, p)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}

	p.mu.Lock()
	p.fail = true
	p.mu.Unlock()

	// The in-memory counter stays authoritative even when persistence fails.
	if err := l.Charge(ctx, OpSearch, 1); err != nil {
		t.Fatalf("Charge() with failing persister error = %v", err)
	}
	if got := l.Snapshot().UsedUnits; got != 100 {
		t.Errorf("used = %d, want 100", got)
	}
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	l, err := NewLedger(ctx, "discovery", 10000, p)
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	if err := l.Charge(ctx, OpVideoDetails, 7); err != nil {
		t.Fatalf("Charge() error = %v", err)
	}

	l.Flush(ctx)

	row, err := p.GetQuotaUsage(ctx, "discovery", l.Snapshot().Date)
	if err != nil {
		t.Fatalf("GetQuotaUsage() error = %v", err)
	}
	if row == nil || row.UsedUnits != 7 {
		t.Errorf("persisted row = %+v, want used 7", row)
	}
}

func TestNewLedgerRejectsBadCeiling(t *testing.T) {
	if _, err := NewLedger(context.Background(), "discovery", 0, nil); err == nil {
		t.Errorf("NewLedger with zero ceiling should fail")
	}
}
