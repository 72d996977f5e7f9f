// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/quota"
)

// Tier names. They label metrics, budget gauges, the Source field on
// stored videos, and the per-tier cycle reports.
const (
	TierFresh    = "fresh"
	TierTrending = "trending"
	TierChannels = "channels"
	TierRotation = "rotation"
)

// Cycle outcomes.
const (
	OutcomeCompleted = "completed" // ran every tier to the end
	OutcomeExhausted = "exhausted" // day ledger ran dry mid-cycle
	OutcomeDeadline  = "deadline"  // cycle timeout or shutdown cut it short
	OutcomeError     = "error"     // a tier failed hard, rest still ran
)

// TierScanner is one budgeted pass over a work pool. Implementations
// stop when the pool drains or the budget denies a charge, and return
// the budget error unwrapped enough for errors.Is so the orchestrator
// can tell slice exhaustion from day exhaustion.
type TierScanner interface {
	Scan(ctx context.Context, budget *TierBudget, now time.Time) (TierReport, error)
}

// TierReport aggregates one scanner's work within a cycle.
type TierReport struct {
	Tier string `json:"tier"`

	// Items counts the units of work drawn: searches run, chart pulls,
	// channels scanned.
	Items int `json:"items"`

	Ingested   int `json:"ingested"`
	Matched    int `json:"matched"`
	Persisted  int `json:"persisted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	SliceUnits int64 `json:"slice_units"`
	SpentUnits int64 `json:"spent_units"`

	// Outcome is "completed", "slice_exhausted", "budget_exhausted",
	// "deadline" or "error".
	Outcome string `json:"outcome"`
}

func (r *TierReport) fold(out Outcome) {
	r.Ingested += out.Ingested
	r.Matched += out.Matched
	r.Persisted += out.Persisted
	r.Duplicates += out.Duplicates
	r.Skipped += out.Skipped
	r.Failed += out.Failed
}

// CycleReport summarizes one discovery cycle for the status API and the
// logs.
type CycleReport struct {
	CycleID         string       `json:"cycle_id"`
	Trigger         string       `json:"trigger"` // "startup", "interval", "manual"
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at"`
	DurationSeconds float64      `json:"duration_seconds"`
	Outcome         string       `json:"outcome"`
	CapUnits        int64        `json:"cap_units"`
	SpentUnits      int64        `json:"spent_units"`
	RemainingUnits  int64        `json:"remaining_units"`
	Scanners        []TierReport `json:"scanners"`

	hadError bool
	halted   bool
}

// Orchestrator drives the tiered discovery cycle: a fifth of the budget
// to fresh content and trending charts, most of it to channel rescans,
// the rest to keyword rotation. Tiers hand unspent units down, never up,
// and the day ledger backs every charge, so a cycle can never overspend
// the day no matter how the slices fall.
type Orchestrator struct {
	cfg    config.DiscoveryConfig
	ledger Ledger

	fresh    TierScanner
	trending TierScanner
	channels TierScanner
	rotator  TierScanner

	trigger chan struct{}

	mu   sync.RWMutex
	last *CycleReport
}

// NewOrchestrator wires the four scanners to the shared day ledger.
func NewOrchestrator(cfg config.DiscoveryConfig, ledger Ledger, fresh, trending, channels, rotator TierScanner) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		ledger:   ledger,
		fresh:    fresh,
		trending: trending,
		channels: channels,
		rotator:  rotator,
		trigger:  make(chan struct{}, 1),
	}
}

// String names the service in the supervision tree.
func (o *Orchestrator) String() string { return "discovery.orchestrator" }

// Serve runs cycles on the configured interval and on manual triggers
// until the context ends. The first cycle starts immediately: a restart
// should not idle for a full interval while due work piles up, and the
// persisted ledger keeps a crash loop from overspending.
func (o *Orchestrator) Serve(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.RunCycle(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.RunCycle(ctx, "interval")
		case <-o.trigger:
			o.RunCycle(ctx, "manual")
		}
	}
}

// TriggerNow schedules an immediate cycle. It reports false when a
// manual trigger is already pending.
func (o *Orchestrator) TriggerNow() bool {
	select {
	case o.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastReport returns the most recent cycle report, nil before the first
// cycle finishes. The report is shared; callers must not mutate it.
func (o *Orchestrator) LastReport() *CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// RunCycle executes one full discovery cycle and returns its report.
func (o *Orchestrator) RunCycle(ctx context.Context, trigger string) *CycleReport {
	start := time.Now().UTC()
	report := &CycleReport{
		CycleID:   logging.GenerateCycleID(),
		Trigger:   trigger,
		StartedAt: start,
	}

	ctx = logging.ContextWithCycleID(ctx, report.CycleID)
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CycleTimeout)
	defer cancel()

	cycleCap := o.ledger.Remaining()
	if limit := int64(o.cfg.MaxPerCycle); cycleCap > limit {
		cycleCap = limit
	}
	report.CapUnits = cycleCap

	logging.Ctx(ctx).Info().
		Str("trigger", trigger).
		Int64("cap_units", cycleCap).
		Msg("Discovery cycle starting")

	if cycleCap <= 0 {
		report.Outcome = OutcomeExhausted
		o.finish(ctx, report)
		return report
	}

	tier1Units := int64(o.cfg.TierFresh * float64(cycleCap))
	tier2Units := int64(o.cfg.TierChannels * float64(cycleCap))
	tier3Units := cycleCap - tier1Units - tier2Units

	// Tier 1: trending charts and fresh search share one slice. The
	// charts go first; they cost a few units and must not be starved by
	// an expensive fresh pass.
	tier1 := NewTierBudget(o.ledger, TierFresh, tier1Units)
	o.runScanner(ctx, report, tier1, o.trending, start)
	o.runScanner(ctx, report, tier1, o.fresh, start)

	// Tier 2 inherits whatever tier 1 left.
	tier2 := NewTierBudget(o.ledger, TierChannels, tier2Units+tier1.SliceRemaining())
	o.runScanner(ctx, report, tier2, o.channels, start)

	// Tier 3 sweeps up the rest.
	tier3 := NewTierBudget(o.ledger, TierRotation, tier3Units+tier2.SliceRemaining())
	o.runScanner(ctx, report, tier3, o.rotator, start)

	o.finish(ctx, report)
	return report
}

// runScanner executes one scanner against its tier budget and folds the
// result into the cycle report. Day-ledger exhaustion and the cycle
// deadline halt the cycle; everything else lets the next tier run.
func (o *Orchestrator) runScanner(ctx context.Context, cycle *CycleReport, budget *TierBudget, scanner TierScanner, now time.Time) {
	if cycle.halted {
		return
	}
	sliceBefore, spentBefore := budget.SliceRemaining(), budget.Spent()

	report, err := scanner.Scan(ctx, budget, now)
	report.SliceUnits = sliceBefore
	report.SpentUnits = budget.Spent() - spentBefore

	switch {
	case err == nil:
		report.Outcome = "completed"
	case errors.Is(err, ErrSliceExhausted):
		report.Outcome = "slice_exhausted"
	case errors.Is(err, quota.ErrBudgetExceeded):
		report.Outcome = "budget_exhausted"
		cycle.Outcome = OutcomeExhausted
		cycle.halted = true
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		report.Outcome = "deadline"
		cycle.Outcome = OutcomeDeadline
		cycle.halted = true
	default:
		report.Outcome = "error"
		cycle.hadError = true
		logging.CtxErr(ctx, err).Str("tier", report.Tier).Msg("Tier scanner failed")
	}

	cycle.Scanners = append(cycle.Scanners, report)
	cycle.SpentUnits += report.SpentUnits

	logging.Ctx(ctx).Info().
		Str("tier", report.Tier).
		Str("outcome", report.Outcome).
		Int("items", report.Items).
		Int("ingested", report.Ingested).
		Int("matched", report.Matched).
		Int("persisted", report.Persisted).
		Int("duplicates", report.Duplicates).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int64("slice_units", report.SliceUnits).
		Int64("spent_units", report.SpentUnits).
		Msg("Tier finished")
}

func (o *Orchestrator) finish(ctx context.Context, report *CycleReport) {
	if report.Outcome == "" {
		if report.hadError {
			report.Outcome = OutcomeError
		} else {
			report.Outcome = OutcomeCompleted
		}
	}
	report.FinishedAt = time.Now().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()
	report.RemainingUnits = o.ledger.Remaining()

	metrics.RecordDiscoveryCycle(report.Outcome, report.FinishedAt.Sub(report.StartedAt))

	logging.Ctx(ctx).Info().
		Str("trigger", report.Trigger).
		Str("outcome", report.Outcome).
		Int64("cap_units", report.CapUnits).
		Int64("spent_units", report.SpentUnits).
		Int64("remaining_units", report.RemainingUnits).
		Float64("duration_seconds", report.DurationSeconds).
		Msg("Discovery cycle finished")

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()
}
