// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// ErrBudgetExceeded is returned by Charge when the requested units would push
// the day's spend over the ledger ceiling. It is an expected signal: callers
// terminate the current tier gracefully and leave the ledger untouched.
var ErrBudgetExceeded = errors.New("daily quota budget exceeded")

// Op identifies a billable platform operation.
type Op string

// Billable platform operations.
const (
	OpSearch         Op = "search"
	OpVideoDetails   Op = "video_details"
	OpTrending       Op = "trending"
	OpChannelDetails Op = "channel_details"
	OpChannelUploads Op = "channel_uploads"
)

// opCosts maps each operation to its unit cost. Search is two orders of
// magnitude more expensive than detail lookups, which drives the whole
// tiered-budget design: one search costs as much as one hundred rescans.
var opCosts = map[Op]int64{
	OpSearch:         100,
	OpVideoDetails:   1,
	OpTrending:       1,
	OpChannelDetails: 3,
	OpChannelUploads: 3,
}

// Cost returns the unit cost of a single call of the operation.
// Unknown operations cost 0 and never charge.
func (o Op) Cost() int64 {
	return opCosts[o]
}

// Persister stores day counters durably so restarts do not over-spend.
type Persister interface {
	SaveQuotaUsage(ctx context.Context, usage *models.QuotaUsage) error
	GetQuotaUsage(ctx context.Context, ledger, date string) (*models.QuotaUsage, error)
}

// Ledger is a daily API unit budget keyed by UTC calendar day.
//
// All scanners share one discovery ledger; the rescore loop runs against a
// separate, smaller ledger so risk maintenance can never starve discovery
// (and vice versa). Charge is the only mutating entry point and performs its
// check-and-increment as a single critical section, so concurrent scanners
// cannot jointly overshoot the ceiling.
type Ledger struct {
	name    string
	ceiling int64
	persist Persister
	clock   func() time.Time

	mu   sync.Mutex
	date string // current UTC day, YYYY-MM-DD
	used int64
	byOp map[string]int64
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Testing only.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// NewLedger creates a ledger named name with the given unit ceiling,
// restoring today's spend from the persister if a row exists. A nil
// persister keeps the ledger purely in memory.
func NewLedger(ctx context.Context, name string, ceiling int64, persist Persister, opts ...Option) (*Ledger, error) {
	if ceiling < 1 {
		return nil, fmt.Errorf("ledger %s: ceiling must be positive, got %d", name, ceiling)
	}

	l := &Ledger{
		name:    name,
		ceiling: ceiling,
		persist: persist,
		clock:   time.Now,
		byOp:    make(map[string]int64),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.date = l.today()

	if persist != nil {
		usage, err := persist.GetQuotaUsage(ctx, name, l.date)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: restore day counter: %w", name, err)
		}
		if usage != nil {
			l.used = usage.UsedUnits
			for op, units := range usage.UsedByOperation {
				l.byOp[op] = units
			}
			logging.Info().
				Str("ledger", name).
				Str("date", l.date).
				Int64("used_units", l.used).
				Int64("ceiling", ceiling).
				Msg("Restored quota ledger from store")
		}
	}

	return l, nil
}

// Name returns the ledger's name.
func (l *Ledger) Name() string {
	return l.name
}

// Ceiling returns the ledger's daily unit ceiling.
func (l *Ledger) Ceiling() int64 {
	return l.ceiling
}

// CanAfford reports whether charging n calls of op right now would stay
// within the ceiling. It is advisory: a concurrent charge may consume the
// headroom between CanAfford and Charge, so callers must still handle
// ErrBudgetExceeded.
func (l *Ledger) CanAfford(op Op, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	return l.used+int64(n)*op.Cost() <= l.ceiling
}

// Charge atomically adds n·cost(op) to the day's counter iff it would not
// exceed the ceiling, and fails with ErrBudgetExceeded otherwise. On denial
// the counter is untouched. The charge precedes the platform call it pays
// for; units are never refunded.
func (l *Ledger) Charge(ctx context.Context, op Op, n int) error {
	if n < 1 {
		return fmt.Errorf("ledger %s: charge count must be positive, got %d", l.name, n)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	units := int64(n) * op.Cost()
	if l.used+units > l.ceiling {
		metrics.RecordQuotaDenial(l.name, string(op))
		logging.Warn().
			Str("ledger", l.name).
			Str("op", string(op)).
			Int64("requested_units", units).
			Int64("used_units", l.used).
			Int64("ceiling", l.ceiling).
			Msg("Quota charge denied")
		return fmt.Errorf("ledger %s: %d units requested, %d of %d used: %w",
			l.name, units, l.used, l.ceiling, ErrBudgetExceeded)
	}

	l.used += units
	l.byOp[string(op)] += units
	metrics.RecordQuotaCharge(l.name, string(op), units, l.used, l.ceiling)

	l.persistLocked(ctx)
	return nil
}

// Remaining returns the units left under the ceiling for the current day.
func (l *Ledger) Remaining() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	return l.ceiling - l.used
}

// Utilization returns the fraction of the ceiling spent today, in [0, 1].
func (l *Ledger) Utilization() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	return float64(l.used) / float64(l.ceiling)
}

// ResetDaily clears the day counter if the UTC day has changed since the
// last access. It is idempotent and safe to call at any time; every other
// accessor performs the same check, so an external midnight trigger is a
// convenience, not a requirement.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()
}

// Snapshot returns a copy of the current day's usage for reporting.
func (l *Ledger) Snapshot() models.QuotaUsage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rolloverLocked()

	byOp := make(map[string]int64, len(l.byOp))
	for op, units := range l.byOp {
		byOp[op] = units
	}
	return models.QuotaUsage{
		Ledger:          l.name,
		Date:            l.date,
		UsedUnits:       l.used,
		UsedByOperation: byOp,
	}
}

// Flush persists the current counters. Called on shutdown so the last
// in-flight charges are not lost.
func (l *Ledger) Flush(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.persistLocked(ctx)
}

// today returns the current UTC calendar day.
func (l *Ledger) today() string {
	return l.clock().UTC().Format(time.DateOnly)
}

// rolloverLocked resets counters when the UTC day has changed since the last
// access. Callers must hold l.mu.
func (l *Ledger) rolloverLocked() {
	today := l.today()
	if today == l.date {
		return
	}

	logging.Info().
		Str("ledger", l.name).
		Str("previous_date", l.date).
		Str("date", today).
		Int64("previous_used_units", l.used).
		Msg("Quota ledger rolled over to new UTC day")
	metrics.RecordQuotaRollover(l.name)

	l.date = today
	l.used = 0
	l.byOp = make(map[string]int64)
	l.persistLocked(context.Background())
}

// persistLocked writes the day counter through to the store. Persistence
// failures are logged, not returned: the in-memory counter stays
// authoritative for the life of the process, and the next successful write
// carries the cumulative totals. Callers must hold l.mu.
func (l *Ledger) persistLocked(ctx context.Context) {
	if l.persist == nil {
		return
	}

	byOp := make(map[string]int64, len(l.byOp))
	for op, units := range l.byOp {
		byOp[op] = units
	}
	usage := &models.QuotaUsage{
		Ledger:          l.name,
		Date:            l.date,
		UsedUnits:       l.used,
		UsedByOperation: byOp,
	}
	if err := l.persist.SaveQuotaUsage(ctx, usage); err != nil {
		logging.Err(err).
			Str("ledger", l.name).
			Str("date", l.date).
			Msg("Failed to persist quota day counter")
	}
}
