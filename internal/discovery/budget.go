// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/quota"
)

// ErrSliceExhausted signals that a tier spent its slice of the cycle
// budget. Unlike quota.ErrBudgetExceeded it does not end the cycle: the
// orchestrator rolls the leftover forward and starts the next tier.
var ErrSliceExhausted = errors.New("tier budget slice exhausted")

// Ledger is the slice of the quota ledger the discovery pipeline draws
// from. *quota.Ledger satisfies it.
type Ledger interface {
	CanAfford(op quota.Op, n int) bool
	Charge(ctx context.Context, op quota.Op, n int) error
	Remaining() int64
}

// Budget is the charging surface scanners and the processor spend
// against. Within a cycle it is a *TierBudget; the rescore loop charges
// its ledger directly.
type Budget interface {
	CanAfford(op quota.Op, n int) bool
	Charge(ctx context.Context, op quota.Op, n int) error
}

// TierBudget meters one tier's slice of a cycle on top of the shared day
// ledger. A charge passes only when both the slice and the ledger cover
// it; a denial leaves both untouched, so in-flight work that already
// charged stays paid for.
type TierBudget struct {
	ledger Ledger
	tier   string

	mu    sync.Mutex
	slice int64
	spent int64
}

var _ Budget = (*TierBudget)(nil)

// NewTierBudget allocates units of the cycle cap to one tier.
func NewTierBudget(ledger Ledger, tier string, units int64) *TierBudget {
	if units < 0 {
		units = 0
	}
	metrics.DiscoveryTierBudget.WithLabelValues(tier).Set(float64(units))
	return &TierBudget{ledger: ledger, tier: tier, slice: units}
}

// Tier returns the tier name this budget meters.
func (b *TierBudget) Tier() string { return b.tier }

// Charge spends n calls of op against the slice and the day ledger.
// Returns ErrSliceExhausted when the slice cannot cover the charge and
// quota.ErrBudgetExceeded when the day ledger cannot.
func (b *TierBudget) Charge(ctx context.Context, op quota.Op, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	units := int64(n) * op.Cost()
	if units > b.slice {
		return fmt.Errorf("tier %s: %d units over %d left: %w", b.tier, units, b.slice, ErrSliceExhausted)
	}
	if err := b.ledger.Charge(ctx, op, n); err != nil {
		return err
	}
	b.slice -= units
	b.spent += units
	return nil
}

// CanAfford reports whether a charge of n calls of op would pass now.
func (b *TierBudget) CanAfford(op quota.Op, n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(n)*op.Cost() <= b.slice && b.ledger.CanAfford(op, n)
}

// SliceRemaining returns the unspent units of this tier's slice.
func (b *TierBudget) SliceRemaining() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slice
}

// Spent returns the units charged through this budget.
func (b *TierBudget) Spent() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}
