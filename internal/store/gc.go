// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// GC periodically rewrites Badger value-log files whose live-data ratio
// dropped below the configured threshold. It implements the supervisor's
// service contract; in-memory stores have no value log, so Serve just
// parks until shutdown.
type GC struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	inMemory bool
}

// Serve runs the collection loop until ctx is cancelled.
func (g *GC) Serve(ctx context.Context) error {
	if g.inMemory {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.collect()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (g *GC) String() string {
	return "store-gc"
}

// collect reclaims value-log space until Badger reports nothing left to
// rewrite. One file is rewritten per call, hence the inner loop.
func (g *GC) collect() {
	start := time.Now()
	rewritten := 0

	for {
		err := g.db.RunValueLogGC(g.ratio)
		if err == nil {
			rewritten++
			metrics.StoreGCRuns.WithLabelValues("reclaimed").Inc()
			continue
		}
		if errors.Is(err, badger.ErrNoRewrite) {
			metrics.StoreGCRuns.WithLabelValues("noop").Inc()
			break
		}
		metrics.StoreGCRuns.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Msg("Value-log GC failed")
		break
	}

	if rewritten > 0 {
		logging.Debug().
			Int("files_rewritten", rewritten).
			Dur("elapsed", time.Since(start)).
			Msg("Value-log GC pass complete")
	}
}
