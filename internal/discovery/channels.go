// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
)

const (
	// channelDrawSize is how many due channels one registry draw returns.
	channelDrawSize = 50

	uploadsPageSize = 50

	// defaultChannelWorkers bounds concurrent uploads fetches. Channel
	// scans are the cheapest and most numerous platform calls; a small
	// pool keeps the tier moving without hammering the API.
	defaultChannelWorkers = 4
)

// ChannelSource hands out due channels and records scan outcomes. The
// intel channel registry satisfies it.
type ChannelSource interface {
	DueForScan(ctx context.Context, now time.Time, limit int) ([]*models.ChannelProfile, error)
	MarkScanned(ctx context.Context, channelID string, hadInfringement bool, now time.Time) (*models.ChannelProfile, error)
}

// UploadsClient is the platform slice the channel scanner consumes.
type UploadsClient interface {
	GetChannelUploads(ctx context.Context, channelID string, since time.Time, maxResults int) ([]platform.RawVideo, error)
}

// ChannelScanner is the tier-2 scanner: it works through channels whose
// next scan came due, tier order first, pulling uploads newer than the
// last scan. Known infringing channels re-offending is the highest-yield
// discovery surface per quota unit, which is why this tier gets the
// largest slice.
type ChannelScanner struct {
	registry  ChannelSource
	client    UploadsClient
	processor BatchProcessor
	workers   int
}

var _ TierScanner = (*ChannelScanner)(nil)

// NewChannelScanner creates the tier-2 scanner. workers <= 0 selects the
// default pool size.
func NewChannelScanner(registry ChannelSource, client UploadsClient, processor BatchProcessor, workers int) *ChannelScanner {
	if workers <= 0 {
		workers = defaultChannelWorkers
	}
	return &ChannelScanner{registry: registry, client: client, processor: processor, workers: workers}
}

// Scan draws due channels in pages and scans each once, a worker pool
// wide. It stops when the pool drains or the budget denies a charge.
// Channels whose scan failed are not marked scanned; they stay due and
// an attempted set keeps them from being redrawn within this pass.
func (s *ChannelScanner) Scan(ctx context.Context, budget *TierBudget, now time.Time) (TierReport, error) {
	report := TierReport{Tier: TierChannels}
	attempted := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		due, err := s.registry.DueForScan(ctx, now, channelDrawSize)
		if err != nil {
			return report, fmt.Errorf("draw due channels: %w", err)
		}

		var pending []*models.ChannelProfile
		for _, ch := range due {
			if _, done := attempted[ch.ChannelID]; done {
				continue
			}
			attempted[ch.ChannelID] = struct{}{}
			pending = append(pending, ch)
		}
		if len(pending) == 0 {
			return report, nil
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, ch := range pending {
			g.Go(func() error {
				return s.scanChannel(gctx, budget, ch, now, &report, &mu)
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}
}

// scanChannel pulls one channel's uploads since its last scan and folds
// the processed outcome into the channel's tier standing. Only a budget
// denial propagates; platform failures leave the channel due for the
// next cycle.
func (s *ChannelScanner) scanChannel(ctx context.Context, budget *TierBudget, ch *models.ChannelProfile, now time.Time, report *TierReport, mu *sync.Mutex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.chargeScan(ctx, budget, ch.ChannelID); err != nil {
		return err
	}
	mu.Lock()
	report.Items++
	mu.Unlock()

	videos, err := s.client.GetChannelUploads(ctx, ch.ChannelID, ch.LastScannedAt, uploadsPageSize)
	if err != nil {
		mu.Lock()
		report.Failed++
		mu.Unlock()
		logging.CtxErr(ctx, err).Str("channel_id", ch.ChannelID).Msg("Channel uploads fetch failed")
		return ctx.Err()
	}

	out, perr := s.processor.Process(ctx, budget, Batch{Source: TierChannels, Videos: videos}, now)
	mu.Lock()
	report.fold(out)
	mu.Unlock()

	if _, err := s.registry.MarkScanned(ctx, ch.ChannelID, out.Matched > 0, now); err != nil {
		logging.CtxErr(ctx, err).Str("channel_id", ch.ChannelID).Msg("Failed to record channel scan")
	}
	return perr
}

// chargeScan buys one uploads page. Non-UC channel ids cost an extra
// channel lookup on the platform side to resolve the uploads playlist,
// so the ledger charges for that call too.
func (s *ChannelScanner) chargeScan(ctx context.Context, budget *TierBudget, channelID string) error {
	if !strings.HasPrefix(channelID, "UC") {
		if err := budget.Charge(ctx, quota.OpChannelDetails, 1); err != nil {
			return err
		}
	}
	return budget.Charge(ctx, quota.OpChannelUploads, 1)
}
