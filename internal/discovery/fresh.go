// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"time"

	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
)

const (
	// freshLookback bounds tier-1 searches to the newest uploads. Older
	// material is the rotation tier's job.
	freshLookback = 24 * time.Hour

	// freshKeywordsPerTarget is how many of a target's best keywords one
	// tier-1 pass searches.
	freshKeywordsPerTarget = 2

	searchPageSize = 50
)

// Searcher is the platform slice the keyword-driven scanners consume.
type Searcher interface {
	SearchVideos(ctx context.Context, query string, publishedAfter time.Time, maxResults int) ([]platform.RawVideo, error)
}

// KeywordPicker selects and grades search keywords. The intel keyword
// registry satisfies it.
type KeywordPicker interface {
	TopForTarget(ctx context.Context, targetID string, n int) ([]*models.KeywordStat, error)
	RecordResult(ctx context.Context, keyword string, videosFound, matchesFound int, now time.Time) (*models.KeywordStat, error)
}

// FreshScanner is the tier-1 scanner. Each pass covers one of two
// rotation groups of HIGH-priority targets, alternating by UTC day, and
// searches each target's most productive keywords for uploads from the
// last 24 hours. Everything it finds carries the trending prior.
type FreshScanner struct {
	catalog   *catalog.Catalog
	keywords  KeywordPicker
	client    Searcher
	processor BatchProcessor
}

var _ TierScanner = (*FreshScanner)(nil)

// NewFreshScanner creates the tier-1 scanner.
func NewFreshScanner(cat *catalog.Catalog, keywords KeywordPicker, client Searcher, processor BatchProcessor) *FreshScanner {
	return &FreshScanner{catalog: cat, keywords: keywords, client: client, processor: processor}
}

// rotationGroup picks today's half of the HIGH-priority targets: targets
// alternate groups by catalog position, days alternate by UTC day number.
// Half the catalog at full search depth beats all of it at half depth.
func rotationGroup(now time.Time) int {
	return int(now.UTC().Unix() / 86400 % 2)
}

// Scan runs one tier-1 pass. It returns a budget denial as its error so
// the orchestrator can tell slice exhaustion from day exhaustion; every
// other failure is logged and skipped.
func (s *FreshScanner) Scan(ctx context.Context, budget *TierBudget, now time.Time) (TierReport, error) {
	report := TierReport{Tier: TierFresh}
	group := rotationGroup(now)

	for i, target := range s.catalog.HighPriorityTargets() {
		if i%2 != group {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		top, err := s.keywords.TopForTarget(ctx, target.ID, freshKeywordsPerTarget)
		if err != nil {
			report.Failed++
			logging.CtxErr(ctx, err).
				Str("target", target.ID).
				Msg("Keyword lookup failed, skipping target")
			continue
		}
		for _, kw := range top {
			if err := s.searchKeyword(ctx, budget, kw.Keyword, now, &report); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (s *FreshScanner) searchKeyword(ctx context.Context, budget *TierBudget, keyword string, now time.Time, report *TierReport) error {
	if err := budget.Charge(ctx, quota.OpSearch, 1); err != nil {
		return err
	}
	report.Items++

	videos, err := s.client.SearchVideos(ctx, keyword, now.Add(-freshLookback), searchPageSize)
	if err != nil {
		report.Failed++
		logging.CtxErr(ctx, err).Str("keyword", keyword).Msg("Fresh search failed")
		return ctx.Err()
	}

	out, perr := s.processor.Process(ctx, budget, Batch{
		Source:        TierFresh,
		TrendingPrior: true,
		Videos:        videos,
	}, now)
	report.fold(out)

	// Stamping the outcome also starts the keyword's cooldown, which
	// keeps the rotation tier from re-buying the same search today.
	if _, err := s.keywords.RecordResult(ctx, keyword, out.Ingested, out.Matched, now); err != nil {
		logging.CtxErr(ctx, err).Str("keyword", keyword).Msg("Failed to record search outcome")
	}
	return perr
}
