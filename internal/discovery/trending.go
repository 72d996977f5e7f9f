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
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
)

// trendingPageSize is how many chart entries one category pull requests.
const trendingPageSize = 50

// TrendingClient is the platform slice the trending ingestor consumes.
type TrendingClient interface {
	GetTrending(ctx context.Context, categoryID string, maxResults int) ([]platform.RawVideo, error)
}

// TrendingIngestor polls the platform's most-popular charts and keeps the
// entries that name a monitored character or AI tool. It shares the
// tier-1 slice with the fresh scanner: a monitored term on a trending
// chart is exactly the exposure this system exists to catch early.
type TrendingIngestor struct {
	catalog    *catalog.Catalog
	client     TrendingClient
	processor  BatchProcessor
	categories []string
}

var _ TierScanner = (*TrendingIngestor)(nil)

// NewTrendingIngestor creates the trending ingestor for the given
// platform category ids.
func NewTrendingIngestor(cat *catalog.Catalog, client TrendingClient, processor BatchProcessor, categories []string) *TrendingIngestor {
	return &TrendingIngestor{catalog: cat, client: client, processor: processor, categories: categories}
}

// Scan pulls each configured category chart once. Chart entries arrive
// as full records, so a pass costs one unit per category plus whatever
// the processor persists.
func (s *TrendingIngestor) Scan(ctx context.Context, budget *TierBudget, now time.Time) (TierReport, error) {
	report := TierReport{Tier: TierTrending}

	for _, category := range s.categories {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := budget.Charge(ctx, quota.OpTrending, 1); err != nil {
			return report, err
		}
		report.Items++

		videos, err := s.client.GetTrending(ctx, category, trendingPageSize)
		if err != nil {
			report.Failed++
			logging.CtxErr(ctx, err).Str("category", category).Msg("Trending chart fetch failed")
			continue
		}

		out, perr := s.processor.Process(ctx, budget, Batch{
			Source:        TierTrending,
			TrendingPrior: true,
			Videos:        s.keep(videos),
		}, now)
		report.fold(out)
		if perr != nil {
			return report, perr
		}
	}
	return report, nil
}

// keep filters a chart down to entries whose title, description or tags
// hit a character or AI-tool term. Franchise names alone stay out; every
// chart mentions franchises constantly with no generated content in
// sight.
func (s *TrendingIngestor) keep(videos []platform.RawVideo) []platform.RawVideo {
	matcher := s.catalog.Matcher()
	kept := make([]platform.RawVideo, 0, len(videos))
	for _, v := range videos {
		if s.monitored(matcher, v) {
			kept = append(kept, v)
		}
	}
	return kept
}

func (s *TrendingIngestor) monitored(m *catalog.Matcher, v platform.RawVideo) bool {
	if hasMonitoredTerm(m, v.Title) || hasMonitoredTerm(m, v.Description) {
		return true
	}
	for _, tag := range v.Tags {
		if hasMonitoredTerm(m, tag) {
			return true
		}
	}
	return false
}

func hasMonitoredTerm(m *catalog.Matcher, text string) bool {
	for _, match := range m.Search(text) {
		if match.Ref.Kind == catalog.KindCharacter || match.Ref.Kind == catalog.KindAITool {
			return true
		}
	}
	return false
}
