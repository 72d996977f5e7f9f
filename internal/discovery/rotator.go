// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/quota"
)

const (
	// rotationLookback is the publish window tier-3 searches cover. The
	// fresh tier already owns the last day; rotation sweeps the longer
	// tail where older uploads resurface.
	rotationLookback = 30 * 24 * time.Hour

	// keywordDrawSize is how many due keywords one registry draw returns.
	keywordDrawSize = 25
)

// KeywordSource hands out due keywords and records search outcomes. The
// intel keyword registry satisfies it.
type KeywordSource interface {
	DueForSearch(ctx context.Context, now time.Time, limit int) ([]*models.KeywordStat, error)
	RecordResult(ctx context.Context, keyword string, videosFound, matchesFound int, now time.Time) (*models.KeywordStat, error)
}

// KeywordRotator is the tier-3 scanner: it spends whatever budget rolls
// down to it on due keywords, best priority first, one 30-day search
// each. Recorded outcomes move each keyword's match rate, which moves
// its priority and cooldown, so the pool adapts toward queries that
// keep producing.
type KeywordRotator struct {
	keywords  KeywordSource
	client    Searcher
	processor BatchProcessor
}

var _ TierScanner = (*KeywordRotator)(nil)

// NewKeywordRotator creates the tier-3 scanner.
func NewKeywordRotator(keywords KeywordSource, client Searcher, processor BatchProcessor) *KeywordRotator {
	return &KeywordRotator{keywords: keywords, client: client, processor: processor}
}

// Scan draws due keywords in pages and searches each once. Recording an
// outcome stamps the keyword's cooldown, so each draw surfaces the next
// ones due; an attempted set keeps keywords whose search failed from
// being redrawn within this pass. The pass ends when a draw yields no
// new work or the budget denies a charge.
func (s *KeywordRotator) Scan(ctx context.Context, budget *TierBudget, now time.Time) (TierReport, error) {
	report := TierReport{Tier: TierRotation}
	attempted := make(map[string]struct{})

	for {
		due, err := s.keywords.DueForSearch(ctx, now, keywordDrawSize)
		if err != nil {
			return report, fmt.Errorf("draw due keywords: %w", err)
		}

		progressed := false
		for _, kw := range due {
			if _, done := attempted[kw.Keyword]; done {
				continue
			}
			attempted[kw.Keyword] = struct{}{}
			progressed = true

			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := s.searchKeyword(ctx, budget, kw.Keyword, now, &report); err != nil {
				return report, err
			}
		}
		if !progressed {
			return report, nil
		}
	}
}

func (s *KeywordRotator) searchKeyword(ctx context.Context, budget *TierBudget, keyword string, now time.Time, report *TierReport) error {
	if err := budget.Charge(ctx, quota.OpSearch, 1); err != nil {
		return err
	}
	report.Items++

	videos, err := s.client.SearchVideos(ctx, keyword, now.Add(-rotationLookback), searchPageSize)
	if err != nil {
		report.Failed++
		logging.CtxErr(ctx, err).Str("keyword", keyword).Msg("Rotation search failed")
		return ctx.Err()
	}

	out, perr := s.processor.Process(ctx, budget, Batch{Source: TierRotation, Videos: videos}, now)
	report.fold(out)

	if _, err := s.keywords.RecordResult(ctx, keyword, out.Ingested, out.Matched, now); err != nil {
		logging.CtxErr(ctx, err).Str("keyword", keyword).Msg("Failed to record search outcome")
	}
	return perr
}
