// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package intel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// staleFindWindow demotes a keyword one priority level when its last
// successful find is older than this.
const staleFindWindow = 7 * 24 * time.Hour

// Adaptive priority thresholds on the cumulative match rate.
const (
	highMatchRate   = 0.20
	mediumMatchRate = 0.10
)

// KeywordStore is the persistence surface the registry needs.
type KeywordStore interface {
	CreateIfAbsent(ctx context.Context, stat *models.KeywordStat) (bool, error)
	Update(ctx context.Context, keyword string, mutate func(*models.KeywordStat) error) (*models.KeywordStat, error)
	All(ctx context.Context) ([]*models.KeywordStat, error)
}

// KeywordRegistry decides which search keywords are due and folds search
// outcomes back into per-keyword statistics and adaptive priority.
type KeywordRegistry struct {
	repo KeywordStore
	cfg  config.DiscoveryConfig
}

// NewKeywordRegistry creates a registry over the given store.
func NewKeywordRegistry(repo KeywordStore, cfg config.DiscoveryConfig) *KeywordRegistry {
	return &KeywordRegistry{repo: repo, cfg: cfg}
}

// Seed inserts catalog-derived keywords that are not yet tracked. Rows
// that already exist keep their accumulated statistics and whatever
// priority the adaptive ladder has moved them to.
func (r *KeywordRegistry) Seed(ctx context.Context, seeds []catalog.SeedKeyword) (int, error) {
	created := 0
	for _, seed := range seeds {
		ok, err := r.repo.CreateIfAbsent(ctx, &models.KeywordStat{
			Keyword:    seed.Text,
			Priority:   seed.Priority,
			IPTargetID: seed.IPTargetID,
		})
		if err != nil {
			return created, fmt.Errorf("seed keyword %q: %w", seed.Text, err)
		}
		if ok {
			created++
		}
	}

	logging.Info().
		Int("seeds", len(seeds)).
		Int("created", created).
		Msg("Keyword registry seeded")
	return created, nil
}

// Cooldown returns the search cooldown for a priority level.
func (r *KeywordRegistry) Cooldown(p models.KeywordPriority) time.Duration {
	switch p {
	case models.KeywordPriorityHigh:
		return r.cfg.CooldownHigh
	case models.KeywordPriorityMedium:
		return r.cfg.CooldownMedium
	default:
		return r.cfg.CooldownLow
	}
}

// DueForSearch returns up to limit keywords whose cooldown has elapsed,
// best priority first, longest-unsearched first within a priority.
// Keywords that have never been searched are always due and sort ahead
// of everything in their priority band.
func (r *KeywordRegistry) DueForSearch(ctx context.Context, now time.Time, limit int) ([]*models.KeywordStat, error) {
	if limit < 1 {
		return nil, nil
	}

	all, err := r.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}

	var due []*models.KeywordStat
	for _, stat := range all {
		if stat.LastSearch.IsZero() || now.Sub(stat.LastSearch) >= r.Cooldown(stat.Priority) {
			due = append(due, stat)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if ri, rj := due[i].Priority.Rank(), due[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		if !due[i].LastSearch.Equal(due[j].LastSearch) {
			return due[i].LastSearch.Before(due[j].LastSearch)
		}
		return due[i].Keyword < due[j].Keyword
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// TopForTarget returns up to n of a target's keywords, best cumulative
// match rate first, ties broken by keyword text. The fresh-content
// scanner uses it to pick the day's most productive queries per IP.
func (r *KeywordRegistry) TopForTarget(ctx context.Context, targetID string, n int) ([]*models.KeywordStat, error) {
	if n < 1 {
		return nil, nil
	}

	all, err := r.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}

	var owned []*models.KeywordStat
	for _, stat := range all {
		if stat.IPTargetID == targetID {
			owned = append(owned, stat)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].MatchRate != owned[j].MatchRate {
			return owned[i].MatchRate > owned[j].MatchRate
		}
		return owned[i].Keyword < owned[j].Keyword
	})

	if len(owned) > n {
		owned = owned[:n]
	}
	return owned, nil
}

// RecordResult folds one search outcome into the keyword's statistics,
// stamps the search time, and recomputes the adaptive priority.
func (r *KeywordRegistry) RecordResult(ctx context.Context, keyword string, videosFound, matchesFound int, now time.Time) (*models.KeywordStat, error) {
	var from models.KeywordPriority
	updated, err := r.repo.Update(ctx, keyword, func(stat *models.KeywordStat) error {
		from = stat.Priority
		stat.SearchesPerformed++
		stat.VideosFound += int64(videosFound)
		stat.MatchesFound += int64(matchesFound)
		stat.LastSearch = now
		if matchesFound > 0 {
			stat.LastSuccessfulFind = now
		}
		stat.MatchRate = stat.ComputeMatchRate()
		stat.Priority = nextPriority(stat, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Priority != from {
		direction := "demoted"
		if updated.Priority.Rank() < from.Rank() {
			direction = "promoted"
		}
		metrics.KeywordPriorityChanges.WithLabelValues(direction).Inc()
		logging.Debug().
			Str("keyword", keyword).
			Str("from", string(from)).
			Str("to", string(updated.Priority)).
			Float64("match_rate", updated.MatchRate).
			Msg("Keyword priority changed")
	}
	return updated, nil
}

// nextPriority applies the adaptive ladder: the cumulative match rate
// picks the level, then a stale successful-find demotes one level.
func nextPriority(stat *models.KeywordStat, now time.Time) models.KeywordPriority {
	next := models.KeywordPriorityLow
	switch {
	case stat.MatchRate >= highMatchRate:
		next = models.KeywordPriorityHigh
	case stat.MatchRate >= mediumMatchRate:
		next = models.KeywordPriorityMedium
	}
	if now.Sub(stat.LastSuccessfulFind) > staleFindWindow {
		next = next.Demoted()
	}
	return next
}
