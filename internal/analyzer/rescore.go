// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/risk"
	"github.com/tomtom215/excubitor/internal/store"
	"github.com/tomtom215/excubitor/internal/velocity"
)

// maxDetailsBatch is the platform's id cap on the details endpoint.
// Details are charged per id, the call itself is free.
const maxDetailsBatch = 50

// Tick outcomes.
const (
	tickCompleted = "completed"
	tickExhausted = "budget_exhausted"
	tickCanceled  = "canceled"
	tickError     = "error"
)

// TickReport summarizes one rescore tick.
type TickReport struct {
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Outcome         string    `json:"outcome"`
	Due             int       `json:"due"`
	Rescored        int       `json:"rescored"`
	Requeued        int       `json:"requeued"`
	Stale           int       `json:"stale"`
	BudgetDenied    int       `json:"budget_denied"`
	Failed          int       `json:"failed"`
}

// String names the service in the supervision tree.
func (a *Analyzer) String() string { return "risk.analyzer" }

// Serve runs rescore ticks on the configured interval until the context
// ends. The first tick runs immediately: due videos accumulate while
// the process is down, and the rescan ledger keeps a crash loop from
// overspending.
func (a *Analyzer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.RunTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.RunTick(ctx)
		}
	}
}

// LastTick returns the most recent tick report, nil before the first
// tick finishes. The report is shared; callers must not mutate it.
func (a *Analyzer) LastTick() *TickReport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// RunTick rescores one batch of due videos: everything whose scan slot
// has passed, most overdue and highest risk first, capped at the
// configured batch size. View counts are refreshed from the platform
// against the rescan ledger before scoring. Per-video failures are
// counted, never fatal; a denied charge defers the tail of the batch to
// a later tick.
func (a *Analyzer) RunTick(ctx context.Context) *TickReport {
	now := a.clock().UTC()
	report := &TickReport{StartedAt: now, Outcome: tickCompleted}

	ctx = logging.ContextWithCycleID(ctx, logging.GenerateCycleID())
	defer a.finishTick(ctx, report)

	due, err := a.deps.Videos.DueForRescore(ctx, now, a.cfg.BatchSize)
	if err != nil {
		report.Outcome = tickError
		logging.CtxErr(ctx, err).Msg("Failed to draw due videos")
		return report
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report
	}

	details, denied := a.fetchDetails(ctx, due)
	if denied > 0 {
		report.Outcome = tickExhausted
		report.BudgetDenied = denied
		due = due[:len(due)-denied]
	}

	for _, video := range due {
		if ctx.Err() != nil {
			report.Outcome = tickCanceled
			break
		}
		_, requeued, err := a.rescoreVideo(ctx, video, details[video.VideoID], now, "rescore", "threshold_cross")
		switch {
		case errors.Is(err, store.ErrStaleWrite):
			report.Stale++
			metrics.RescoreVideos.WithLabelValues("stale").Inc()
		case err != nil:
			report.Failed++
			metrics.RescoreVideos.WithLabelValues("error").Inc()
			logging.CtxErr(ctx, err).
				Str("video_id", video.VideoID).
				Msg("Rescore failed")
		default:
			report.Rescored++
			metrics.RescoreVideos.WithLabelValues("rescored").Inc()
			if requeued {
				report.Requeued++
			}
		}
	}
	return report
}

// fetchDetails refreshes platform statistics for the batch in id groups
// of up to maxDetailsBatch, charged per id against the rescan ledger.
// It returns whatever it could fetch plus the count of trailing videos
// a denied charge left unrefreshed. Denied videos are deferred, not
// rescored on stored counts: scoring them would advance their scan slot
// and push the refresh out a full interval, while leaving them due lets
// the next tick retry after the midnight reset. A failed fetch after a
// successful charge is different: the units are spent, so that group
// still rescores on stored counts.
func (a *Analyzer) fetchDetails(ctx context.Context, due []*models.Video) (map[string]*platform.RawVideo, int) {
	details := make(map[string]*platform.RawVideo, len(due))
	for start := 0; start < len(due); start += maxDetailsBatch {
		end := start + maxDetailsBatch
		if end > len(due) {
			end = len(due)
		}
		ids := make([]string, 0, end-start)
		for _, v := range due[start:end] {
			ids = append(ids, v.VideoID)
		}

		if err := a.deps.Rescan.Charge(ctx, quota.OpVideoDetails, len(ids)); err != nil {
			denied := len(due) - start
			metrics.RescoreVideos.WithLabelValues("budget_denied").Add(float64(denied))
			logging.Ctx(ctx).Warn().
				Int("denied", denied).
				Msg("Rescan budget exhausted, deferring remainder of batch")
			return details, denied
		}

		raws, err := a.deps.Fetcher.GetVideoDetails(ctx, ids)
		if err != nil {
			logging.CtxErr(ctx, err).
				Int("batch", len(ids)).
				Msg("Detail refresh failed, rescoring group on stored counts")
			continue
		}
		for i := range raws {
			details[raws[i].VideoID] = &raws[i]
		}
	}
	return details, 0
}

// rescoreVideo recomputes one video's risk and commits it through the
// store's conflict-checked update. raw carries fresh platform counts
// when the tick paid for a refresh; nil scores on stored counts. The
// score is computed inside the mutate callback so a conflict replay
// recomputes from the row it is handed. Returns the committed row and
// whether this rescore moved the video into the vision queue, in which
// case the high-risk event has already been published.
func (a *Analyzer) rescoreVideo(ctx context.Context, video *models.Video, raw *platform.RawVideo, now time.Time, reason, trigger string) (*models.Video, bool, error) {
	currentViews := video.ViewCount
	if raw != nil {
		currentViews = raw.ViewCount
		if err := a.deps.Tracker.RecordSnapshot(ctx, video.VideoID, raw.ViewCount, now); err != nil {
			logging.CtxErr(ctx, err).
				Str("video_id", video.VideoID).
				Msg("Failed to record view snapshot")
		}
	}

	vel, err := a.deps.Tracker.Velocity(ctx, video.VideoID, now, currentViews)
	if err != nil {
		return nil, false, fmt.Errorf("velocity for %s: %w", video.VideoID, err)
	}

	channel, err := a.deps.Channels.GetOrCreate(ctx, video.ChannelID, video.ChannelTitle, now)
	if err != nil {
		logging.CtxErr(ctx, err).
			Str("channel_id", video.ChannelID).
			Msg("Channel profile unavailable, scoring without channel history")
		channel = nil
	}

	var (
		prevRisk  int
		fromState models.ProcessingState
		fromTier  models.RiskTier
		requeued  bool
	)
	updated, err := a.deps.Videos.Update(ctx, video.VideoID, func(v *models.Video) error {
		prevRisk = v.CurrentRisk
		fromState = v.State
		fromTier = v.RiskTier

		if raw != nil {
			v.ViewCount = raw.ViewCount
			v.LikeCount = raw.LikeCount
			v.CommentCount = raw.CommentCount
		}

		score := risk.Rescore(v, channel, vel, now)
		v.CurrentRisk = score.Value
		v.RiskTier = score.Tier
		if vel.Class != velocity.ClassUnknown && vel.Class != velocity.ClassInsufficientData {
			vph := vel.ViewsPerHour
			v.ViewVelocity = &vph
		}
		v.LastRiskUpdate = now
		v.NextScanAt = now.Add(score.Tier.ScanInterval())
		v.RiskUpdateSeq++
		v.AppendRiskHistory(models.RiskHistoryEntry{
			Timestamp:     now,
			Previous:      prevRisk,
			New:           score.Value,
			Contributions: score.Contributions,
			Reason:        reason,
		})

		// An upward cross queues the video for vision analysis. A row
		// still in discovered at or above the threshold is a lost
		// initial announcement; queue it now.
		crossed := score.Value >= a.cfg.HighRiskThreshold &&
			(prevRisk < a.cfg.HighRiskThreshold || fromState == models.StateDiscovered)
		requeued = crossed && v.State.CanTransition(models.StateQueued)
		if requeued {
			v.State = models.StateQueued
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if fromTier != updated.RiskTier {
		metrics.RiskTierTransitions.WithLabelValues(string(fromTier), string(updated.RiskTier)).Inc()
	}

	logging.Ctx(ctx).Debug().
		Str("video_id", updated.VideoID).
		Int("previous_risk", prevRisk).
		Int("current_risk", updated.CurrentRisk).
		Str("risk_tier", string(updated.RiskTier)).
		Str("velocity_class", string(vel.Class)).
		Str("reason", reason).
		Msg("Video rescored")

	if requeued {
		evtReason := events.ReasonThresholdCross
		if fromState == models.StateDiscovered && prevRisk >= a.cfg.HighRiskThreshold {
			evtReason = events.ReasonInitial
		}
		a.publishHighRisk(ctx, updated, evtReason, trigger)
	}
	return updated, requeued, nil
}

func (a *Analyzer) finishTick(ctx context.Context, report *TickReport) {
	report.FinishedAt = a.clock().UTC()
	report.DurationSeconds = report.FinishedAt.Sub(report.StartedAt).Seconds()

	metrics.RescoreRuns.WithLabelValues(report.Outcome).Inc()
	metrics.RescoreDuration.Observe(report.DurationSeconds)

	logging.Ctx(ctx).Info().
		Str("outcome", report.Outcome).
		Int("due", report.Due).
		Int("rescored", report.Rescored).
		Int("requeued", report.Requeued).
		Int("stale", report.Stale).
		Int("budget_denied", report.BudgetDenied).
		Int("failed", report.Failed).
		Float64("duration_seconds", report.DurationSeconds).
		Msg("Rescore tick finished")

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()
}
