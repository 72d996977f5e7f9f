// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/store"
)

// HandleDiscovered consumes video-discovered announcements. The
// discovery processor has already persisted the scored, scheduled row,
// so this handler is the high-risk gate: a video that arrives at or
// above the threshold moves to queued and is announced downstream
// exactly once. Everything else is acknowledged untouched; the rescore
// loop owns it from here.
func (a *Analyzer) HandleDiscovered(msg *message.Message) error {
	ctx := msg.Context()

	evt, err := events.DecodeVideoDiscovered(msg.Payload)
	if err != nil {
		return err
	}

	video, err := a.deps.Videos.Get(ctx, evt.VideoID)
	if errors.Is(err, store.ErrNotFound) {
		// The row is written before the announcement, so a miss means
		// retention removed it. Retrying cannot bring it back.
		logging.Ctx(ctx).Warn().
			Str("video_id", evt.VideoID).
			Msg("Discovered video missing from store, dropping announcement")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load video %s: %w", evt.VideoID, err)
	}

	if video.State != models.StateDiscovered || video.CurrentRisk < a.cfg.HighRiskThreshold {
		return nil // below the band, or a redelivery of an already-queued video
	}

	queued := false
	updated, err := a.deps.Videos.Update(ctx, video.VideoID, func(v *models.Video) error {
		queued = v.State == models.StateDiscovered && v.CurrentRisk >= a.cfg.HighRiskThreshold
		if queued {
			v.State = models.StateQueued
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("queue video %s: %w", video.VideoID, err)
	}

	if queued {
		a.publishHighRisk(ctx, updated, events.ReasonInitial, "initial")
	}
	return nil
}

// HandleFeedback consumes the vision analyzer's lifecycle updates. An
// acknowledgement moves the video to processing; a terminal status
// stores the verdict, grades the channel, and rescores the video
// immediately so the verdict lands in the score without waiting out the
// current scan slot.
func (a *Analyzer) HandleFeedback(msg *message.Message) error {
	ctx := msg.Context()

	evt, err := events.DecodeVisionFeedback(msg.Payload)
	if err != nil {
		return err
	}

	switch evt.EffectiveStatus() {
	case events.FeedbackAcknowledged:
		return a.markProcessing(ctx, evt)
	case events.FeedbackFailed:
		return a.applyVerdict(ctx, evt, models.StateFailed)
	default:
		return a.applyVerdict(ctx, evt, models.StateAnalyzed)
	}
}

func (a *Analyzer) markProcessing(ctx context.Context, evt *events.VisionFeedback) error {
	moved := false
	_, err := a.deps.Videos.Update(ctx, evt.VideoID, func(v *models.Video) error {
		moved = v.State.CanTransition(models.StateProcessing)
		if moved {
			v.State = models.StateProcessing
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Warn().
			Str("video_id", evt.VideoID).
			Msg("Feedback for unknown video, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark video %s processing: %w", evt.VideoID, err)
	}

	if !moved {
		logging.Ctx(ctx).Debug().
			Str("video_id", evt.VideoID).
			Msg("Stale acknowledgement, video already past queued")
	}
	return nil
}

// applyVerdict lands a terminal feedback status: the state transition,
// the verdict on completion, the channel grade, and the immediate
// rescore. Out-of-order and duplicate feedback fails the transition
// check and is acknowledged without touching the stored verdict.
func (a *Analyzer) applyVerdict(ctx context.Context, evt *events.VisionFeedback, terminal models.ProcessingState) error {
	now := a.clock().UTC()

	applied := false
	updated, err := a.deps.Videos.Update(ctx, evt.VideoID, func(v *models.Video) error {
		applied = v.State.CanTransition(terminal)
		if !applied {
			return nil
		}
		v.State = terminal
		if terminal == models.StateAnalyzed {
			v.GeminiResult = &models.GeminiResult{
				ContainsInfringement: evt.ContainsInfringement,
				Confidence:           evt.Confidence,
				Characters:           evt.Characters,
				AnalyzedAt:           evt.AnalyzedAt,
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		logging.Ctx(ctx).Warn().
			Str("video_id", evt.VideoID).
			Msg("Feedback for unknown video, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s verdict to video %s: %w", terminal, evt.VideoID, err)
	}
	if !applied {
		logging.Ctx(ctx).Debug().
			Str("video_id", evt.VideoID).
			Str("status", evt.EffectiveStatus()).
			Msg("Stale feedback, verdict not applied")
		return nil
	}

	// A failed run carries no verdict, so only completed analyses grade
	// the channel; counting failures as cleared would dilute the rate.
	if terminal == models.StateAnalyzed {
		if _, err := a.deps.Channels.MarkScanned(ctx, updated.ChannelID, evt.ContainsInfringement, now); err != nil {
			logging.CtxErr(ctx, err).
				Str("channel_id", updated.ChannelID).
				Msg("Failed to grade channel from verdict")
		}
	}

	// The verdict is durable; a rescore failure here is not worth a
	// redelivery that can no longer re-apply it. The video stays on its
	// current slot and the next due tick rescored it with the verdict.
	if _, _, err := a.rescoreVideo(ctx, updated, nil, now, "feedback", "feedback"); err != nil {
		logging.CtxErr(ctx, err).
			Str("video_id", updated.VideoID).
			Msg("Post-verdict rescore failed, next tick will catch up")
	}
	return nil
}
