// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/risk"
	"github.com/tomtom215/excubitor/internal/store"
)

// maxDetailsBatch is the platform's per-call id cap on the details
// endpoint. Details are charged per id, the call itself is free.
const maxDetailsBatch = 50

// VideoStore persists discovered videos with sighting dedupe.
type VideoStore interface {
	Create(ctx context.Context, video *models.Video, dedupeWindow time.Duration) (*models.Video, error)
}

// ChannelDirectory resolves channel profiles for scoring context.
type ChannelDirectory interface {
	GetOrCreate(ctx context.Context, channelID, title string, now time.Time) (*models.ChannelProfile, error)
}

// SnapshotRecorder stores view-count observations for velocity tracking.
type SnapshotRecorder interface {
	Record(ctx context.Context, snap *models.ViewSnapshot) error
}

// Publisher announces persisted discoveries on the message bus.
type Publisher interface {
	PublishEvent(ctx context.Context, payload events.Payload) error
}

// Hydrator is the platform slice the processor needs. platform.Client
// satisfies it.
type Hydrator interface {
	GetVideoDetails(ctx context.Context, videoIDs []string) ([]platform.RawVideo, error)
}

// Batch is one scanner's harvest plus its scoring context.
type Batch struct {
	// Source labels where the candidates came from: "fresh", "trending",
	// "channels" or "rotation". It is stamped on the stored row and on
	// the per-tier metrics.
	Source string

	// TrendingPrior applies the viral-exposure boost to initial scores.
	// Fresh searches and trending charts set it; routine rescans do not.
	TrendingPrior bool

	Videos []platform.RawVideo
}

// Outcome counts what happened to one batch. The buckets are not a
// partition: Matched overlaps Persisted and Duplicates.
type Outcome struct {
	Ingested   int // candidates handed in
	Matched    int // matched at least one IP target
	Persisted  int // rows written, first sightings and re-discoveries
	Duplicates int // sighted again inside the dedupe window
	Skipped    int // dropped before persistence
	Failed     int // store failures, logged and skipped
}

func (o *Outcome) fold(other Outcome) {
	o.Ingested += other.Ingested
	o.Matched += other.Matched
	o.Persisted += other.Persisted
	o.Duplicates += other.Duplicates
	o.Skipped += other.Skipped
	o.Failed += other.Failed
}

// ProcessorDeps wires the processor's collaborators.
type ProcessorDeps struct {
	Matcher   *catalog.Matcher
	Hydrator  Hydrator
	Videos    VideoStore
	Channels  ChannelDirectory
	Snapshots SnapshotRecorder
	Publisher Publisher
}

// Processor turns raw platform records into scored, scheduled, announced
// Video rows. It is shared by all scanners and safe for concurrent use.
type Processor struct {
	deps ProcessorDeps
	cfg  config.DiscoveryConfig
}

// NewProcessor creates a processor with the given collaborators.
func NewProcessor(deps ProcessorDeps, cfg config.DiscoveryConfig) *Processor {
	return &Processor{deps: deps, cfg: cfg}
}

// BatchProcessor runs harvested candidates through the discovery
// pipeline. Scanners depend on this instead of the concrete Processor.
type BatchProcessor interface {
	Process(ctx context.Context, budget Budget, batch Batch, now time.Time) (Outcome, error)
}

var _ BatchProcessor = (*Processor)(nil)

// Process runs one harvest through hydrate, dedupe, match, score,
// persist, announce. Per-record failures are logged and counted, never
// fatal. The returned error is non-nil only when a budget charge was
// denied during hydration; candidates hydrated before the denial still
// complete, and the caller stops drawing new work.
func (p *Processor) Process(ctx context.Context, budget Budget, batch Batch, now time.Time) (Outcome, error) {
	out := Outcome{Ingested: len(batch.Videos)}
	if len(batch.Videos) == 0 {
		return out, nil
	}
	metrics.DiscoveryVideosIngested.WithLabelValues(batch.Source).Add(float64(len(batch.Videos)))

	candidates, budgetErr := p.hydrate(ctx, budget, batch, &out)

	seen := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		raw := &candidates[i]
		if _, dup := seen[raw.VideoID]; dup {
			continue
		}
		seen[raw.VideoID] = struct{}{}
		p.processOne(ctx, raw, batch, now, &out)
	}
	return out, budgetErr
}

// hydrate fills partial records through the details endpoint in id
// batches of up to 50, one charged unit per id. Records the platform no
// longer returns (deleted, private) are dropped. A denied charge stops
// hydration and skips the rest; the denial is returned so the scanner
// stops drawing work.
func (p *Processor) hydrate(ctx context.Context, budget Budget, batch Batch, out *Outcome) ([]platform.RawVideo, error) {
	complete := make([]platform.RawVideo, 0, len(batch.Videos))
	var partialIDs []string
	for _, raw := range batch.Videos {
		switch {
		case raw.VideoID == "":
			out.Skipped++
			metrics.DiscoveryVideosSkipped.WithLabelValues("malformed").Inc()
		case raw.HasDetails:
			complete = append(complete, raw)
		default:
			partialIDs = append(partialIDs, raw.VideoID)
		}
	}

	for start := 0; start < len(partialIDs); start += maxDetailsBatch {
		end := start + maxDetailsBatch
		if end > len(partialIDs) {
			end = len(partialIDs)
		}
		ids := partialIDs[start:end]

		if err := budget.Charge(ctx, quota.OpVideoDetails, len(ids)); err != nil {
			rest := len(partialIDs) - start
			out.Skipped += rest
			metrics.DiscoveryVideosSkipped.WithLabelValues("budget").Add(float64(rest))
			return complete, err
		}

		details, err := p.deps.Hydrator.GetVideoDetails(ctx, ids)
		if err != nil {
			out.Failed += len(ids)
			logging.CtxErr(ctx, err).
				Int("ids", len(ids)).
				Str("source", batch.Source).
				Msg("Detail hydration failed, dropping id batch")
			continue
		}
		complete = append(complete, details...)
		if dropped := len(ids) - len(details); dropped > 0 {
			out.Skipped += dropped
			metrics.DiscoveryVideosSkipped.WithLabelValues("no_details").Add(float64(dropped))
		}
	}
	return complete, nil
}

func (p *Processor) processOne(ctx context.Context, raw *platform.RawVideo, batch Batch, now time.Time, out *Outcome) {
	matches := p.deps.Matcher.MatchFields(raw.Title, raw.Description, raw.Tags, raw.ChannelTitle)
	if matches.Matched() {
		out.Matched++
	} else if p.cfg.SkipNoIPMatch {
		out.Skipped++
		metrics.DiscoveryVideosSkipped.WithLabelValues("no_ip_match").Inc()
		return
	}

	if raw.ChannelID == "" {
		out.Skipped++
		metrics.DiscoveryVideosSkipped.WithLabelValues("malformed").Inc()
		logging.Ctx(ctx).Warn().
			Str("video_id", raw.VideoID).
			Str("source", batch.Source).
			Msg("Candidate has no channel id, skipping")
		return
	}

	channel, err := p.deps.Channels.GetOrCreate(ctx, raw.ChannelID, raw.ChannelTitle, now)
	if err != nil {
		// Score without channel history rather than dropping the find.
		logging.CtxErr(ctx, err).
			Str("video_id", raw.VideoID).
			Str("channel_id", raw.ChannelID).
			Msg("Channel lookup failed, scoring without history")
		channel = nil
	}

	video := p.buildVideo(raw, matches, channel, batch, now)

	stored, err := p.deps.Videos.Create(ctx, video, p.dedupeWindow())
	switch {
	case errors.Is(err, store.ErrDuplicate):
		out.Duplicates++
		metrics.DiscoveryVideosDeduplicated.Inc()
		p.recordSnapshot(ctx, stored.VideoID, raw, now)
		return
	case err != nil:
		out.Failed++
		logging.CtxErr(ctx, err).
			Str("video_id", raw.VideoID).
			Msg("Failed to persist discovered video")
		return
	}

	out.Persisted++
	metrics.DiscoveryVideosPersisted.WithLabelValues(batch.Source).Inc()
	p.recordSnapshot(ctx, stored.VideoID, raw, now)

	if len(stored.MatchedIPs) == 0 {
		return // kept for the record, nothing to announce
	}
	if err := p.deps.Publisher.PublishEvent(ctx, events.NewVideoDiscovered(stored)); err != nil {
		// The row is durable and scheduled; the rescore loop will reach
		// it even if this announcement never lands.
		logging.CtxErr(ctx, err).
			Str("video_id", stored.VideoID).
			Msg("Failed to publish discovery event")
	}

	logging.Ctx(ctx).Debug().
		Str("video_id", stored.VideoID).
		Str("source", batch.Source).
		Int("initial_risk", stored.InitialRisk).
		Str("risk_tier", string(stored.RiskTier)).
		Strs("matched_ips", stored.MatchedIPs).
		Msg("Video discovered")
}

// buildVideo assembles the canonical record for a first sighting: scored,
// tiered, and scheduled for its first rescan.
func (p *Processor) buildVideo(raw *platform.RawVideo, matches *catalog.FieldMatches, channel *models.ChannelProfile, batch Batch, now time.Time) *models.Video {
	video := &models.Video{
		VideoID:         raw.VideoID,
		Title:           raw.Title,
		Description:     raw.Description,
		ChannelID:       raw.ChannelID,
		ChannelTitle:    raw.ChannelTitle,
		PublishedAt:     raw.PublishedAt,
		ViewCount:       raw.ViewCount,
		LikeCount:       raw.LikeCount,
		CommentCount:    raw.CommentCount,
		DurationSeconds: raw.DurationSeconds,
		Tags:            raw.Tags,
		ThumbnailURL:    raw.ThumbnailURL,
		MatchedIPs:      matches.MatchedTargetIDs,
		State:           models.StateDiscovered,
		DiscoveredAt:    now,
		Source:          batch.Source,
	}

	score := risk.InitialRisk(video, matches, channel, batch.TrendingPrior)
	video.InitialRisk = score.Value
	video.CurrentRisk = score.Value
	video.RiskTier = score.Tier
	video.LastRiskUpdate = now
	video.NextScanAt = now.Add(score.Tier.ScanInterval())
	video.AppendRiskHistory(models.RiskHistoryEntry{
		Timestamp:     now,
		Previous:      0,
		New:           score.Value,
		Contributions: score.Contributions,
		Reason:        "initial",
	})
	return video
}

// recordSnapshot stores the view count observed at this sighting so the
// first rescore has a velocity baseline. Partial records carry no counts
// worth recording.
func (p *Processor) recordSnapshot(ctx context.Context, videoID string, raw *platform.RawVideo, now time.Time) {
	if !raw.HasDetails {
		return
	}
	snap := &models.ViewSnapshot{VideoID: videoID, ViewCount: raw.ViewCount, Timestamp: now}
	if err := p.deps.Snapshots.Record(ctx, snap); err != nil {
		logging.CtxErr(ctx, err).
			Str("video_id", videoID).
			Msg("Failed to record view snapshot")
	}
}

func (p *Processor) dedupeWindow() time.Duration {
	return time.Duration(p.cfg.DedupeWindowDays) * 24 * time.Hour
}
