// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/excubitor/internal/cache"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/velocity"
)

// Emit suppression window. JetStream collapses duplicate message IDs
// inside its own two-minute window; this cache extends the suppression
// across handler redeliveries and overlapping ticks within one process.
const (
	emitCacheSize = 4096
	emitCacheTTL  = 10 * time.Minute
)

// VideoStore is the video persistence surface the analyzer needs.
type VideoStore interface {
	Get(ctx context.Context, videoID string) (*models.Video, error)
	Update(ctx context.Context, videoID string, mutate func(*models.Video) error) (*models.Video, error)
	DueForRescore(ctx context.Context, now time.Time, limit int) ([]*models.Video, error)
}

// ChannelIntel resolves channel profiles for scoring and folds analysis
// verdicts into channel grades. The intel channel registry satisfies it.
type ChannelIntel interface {
	GetOrCreate(ctx context.Context, channelID, title string, now time.Time) (*models.ChannelProfile, error)
	MarkScanned(ctx context.Context, channelID string, hadInfringement bool, now time.Time) (*models.ChannelProfile, error)
}

// VelocityTracker records view samples and classifies growth.
type VelocityTracker interface {
	RecordSnapshot(ctx context.Context, videoID string, viewCount int64, ts time.Time) error
	Velocity(ctx context.Context, videoID string, now time.Time, currentViews int64) (velocity.Result, error)
}

// Publisher announces high-risk candidates on the message bus.
type Publisher interface {
	PublishEvent(ctx context.Context, payload events.Payload) error
}

// DetailFetcher is the platform slice the rescore loop needs.
type DetailFetcher interface {
	GetVideoDetails(ctx context.Context, videoIDs []string) ([]platform.RawVideo, error)
}

// Ledger charges view refreshes to the rescan budget. *quota.Ledger
// satisfies it.
type Ledger interface {
	Charge(ctx context.Context, op quota.Op, n int) error
}

// Deps wires the analyzer's collaborators.
type Deps struct {
	Videos    VideoStore
	Channels  ChannelIntel
	Tracker   VelocityTracker
	Fetcher   DetailFetcher
	Publisher Publisher
	Rescan    Ledger
}

// Option adjusts analyzer construction.
type Option func(*Analyzer)

// WithClock substitutes the time source. Tests pin it to make schedules
// and history timestamps deterministic.
func WithClock(clock func() time.Time) Option {
	return func(a *Analyzer) { a.clock = clock }
}

// Analyzer is the risk side of the pipeline: the video-discovered and
// vision-feedback handlers plus the scheduled rescore tick. It is the
// only writer of a video's risk fields after first persist.
type Analyzer struct {
	deps    Deps
	cfg     config.RescoreConfig
	clock   func() time.Time
	emitted *cache.LRU[struct{}]

	mu   sync.RWMutex
	last *TickReport
}

// New creates an analyzer.
func New(deps Deps, cfg config.RescoreConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		deps:    deps,
		cfg:     cfg,
		clock:   time.Now,
		emitted: cache.NewLRU[struct{}](emitCacheSize, emitCacheTTL),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// publishHighRisk announces a video that entered the vision queue. The
// row is already durable, so a failed publish is logged and tolerated:
// pending work is re-derivable from rows at or above the threshold.
// trigger labels the publish metric with what caused the emission.
func (a *Analyzer) publishHighRisk(ctx context.Context, video *models.Video, reason, trigger string) {
	evt := events.NewVideoHighRisk(video, reason)

	key := evt.MessageID() + ":" + reason
	if a.emitted.IsDuplicate(key) {
		metrics.EventsDeduplicated.Inc()
		return
	}

	if err := a.deps.Publisher.PublishEvent(ctx, evt); err != nil {
		// Disarm the suppression window so a redelivery can try again.
		a.emitted.Remove(key)
		logging.CtxErr(ctx, err).
			Str("video_id", video.VideoID).
			Str("reason", reason).
			Msg("Failed to publish high-risk event")
		return
	}

	metrics.HighRiskPublished.WithLabelValues(trigger).Inc()
	logging.Ctx(ctx).Info().
		Str("video_id", video.VideoID).
		Int("current_risk", video.CurrentRisk).
		Str("risk_tier", string(video.RiskTier)).
		Str("reason", reason).
		Uint64("risk_update_seq", video.RiskUpdateSeq).
		Msg("Video queued for vision analysis")
}
