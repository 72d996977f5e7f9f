// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package intel

import (
	"context"
	"time"

	"github.com/tomtom215/excubitor/internal/cache"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/models"
)

// Profile cache sizing. The processor looks a channel up for every
// record it scores, and discovery batches revisit the same channels, so
// a short TTL captures almost all of the repeat reads.
const (
	channelCacheSize = 4096
	channelCacheTTL  = 5 * time.Minute
)

// ChannelStore is the persistence surface the registry needs.
type ChannelStore interface {
	GetOrCreate(ctx context.Context, defaults *models.ChannelProfile) (*models.ChannelProfile, error)
	Update(ctx context.Context, channelID string, mutate func(*models.ChannelProfile) error) (*models.ChannelProfile, error)
	DueForScan(ctx context.Context, now time.Time, limit int) ([]*models.ChannelProfile, error)
	TierCounts(ctx context.Context) (map[models.ChannelTier]int64, error)
}

// ChannelRegistry grades channels by confirmed infringement history and
// schedules their rescans. Reads go through an LRU; cached profiles are
// snapshots and must not be mutated by callers.
type ChannelRegistry struct {
	repo  ChannelStore
	cache *cache.LRU[*models.ChannelProfile]
}

// NewChannelRegistry creates a registry over the given store.
func NewChannelRegistry(repo ChannelStore) *ChannelRegistry {
	return &ChannelRegistry{
		repo:  repo,
		cache: cache.NewLRU[*models.ChannelProfile](channelCacheSize, channelCacheTTL),
	}
}

// GetOrCreate returns the channel's profile, creating a SILVER default
// with empty counters on first sight. New channels enter the scan queue
// immediately: next_scan_at starts at discovery time, so the channel
// scanner picks them up as soon as tier budget allows.
func (r *ChannelRegistry) GetOrCreate(ctx context.Context, channelID, title string, now time.Time) (*models.ChannelProfile, error) {
	if profile, ok := r.cache.Get(channelID); ok {
		return profile, nil
	}

	profile, err := r.repo.GetOrCreate(ctx, &models.ChannelProfile{
		ChannelID:    channelID,
		ChannelTitle: title,
		Tier:         models.ChannelTierSilver,
		DiscoveredAt: now,
		NextScanAt:   now,
	})
	if err != nil {
		return nil, err
	}

	r.cache.Add(channelID, profile)
	return profile, nil
}

// MarkScanned folds one scan outcome into the profile: counters, the
// derived rate and tier, and the next scan slot. IGNORE channels get a
// zero next_scan_at and leave the schedule entirely.
func (r *ChannelRegistry) MarkScanned(ctx context.Context, channelID string, hadInfringement bool, now time.Time) (*models.ChannelProfile, error) {
	var from models.ChannelTier
	updated, err := r.repo.Update(ctx, channelID, func(profile *models.ChannelProfile) error {
		from = profile.Tier
		profile.TotalVideosScanned++
		if hadInfringement {
			profile.ConfirmedInfringement++
		} else {
			profile.VideosCleared++
		}
		profile.Recompute()
		profile.LastScannedAt = now
		if interval := profile.Tier.ScanInterval(); interval > 0 {
			profile.NextScanAt = now.Add(interval)
		} else {
			profile.NextScanAt = time.Time{}
		}
		return nil
	})
	if err != nil {
		// The cached row no longer reflects what is stored.
		r.cache.Remove(channelID)
		return nil, err
	}

	r.cache.Add(channelID, updated)
	if updated.Tier != from {
		logging.Info().
			Str("channel_id", channelID).
			Str("from", string(from)).
			Str("to", string(updated.Tier)).
			Float64("rate", updated.InfringementRate).
			Int64("scanned", updated.TotalVideosScanned).
			Msg("Channel tier changed")
	}
	return updated, nil
}

// DueForScan returns up to limit channels whose next scan slot has
// arrived, best tier first, oldest slot within a tier.
func (r *ChannelRegistry) DueForScan(ctx context.Context, now time.Time, limit int) ([]*models.ChannelProfile, error) {
	return r.repo.DueForScan(ctx, now, limit)
}

// TierCounts reports channel counts per tier and refreshes the
// channels_by_tier gauges.
func (r *ChannelRegistry) TierCounts(ctx context.Context) (map[models.ChannelTier]int64, error) {
	counts, err := r.repo.TierCounts(ctx)
	if err != nil {
		return nil, err
	}

	tiers := []models.ChannelTier{
		models.ChannelTierPlatinum,
		models.ChannelTierGold,
		models.ChannelTierSilver,
		models.ChannelTierBronze,
		models.ChannelTierIgnore,
	}
	for _, tier := range tiers {
		metrics.ChannelsByTier.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
	return counts, nil
}
