// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package models

import "time"

// ChannelTier classifies a channel by its confirmed infringement history and
// drives its rescan cadence. PLATINUM channels (serial infringers) are scanned
// daily; IGNORE channels are never rescanned.
type ChannelTier string

const (
	ChannelTierPlatinum ChannelTier = "PLATINUM"
	ChannelTierGold     ChannelTier = "GOLD"
	ChannelTierSilver   ChannelTier = "SILVER"
	ChannelTierBronze   ChannelTier = "BRONZE"
	ChannelTierIgnore   ChannelTier = "IGNORE"
)

// Rank orders tiers for scan scheduling: PLATINUM first. Unknown tiers sort last.
func (t ChannelTier) Rank() int {
	switch t {
	case ChannelTierPlatinum:
		return 0
	case ChannelTierGold:
		return 1
	case ChannelTierSilver:
		return 2
	case ChannelTierBronze:
		return 3
	case ChannelTierIgnore:
		return 4
	}
	return 5
}

// ScanInterval returns the rescan interval for the tier. IGNORE returns 0,
// meaning the channel is never scheduled again.
func (t ChannelTier) ScanInterval() time.Duration {
	switch t {
	case ChannelTierPlatinum:
		return 24 * time.Hour
	case ChannelTierGold:
		return 72 * time.Hour
	case ChannelTierSilver:
		return 7 * 24 * time.Hour
	case ChannelTierBronze:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// ChannelTierFor derives the tier from scan counters. The rules are evaluated
// most-specific first; channels with too little history keep SILVER (the
// default for new profiles).
func ChannelTierFor(confirmed, scanned int64, current ChannelTier) ChannelTier {
	rate := channelRate(confirmed, scanned)
	switch {
	case scanned >= 20 && confirmed == 0:
		return ChannelTierIgnore
	case rate > 0.50 && confirmed > 10:
		return ChannelTierPlatinum
	case rate > 0.25 && confirmed > 5:
		return ChannelTierGold
	case rate > 0.10:
		return ChannelTierSilver
	case rate <= 0.10 && scanned >= 5:
		return ChannelTierBronze
	}
	if current == "" {
		return ChannelTierSilver
	}
	return current
}

func channelRate(confirmed, scanned int64) float64 {
	if scanned <= 0 {
		return 0
	}
	return float64(confirmed) / float64(scanned)
}

// ChannelProfile tracks per-channel infringement history and scan scheduling.
// InfringementRate is always recomputed from the counters on write; the stored
// value exists only for inspection and is never read back as authoritative.
type ChannelProfile struct {
	ChannelID    string      `json:"channel_id"`
	ChannelTitle string      `json:"channel_title,omitempty"`
	Tier         ChannelTier `json:"tier"`

	TotalVideosScanned    int64   `json:"total_videos_scanned"`
	ConfirmedInfringement int64   `json:"confirmed_infringements"`
	VideosCleared         int64   `json:"videos_cleared"`
	InfringementRate      float64 `json:"infringement_rate"`

	SubscriberCount int64 `json:"subscriber_count,omitempty"`

	LastScannedAt time.Time `json:"last_scanned_at"`
	NextScanAt    time.Time `json:"next_scan_at"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// Rate returns confirmed_infringements / total_videos_scanned, 0 when the
// channel has never been scanned.
func (c *ChannelProfile) Rate() float64 {
	return channelRate(c.ConfirmedInfringement, c.TotalVideosScanned)
}

// Recompute refreshes the derived fields (rate and tier) from the counters.
func (c *ChannelProfile) Recompute() {
	c.InfringementRate = c.Rate()
	c.Tier = ChannelTierFor(c.ConfirmedInfringement, c.TotalVideosScanned, c.Tier)
}
