// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package intel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/models"
)

type fakeChannelStore struct {
	rows             map[string]*models.ChannelProfile
	getOrCreateCalls int
	updateErr        error
	due              []*models.ChannelProfile
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{rows: make(map[string]*models.ChannelProfile)}
}

func (f *fakeChannelStore) GetOrCreate(_ context.Context, defaults *models.ChannelProfile) (*models.ChannelProfile, error) {
	f.getOrCreateCalls++
	if existing, ok := f.rows[defaults.ChannelID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *defaults
	f.rows[defaults.ChannelID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeChannelStore) Update(_ context.Context, channelID string, mutate func(*models.ChannelProfile) error) (*models.ChannelProfile, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	profile, ok := f.rows[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}
	cp := *profile
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	f.rows[channelID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeChannelStore) DueForScan(_ context.Context, _ time.Time, limit int) ([]*models.ChannelProfile, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeChannelStore) TierCounts(_ context.Context) (map[models.ChannelTier]int64, error) {
	counts := make(map[models.ChannelTier]int64)
	for _, profile := range f.rows {
		counts[profile.Tier]++
	}
	return counts, nil
}

func TestGetOrCreateDefaults(t *testing.T) {
	repo := newFakeChannelStore()
	reg := NewChannelRegistry(repo)
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	profile, err := reg.GetOrCreate(ctx, "UCnew", "Nova Shorts Factory", now)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if profile.Tier != models.ChannelTierSilver {
		t.Errorf("Tier = %s, want SILVER", profile.Tier)
	}
	if profile.TotalVideosScanned != 0 || profile.ConfirmedInfringement != 0 {
		t.Errorf("counters not empty: %+v", profile)
	}
	if !profile.NextScanAt.Equal(now) {
		t.Errorf("NextScanAt = %v, want discovery time %v", profile.NextScanAt, now)
	}
	if !profile.DiscoveredAt.Equal(now) {
		t.Errorf("DiscoveredAt = %v, want %v", profile.DiscoveredAt, now)
	}

	// Second lookup is served from the cache.
	if _, err := reg.GetOrCreate(ctx, "UCnew", "Nova Shorts Factory", now.Add(time.Minute)); err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if repo.getOrCreateCalls != 1 {
		t.Errorf("store GetOrCreate calls = %d, want 1", repo.getOrCreateCalls)
	}
}

func TestGetOrCreateKeepsExistingProfile(t *testing.T) {
	repo := newFakeChannelStore()
	repo.rows["UCgold"] = &models.ChannelProfile{
		ChannelID:             "UCgold",
		Tier:                  models.ChannelTierGold,
		TotalVideosScanned:    12,
		ConfirmedInfringement: 6,
	}
	reg := NewChannelRegistry(repo)

	profile, err := reg.GetOrCreate(context.Background(), "UCgold", "", time.Now())
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if profile.Tier != models.ChannelTierGold || profile.TotalVideosScanned != 12 {
		t.Errorf("existing profile reset: %+v", profile)
	}
}

func TestMarkScannedTierLadder(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		seed            models.ChannelProfile
		hadInfringement bool
		wantTier        models.ChannelTier
		wantNextScan    time.Time
	}{
		{
			name:            "first infringement keeps silver",
			seed:            models.ChannelProfile{Tier: models.ChannelTierSilver},
			hadInfringement: true,
			wantTier:        models.ChannelTierSilver,
			wantNextScan:    now.Add(7 * 24 * time.Hour),
		},
		{
			name: "serial infringer reaches platinum",
			seed: models.ChannelProfile{
				Tier:                  models.ChannelTierGold,
				TotalVideosScanned:    19,
				ConfirmedInfringement: 11,
			},
			hadInfringement: true,
			wantTier:        models.ChannelTierPlatinum,
			wantNextScan:    now.Add(24 * time.Hour),
		},
		{
			name: "frequent infringer reaches gold",
			seed: models.ChannelProfile{
				Tier:                  models.ChannelTierSilver,
				TotalVideosScanned:    19,
				ConfirmedInfringement: 6,
			},
			hadInfringement: true,
			wantTier:        models.ChannelTierGold,
			wantNextScan:    now.Add(72 * time.Hour),
		},
		{
			name: "low rate with history drops to bronze",
			seed: models.ChannelProfile{
				Tier:               models.ChannelTierSilver,
				TotalVideosScanned: 4,
			},
			hadInfringement: false,
			wantTier:        models.ChannelTierBronze,
			wantNextScan:    now.Add(30 * 24 * time.Hour),
		},
		{
			name: "established clean channel leaves the schedule",
			seed: models.ChannelProfile{
				Tier:               models.ChannelTierBronze,
				TotalVideosScanned: 19,
			},
			hadInfringement: false,
			wantTier:        models.ChannelTierIgnore,
			wantNextScan:    time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeChannelStore()
			seed := tt.seed
			seed.ChannelID = "UCx"
			repo.rows["UCx"] = &seed
			reg := NewChannelRegistry(repo)

			updated, err := reg.MarkScanned(context.Background(), "UCx", tt.hadInfringement, now)
			if err != nil {
				t.Fatalf("MarkScanned: %v", err)
			}

			if updated.Tier != tt.wantTier {
				t.Errorf("Tier = %s, want %s", updated.Tier, tt.wantTier)
			}
			if !updated.NextScanAt.Equal(tt.wantNextScan) {
				t.Errorf("NextScanAt = %v, want %v", updated.NextScanAt, tt.wantNextScan)
			}
			if updated.TotalVideosScanned != tt.seed.TotalVideosScanned+1 {
				t.Errorf("TotalVideosScanned = %d, want %d", updated.TotalVideosScanned, tt.seed.TotalVideosScanned+1)
			}
			wantConfirmed := tt.seed.ConfirmedInfringement
			wantCleared := tt.seed.VideosCleared
			if tt.hadInfringement {
				wantConfirmed++
			} else {
				wantCleared++
			}
			if updated.ConfirmedInfringement != wantConfirmed || updated.VideosCleared != wantCleared {
				t.Errorf("counters = %d confirmed / %d cleared, want %d / %d",
					updated.ConfirmedInfringement, updated.VideosCleared, wantConfirmed, wantCleared)
			}
			if !updated.LastScannedAt.Equal(now) {
				t.Errorf("LastScannedAt = %v, want %v", updated.LastScannedAt, now)
			}
		})
	}
}

func TestMarkScannedRefreshesCache(t *testing.T) {
	repo := newFakeChannelStore()
	reg := NewChannelRegistry(repo)
	ctx := context.Background()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	if _, err := reg.GetOrCreate(ctx, "UCx", "Nova Clips", now); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := reg.MarkScanned(ctx, "UCx", true, now); err != nil {
		t.Fatalf("MarkScanned: %v", err)
	}

	// The cache serves the post-scan profile without another store read.
	profile, err := reg.GetOrCreate(ctx, "UCx", "Nova Clips", now)
	if err != nil {
		t.Fatalf("GetOrCreate after scan: %v", err)
	}
	if repo.getOrCreateCalls != 1 {
		t.Errorf("store GetOrCreate calls = %d, want 1", repo.getOrCreateCalls)
	}
	if profile.TotalVideosScanned != 1 || profile.ConfirmedInfringement != 1 {
		t.Errorf("cached profile stale: %+v", profile)
	}
}

func TestMarkScannedDropsCacheOnError(t *testing.T) {
	repo := newFakeChannelStore()
	reg := NewChannelRegistry(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := reg.GetOrCreate(ctx, "UCx", "", now); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	repo.updateErr = errors.New("stale write")
	if _, err := reg.MarkScanned(ctx, "UCx", false, now); !errors.Is(err, repo.updateErr) {
		t.Fatalf("MarkScanned error = %v, want store error", err)
	}

	// The failed write invalidated the cache entry.
	repo.updateErr = nil
	if _, err := reg.GetOrCreate(ctx, "UCx", "", now); err != nil {
		t.Fatalf("GetOrCreate after failure: %v", err)
	}
	if repo.getOrCreateCalls != 2 {
		t.Errorf("store GetOrCreate calls = %d, want 2 after invalidation", repo.getOrCreateCalls)
	}
}

func TestTierCounts(t *testing.T) {
	repo := newFakeChannelStore()
	repo.rows["UCa"] = &models.ChannelProfile{ChannelID: "UCa", Tier: models.ChannelTierPlatinum}
	repo.rows["UCb"] = &models.ChannelProfile{ChannelID: "UCb", Tier: models.ChannelTierSilver}
	repo.rows["UCc"] = &models.ChannelProfile{ChannelID: "UCc", Tier: models.ChannelTierSilver}
	reg := NewChannelRegistry(repo)

	counts, err := reg.TierCounts(context.Background())
	if err != nil {
		t.Fatalf("TierCounts: %v", err)
	}
	if counts[models.ChannelTierPlatinum] != 1 || counts[models.ChannelTierSilver] != 2 {
		t.Errorf("counts = %v", counts)
	}
}
