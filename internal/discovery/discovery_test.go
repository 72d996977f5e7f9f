// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/store"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]models.IPTarget{
		{
			ID:         "galaxy-saga",
			Name:       "Galaxy Saga",
			Priority:   models.IPPriorityHigh,
			ValueTier:  models.ValueTierAAA,
			Characters: []string{"Captain Nova"},
			AIKeywords: []string{"sora", "runway"},
		},
		{
			ID:         "iron-legion",
			Name:       "Iron Legion",
			Priority:   models.IPPriorityHigh,
			ValueTier:  models.ValueTierAA,
			Characters: []string{"Sentinel Prime"},
			AIKeywords: []string{"veo"},
		},
		{
			ID:         "moss-hollow",
			Name:       "Moss Hollow",
			Priority:   models.IPPriorityLow,
			ValueTier:  models.ValueTierB,
			Characters: []string{"Tobbin"},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func testLedger(t *testing.T, ceiling int64) *quota.Ledger {
	t.Helper()
	ledger, err := quota.NewLedger(context.Background(), "discovery", ceiling, nil)
	if err != nil {
		t.Fatalf("quota.NewLedger: %v", err)
	}
	return ledger
}

func testDiscoveryConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		Interval:           time.Hour,
		CycleTimeout:       time.Minute,
		MaxPerCycle:        2000,
		TierFresh:          0.20,
		TierChannels:       0.60,
		TierKeywords:       0.20,
		DedupeWindowDays:   7,
		SkipNoIPMatch:      true,
		TrendingCategories: []string{"1", "20"},
	}
}

// fullVideo is a detail-grade platform record that matches galaxy-saga
// hard: character plus AI tool in the title, tool mentions in the
// description, matching tags, six-figure views.
func fullVideo(id string) platform.RawVideo {
	return platform.RawVideo{
		VideoID:         id,
		Title:           "Captain Nova Sora Short Film",
		Description:     "Made with sora and runway, rendered overnight.",
		ChannelID:       "UCnova",
		ChannelTitle:    "Nova Clips",
		PublishedAt:     time.Now().UTC().Add(-6 * time.Hour),
		DurationSeconds: 184,
		ViewCount:       150000,
		LikeCount:       9000,
		CommentCount:    400,
		Tags:            []string{"captain nova", "sora ai", "space"},
		ThumbnailURL:    "https://img.example/" + id + ".jpg",
		HasDetails:      true,
	}
}

type fakeVideoStore struct {
	mu   sync.Mutex
	rows map[string]*models.Video
	err  error
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{rows: make(map[string]*models.Video)}
}

func (f *fakeVideoStore) Create(_ context.Context, video *models.Video, window time.Duration) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if existing, ok := f.rows[video.VideoID]; ok {
		existing.ViewCount = video.ViewCount
		if time.Since(existing.DiscoveredAt) < window {
			return existing, store.ErrDuplicate
		}
		existing.MatchedIPs = video.MatchedIPs
		return existing, nil
	}
	cp := *video
	f.rows[video.VideoID] = &cp
	return &cp, nil
}

func (f *fakeVideoStore) get(id string) *models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeChannelDir struct {
	mu       sync.Mutex
	profiles map[string]*models.ChannelProfile
	err      error
}

func newFakeChannelDir() *fakeChannelDir {
	return &fakeChannelDir{profiles: make(map[string]*models.ChannelProfile)}
}

func (f *fakeChannelDir) GetOrCreate(_ context.Context, channelID, title string, now time.Time) (*models.ChannelProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[channelID]; ok {
		return p, nil
	}
	p := &models.ChannelProfile{
		ChannelID:    channelID,
		ChannelTitle: title,
		Tier:         models.ChannelTierBronze,
		DiscoveredAt: now,
	}
	f.profiles[channelID] = p
	return p, nil
}

type fakeSnapshots struct {
	mu    sync.Mutex
	snaps []models.ViewSnapshot
	err   error
}

func (f *fakeSnapshots) Record(_ context.Context, snap *models.ViewSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snaps = append(f.snaps, *snap)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []events.Payload
	err      error
}

func (f *fakePublisher) PublishEvent(_ context.Context, payload events.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) published() []events.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Payload(nil), f.payloads...)
}

// fakeHydrator serves detail records for known ids in request order.
// Unknown ids are silently absent, like deleted videos on the platform.
type fakeHydrator struct {
	mu      sync.Mutex
	details map[string]platform.RawVideo
	err     error
	calls   [][]string
}

func (f *fakeHydrator) GetVideoDetails(_ context.Context, ids []string) ([]platform.RawVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]platform.RawVideo, 0, len(ids))
	for _, id := range ids {
		if v, ok := f.details[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type searchCall struct {
	query string
	after time.Time
}

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]platform.RawVideo
	errs    map[string]error
	calls   []searchCall
}

func (f *fakeSearcher) SearchVideos(_ context.Context, query string, publishedAfter time.Time, _ int) ([]platform.RawVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, searchCall{query: query, after: publishedAfter})
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.query
	}
	return out
}

// stubProcessor records batches and answers with a canned outcome per
// source, so scanner tests assert wiring without the full pipeline.
type stubProcessor struct {
	mu       sync.Mutex
	batches  []Batch
	outcomes func(Batch) (Outcome, error)
}

func (s *stubProcessor) Process(_ context.Context, _ Budget, batch Batch, _ time.Time) (Outcome, error) {
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	if s.outcomes != nil {
		return s.outcomes(batch)
	}
	return Outcome{Ingested: len(batch.Videos)}, nil
}

func (s *stubProcessor) seen() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Batch(nil), s.batches...)
}
