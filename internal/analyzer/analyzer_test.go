// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package analyzer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/platform"
	"github.com/tomtom215/excubitor/internal/quota"
	"github.com/tomtom215/excubitor/internal/store"
	"github.com/tomtom215/excubitor/internal/velocity"
)

// testNow pins the analyzer clock so scan slots and history timestamps
// are exact.
var testNow = time.Date(2026, time.April, 2, 9, 30, 0, 0, time.UTC)

func testRescoreConfig() config.RescoreConfig {
	return config.RescoreConfig{
		Interval:          15 * time.Minute,
		BatchSize:         50,
		HighRiskThreshold: 70,
	}
}

// storedVideo seeds a persisted row two days old with six-figure views
// and one percent engagement, so the engagement and age terms are zero
// and score arithmetic in assertions stays legible.
func storedVideo(id string, riskScore int, state models.ProcessingState) *models.Video {
	discovered := testNow.Add(-24 * time.Hour)
	return &models.Video{
		VideoID:      id,
		Title:        "Captain Nova Sora Short Film",
		ChannelID:    "UCnova",
		ChannelTitle: "Nova Clips",
		PublishedAt:  testNow.Add(-48 * time.Hour),

		ViewCount:    150000,
		LikeCount:    1500,
		CommentCount: 400,

		MatchedIPs: []string{"galaxy-saga"},

		InitialRisk:  riskScore,
		CurrentRisk:  riskScore,
		RiskTier:     models.RiskTierFor(riskScore),
		State:        state,
		DiscoveredAt: discovered,
		NextScanAt:   testNow.Add(-time.Hour),
		RiskHistory: []models.RiskHistoryEntry{
			{Timestamp: discovered, Previous: 0, New: riskScore, Reason: "initial"},
		},
	}
}

type fakeVideos struct {
	mu        sync.Mutex
	rows      map[string]*models.Video
	due       []*models.Video
	dueErr    error
	updateErr map[string]error
}

func newFakeVideos() *fakeVideos {
	return &fakeVideos{
		rows:      make(map[string]*models.Video),
		updateErr: make(map[string]error),
	}
}

func (f *fakeVideos) add(v *models.Video) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.rows[v.VideoID] = &cp
}

func (f *fakeVideos) setDue(videos ...*models.Video) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.due = append([]*models.Video(nil), videos...)
}

func (f *fakeVideos) get(id string) *models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeVideos) Get(_ context.Context, videoID string) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[videoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeVideos) Update(_ context.Context, videoID string, mutate func(*models.Video) error) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[videoID]; err != nil {
		return nil, fmt.Errorf("video %s: %w", videoID, err)
	}
	row, ok := f.rows[videoID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	f.rows[videoID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeVideos) DueForRescore(_ context.Context, _ time.Time, _ int) ([]*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	out := make([]*models.Video, len(f.due))
	for i, v := range f.due {
		cp := *v
		out[i] = &cp
	}
	return out, nil
}

type markCall struct {
	channelID    string
	infringement bool
}

type fakeChannels struct {
	mu       sync.Mutex
	profiles map[string]*models.ChannelProfile
	marked   []markCall
	getErr   error
	markErr  error
}

func newFakeChannels() *fakeChannels {
	return &fakeChannels{profiles: make(map[string]*models.ChannelProfile)}
}

func (f *fakeChannels) GetOrCreate(_ context.Context, channelID, title string, now time.Time) (*models.ChannelProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.profiles[channelID]; ok {
		return p, nil
	}
	p := &models.ChannelProfile{
		ChannelID:    channelID,
		ChannelTitle: title,
		Tier:         models.ChannelTierSilver,
		DiscoveredAt: now,
		NextScanAt:   now,
	}
	f.profiles[channelID] = p
	return p, nil
}

func (f *fakeChannels) MarkScanned(_ context.Context, channelID string, hadInfringement bool, _ time.Time) (*models.ChannelProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.marked = append(f.marked, markCall{channelID: channelID, infringement: hadInfringement})
	p, ok := f.profiles[channelID]
	if !ok {
		p = &models.ChannelProfile{ChannelID: channelID, Tier: models.ChannelTierSilver}
		f.profiles[channelID] = p
	}
	return p, nil
}

func (f *fakeChannels) markedCalls() []markCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]markCall(nil), f.marked...)
}

type snapRecord struct {
	videoID string
	views   int64
	ts      time.Time
}

// fakeTracker answers with canned velocity results per video and
// defaults to UNKNOWN, which carries no boost.
type fakeTracker struct {
	mu        sync.Mutex
	recorded  []snapRecord
	recordErr error
	results   map[string]velocity.Result
	velErr    map[string]error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		results: make(map[string]velocity.Result),
		velErr:  make(map[string]error),
	}
}

func (f *fakeTracker) RecordSnapshot(_ context.Context, videoID string, viewCount int64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, snapRecord{videoID: videoID, views: viewCount, ts: ts})
	return nil
}

func (f *fakeTracker) Velocity(_ context.Context, videoID string, _ time.Time, _ int64) (velocity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.velErr[videoID]; err != nil {
		return velocity.Result{}, err
	}
	if r, ok := f.results[videoID]; ok {
		return r, nil
	}
	return velocity.Result{Class: velocity.ClassUnknown}, nil
}

func (f *fakeTracker) snapshots() []snapRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]snapRecord(nil), f.recorded...)
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

func (f *fakePublisher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeFetcher serves detail records for known ids; unknown ids are
// silently absent, like deleted videos on the platform.
type fakeFetcher struct {
	mu      sync.Mutex
	details map[string]platform.RawVideo
	err     error
	calls   [][]string
}

func (f *fakeFetcher) GetVideoDetails(_ context.Context, ids []string) ([]platform.RawVideo, error) {
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

func (f *fakeFetcher) fetchCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type fixture struct {
	videos    *fakeVideos
	channels  *fakeChannels
	tracker   *fakeTracker
	fetcher   *fakeFetcher
	publisher *fakePublisher
	rescan    *quota.Ledger
	analyzer  *Analyzer
}

func newFixture(t *testing.T, ceiling int64) *fixture {
	t.Helper()
	rescan, err := quota.NewLedger(context.Background(), "rescan", ceiling, nil)
	if err != nil {
		t.Fatalf("quota.NewLedger: %v", err)
	}
	fx := &fixture{
		videos:    newFakeVideos(),
		channels:  newFakeChannels(),
		tracker:   newFakeTracker(),
		fetcher:   &fakeFetcher{details: make(map[string]platform.RawVideo)},
		publisher: &fakePublisher{},
		rescan:    rescan,
	}
	fx.analyzer = New(Deps{
		Videos:    fx.videos,
		Channels:  fx.channels,
		Tracker:   fx.tracker,
		Fetcher:   fx.fetcher,
		Publisher: fx.publisher,
		Rescan:    rescan,
	}, testRescoreConfig(), WithClock(func() time.Time { return testNow }))
	return fx
}

func discoveredMsg(t *testing.T, v *models.Video) *message.Message {
	t.Helper()
	evt := events.NewVideoDiscovered(v)
	data, err := events.Encode(evt)
	if err != nil {
		t.Fatalf("events.Encode: %v", err)
	}
	return message.NewMessage(evt.MessageID(), data)
}

func feedbackMsg(t *testing.T, evt *events.VisionFeedback) *message.Message {
	t.Helper()
	data, err := events.Encode(evt)
	if err != nil {
		t.Fatalf("events.Encode: %v", err)
	}
	return message.NewMessage(evt.MessageID(), data)
}
