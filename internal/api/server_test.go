// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/analyzer"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/discovery"
	"github.com/tomtom215/excubitor/internal/models"
)

// mockRunner is a test double for DiscoveryRunner.
type mockRunner struct {
	triggered bool
	accept    bool
	report    *discovery.CycleReport
}

func (m *mockRunner) TriggerNow() bool {
	m.triggered = true
	return m.accept
}

func (m *mockRunner) LastReport() *discovery.CycleReport { return m.report }

// mockRescore is a test double for RescoreStatus.
type mockRescore struct {
	tick *analyzer.TickReport
}

func (m *mockRescore) LastTick() *analyzer.TickReport { return m.tick }

// mockLedger is a test double for QuotaSource.
type mockLedger struct {
	name    string
	ceiling int64
	used    int64
	byOp    map[string]int64
}

func (m *mockLedger) Name() string          { return m.name }
func (m *mockLedger) Ceiling() int64        { return m.ceiling }
func (m *mockLedger) Remaining() int64      { return m.ceiling - m.used }
func (m *mockLedger) Utilization() float64  { return float64(m.used) / float64(m.ceiling) }
func (m *mockLedger) Snapshot() models.QuotaUsage {
	return models.QuotaUsage{
		Ledger:          m.name,
		Date:            "2026-02-14",
		UsedUnits:       m.used,
		UsedByOperation: m.byOp,
	}
}

// mockVideoCounts is a test double for VideoCounts.
type mockVideoCounts struct {
	counts map[models.RiskTier]int64
	err    error
}

func (m *mockVideoCounts) TierCounts(_ context.Context) (map[models.RiskTier]int64, error) {
	return m.counts, m.err
}

// mockChannelCounts is a test double for ChannelCounts.
type mockChannelCounts struct {
	counts map[models.ChannelTier]int64
}

func (m *mockChannelCounts) TierCounts(_ context.Context) (map[models.ChannelTier]int64, error) {
	return m.counts, nil
}

type mockBreaker struct{ state string }

func (m *mockBreaker) State() string { return m.state }

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	if deps.Discovery == nil {
		deps.Discovery = &mockRunner{accept: true}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = &mockRescore{}
	}
	if deps.Ledger == nil {
		deps.Ledger = &mockLedger{name: "discovery", ceiling: 10000, used: 300}
	}
	if deps.Rescan == nil {
		deps.Rescan = &mockLedger{name: "rescan", ceiling: 2000, used: 40}
	}

	cfg := config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		Timeout:         5 * time.Second,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
	}
	return NewServer(cfg, deps)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestHealthLive(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeResponse(t, rec); !resp.Success {
		t.Error("expected success envelope")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		ready      func(context.Context) error
		wantStatus int
	}{
		{name: "no check configured", ready: nil, wantStatus: http.StatusOK},
		{name: "check passes", ready: func(context.Context) error { return nil }, wantStatus: http.StatusOK},
		{
			name:       "check fails",
			ready:      func(context.Context) error { return errors.New("store closed") },
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, Deps{Ready: tt.ready})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestStatusPayload(t *testing.T) {
	report := &discovery.CycleReport{
		CycleID:    "cycle-1",
		Trigger:    "interval",
		Outcome:    "completed",
		SpentUnits: 423,
	}
	tick := &analyzer.TickReport{Outcome: "completed", Due: 7, Rescored: 7}

	srv := testServer(t, Deps{
		Discovery: &mockRunner{report: report, accept: true},
		Analyzer:  &mockRescore{tick: tick},
		Videos:    &mockVideoCounts{counts: map[models.RiskTier]int64{models.RiskTierHigh: 3}},
		Channels:  &mockChannelCounts{counts: map[models.ChannelTier]int64{models.ChannelTierGold: 2}},
		Breaker:   &mockBreaker{state: "closed"},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var payload StatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	if payload.LastCycle == nil || payload.LastCycle.CycleID != "cycle-1" {
		t.Errorf("LastCycle = %+v, want cycle-1", payload.LastCycle)
	}
	if payload.LastTick == nil || payload.LastTick.Rescored != 7 {
		t.Errorf("LastTick = %+v, want 7 rescored", payload.LastTick)
	}
	if payload.VideosByTier[models.RiskTierHigh] != 3 {
		t.Errorf("VideosByTier = %v, want HIGH:3", payload.VideosByTier)
	}
	if payload.ChannelsBy[models.ChannelTierGold] != 2 {
		t.Errorf("ChannelsBy = %v, want GOLD:2", payload.ChannelsBy)
	}
	if payload.BreakerState != "closed" {
		t.Errorf("BreakerState = %q, want closed", payload.BreakerState)
	}
}

func TestStatusDegradesWithoutTierCounts(t *testing.T) {
	srv := testServer(t, Deps{
		Videos: &mockVideoCounts{err: errors.New("iterator failed")},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	// A broken index scan degrades the payload, never the request.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestQuotaPayload(t *testing.T) {
	srv := testServer(t, Deps{
		Ledger: &mockLedger{
			name:    "discovery",
			ceiling: 10000,
			used:    700,
			byOp:    map[string]int64{"search": 600, "trending": 100},
		},
		Rescan: &mockLedger{name: "rescan", ceiling: 2000, used: 40},
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decodeResponse(t, rec)
	data, _ := json.Marshal(resp.Data)
	var payload QuotaPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}

	if payload.Discovery.Used != 700 || payload.Discovery.Remaining != 9300 {
		t.Errorf("discovery ledger = %+v, want used 700 remaining 9300", payload.Discovery)
	}
	if payload.Discovery.ByOperation["search"] != 600 {
		t.Errorf("ByOperation = %v, want search:600", payload.Discovery.ByOperation)
	}
	if payload.Rescan.Name != "rescan" || payload.Rescan.Ceiling != 2000 {
		t.Errorf("rescan ledger = %+v", payload.Rescan)
	}
}

func TestTriggerDiscovery(t *testing.T) {
	tests := []struct {
		name       string
		accept     bool
		wantStatus int
	}{
		{name: "scheduled", accept: true, wantStatus: http.StatusAccepted},
		{name: "already pending", accept: false, wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{accept: tt.accept}
			srv := testServer(t, Deps{Discovery: runner})

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/discovery/run", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !runner.triggered {
				t.Error("TriggerNow was not called")
			}
		})
	}
}

func TestTriggerMethodNotAllowed(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/discovery/run", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected Prometheus exposition output")
	}
}
