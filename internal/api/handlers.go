// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/excubitor/internal/analyzer"
	"github.com/tomtom215/excubitor/internal/discovery"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
)

// StatusPayload is the /api/v1/status response body.
type StatusPayload struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	LastCycle     *discovery.CycleReport       `json:"last_cycle"`
	LastTick      *analyzer.TickReport         `json:"last_tick"`
	VideosByTier  map[models.RiskTier]int64    `json:"videos_by_tier,omitempty"`
	ChannelsBy    map[models.ChannelTier]int64 `json:"channels_by_tier,omitempty"`
	BreakerState  string                       `json:"breaker_state,omitempty"`
}

// LedgerPayload is one ledger's slice of the /api/v1/quota response.
type LedgerPayload struct {
	Name        string           `json:"name"`
	Date        string           `json:"date"`
	Ceiling     int64            `json:"ceiling"`
	Used        int64            `json:"used"`
	Remaining   int64            `json:"remaining"`
	Utilization float64          `json:"utilization"`
	ByOperation map[string]int64 `json:"by_operation,omitempty"`
}

// QuotaPayload is the /api/v1/quota response body.
type QuotaPayload struct {
	Discovery LedgerPayload `json:"discovery"`
	Rescan    LedgerPayload `json:"rescan"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			rw.ServiceUnavailable("dependencies not ready")
			return
		}
	}
	rw.Success(map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	payload := StatusPayload{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		LastCycle:     s.deps.Discovery.LastReport(),
		LastTick:      s.deps.Analyzer.LastTick(),
	}

	// Tier counts are prefix scans over the secondary indexes; a
	// failure degrades the payload rather than failing the request.
	if s.deps.Videos != nil {
		counts, err := s.deps.Videos.TierCounts(r.Context())
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Video tier counts unavailable")
		} else {
			payload.VideosByTier = counts
		}
	}
	if s.deps.Channels != nil {
		counts, err := s.deps.Channels.TierCounts(r.Context())
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Channel tier counts unavailable")
		} else {
			payload.ChannelsBy = counts
		}
	}
	if s.deps.Breaker != nil {
		payload.BreakerState = s.deps.Breaker.State()
	}

	rw.Success(payload)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(QuotaPayload{
		Discovery: ledgerPayload(s.deps.Ledger),
		Rescan:    ledgerPayload(s.deps.Rescan),
	})
}

func ledgerPayload(l QuotaSource) LedgerPayload {
	snap := l.Snapshot()
	return LedgerPayload{
		Name:        l.Name(),
		Date:        snap.Date,
		Ceiling:     l.Ceiling(),
		Used:        snap.UsedUnits,
		Remaining:   l.Remaining(),
		Utilization: l.Utilization(),
		ByOperation: snap.UsedByOperation,
	}
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if !s.deps.Discovery.TriggerNow() {
		// A trigger is already pending or a cycle is draining the
		// channel; the work the caller wants is already scheduled.
		rw.Conflict("discovery cycle already pending")
		return
	}

	logging.Ctx(r.Context()).Info().Msg("Discovery cycle triggered via API")
	rw.Accepted(map[string]string{"status": "cycle scheduled"})
}
