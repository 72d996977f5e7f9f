// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package models

import (
	"time"
)

// RiskTier classifies a video's current risk score into rescan cadence bands.
// The mapping is a total function of the score: every value in [0,100] maps
// to exactly one tier.
type RiskTier string

const (
	RiskTierCritical RiskTier = "CRITICAL"
	RiskTierHigh     RiskTier = "HIGH"
	RiskTierMedium   RiskTier = "MEDIUM"
	RiskTierLow      RiskTier = "LOW"
	RiskTierVeryLow  RiskTier = "VERY_LOW"
)

// RiskTierFor maps a risk score to its tier:
// >=90 CRITICAL, >=70 HIGH, >=40 MEDIUM, >=20 LOW, else VERY_LOW.
func RiskTierFor(score int) RiskTier {
	switch {
	case score >= 90:
		return RiskTierCritical
	case score >= 70:
		return RiskTierHigh
	case score >= 40:
		return RiskTierMedium
	case score >= 20:
		return RiskTierLow
	default:
		return RiskTierVeryLow
	}
}

// ScanInterval returns how long a video in this tier waits until its next
// rescore pass.
func (t RiskTier) ScanInterval() time.Duration {
	switch t {
	case RiskTierCritical:
		return 6 * time.Hour
	case RiskTierHigh:
		return 24 * time.Hour
	case RiskTierMedium:
		return 3 * 24 * time.Hour
	case RiskTierLow:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// ProcessingState tracks a video's position in the downstream analysis pipeline.
//
// State machine: discovered -> queued -> processing -> {analyzed, failed}.
// A failed or analyzed video may re-enter queued when a later rescore crosses
// the high-risk threshold upward.
type ProcessingState string

const (
	StateDiscovered ProcessingState = "discovered"
	StateQueued     ProcessingState = "queued"
	StateProcessing ProcessingState = "processing"
	StateAnalyzed   ProcessingState = "analyzed"
	StateFailed     ProcessingState = "failed"
)

// CanTransition reports whether moving from s to next is a legal state change.
func (s ProcessingState) CanTransition(next ProcessingState) bool {
	switch s {
	case StateDiscovered:
		return next == StateQueued
	case StateQueued:
		return next == StateProcessing || next == StateAnalyzed || next == StateFailed
	case StateProcessing:
		return next == StateAnalyzed || next == StateFailed
	case StateAnalyzed, StateFailed:
		// Eligible for requeueing on a later upward threshold cross.
		return next == StateQueued
	}
	return false
}

// GeminiResult holds the downstream vision analyzer's verdict for a video.
type GeminiResult struct {
	ContainsInfringement bool      `json:"contains_infringement"`
	Confidence           float64   `json:"confidence"`
	Characters           []string  `json:"characters,omitempty"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
}

// RiskHistoryEntry records one risk transition with its factor breakdown.
type RiskHistoryEntry struct {
	Timestamp     time.Time      `json:"ts"`
	Previous      int            `json:"prev"`
	New           int            `json:"new"`
	Contributions map[string]int `json:"factor_contributions,omitempty"`
	Reason        string         `json:"reason"`
}

// MaxRiskHistory bounds the per-video risk history log. Older entries are
// dropped from the front when the log exceeds this length.
const MaxRiskHistory = 100

// Video is the canonical record for a discovered platform video.
//
// Writer discipline: the discovery processor creates the row and sets the
// metadata plus InitialRisk (exactly once, at first persist); the risk
// analyzer owns CurrentRisk, RiskTier, ViewVelocity, NextScanAt,
// LastRiskUpdate, ProcessingState and GeminiResult afterwards.
type Video struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at"`

	ViewCount       int64    `json:"view_count"`
	LikeCount       int64    `json:"like_count"`
	CommentCount    int64    `json:"comment_count"`
	DurationSeconds int      `json:"duration_seconds"`
	Tags            []string `json:"tags,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`

	MatchedIPs []string `json:"matched_ips"`

	// InitialRisk is immutable after the first persist.
	InitialRisk int      `json:"initial_risk"`
	CurrentRisk int      `json:"current_risk"`
	RiskTier    RiskTier `json:"risk_tier"`

	// ViewVelocity is views/hour from the latest velocity computation;
	// nil until the first rescore that had enough snapshot history.
	ViewVelocity *float64 `json:"view_velocity,omitempty"`

	LastRiskUpdate time.Time       `json:"last_risk_update"`
	NextScanAt     time.Time       `json:"next_scan_at"`
	RiskUpdateSeq  uint64          `json:"risk_update_seq"`
	State          ProcessingState `json:"processing_state"`

	GeminiResult *GeminiResult      `json:"gemini_result,omitempty"`
	RiskHistory  []RiskHistoryEntry `json:"risk_history,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
	Source       string    `json:"source,omitempty"`
}

// AppendRiskHistory appends an entry and trims the log to MaxRiskHistory.
func (v *Video) AppendRiskHistory(entry RiskHistoryEntry) {
	v.RiskHistory = append(v.RiskHistory, entry)
	if len(v.RiskHistory) > MaxRiskHistory {
		v.RiskHistory = v.RiskHistory[len(v.RiskHistory)-MaxRiskHistory:]
	}
}

// EngagementRate returns like_count / max(1, view_count).
func (v *Video) EngagementRate() float64 {
	views := v.ViewCount
	if views < 1 {
		views = 1
	}
	return float64(v.LikeCount) / float64(views)
}

// AgeAt returns the video's age relative to now, measured from PublishedAt.
// Returns zero for unset or future publish timestamps.
func (v *Video) AgeAt(now time.Time) time.Duration {
	if v.PublishedAt.IsZero() || v.PublishedAt.After(now) {
		return 0
	}
	return now.Sub(v.PublishedAt)
}
