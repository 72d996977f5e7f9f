// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"strconv"
	"time"

	"github.com/tomtom215/excubitor/internal/models"
)

// Topic names. Subjects are flat because the stream carries exactly these
// four; consumers bind to the stream rather than to wildcard subjects.
const (
	// TopicVideoDiscovered carries first sightings from the discovery
	// processor to the risk analyzer.
	TopicVideoDiscovered = "video-discovered"

	// TopicVideoHighRisk carries high-risk candidates to the downstream
	// vision analyzer.
	TopicVideoHighRisk = "video-high-risk"

	// TopicVisionFeedback carries the vision analyzer's verdicts back.
	TopicVisionFeedback = "vision-feedback"

	// TopicPoison receives messages that exhausted handler retries.
	TopicPoison = "video-intel-poison"
)

// StreamName is the JetStream stream holding all video intel subjects.
const StreamName = "VIDEO_INTEL"

// StreamSubjects lists every subject bound to the stream.
func StreamSubjects() []string {
	return []string{
		TopicVideoDiscovered,
		TopicVideoHighRisk,
		TopicVisionFeedback,
		TopicPoison,
	}
}

// Reasons for a video-high-risk emission.
const (
	// ReasonInitial marks a video that arrived already at or above the
	// high-risk threshold.
	ReasonInitial = "initial"

	// ReasonThresholdCross marks a rescore that moved the score across the
	// threshold from below.
	ReasonThresholdCross = "threshold_cross"
)

// Feedback status values. An empty status means the analysis completed.
const (
	FeedbackAcknowledged = "acknowledged"
	FeedbackCompleted    = "completed"
	FeedbackFailed       = "failed"
)

// Payload is implemented by every topic payload. MessageID is deterministic
// per logical event so JetStream deduplication and redelivery collapse
// resends of the same fact.
type Payload interface {
	Topic() string
	MessageID() string
	Validate() error
}

// ValidationError reports a payload field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// VideoDiscovered is published by the discovery processor after a video row
// is durably persisted. The persist always happens first, so a consumer can
// read the full row by video_id.
type VideoDiscovered struct {
	VideoID      string          `json:"video_id"`
	ChannelID    string          `json:"channel_id"`
	Title        string          `json:"title"`
	InitialRisk  int             `json:"initial_risk"`
	RiskTier     models.RiskTier `json:"risk_tier"`
	MatchedIPs   []string        `json:"matched_ips"`
	DiscoveredAt time.Time       `json:"discovered_at"`
}

// NewVideoDiscovered builds the discovery announcement for a persisted video.
func NewVideoDiscovered(v *models.Video) *VideoDiscovered {
	return &VideoDiscovered{
		VideoID:      v.VideoID,
		ChannelID:    v.ChannelID,
		Title:        v.Title,
		InitialRisk:  v.InitialRisk,
		RiskTier:     v.RiskTier,
		MatchedIPs:   v.MatchedIPs,
		DiscoveredAt: v.DiscoveredAt,
	}
}

// Topic returns the subject this payload is published on.
func (e *VideoDiscovered) Topic() string { return TopicVideoDiscovered }

// MessageID is the video ID: re-publishing the same first sighting is a
// duplicate by definition.
func (e *VideoDiscovered) MessageID() string { return e.VideoID }

// Validate checks required fields and bounds.
func (e *VideoDiscovered) Validate() error {
	if e.VideoID == "" {
		return &ValidationError{Field: "video_id", Message: "required"}
	}
	if e.ChannelID == "" {
		return &ValidationError{Field: "channel_id", Message: "required"}
	}
	if e.InitialRisk < 0 || e.InitialRisk > 100 {
		return &ValidationError{Field: "initial_risk", Message: "must be in [0,100]"}
	}
	if len(e.MatchedIPs) == 0 {
		return &ValidationError{Field: "matched_ips", Message: "required"}
	}
	if e.DiscoveredAt.IsZero() {
		return &ValidationError{Field: "discovered_at", Message: "required"}
	}
	return nil
}

// VideoHighRisk is published by the risk analyzer when a video enters, or
// re-crosses into, the high-risk band. RiskUpdateSeq deduplicates repeated
// emissions downstream: the same (video, seq) pair is the same decision.
type VideoHighRisk struct {
	VideoID       string          `json:"video_id"`
	ChannelID     string          `json:"channel_id"`
	CurrentRisk   int             `json:"current_risk"`
	RiskTier      models.RiskTier `json:"risk_tier"`
	Reason        string          `json:"reason"`
	RiskUpdateSeq uint64          `json:"risk_update_seq"`
}

// NewVideoHighRisk builds the high-risk emission for a video's current state.
func NewVideoHighRisk(v *models.Video, reason string) *VideoHighRisk {
	return &VideoHighRisk{
		VideoID:       v.VideoID,
		ChannelID:     v.ChannelID,
		CurrentRisk:   v.CurrentRisk,
		RiskTier:      v.RiskTier,
		Reason:        reason,
		RiskUpdateSeq: v.RiskUpdateSeq,
	}
}

// Topic returns the subject this payload is published on.
func (e *VideoHighRisk) Topic() string { return TopicVideoHighRisk }

// MessageID combines video and update sequence.
func (e *VideoHighRisk) MessageID() string {
	return e.VideoID + ":" + strconv.FormatUint(e.RiskUpdateSeq, 10)
}

// Validate checks required fields and bounds.
func (e *VideoHighRisk) Validate() error {
	if e.VideoID == "" {
		return &ValidationError{Field: "video_id", Message: "required"}
	}
	if e.ChannelID == "" {
		return &ValidationError{Field: "channel_id", Message: "required"}
	}
	if e.CurrentRisk < 0 || e.CurrentRisk > 100 {
		return &ValidationError{Field: "current_risk", Message: "must be in [0,100]"}
	}
	if e.Reason != ReasonInitial && e.Reason != ReasonThresholdCross {
		return &ValidationError{Field: "reason", Message: "must be initial or threshold_cross"}
	}
	return nil
}

// VisionFeedback is consumed from the downstream vision analyzer. Status is
// optional: an absent status means the analysis completed with the verdict
// fields populated.
type VisionFeedback struct {
	VideoID              string    `json:"video_id"`
	ChannelID            string    `json:"channel_id"`
	ContainsInfringement bool      `json:"contains_infringement"`
	Confidence           float64   `json:"confidence"`
	Characters           []string  `json:"characters,omitempty"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
	Status               string    `json:"status,omitempty"`
}

// Topic returns the subject this payload is published on.
func (e *VisionFeedback) Topic() string { return TopicVisionFeedback }

// MessageID combines video, status, and analysis time so distinct lifecycle
// updates for the same video are distinct messages.
func (e *VisionFeedback) MessageID() string {
	return e.VideoID + ":" + e.EffectiveStatus() + ":" + strconv.FormatInt(e.AnalyzedAt.UTC().Unix(), 10)
}

// EffectiveStatus resolves the optional status field, defaulting to completed.
func (e *VisionFeedback) EffectiveStatus() string {
	if e.Status == "" {
		return FeedbackCompleted
	}
	return e.Status
}

// Validate checks required fields and bounds.
func (e *VisionFeedback) Validate() error {
	if e.VideoID == "" {
		return &ValidationError{Field: "video_id", Message: "required"}
	}
	if e.ChannelID == "" {
		return &ValidationError{Field: "channel_id", Message: "required"}
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return &ValidationError{Field: "confidence", Message: "must be in [0,1]"}
	}
	if e.AnalyzedAt.IsZero() {
		return &ValidationError{Field: "analyzed_at", Message: "required"}
	}
	switch e.Status {
	case "", FeedbackAcknowledged, FeedbackCompleted, FeedbackFailed:
	default:
		return &ValidationError{Field: "status", Message: "must be acknowledged, completed, or failed"}
	}
	return nil
}
