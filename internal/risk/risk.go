// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package risk scores videos for infringement likelihood.
//
// Two pure entry points: InitialRisk applies the discovery factor table to
// a freshly matched video, Rescore adjusts a persisted video's current
// score from velocity, channel history, engagement, age, and any prior
// vision verdict. Both return the clamped score, its tier, and an itemized
// factor breakdown for the risk history log. Neither touches a store or a
// clock other than the one passed in.
package risk

import (
	"time"

	"github.com/tomtom215/excubitor/internal/catalog"
	"github.com/tomtom215/excubitor/internal/models"
	"github.com/tomtom215/excubitor/internal/velocity"
)

// Factor identifies one additive term in a risk computation. The set is
// fixed: initial scoring uses the first six, rescoring the last four plus
// FactorChannel again (with a different ladder).
type Factor string

const (
	FactorTitle       Factor = "title"
	FactorDescription Factor = "description"
	FactorChannel     Factor = "channel"
	FactorViews       Factor = "views"
	FactorTags        Factor = "tags"
	FactorTrending    Factor = "trending"

	FactorVelocity   Factor = "velocity"
	FactorEngagement Factor = "engagement"
	FactorAge        Factor = "age"
	FactorPrior      Factor = "prior_analysis"
)

// trendingBoost is the viral prior for videos surfaced by the fresh-content
// scan or the trending ingest.
const trendingBoost = 20

// Score is the outcome of one risk computation: the clamped value, its
// tier, and the contribution of every factor that fired. Contributions
// record the raw additive terms, so their sum can exceed the clamped Value.
type Score struct {
	Value         int             `json:"value"`
	Tier          models.RiskTier `json:"tier"`
	Contributions map[string]int  `json:"factor_contributions,omitempty"`
}

// InitialRisk scores a freshly discovered video from its catalog match
// signals, channel history, and view count. Computed exactly once per
// video, at first persist; matches must be non-nil, channel may be nil
// when the channel lookup failed.
func InitialRisk(video *models.Video, matches *catalog.FieldMatches, channel *models.ChannelProfile, trendingPrior bool) Score {
	s := newScore(0)
	s.add(FactorTitle, titlePoints(matches))
	s.add(FactorDescription, descriptionPoints(matches))
	s.add(FactorChannel, channelHistoryPoints(channel))
	s.add(FactorViews, viewPoints(video.ViewCount))
	s.add(FactorTags, tagPoints(matches.TagMatches))
	if trendingPrior {
		s.add(FactorTrending, trendingBoost)
	}
	return s.finalize()
}

// Rescore recomputes a video's risk from its current score. The caller
// persists the result and appends the history entry; a nil channel skips
// the channel term.
func Rescore(video *models.Video, channel *models.ChannelProfile, vel velocity.Result, now time.Time) Score {
	s := newScore(video.CurrentRisk)
	s.add(FactorVelocity, vel.Boost)
	s.add(FactorChannel, channelTermPoints(channel))
	s.add(FactorEngagement, engagementPoints(video.EngagementRate()))
	s.add(FactorAge, agePoints(video.AgeAt(now)))
	s.add(FactorPrior, priorAnalysisPoints(video))
	return s.finalize()
}

func newScore(base int) *Score {
	return &Score{Value: base, Contributions: make(map[string]int)}
}

// add records a non-zero contribution and folds it into the running value.
func (s *Score) add(f Factor, points int) {
	if points == 0 {
		return
	}
	s.Contributions[string(f)] = points
	s.Value += points
}

func (s *Score) finalize() Score {
	s.Value = clampScore(s.Value)
	s.Tier = models.RiskTierFor(s.Value)
	return *s
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// titlePoints applies the title ladder. A character name together with an
// AI-tool name is the strongest single signal in the table; the rows are
// exclusive, first match wins.
func titlePoints(m *catalog.FieldMatches) int {
	switch {
	case m.TitleHasCharacter && m.TitleHasAITool:
		return 60
	case m.TitleHasCharacter:
		return 30
	case m.TitleHasAITool:
		return 20
	case m.TitleHasFranchise:
		return 10
	}
	return 0
}

func descriptionPoints(m *catalog.FieldMatches) int {
	switch {
	case m.DescriptionAIToolMentions >= 2:
		return 20
	case m.DescriptionAIToolMentions == 1:
		return 15
	case m.DescriptionGenericAI:
		return 5
	}
	return 0
}

// channelHistoryPoints grades the channel's infringement rate for initial
// scoring. Any confirmed history adds something.
func channelHistoryPoints(ch *models.ChannelProfile) int {
	if ch == nil {
		return 0
	}
	switch rate := ch.Rate(); {
	case rate > 0.50:
		return 20
	case rate > 0.25:
		return 15
	case rate > 0.10:
		return 10
	case rate > 0:
		return 5
	}
	return 0
}

func viewPoints(views int64) int {
	switch {
	case views > 100000:
		return 10
	case views > 10000:
		return 7
	case views > 1000:
		return 3
	}
	return 0
}

func tagPoints(matches int) int {
	switch {
	case matches >= 3:
		return 10
	case matches == 2:
		return 7
	case matches == 1:
		return 3
	}
	return 0
}

// channelTermPoints grades the channel for rescoring. Unlike the initial
// ladder, the top two rungs require at least five scans, and a channel
// clean across twenty or more scans subtracts.
func channelTermPoints(ch *models.ChannelProfile) int {
	if ch == nil {
		return 0
	}
	rate, scanned := ch.Rate(), ch.TotalVideosScanned
	switch {
	case rate > 0.50 && scanned >= 5:
		return 20
	case rate > 0.25 && scanned >= 5:
		return 15
	case rate > 0.10:
		return 10
	case rate < 0.05 && scanned >= 20:
		return -10
	}
	return 0
}

func engagementPoints(rate float64) int {
	switch {
	case rate >= 0.10:
		return 10
	case rate >= 0.05:
		return 5
	case rate >= 0.02:
		return 3
	}
	return 0
}

func agePoints(age time.Duration) int {
	switch {
	case age > 90*24*time.Hour:
		return -15
	case age > 30*24*time.Hour:
		return -10
	case age > 7*24*time.Hour:
		return -5
	}
	return 0
}

// priorAnalysisPoints folds in the downstream vision verdict. A video in
// the failed state carries no prior until a non-failed result exists; the
// clean deduction applies only once the video is analyzed.
func priorAnalysisPoints(v *models.Video) int {
	if v.GeminiResult == nil || v.State == models.StateFailed {
		return 0
	}
	if v.GeminiResult.ContainsInfringement {
		return 20
	}
	if v.State == models.StateAnalyzed {
		return -10
	}
	return 0
}
