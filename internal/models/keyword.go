// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package models

import "time"

// KeywordPriority orders search keywords for rotation. HIGH keywords have the
// shortest cooldown and are drawn first.
type KeywordPriority string

const (
	KeywordPriorityHigh   KeywordPriority = "HIGH"
	KeywordPriorityMedium KeywordPriority = "MEDIUM"
	KeywordPriorityLow    KeywordPriority = "LOW"
)

// Rank orders priorities for scheduling: HIGH first.
func (p KeywordPriority) Rank() int {
	switch p {
	case KeywordPriorityHigh:
		return 0
	case KeywordPriorityMedium:
		return 1
	default:
		return 2
	}
}

// Demoted returns the priority one level lower. LOW stays LOW.
func (p KeywordPriority) Demoted() KeywordPriority {
	switch p {
	case KeywordPriorityHigh:
		return KeywordPriorityMedium
	case KeywordPriorityMedium:
		return KeywordPriorityLow
	default:
		return KeywordPriorityLow
	}
}

// KeywordStat tracks the search history and adaptive priority of one keyword.
type KeywordStat struct {
	Keyword  string          `json:"keyword"`
	Priority KeywordPriority `json:"priority"`

	// IPTargetID associates the keyword with the catalog target it was
	// generated for; empty for hand-configured keywords without a target.
	IPTargetID string `json:"ip_target_id,omitempty"`

	SearchesPerformed int64 `json:"searches_performed"`
	VideosFound       int64 `json:"videos_found"`
	MatchesFound      int64 `json:"matches_found"`

	MatchRate float64 `json:"match_rate"`

	LastSearch         time.Time `json:"last_search"`
	LastSuccessfulFind time.Time `json:"last_successful_find"`
}

// ComputeMatchRate returns matches_found / max(1, videos_found).
func (k *KeywordStat) ComputeMatchRate() float64 {
	found := k.VideosFound
	if found < 1 {
		found = 1
	}
	return float64(k.MatchesFound) / float64(found)
}
