// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package models

import "strings"

// IPPriority is the monitoring priority of an IP target.
// High-priority targets are eligible for Tier-1 fresh-content scanning.
type IPPriority string

const (
	IPPriorityHigh   IPPriority = "high"
	IPPriorityMedium IPPriority = "medium"
	IPPriorityLow    IPPriority = "low"
)

// Valid reports whether the priority is one of the known values.
func (p IPPriority) Valid() bool {
	switch p {
	case IPPriorityHigh, IPPriorityMedium, IPPriorityLow:
		return true
	}
	return false
}

// ValueTier is the commercial value classification of an IP target.
type ValueTier string

const (
	ValueTierAAA ValueTier = "AAA"
	ValueTierAA  ValueTier = "AA"
	ValueTierA   ValueTier = "A"
	ValueTierB   ValueTier = "B"
	ValueTierC   ValueTier = "C"
)

// Valid reports whether the value tier is one of the known values.
func (v ValueTier) Valid() bool {
	switch v {
	case ValueTierAAA, ValueTierAA, ValueTierA, ValueTierB, ValueTierC:
		return true
	}
	return false
}

// IPTarget is one monitored franchise or character set from the catalog.
// Targets are immutable within a run; they are loaded from configuration
// at startup and referenced by ID from Video.MatchedIPs.
type IPTarget struct {
	ID         string     `json:"id" koanf:"id" validate:"required"`
	Name       string     `json:"name" koanf:"name" validate:"required"`
	Owner      string     `json:"owner" koanf:"owner"`
	Priority   IPPriority `json:"priority" koanf:"priority" validate:"required,oneof=high medium low"`
	ValueTier  ValueTier  `json:"value_tier" koanf:"value_tier" validate:"required,oneof=AAA AA A B C"`
	Characters []string   `json:"characters" koanf:"characters" validate:"min=1"`
	AIKeywords []string   `json:"ai_keywords" koanf:"ai_keywords"`
}

// NormalizedCharacters returns the character names lowercased and trimmed,
// ready for substring matching.
func (t *IPTarget) NormalizedCharacters() []string {
	return normalizeTerms(t.Characters)
}

// NormalizedAIKeywords returns the AI-tool keywords lowercased and trimmed.
func (t *IPTarget) NormalizedAIKeywords() []string {
	return normalizeTerms(t.AIKeywords)
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			out = append(out, term)
		}
	}
	return out
}
