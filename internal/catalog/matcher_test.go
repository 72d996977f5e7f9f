// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package catalog

import (
	"reflect"
	"testing"
)

func buildTestMatcher() *Matcher {
	m := NewMatcher()
	m.AddTerm("Captain Nova", TermRef{TargetID: "galaxy-saga", Kind: KindCharacter})
	m.AddTerm("zarn", TermRef{TargetID: "galaxy-saga", Kind: KindCharacter})
	m.AddTerm("sora", TermRef{TargetID: "galaxy-saga", Kind: KindAITool})
	m.AddTerm("midjourney", TermRef{TargetID: "galaxy-saga", Kind: KindAITool})
	m.AddTerm("galaxy saga", TermRef{TargetID: "galaxy-saga", Kind: KindFranchise})
	m.AddTerm("sentinel prime", TermRef{TargetID: "iron-legion", Kind: KindCharacter})
	m.Build()
	return m
}

func TestSearchFindsAllOccurrences(t *testing.T) {
	m := buildTestMatcher()

	matches := m.Search("Captain Nova fights ZARN, then captain nova rests")
	var novas, zarns int
	for _, match := range matches {
		switch match.Term {
		case "captain nova":
			novas++
		case "zarn":
			zarns++
		}
	}
	if novas != 2 {
		t.Errorf("captain nova matched %d times, want 2", novas)
	}
	if zarns != 1 {
		t.Errorf("zarn matched %d times, want 1", zarns)
	}
}

func TestSearchOverlappingTerms(t *testing.T) {
	m := NewMatcher()
	m.AddTerm("nova", TermRef{TargetID: "a", Kind: KindCharacter})
	m.AddTerm("captain nova", TermRef{TargetID: "a", Kind: KindCharacter})
	m.Build()

	matches := m.Search("captain nova")
	if len(matches) != 2 {
		t.Fatalf("Search() returned %d matches, want 2 (nested term must also fire)", len(matches))
	}
}

func TestContains(t *testing.T) {
	m := buildTestMatcher()

	tests := []struct {
		text string
		want bool
	}{
		{"new SORA showcase", true},
		{"sentinel prime rebuilt", true},
		{"cooking tutorial", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Contains(tt.text); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestEmptyMatcher(t *testing.T) {
	m := NewMatcher()
	m.Build()

	if got := m.Search("anything"); got != nil {
		t.Errorf("Search() on empty matcher = %v, want nil", got)
	}
	if m.Contains("anything") {
		t.Errorf("Contains() on empty matcher = true")
	}
}

func TestAddTermIgnoresEmpty(t *testing.T) {
	m := NewMatcher()
	m.AddTerm("", TermRef{})
	m.AddTerm("   ", TermRef{})
	if got := m.TermCount(); got != 0 {
		t.Errorf("TermCount() = %d, want 0", got)
	}
}

func TestMatchFields(t *testing.T) {
	m := buildTestMatcher()

	tests := []struct {
		name         string
		title        string
		description  string
		tags         []string
		channelTitle string
		want         FieldMatches
	}{
		{
			name:        "character and tool in title",
			title:       "Captain Nova in Sora",
			description: "made with sora and midjourney",
			tags:        []string{"captain nova", "ai", "sora art"},
			want: FieldMatches{
				TitleHasCharacter:         true,
				TitleHasAITool:            true,
				DescriptionAIToolMentions: 2,
				TagMatches:                2,
				MatchedTargetIDs:          []string{"galaxy-saga"},
			},
		},
		{
			name:        "character only title with generic ai description",
			title:       "Zarn returns",
			description: "This is AI generated fan content",
			want: FieldMatches{
				TitleHasCharacter:    true,
				DescriptionGenericAI: true,
				MatchedTargetIDs:     []string{"galaxy-saga"},
			},
		},
		{
			name:  "franchise name only",
			title: "Galaxy Saga retrospective",
			want: FieldMatches{
				TitleHasFranchise: true,
				MatchedTargetIDs:  []string{"galaxy-saga"},
			},
		},
		{
			name:         "match only via channel title",
			title:        "episode 4",
			channelTitle: "Sentinel Prime Fan Club",
			want: FieldMatches{
				MatchedTargetIDs: []string{"iron-legion"},
			},
		},
		{
			name:        "no match at all",
			title:       "lofi beats to study to",
			description: "relaxing music",
			want: FieldMatches{
				MatchedTargetIDs: []string{},
			},
		},
		{
			name:        "generic ai does not fire inside words",
			title:       "zarn highlight",
			description: "air support maintained",
			want: FieldMatches{
				TitleHasCharacter: true,
				MatchedTargetIDs:  []string{"galaxy-saga"},
			},
		},
		{
			name:        "two targets across fields",
			title:       "captain nova vs sentinel prime",
			description: "crossover",
			want: FieldMatches{
				TitleHasCharacter: true,
				MatchedTargetIDs:  []string{"galaxy-saga", "iron-legion"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.MatchFields(tt.title, tt.description, tt.tags, tt.channelTitle)

			if got.TitleHasCharacter != tt.want.TitleHasCharacter {
				t.Errorf("TitleHasCharacter = %v, want %v", got.TitleHasCharacter, tt.want.TitleHasCharacter)
			}
			if got.TitleHasAITool != tt.want.TitleHasAITool {
				t.Errorf("TitleHasAITool = %v, want %v", got.TitleHasAITool, tt.want.TitleHasAITool)
			}
			if got.TitleHasFranchise != tt.want.TitleHasFranchise {
				t.Errorf("TitleHasFranchise = %v, want %v", got.TitleHasFranchise, tt.want.TitleHasFranchise)
			}
			if got.DescriptionAIToolMentions != tt.want.DescriptionAIToolMentions {
				t.Errorf("DescriptionAIToolMentions = %d, want %d",
					got.DescriptionAIToolMentions, tt.want.DescriptionAIToolMentions)
			}
			if got.DescriptionGenericAI != tt.want.DescriptionGenericAI {
				t.Errorf("DescriptionGenericAI = %v, want %v", got.DescriptionGenericAI, tt.want.DescriptionGenericAI)
			}
			if got.TagMatches != tt.want.TagMatches {
				t.Errorf("TagMatches = %d, want %d", got.TagMatches, tt.want.TagMatches)
			}
			if !reflect.DeepEqual(got.MatchedTargetIDs, tt.want.MatchedTargetIDs) {
				t.Errorf("MatchedTargetIDs = %v, want %v", got.MatchedTargetIDs, tt.want.MatchedTargetIDs)
			}
			if got.Matched() != (len(tt.want.MatchedTargetIDs) > 0) {
				t.Errorf("Matched() = %v", got.Matched())
			}
		})
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text string
		word string
		want bool
	}{
		{"ai generated content", "ai", true},
		{"made with ai", "ai", true},
		{"ai", "ai", true},
		{"air support", "ai", false},
		{"maid outfit", "ai", false},
		{"the ai-generated clip", "ai", true},
		{"pregenerated assets", "generated", false},
		{"auto-generated subtitles", "generated", true},
		{"", "ai", false},
	}

	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}
