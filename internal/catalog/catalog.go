// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/models"
)

// ErrCatalogEmpty is returned when the catalog file holds no IP targets.
// It is fatal at startup: a discovery system with nothing to discover is a
// deployment mistake, not a runnable state.
var ErrCatalogEmpty = errors.New("no IP targets configured")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Catalog is the immutable set of monitored IP targets plus the term matcher
// built over their character names, AI-tool keywords, and franchise names.
// It is loaded once at startup and safe for concurrent reads.
type Catalog struct {
	targets []models.IPTarget
	byID    map[string]*models.IPTarget
	matcher *Matcher
}

// catalogFile is the YAML shape of the catalog document.
type catalogFile struct {
	Targets []models.IPTarget `koanf:"targets"`
}

// Load reads, validates, and indexes the catalog YAML file at path.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load catalog file %s: %w", path, err)
	}

	var doc catalogFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog file %s: %w", path, err)
	}

	cat, err := New(doc.Targets)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("path", path).
		Int("targets", len(cat.targets)).
		Int("terms", cat.matcher.TermCount()).
		Msg("Loaded IP target catalog")
	return cat, nil
}

// New validates and indexes the given targets. Targets are sorted by ID so
// rotation group assignment is stable across runs.
func New(targets []models.IPTarget) (*Catalog, error) {
	if len(targets) == 0 {
		return nil, ErrCatalogEmpty
	}

	byID := make(map[string]*models.IPTarget, len(targets))
	sorted := make([]models.IPTarget, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		t := &sorted[i]
		if err := validate.Struct(t); err != nil {
			return nil, fmt.Errorf("catalog target %q is invalid: %w", t.ID, err)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("catalog target id %q is duplicated", t.ID)
		}
		byID[t.ID] = t
	}

	matcher := NewMatcher()
	for i := range sorted {
		t := &sorted[i]
		ref := TermRef{TargetID: t.ID, Kind: KindFranchise}
		matcher.AddTerm(t.Name, ref)
		for _, c := range t.NormalizedCharacters() {
			matcher.AddTerm(c, TermRef{TargetID: t.ID, Kind: KindCharacter})
		}
		for _, a := range t.NormalizedAIKeywords() {
			matcher.AddTerm(a, TermRef{TargetID: t.ID, Kind: KindAITool})
		}
	}
	matcher.Build()

	return &Catalog{
		targets: sorted,
		byID:    byID,
		matcher: matcher,
	}, nil
}

// Targets returns all targets sorted by ID. The slice is shared; callers
// must not mutate it.
func (c *Catalog) Targets() []models.IPTarget {
	return c.targets
}

// Target returns the target with the given id.
func (c *Catalog) Target(id string) (*models.IPTarget, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Len returns the number of targets.
func (c *Catalog) Len() int {
	return len(c.targets)
}

// HighPriorityTargets returns the HIGH-priority targets sorted by ID. Their
// position in this slice assigns them to one of the two fresh-scan rotation
// groups.
func (c *Catalog) HighPriorityTargets() []models.IPTarget {
	out := make([]models.IPTarget, 0, len(c.targets))
	for _, t := range c.targets {
		if t.Priority == models.IPPriorityHigh {
			out = append(out, t)
		}
	}
	return out
}

// Matcher returns the term matcher built over this catalog.
func (c *Catalog) Matcher() *Matcher {
	return c.matcher
}

// SeedKeyword is one search keyword derived from the catalog.
type SeedKeyword struct {
	Text       string
	IPTargetID string
	Priority   models.KeywordPriority
}

// SeedKeywords derives the initial search keyword pool: every character name
// on its own, plus every (character, AI-tool) pair. Pair keywords classify
// structurally as HIGH, bare character names as MEDIUM, so the rotation
// starts on the most incriminating queries and lets match rates take over
// from there.
func (c *Catalog) SeedKeywords() []SeedKeyword {
	seen := make(map[string]struct{})
	var seeds []SeedKeyword

	add := func(text, targetID string) {
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		seeds = append(seeds, SeedKeyword{
			Text:       text,
			IPTargetID: targetID,
			Priority:   c.ClassifyKeyword(text),
		})
	}

	for _, t := range c.targets {
		for _, character := range t.NormalizedCharacters() {
			add(character, t.ID)
			for _, tool := range t.NormalizedAIKeywords() {
				add(character+" "+tool, t.ID)
			}
		}
	}

	return seeds
}

// ClassifyKeyword derives a keyword's structural priority: a keyword
// containing both a character name and an AI-tool name is HIGH, one of the
// two is MEDIUM, neither is LOW.
func (c *Catalog) ClassifyKeyword(keyword string) models.KeywordPriority {
	var hasCharacter, hasAITool bool
	for _, match := range c.matcher.Search(keyword) {
		switch match.Ref.Kind {
		case KindCharacter:
			hasCharacter = true
		case KindAITool:
			hasAITool = true
		}
	}

	switch {
	case hasCharacter && hasAITool:
		return models.KeywordPriorityHigh
	case hasCharacter || hasAITool:
		return models.KeywordPriorityMedium
	default:
		return models.KeywordPriorityLow
	}
}
