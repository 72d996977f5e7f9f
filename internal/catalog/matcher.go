// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package catalog

import (
	"sort"
	"strings"
	"sync"
)

// TermKind classifies a catalog term for risk scoring.
type TermKind string

const (
	// KindCharacter is a protected character name ("darth vader").
	KindCharacter TermKind = "character"
	// KindAITool is an AI-generation tool name ("sora", "midjourney").
	KindAITool TermKind = "ai_tool"
	// KindFranchise is the franchise/IP name itself ("star wars").
	KindFranchise TermKind = "franchise"
)

// TermRef ties a matched pattern back to its catalog target.
type TermRef struct {
	TargetID string
	Kind     TermKind
}

// TermMatch is one pattern occurrence in a searched text.
type TermMatch struct {
	Term     string
	Ref      TermRef
	Position int
}

// Matcher finds all catalog term occurrences in a text using the
// Aho-Corasick algorithm: O(n + m + z) for text length n, total pattern
// length m, and z matches. With catalogs of hundreds of character and tool
// names this beats per-term substring scans by two orders of magnitude on
// long descriptions.
//
// Matching is case-insensitive substring matching; callers pass raw text.
type Matcher struct {
	mu    sync.RWMutex
	root  *trieNode
	terms []termPattern
	built bool
}

type termPattern struct {
	text string
	ref  TermRef
}

// trieNode is a node in the Aho-Corasick automaton.
type trieNode struct {
	children map[rune]*trieNode
	failure  *trieNode
	output   []int // indices of terms that end at this node
}

// NewMatcher creates an empty matcher. Call AddTerm for every catalog term,
// then Build once before searching.
func NewMatcher() *Matcher {
	return &Matcher{root: newTrieNode()}
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// AddTerm adds one term with its target reference. Empty terms are ignored.
// Must be called before Build().
func (m *Matcher) AddTerm(term string, ref TermRef) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.built {
		m.built = false // need to rebuild
	}
	m.terms = append(m.terms, termPattern{text: term, ref: ref})
}

// Build constructs the automaton. Must be called after adding terms and
// before searching.
func (m *Matcher) Build() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.built {
		return
	}

	m.root = newTrieNode()
	for i, t := range m.terms {
		m.insert(i, t.text)
	}
	m.buildFailureLinks()
	m.built = true
}

// insert adds one term to the trie.
func (m *Matcher) insert(index int, term string) {
	node := m.root
	for _, ch := range term {
		if node.children[ch] == nil {
			node.children[ch] = newTrieNode()
		}
		node = node.children[ch]
	}
	node.output = append(node.output, index)
}

// buildFailureLinks builds failure links using BFS.
func (m *Matcher) buildFailureLinks() {
	queue := make([]*trieNode, 0)
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			// Follow failure links to find the longest proper suffix.
			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}

			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// Search returns all term occurrences in the text.
func (m *Matcher) Search(text string) []TermMatch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.built || len(m.terms) == 0 {
		return nil
	}

	searchText := strings.ToLower(text)

	var matches []TermMatch
	node := m.root

	for i, ch := range searchText {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]

		for _, termIdx := range node.output {
			t := m.terms[termIdx]
			matches = append(matches, TermMatch{
				Term:     t.text,
				Ref:      t.ref,
				Position: i - len(t.text) + 1,
			})
		}
	}

	return matches
}

// Contains reports whether any catalog term occurs in the text.
func (m *Matcher) Contains(text string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.built || len(m.terms) == 0 {
		return false
	}

	searchText := strings.ToLower(text)
	node := m.root

	for _, ch := range searchText {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]

		if len(node.output) > 0 {
			return true
		}
	}
	return false
}

// TermCount returns the number of terms in the automaton.
func (m *Matcher) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

// FieldMatches summarizes catalog term hits across the scoreable fields of
// one video. It is the input the initial-risk factor table consumes.
type FieldMatches struct {
	// Title flags drive the top of the factor table.
	TitleHasCharacter bool
	TitleHasAITool    bool
	TitleHasFranchise bool

	// DescriptionAIToolMentions counts AI-tool term occurrences in the
	// description; DescriptionGenericAI is set when only generic wording
	// ("ai", "ai generated") appears.
	DescriptionAIToolMentions int
	DescriptionGenericAI      bool

	// TagMatches counts tags containing at least one catalog term.
	TagMatches int

	// MatchedTargetIDs is the sorted, deduplicated set of IP targets with at
	// least one term hit anywhere in (title, description, tags, channel
	// title). Empty means the video matched no monitored IP.
	MatchedTargetIDs []string
}

// Matched reports whether any IP target matched.
func (f *FieldMatches) Matched() bool {
	return len(f.MatchedTargetIDs) > 0
}

// genericAITerms flag AI-generated content when no specific tool is named.
// Matched on word boundaries, not substrings: "ai" must not fire on "air".
var genericAITerms = []string{"ai", "a.i.", "ai generated", "ai-generated", "generated"}

// MatchFields runs the matcher over each scoreable field of a video and
// aggregates the hits the way the risk factor table expects.
func (m *Matcher) MatchFields(title, description string, tags []string, channelTitle string) *FieldMatches {
	out := &FieldMatches{}
	targets := make(map[string]struct{})

	for _, match := range m.Search(title) {
		targets[match.Ref.TargetID] = struct{}{}
		switch match.Ref.Kind {
		case KindCharacter:
			out.TitleHasCharacter = true
		case KindAITool:
			out.TitleHasAITool = true
		case KindFranchise:
			out.TitleHasFranchise = true
		}
	}

	for _, match := range m.Search(description) {
		targets[match.Ref.TargetID] = struct{}{}
		if match.Ref.Kind == KindAITool {
			out.DescriptionAIToolMentions++
		}
	}
	if out.DescriptionAIToolMentions == 0 {
		for _, term := range genericAITerms {
			if containsWord(strings.ToLower(description), term) {
				out.DescriptionGenericAI = true
				break
			}
		}
	}

	for _, tag := range tags {
		tagMatches := m.Search(tag)
		if len(tagMatches) == 0 {
			continue
		}
		out.TagMatches++
		for _, match := range tagMatches {
			targets[match.Ref.TargetID] = struct{}{}
		}
	}

	for _, match := range m.Search(channelTitle) {
		targets[match.Ref.TargetID] = struct{}{}
	}

	out.MatchedTargetIDs = make([]string, 0, len(targets))
	for id := range targets {
		out.MatchedTargetIDs = append(out.MatchedTargetIDs, id)
	}
	sort.Strings(out.MatchedTargetIDs)

	return out
}

// containsWord reports whether word occurs in text delimited by
// non-alphanumeric runes or string edges.
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start

		end := idx + len(word)
		leftOK := idx == 0 || !isWordRune(rune(text[idx-1]))
		rightOK := end == len(text) || !isWordRune(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
		if start >= len(text) {
			return false
		}
	}
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
