// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package discovery finds candidate videos and turns them into scored,
// scheduled records. Each cycle the orchestrator splits the day ledger's
// remaining budget across three tiers: fresh-content search plus trending
// charts, channel rescans, and the adaptive keyword rotation. Tiers spend
// their slice through a TierBudget and hand unspent units down, so a quiet
// tier never strands quota.
//
// Every scanner feeds its harvest through the same Processor pipeline:
// hydrate partial records, drop duplicates and non-matches, score against
// the IP catalog, persist, and announce the find on the message bus. The
// processor never fails a batch for one bad record; only a denied budget
// charge stops work, and the error type tells the orchestrator whether
// just the tier's slice or the whole day is spent.
package discovery
