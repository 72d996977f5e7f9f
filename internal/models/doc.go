// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package models defines the data structures shared across Excubitor.

This package is the single source of truth for the persisted entities and
their derived classifications:

  - Video: canonical record for a discovered platform video, including the
    immutable initial risk, the mutable current risk, the bounded risk
    history log, and downstream processing state
  - ChannelProfile: per-channel infringement history and scan scheduling
  - KeywordStat: per-keyword search performance and adaptive priority
  - ViewSnapshot: append-only view-count samples for velocity derivation
  - QuotaUsage: per-day, per-operation API unit spend
  - IPTarget: one monitored franchise/character set from the catalog

Classification rules that must be total functions of their inputs live here
next to their types: RiskTierFor (score -> tier), ChannelTierFor (counters ->
tier), and the scan-interval tables for both.
*/
package models
