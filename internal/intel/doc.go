// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package intel maintains the two registries that steer discovery:
// search keywords and channel profiles.
//
// The keyword registry seeds itself from the IP catalog and then adapts:
// every recorded search outcome moves a keyword's cumulative match rate,
// and the match rate moves its priority, which controls how often the
// rotator spends quota on it. Keywords that stop producing matches decay
// toward the long cooldowns.
//
// The channel registry grades channels by confirmed infringement history
// into scan tiers, from PLATINUM (serial infringers, rescanned daily)
// down to IGNORE (established clean channels, never rescanned). Channel
// uploads are the cheapest discovery surface per video, so tier quality
// directly decides where most of the quota budget goes.
//
// Both registries persist through the store's CAS repositories; profile
// reads go through a small LRU so per-record scoring lookups stay off
// the database.
package intel
