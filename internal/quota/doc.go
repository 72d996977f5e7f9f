// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package quota tracks daily platform API spend against hard unit ceilings.
//
// Two ledgers run side by side: "discovery" (DAILY_QUOTA, default 10000
// units) pays for search, trending, and channel scans; "rescan"
// (RESCAN_QUOTA, default 2000 units) pays for the rescore loop's
// video_details refreshes. Every platform call is preceded by a matching
// Charge; a denial surfaces as ErrBudgetExceeded before any HTTP round-trip
// happens. Day counters roll over at UTC midnight and persist across
// restarts.
package quota
