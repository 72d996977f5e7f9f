// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package analyzer owns a video's risk after discovery. It gates new
// discoveries into the vision queue, folds vision verdicts back into
// scores and channel grades, and re-scores every video on the schedule
// its tier earns, paying for view refreshes from the rescan budget.
//
// The two message handlers run under the event router; the rescore
// tick runs as its own supervised service. All three converge on the
// same store rows through compare-and-set updates, so they need no
// coordination beyond the store's conflict detection.
package analyzer
