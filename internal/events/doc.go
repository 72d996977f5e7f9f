// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package events is the messaging layer between discovery, the risk
// analyzer, and the downstream vision analyzer.
//
// Three subjects carry the pipeline's facts, plus a poison subject for
// messages that defeat their handlers:
//
//   - video-discovered: first sightings, published after the durable persist
//   - video-high-risk: candidates for downstream vision analysis
//   - vision-feedback: verdicts flowing back
//   - video-intel-poison: messages that exhausted handler retries
//
// All four live on one JetStream stream (VIDEO_INTEL). Every payload has a
// deterministic message ID, so publisher retries and redeliveries collapse
// inside the stream's duplicate window, and consumers can deduplicate on
// content (video_id, risk_update_seq) regardless of transport behavior.
//
// The transport has three modes selected by configuration: an embedded
// JetStream server (default, single binary), an external NATS URL, or an
// in-process bus for development and tests.
package events
