// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package catalog loads the IP target catalog and matches video metadata
// against it.
//
// The catalog is a YAML document listing monitored franchises: each target
// carries protected character names, the AI-generation tool keywords most
// associated with infringing uploads of that IP, a monitoring priority, and
// a commercial value tier. An Aho-Corasick automaton built over all terms
// answers, in one pass per field, which targets a video's title,
// description, tags, and channel title touch, and which term kinds fired
// where. The same catalog seeds the keyword registry's initial search pool.
package catalog
