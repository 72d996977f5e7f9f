// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package platform

import (
	"strconv"
	"strings"
	"time"
)

// RawVideo is the platform-neutral record every fetch operation returns.
// Search and playlist endpoints return partial records (HasDetails false);
// the caller hydrates those through GetVideoDetails before scoring.
type RawVideo struct {
	VideoID         string
	Title           string
	Description     string
	ChannelID       string
	ChannelTitle    string
	PublishedAt     time.Time
	DurationSeconds int
	ViewCount       int64
	LikeCount       int64
	CommentCount    int64
	Tags            []string
	ThumbnailURL    string
	CategoryID      string

	// HasDetails reports whether statistics, tags and duration were
	// present in the source response. Search hits never carry them.
	HasDetails bool
}

// maxDurationSeconds guards the duration parser against absurd inputs.
// Nothing on the platform exceeds this (about 11 days).
const maxDurationSeconds = 1_000_000

// ParseDuration decodes an ISO-8601 duration of the form the platform
// emits (PT1H2M3S, P1DT2H, P0D) into whole seconds. The boolean reports
// whether the input was well formed; malformed input yields (0, false)
// and the caller decides whether to log it.
func ParseDuration(s string) (int, bool) {
	if len(s) < 2 || s[0] != 'P' {
		return 0, false
	}

	var total int64
	num := int64(-1)
	inTime := false
	sawUnit := false

	for _, c := range s[1:] {
		switch {
		case c == 'T':
			if inTime || num >= 0 {
				return 0, false
			}
			inTime = true
		case c >= '0' && c <= '9':
			if num < 0 {
				num = 0
			}
			num = num*10 + int64(c-'0')
			if num > maxDurationSeconds {
				return 0, false
			}
		default:
			if num < 0 {
				return 0, false
			}
			var mult int64
			switch c {
			case 'D':
				if inTime {
					return 0, false
				}
				mult = 86400
			case 'H':
				if !inTime {
					return 0, false
				}
				mult = 3600
			case 'M':
				if !inTime {
					return 0, false
				}
				mult = 60
			case 'S':
				if !inTime {
					return 0, false
				}
				mult = 1
			default:
				return 0, false
			}
			total += num * mult
			if total > maxDurationSeconds {
				return 0, false
			}
			num = -1
			sawUnit = true
		}
	}

	// Trailing digits without a unit, or a bare "P"/"PT".
	if num >= 0 || !sawUnit {
		return 0, false
	}
	return int(total), true
}

// FormatDuration encodes whole seconds as an ISO-8601 duration.
// Non-positive input encodes as PT0S. ParseDuration inverts this
// exactly for every value up to 24 hours.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "PT0S"
	}

	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60

	var b strings.Builder
	b.WriteString("PT")
	if h > 0 {
		b.WriteString(strconv.Itoa(h))
		b.WriteByte('H')
	}
	if m > 0 {
		b.WriteString(strconv.Itoa(m))
		b.WriteByte('M')
	}
	if sec > 0 || (h == 0 && m == 0) {
		b.WriteString(strconv.Itoa(sec))
		b.WriteByte('S')
	}
	return b.String()
}
