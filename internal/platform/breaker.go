// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// BreakerClient wraps a Client with a circuit breaker so a dead or
// rate-limited platform stops consuming goroutines, sockets and retry
// budget. Rejected calls surface as ErrTransient; callers already treat
// those as abandoned batches.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

var _ Client = (*BreakerClient)(nil)

// NewBreakerClient wraps client with breaker thresholds from cfg.
// Quota and malformed-response errors do not count toward tripping;
// only transport-level failures do.
func NewBreakerClient(client Client, cfg config.PlatformConfig) *BreakerClient {
	const name = "platform"
	maxFailures := cfg.BreakerMaxFailures

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= maxFailures
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Uint32("requests", counts.Requests).
					Msg("Circuit breaker tripping")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			switch {
			case err == nil:
				return true
			case errors.Is(err, ErrRemoteQuota), errors.Is(err, ErrMalformed):
				// The platform answered; the transport is healthy.
				return true
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return true
			default:
				return false
			}
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			event := logging.Info()
			if to == gobreaker.StateOpen {
				event = logging.Warn()
			}
			event.
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state change")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	}

	return &BreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		name:   name,
	}
}

// State returns the current breaker state for status reporting.
func (b *BreakerClient) State() string {
	return stateToString(b.cb.State())
}

// SearchVideos implements Client with circuit breaker protection.
func (b *BreakerClient) SearchVideos(ctx context.Context, query string, publishedAfter time.Time, maxResults int) ([]RawVideo, error) {
	return castVideos(b.execute("search", func() (any, error) {
		return b.client.SearchVideos(ctx, query, publishedAfter, maxResults)
	}))
}

// GetTrending implements Client with circuit breaker protection.
func (b *BreakerClient) GetTrending(ctx context.Context, categoryID string, maxResults int) ([]RawVideo, error) {
	return castVideos(b.execute("trending", func() (any, error) {
		return b.client.GetTrending(ctx, categoryID, maxResults)
	}))
}

// GetChannelUploads implements Client with circuit breaker protection.
func (b *BreakerClient) GetChannelUploads(ctx context.Context, channelID string, since time.Time, maxResults int) ([]RawVideo, error) {
	return castVideos(b.execute("channel_uploads", func() (any, error) {
		return b.client.GetChannelUploads(ctx, channelID, since, maxResults)
	}))
}

// GetVideoDetails implements Client with circuit breaker protection.
func (b *BreakerClient) GetVideoDetails(ctx context.Context, videoIDs []string) ([]RawVideo, error) {
	return castVideos(b.execute("video_details", func() (any, error) {
		return b.client.GetVideoDetails(ctx, videoIDs)
	}))
}

// execute runs fn through the breaker and records request metrics.
func (b *BreakerClient) execute(operation string, fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			metrics.RecordPlatformCall(operation, "rejected", 0)
			return nil, fmt.Errorf("%s: circuit breaker open: %w: %w", operation, ErrTransient, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castVideos type-asserts the breaker's untyped result.
func castVideos(result any, err error) ([]RawVideo, error) {
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	videos, ok := result.([]RawVideo)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return videos, nil
}

// stateToFloat converts a breaker state to its gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts a breaker state to a label value.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
