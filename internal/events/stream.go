// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/excubitor/internal/config"
)

// Duplicate suppression window for Nats-Msg-Id tracking. Redeliveries and
// publisher retries land well inside two minutes.
const streamDuplicateWindow = 2 * time.Minute

// JetStreamContext is the subset of jetstream.JetStream the initializer
// needs. Tests substitute a fake.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer provisions the video intel stream before publishers and
// subscribers start. Initialization is idempotent: an existing stream is
// updated to the configured settings.
type StreamInitializer struct {
	js        JetStreamContext
	retention time.Duration
	maxBytes  int64
}

// NewStreamInitializer creates an initializer from the NATS configuration.
func NewStreamInitializer(js JetStreamContext, cfg config.NATSConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}

	return &StreamInitializer{
		js:        js,
		retention: time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour,
		maxBytes:  cfg.MaxStore,
	}, nil
}

// EnsureStream creates or updates the stream holding all four subjects.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    StreamSubjects(),
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.retention,
		MaxBytes:    s.maxBytes,
		MaxMsgs:     -1,
		Duplicates:  streamDuplicateWindow,
		Replicas:    1,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, StreamName)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", StreamName, err)
}

// IsHealthy reports whether the stream exists and is reachable.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, StreamName)
	return err == nil
}
