// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateCycleID(t *testing.T) {
	t.Parallel()

	id := GenerateCycleID()
	if len(id) != 8 {
		t.Errorf("expected 8-character cycle ID, got %d: %s", len(id), id)
	}

	other := GenerateCycleID()
	if id == other {
		t.Error("expected unique cycle IDs")
	}
}

func TestGenerateRequestID(t *testing.T) {
	t.Parallel()

	id := GenerateRequestID()
	if len(id) != 36 {
		t.Errorf("expected UUID-length request ID, got %d: %s", len(id), id)
	}
}

func TestCycleIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := CycleIDFromContext(ctx); got != "" {
		t.Errorf("expected empty cycle ID on bare context, got %q", got)
	}

	ctx = ContextWithCycleID(ctx, "abc12345")
	if got := CycleIDFromContext(ctx); got != "abc12345" {
		t.Errorf("expected cycle ID 'abc12345', got %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := ContextWithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("expected request ID 'req-1', got %q", got)
	}
}

func TestCtxAddsFields(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := ContextWithCycleID(context.Background(), "cyc00001")
	ctx = ContextWithRequestID(ctx, "req-uuid")

	Ctx(ctx).Info().Msg("processing")

	output := buf.String()
	if !strings.Contains(output, `"cycle_id":"cyc00001"`) {
		t.Errorf("expected cycle_id field, got: %s", output)
	}
	if !strings.Contains(output, `"request_id":"req-uuid"`) {
		t.Errorf("expected request_id field, got: %s", output)
	}
}

func TestCtxWithoutFields(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Ctx(context.Background()).Info().Msg("no ids")

	output := buf.String()
	if strings.Contains(output, "cycle_id") {
		t.Errorf("expected no cycle_id field, got: %s", output)
	}
	if strings.Contains(output, "request_id") {
		t.Errorf("expected no request_id field, got: %s", output)
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	stored := zerolog.New(&buf).With().Str("source", "stored").Logger()

	ctx := ContextWithLogger(context.Background(), stored)
	logger := LoggerFromContext(ctx)
	logger.Info().Msg("via context")

	output := buf.String()
	if !strings.Contains(output, `"source":"stored"`) {
		t.Errorf("expected stored logger to be used, got: %s", output)
	}
}

func TestCtxWith(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := ContextWithCycleID(context.Background(), "cyc00002")
	logger := CtxWith(ctx).Str("video_id", "vid-1").Logger()
	logger.Info().Msg("rescored")

	output := buf.String()
	if !strings.Contains(output, `"cycle_id":"cyc00002"`) {
		t.Errorf("expected cycle_id field, got: %s", output)
	}
	if !strings.Contains(output, `"video_id":"vid-1"`) {
		t.Errorf("expected video_id field, got: %s", output)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := WithComponent("analyzer")
	logger.Info().Msg("consumer started")

	output := buf.String()
	if !strings.Contains(output, `"component":"analyzer"`) {
		t.Errorf("expected component field, got: %s", output)
	}
}
