// Excubitor - IP Infringement Discovery and Risk Analysis for User-Generated Video
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newCaptureHandler(buf *bytes.Buffer) *SlogHandler {
	logger := zerolog.New(buf).Level(zerolog.TraceLevel)
	return NewSlogHandlerWithLogger(logger)
}

func TestSlogHandlerHandle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	slogger.Info("service started", "name", "orchestrator")

	output := buf.String()
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected info level, got: %s", output)
	}
	if !strings.Contains(output, `"message":"service started"`) {
		t.Errorf("expected message, got: %s", output)
	}
	if !strings.Contains(output, `"name":"orchestrator"`) {
		t.Errorf("expected attr, got: %s", output)
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	// Zerolog filters on the global level as well as the logger level.
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(prev)

	tests := []struct {
		slogLevel slog.Level
		want      string
	}{
		{slog.LevelDebug, `"level":"debug"`},
		{slog.LevelInfo, `"level":"info"`},
		{slog.LevelWarn, `"level":"warn"`},
		{slog.LevelError, `"level":"error"`},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		slogger := slog.New(newCaptureHandler(&buf))
		slogger.Log(context.Background(), tt.slogLevel, "msg")

		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("level %v: expected %s in output: %s", tt.slogLevel, tt.want, buf.String())
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	logger := zerolog.New(io.Discard).Level(zerolog.WarnLevel)
	handler := NewSlogHandlerWithLogger(logger)

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	child := slogger.With("service", "analyzer")
	child.Info("restarted")

	output := buf.String()
	if !strings.Contains(output, `"service":"analyzer"`) {
		t.Errorf("expected bound attr, got: %s", output)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	grouped := slogger.WithGroup("supervisor")
	grouped.Info("backoff", "delay", "5s")

	output := buf.String()
	if !strings.Contains(output, `"supervisor.delay":"5s"`) {
		t.Errorf("expected group-qualified key, got: %s", output)
	}
}

func TestSlogHandlerNestedGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	nested := slogger.WithGroup("tree").WithGroup("service")
	nested.Info("event", "state", "running")

	output := buf.String()
	if !strings.Contains(output, `"tree.service.state":"running"`) {
		t.Errorf("expected nested group-qualified key, got: %s", output)
	}
}

func TestSlogHandlerGroupThenAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	// Attrs bound after a group carry the group qualifier even when the
	// record is emitted from the parent handler chain.
	child := slogger.WithGroup("svc").With("name", "rotator")
	child.Info("tick")

	output := buf.String()
	if !strings.Contains(output, `"svc.name":"rotator"`) {
		t.Errorf("expected qualified bound attr, got: %s", output)
	}
}

func TestSlogHandlerAttrKinds(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(newCaptureHandler(&buf))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	slogger.Info("kinds",
		"str", "s",
		"int", int64(42),
		"float", 1.5,
		"bool", true,
		"dur", 2*time.Second,
		"time", ts,
	)

	output := buf.String()
	for _, want := range []string{
		`"str":"s"`,
		`"int":42`,
		`"float":1.5`,
		`"bool":true`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer

	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger := NewSlogLogger()
	slogger.Info("bridged")

	if !strings.Contains(buf.String(), `"message":"bridged"`) {
		t.Errorf("expected bridged message, got: %s", buf.String())
	}
}
