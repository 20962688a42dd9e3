// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// captureLogs swaps the global logger for one writing into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLogger := Logger()
	prevLevel := zerolog.GlobalLevel()
	SetLogger(NewTestLogger(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		SetLogger(prevLogger)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps enabled by default")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("warn") {
		t.Error("warn should be valid")
	}
	if ValidLevel("loud") {
		t.Error("loud should be invalid")
	}
}

func TestInfoWritesStructuredFields(t *testing.T) {
	buf := captureLogs(t)

	Info().Str("resource_id", "orders").Msg("subscribed")

	out := buf.String()
	if !strings.Contains(out, `"resource_id":"orders"`) {
		t.Errorf("missing resource_id field: %s", out)
	}
	if !strings.Contains(out, `"message":"subscribed"`) {
		t.Errorf("missing message: %s", out)
	}
}

func TestCtxAddsContextFields(t *testing.T) {
	buf := captureLogs(t)

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	ctx = ContextWithResourceID(ctx, "chatroom:42")
	Ctx(ctx).Info().Msg("fetch done")

	out := buf.String()
	if !strings.Contains(out, `"correlation_id":"abc12345"`) {
		t.Errorf("missing correlation_id: %s", out)
	}
	if !strings.Contains(out, `"resource_id":"chatroom:42"`) {
		t.Errorf("missing resource_id: %s", out)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	id := GenerateCorrelationID()
	if len(id) != 8 {
		t.Errorf("expected 8 character id, got %q", id)
	}
	if id == GenerateCorrelationID() {
		t.Error("expected unique correlation ids")
	}
}

func TestSlogHandler(t *testing.T) {
	buf := captureLogs(t)

	logger := slog.New(NewSlogHandler()).With("service", "poller").WithGroup("sup")
	logger.Warn("service restarted", "attempt", 3)

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected warn level: %s", out)
	}
	if !strings.Contains(out, `"sup.attempt":3`) {
		t.Errorf("expected grouped attribute: %s", out)
	}
	if !strings.Contains(out, `"service":"poller"`) {
		t.Errorf("expected service attribute: %s", out)
	}
}

func TestWatermillAdapter(t *testing.T) {
	buf := captureLogs(t)

	adapter := NewWatermillAdapter().With(watermill.LogFields{"topic": "connection.state"})
	adapter.Error("publish failed", errors.New("closed"), watermill.LogFields{"subscribers": 2})

	out := buf.String()
	if !strings.Contains(out, `"topic":"connection.state"`) {
		t.Errorf("expected topic field: %s", out)
	}
	if !strings.Contains(out, `"error":"closed"`) {
		t.Errorf("expected error field: %s", out)
	}
}
