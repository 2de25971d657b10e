// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogLoggerRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger := NewSlogLogger()
	slogger.Info("service started", "service", "hub")

	output := buf.String()
	if !strings.Contains(output, "service started") {
		t.Errorf("expected message in output: %s", output)
	}
	if !strings.Contains(output, `"service":"hub"`) {
		t.Errorf("expected attr in output: %s", output)
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	slogger := NewSlogLogger()

	tests := []struct {
		name    string
		logFunc func()
		level   string
	}{
		{"Debug", func() { slogger.Debug("d") }, `"level":"debug"`},
		{"Info", func() { slogger.Info("i") }, `"level":"info"`},
		{"Warn", func() { slogger.Warn("w") }, `"level":"warn"`},
		{"Error", func() { slogger.Error("e") }, `"level":"error"`},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.logFunc()
		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("%s: expected %s in output: %s", tt.name, tt.level, buf.String())
		}
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).With().Timestamp().Logger())
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger := NewSlogLogger().WithGroup("supervisor")
	slogger.Info("restarting", "service", "intake")

	output := buf.String()
	if !strings.Contains(output, `"supervisor.service":"intake"`) {
		t.Errorf("expected grouped attr in output: %s", output)
	}
}
