// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

// mockRunner implements ContextRunner and ContextHub for testing.
type mockRunner struct {
	runs atomic.Int32
	err  error
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runs.Add(1)
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockRunner) RunWithContext(ctx context.Context) error {
	return m.Run(ctx)
}

func TestPipelineService_Delegates(t *testing.T) {
	runner := &mockRunner{err: errors.New("subscribe failed")}
	svc := NewPipelineService(runner)

	if err := svc.Serve(context.Background()); !errors.Is(err, runner.err) {
		t.Errorf("expected delegated error, got: %v", err)
	}
	if runner.runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runner.runs.Load())
	}
	if svc.String() != "event-pipeline" {
		t.Errorf("unexpected name %s", svc.String())
	}
}

func TestNATSConsumerService_Delegates(t *testing.T) {
	runner := &mockRunner{}
	svc := NewNATSConsumerService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if svc.String() != "nats-consumer" {
		t.Errorf("unexpected name %s", svc.String())
	}
}

func TestWebSocketHubService_Delegates(t *testing.T) {
	runner := &mockRunner{}
	svc := NewWebSocketHubService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if svc.String() != "websocket-hub" {
		t.Errorf("unexpected name %s", svc.String())
	}
}
