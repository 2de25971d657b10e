// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingSink captures delivered events, optionally blocking
type recordingSink struct {
	mu      sync.Mutex
	events  []*Event
	blockCh chan struct{}
}

func (s *recordingSink) Deliver(_ context.Context, event *Event) error {
	if s.blockCh != nil {
		<-s.blockCh
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.events...)
}

func testEvent(source string) *Event {
	return &Event{
		Payload: map[string]interface{}{"n": 1},
		Source:  source,
	}
}

func waitForDeliveries(t *testing.T, sink *recordingSink, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.Events()) >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries, have %d", want, len(sink.Events()))
}

func TestIntake_SubmitDelivers(t *testing.T) {
	sink := &recordingSink{}
	in := NewIntake(sink, 10)
	defer in.Stop()

	if err := in.Submit(testEvent("api")); err != nil {
		t.Fatal(err)
	}
	waitForDeliveries(t, sink, 1)

	got := sink.Events()[0]
	if got.Source != "api" {
		t.Errorf("source = %q", got.Source)
	}
	if got.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not stamped on submit")
	}
}

func TestIntake_SubmitValidates(t *testing.T) {
	in := NewIntake(&recordingSink{}, 10)
	defer in.Stop()

	if err := in.Submit(&Event{Payload: map[string]interface{}{}}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("missing source: expected ErrInvalidEvent, got %v", err)
	}
	if err := in.Submit(&Event{Source: "api"}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("missing payload: expected ErrInvalidEvent, got %v", err)
	}
}

func TestIntake_FullBufferRejects(t *testing.T) {
	sink := &recordingSink{blockCh: make(chan struct{})}
	in := NewIntake(sink, 2)

	// First submit is pulled by the writer and blocks in Deliver; the next
	// two fill the buffer.
	var sawFull bool
	for i := 0; i < 5; i++ {
		if err := in.Submit(testEvent("api")); errors.Is(err, ErrIntakeFull) {
			sawFull = true
			break
		}
	}
	if !sawFull {
		t.Error("expected ErrIntakeFull once buffer filled")
	}

	close(sink.blockCh)
	in.Stop()
}

func TestIntake_StopFlushesBuffer(t *testing.T) {
	release := make(chan struct{})
	sink := &recordingSink{blockCh: release}
	in := NewIntake(sink, 10)

	const n = 5
	for i := 0; i < n; i++ {
		if err := in.Submit(testEvent("api")); err != nil {
			t.Fatal(err)
		}
	}

	go close(release)
	in.Stop()

	if got := len(sink.Events()); got != n {
		t.Fatalf("Stop dropped buffered events: delivered %d of %d", got, n)
	}
}

func TestIntake_SubmitAfterStop(t *testing.T) {
	in := NewIntake(&recordingSink{}, 10)
	in.Stop()

	if err := in.Submit(testEvent("api")); !errors.Is(err, ErrIntakeStopped) {
		t.Fatalf("expected ErrIntakeStopped, got %v", err)
	}
}

func TestIntake_StopIdempotent(t *testing.T) {
	in := NewIntake(&recordingSink{}, 10)
	in.Stop()
	in.Stop() // must not panic
}

func TestIntake_PreservesSubmissionOrder(t *testing.T) {
	sink := &recordingSink{}
	in := NewIntake(sink, 100)

	const n = 50
	for i := 0; i < n; i++ {
		ev := testEvent("api")
		ev.Payload = map[string]interface{}{"seq": i}
		if err := in.Submit(ev); err != nil {
			t.Fatal(err)
		}
	}
	in.Stop()

	events := sink.Events()
	if len(events) != n {
		t.Fatalf("delivered %d of %d", len(events), n)
	}
	for i, ev := range events {
		if ev.Payload["seq"] != i {
			t.Fatalf("order broken at %d: got %v", i, ev.Payload["seq"])
		}
	}
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	ev := &Event{
		Payload:       map[string]interface{}{"cpu": 91.5},
		Source:        "node-1",
		CorrelationID: "corr-9",
		ReceivedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	data, err := ev.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != ev.Source || got.CorrelationID != ev.CorrelationID {
		t.Errorf("round trip lost provenance: %+v", got)
	}
	if got.Payload["cpu"] != 91.5 {
		t.Errorf("payload lost: %v", got.Payload)
	}
}

func TestUnmarshalEvent_StampsReceivedAt(t *testing.T) {
	got, err := UnmarshalEvent([]byte(`{"source":"s","payload":{}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.ReceivedAt.IsZero() {
		t.Error("ReceivedAt not stamped")
	}
}

func TestUnmarshalEvent_Malformed(t *testing.T) {
	if _, err := UnmarshalEvent([]byte(`{nope`)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}
