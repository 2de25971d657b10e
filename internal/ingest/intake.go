// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// DefaultIntakeBufferSize bounds the async intake buffer.
const DefaultIntakeBufferSize = 1000

// Sink receives drained events, in submission order, one at a time.
type Sink interface {
	Deliver(ctx context.Context, event *Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event *Event) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, event *Event) error { return f(ctx, event) }

// Intake is the bounded async buffer between event submitters and the
// evaluation pipeline. Submit never blocks; a background writer drains the
// buffer into the sink. On Stop the buffer is flushed before return, so an
// accepted event is never silently lost to shutdown.
type Intake struct {
	sink      Sink
	eventChan chan *Event
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewIntake creates and starts an intake draining into sink. bufferSize
// <= 0 uses the default.
func NewIntake(sink Sink, bufferSize int) *Intake {
	if bufferSize <= 0 {
		bufferSize = DefaultIntakeBufferSize
	}
	in := &Intake{
		sink:      sink,
		eventChan: make(chan *Event, bufferSize),
		stopChan:  make(chan struct{}),
	}
	in.wg.Add(1)
	go in.asyncWriter()
	return in
}

// Submit validates and enqueues one event without blocking. Returns
// ErrIntakeFull when the buffer is at capacity and ErrIntakeStopped after
// Stop.
func (in *Intake) Submit(event *Event) error {
	if err := event.Validate(); err != nil {
		metrics.RecordEventDropped("invalid")
		return err
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.stopped {
		metrics.RecordEventDropped("shutdown")
		return ErrIntakeStopped
	}

	select {
	case in.eventChan <- event:
		metrics.SetIntakeQueueDepth(len(in.eventChan))
		return nil
	default:
		metrics.RecordEventDropped("capacity")
		return ErrIntakeFull
	}
}

// Stop flushes buffered events into the sink and returns once the writer
// has exited. Safe to call more than once.
func (in *Intake) Stop() {
	in.stopOnce.Do(func() {
		in.mu.Lock()
		in.stopped = true
		in.mu.Unlock()
		close(in.stopChan)
		in.wg.Wait()
		metrics.SetIntakeQueueDepth(0)
	})
}

// Depth returns the current buffer occupancy.
func (in *Intake) Depth() int {
	return len(in.eventChan)
}

// asyncWriter drains the buffer into the sink. On stop the remaining
// events are flushed before exit.
func (in *Intake) asyncWriter() {
	defer in.wg.Done()
	for {
		select {
		case <-in.stopChan:
			// Drain remaining events
			for {
				select {
				case event := <-in.eventChan:
					in.write(event)
				default:
					return
				}
			}
		case event := <-in.eventChan:
			metrics.SetIntakeQueueDepth(len(in.eventChan))
			in.write(event)
		}
	}
}

func (in *Intake) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := in.sink.Deliver(ctx, event); err != nil {
		logging.Error().
			Err(err).
			Str("source", event.Source).
			Msg("Failed to deliver event to pipeline")
	}
}
