// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/klaxonhq/klaxon/internal/detection"
	"github.com/klaxonhq/klaxon/internal/logging"
)

// TopicEvents is the internal gochannel topic between intake and
// evaluation.
const TopicEvents = "klaxon.internal.events"

// EngineSubmitter is the engine surface the pipeline drives.
type EngineSubmitter interface {
	SubmitEvent(ctx context.Context, event detection.Event, source, correlationID string) error
}

// Pipeline connects the intake buffer to the engine through an in-process
// watermill gochannel Pub/Sub. Decoupling evaluation from submission keeps
// HTTP and NATS handlers fast and gives every intake path one code path
// into the engine.
type Pipeline struct {
	pubsub *gochannel.GoChannel
	engine EngineSubmitter
}

// NewPipeline creates the pipeline.
func NewPipeline(engine EngineSubmitter) *Pipeline {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, NewWatermillLogger())
	return &Pipeline{pubsub: pubsub, engine: engine}
}

// Sink returns the intake sink that publishes events onto the internal
// topic.
func (p *Pipeline) Sink() Sink {
	return SinkFunc(func(_ context.Context, event *Event) error {
		data, err := event.Marshal()
		if err != nil {
			return fmt.Errorf("marshal event for pipeline: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), data)
		if event.CorrelationID != "" {
			msg.Metadata.Set("correlation_id", event.CorrelationID)
		}
		if err := p.pubsub.Publish(TopicEvents, msg); err != nil {
			return fmt.Errorf("publish to internal topic: %w", err)
		}
		return nil
	})
}

// Run consumes the internal topic until ctx is canceled, handing each
// event to the engine. Malformed payloads are logged and acked so they are
// never redelivered; engine shutdown errors ack too since redelivery after
// shutdown is pointless.
func (p *Pipeline) Run(ctx context.Context) error {
	messages, err := p.pubsub.Subscribe(ctx, TopicEvents)
	if err != nil {
		return fmt.Errorf("subscribe to internal topic: %w", err)
	}
	logging.Info().Str("topic", TopicEvents).Msg("Event pipeline started")

	for msg := range messages {
		p.handle(ctx, msg)
		msg.Ack()
	}
	logging.Info().Msg("Event pipeline stopped")
	return nil
}

func (p *Pipeline) handle(ctx context.Context, msg *message.Message) {
	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping malformed pipeline message")
		return
	}
	if err := event.Validate(); err != nil {
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping invalid pipeline event")
		return
	}
	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = msg.Metadata.Get("correlation_id")
	}
	if err := p.engine.SubmitEvent(ctx, detection.Event(event.Payload), event.Source, correlationID); err != nil {
		logging.Warn().
			Err(err).
			Str("source", event.Source).
			Msg("Engine rejected event")
	}
}

// Close shuts the Pub/Sub down, closing subscriber channels.
func (p *Pipeline) Close() error {
	return p.pubsub.Close()
}
