// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// Default NATS feed settings. The subject is a wildcard so feeders can
// partition by suffix (klaxon.events.firewall, klaxon.events.auth, ...).
const (
	DefaultEventSubject = "klaxon.events.>"
	DefaultStreamName   = "KLAXON_EVENTS"
	DefaultDurableName  = "klaxon-engine"
	DefaultQueueGroup   = "klaxon-engines"
)

// ServerConfig configures the embedded JetStream server for single-node
// deployments.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// EmbeddedServer wraps a NATS server with lifecycle management so a
// single-node deployment needs no external broker.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server with
// JetStream enabled. Returns an error if the server is not ready within 30
// seconds.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "klaxon-events",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.JetStreamMaxMem,
		JetStreamMaxStore:  cfg.JetStreamMaxStore,
		MaxPayload:         8 * 1024 * 1024, // 8MB max message size
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}

	logging.Info().Str("client_url", ns.ClientURL()).Msg("Embedded NATS server started")
	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for completion or ctx cancellation.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// SubscriberConfig configures the JetStream event feed consumer.
type SubscriberConfig struct {
	URL              string
	Subject          string
	StreamName       string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxDeliver       int
	MaxAckPending    int
}

// DefaultSubscriberConfig returns production defaults for the given
// server URL.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		Subject:          DefaultEventSubject,
		StreamName:       DefaultStreamName,
		DurableName:      DefaultDurableName,
		QueueGroup:       DefaultQueueGroup,
		SubscribersCount: 1,
		MaxReconnects:    -1, // retry forever
		ReconnectWait:    2 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1024,
	}
}

// NATSConsumer feeds externally published events into the intake. The
// underlying subscriber is durable and queue-grouped so multiple engine
// instances can load-balance one stream.
type NATSConsumer struct {
	subscriber message.Subscriber
	cfg        SubscriberConfig
	intake     *Intake
}

// NewNATSConsumer creates the JetStream consumer.
func NewNATSConsumer(cfg SubscriberConfig, intake *Intake) (*NATSConsumer, error) {
	logger := NewWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Error().Err(err).Msg("NATS consumer disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS consumer reconnected")
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	// Wildcard subjects cannot name a stream, so bind to the configured
	// stream instead of auto-provisioning one per topic.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    autoProvision,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	return &NATSConsumer{subscriber: sub, cfg: cfg, intake: intake}, nil
}

// Run consumes the event subject until ctx is canceled. Every message is
// acked: unparseable payloads are dropped with a metric, and capacity
// rejections are dropped too rather than redelivered into the same full
// buffer.
func (c *NATSConsumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.cfg.Subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.cfg.Subject, err)
	}
	logging.Info().
		Str("subject", c.cfg.Subject).
		Str("durable", c.cfg.DurableName).
		Msg("NATS event consumer started")

	for msg := range messages {
		c.handle(msg)
		msg.Ack()
	}
	logging.Info().Msg("NATS event consumer stopped")
	return nil
}

func (c *NATSConsumer) handle(msg *message.Message) {
	metrics.RecordNATSConsumed()
	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		metrics.RecordNATSParseFailed()
		logging.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping unparseable NATS event")
		return
	}
	if err := c.intake.Submit(event); err != nil {
		logging.Warn().
			Err(err).
			Str("source", event.Source).
			Msg("NATS event rejected by intake")
	}
}

// Close shuts the subscriber down.
func (c *NATSConsumer) Close() error {
	return c.subscriber.Close()
}
