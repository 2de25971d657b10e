// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package services

import (
	"context"
)

// NATSConsumerService wraps the JetStream event consumer as a supervised
// service. The consumer drains its subject into the intake until the
// context is canceled. A lost connection surfaces as a Serve error, and
// suture reconnects by restarting the service; the durable consumer
// resumes from its last acked position.
type NATSConsumerService struct {
	consumer ContextRunner
	name     string
}

// NewNATSConsumerService creates a new NATS consumer service wrapper.
func NewNATSConsumerService(consumer ContextRunner) *NATSConsumerService {
	return &NATSConsumerService{
		consumer: consumer,
		name:     "nats-consumer",
	}
}

// Serve implements suture.Service.
func (s *NATSConsumerService) Serve(ctx context.Context) error {
	return s.consumer.Run(ctx)
}

// String implements fmt.Stringer for supervision logs.
func (s *NATSConsumerService) String() string {
	return s.name
}
