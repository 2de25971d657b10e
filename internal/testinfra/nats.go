// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the official NATS server image.
	DefaultNATSImage = "nats:2.10-alpine"

	// DefaultNATSPort is the NATS client port.
	DefaultNATSPort = "4222"
)

// NATSContainer represents a running JetStream-enabled NATS broker for
// integration testing.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSContainerOption customizes the container request.
type NATSContainerOption func(*testcontainers.ContainerRequest)

// WithNATSImage overrides the broker image.
func WithNATSImage(image string) NATSContainerOption {
	return func(req *testcontainers.ContainerRequest) {
		req.Image = image
	}
}

// NewNATSContainer starts a NATS broker with JetStream enabled and waits
// until it accepts client connections.
func NewNATSContainer(ctx context.Context, opts ...NATSContainerOption) (*NATSContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        DefaultNATSImage,
		ExposedPorts: []string{DefaultNATSPort + "/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor: wait.ForLog("Server is ready").
			WithStartupTimeout(60 * time.Second),
	}
	for _, opt := range opts {
		opt(&req)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultNATSPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}

// ProvisionStream creates a JetStream stream on the broker so durable
// consumers can bind to it, mirroring what an operator provisions in
// production.
func (c *NATSContainer) ProvisionStream(name string, subjects ...string) error {
	nc, err := natsgo.Connect(c.URL)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	_, err = js.AddStream(&natsgo.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}
