// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

/*
Package supervisor provides process supervision for Klaxon using suture v4.

The supervisor tree organizes services into two layers for failure
isolation:

	RootSupervisor ("klaxon")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── EventPipelineService
	│   └── NATSConsumerService (if NATS_ENABLED)
	└── TransportSupervisor ("transport-layer")
	    ├── WebSocketHubService
	    └── HTTPServerService

This hierarchy ensures that a crash in the ingest pipeline does not drop
WebSocket connections, and a transport failure does not lose buffered
events: each layer restarts independently with exponential backoff.

Crashed services are restarted automatically; restart storms are damped by
the configurable failure threshold and decay. On context cancellation the
tree shuts down in service order, and UnstoppedServiceReport identifies
anything that failed to stop within the timeout.

Supervision events are logged through slog via the sutureslog adapter,
bridged to the application's zerolog output by logging.SlogHandler.
*/
package supervisor
