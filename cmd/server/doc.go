// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

/*
Package main is the entry point for the Klaxon server.

Klaxon ingests telemetry events, evaluates them against detection rules,
raises deduplicated alerts, runs automated response actions, and pushes
alert lifecycle changes to notifiers and WebSocket subscribers.

# Application Architecture

The server runs under a Suture v4 supervision tree:

	RootSupervisor ("klaxon")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── Event Pipeline (intake drain -> engine)
	│   └── NATS Consumer (optional, durable JetStream pull)
	└── TransportSupervisor ("transport-layer")
	    ├── WebSocket Hub (real-time alert stream)
	    └── HTTP Server (REST API + Swagger + /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Persistence: memory, BadgerDB, or DuckDB alert repository
 4. Detection Engine: rules, deduplication, alert store, action executor
 5. WebSocket Hub: wired as the store's change sink
 6. Webhook Notifiers: rate-limited, breaker-protected delivery
 7. Ingest: bounded intake buffer plus optional NATS JetStream consumer
 8. Supervisor Tree: Suture v4 process supervision
 9. HTTP Server: Chi router with middleware stack

# Signal Handling

SIGINT and SIGTERM trigger an ordered shutdown: the HTTP server stops
accepting connections and drains in-flight requests, the WebSocket hub
closes its clients, the NATS consumer stops pulling, the intake flushes
buffered events through the pipeline, and the engine stops last so every
drained event is still evaluated.

# Example Usage

Single node with embedded NATS and persistent alerts:

	export NATS_ENABLED=true
	export NATS_EMBEDDED=true
	export PERSISTENCE_BACKEND=badger
	export PERSISTENCE_PATH=/data/klaxon
	./klaxon

HTTP-only ingest (no broker), alerts held in memory:

	./klaxon

Against an external NATS cluster:

	export NATS_ENABLED=true
	export NATS_URL=nats://nats:4222
	./klaxon
*/
package main
