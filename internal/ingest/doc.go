// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package ingest is the event source feeding the detection engine.
//
// Pipeline:
//
//	HTTP / NATS / Go API -> Intake (bounded buffer) -> watermill gochannel
//	                                                        |
//	                                                        v
//	                                              Engine.SubmitEvent
//
// The Intake gives every submitter the same backpressure contract: a
// non-blocking enqueue that fails fast with a capacity error when the
// buffer is full, and a drain-on-stop guarantee that accepted events reach
// the pipeline before Stop returns.
//
// The internal watermill gochannel Pub/Sub decouples submitters from
// evaluation. External feeders publish JSON events to NATS JetStream
// subjects (klaxon.events.> by default); the subscriber is durable and
// queue-grouped so multiple engine instances load-balance. An embedded
// JetStream server can be started for single-node deployments.
package ingest
