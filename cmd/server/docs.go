// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package main provides the Klaxon HTTP server
//
// Klaxon API provides event ingestion, detection rule management, and
// alert lifecycle operations for the threat detection engine.
//
// @title Klaxon API
// @version 1.0
// @description Threat detection and alert notification engine
// @description
// @description ## Features
// @description
// @description - **Event Ingestion**: HTTP and NATS JetStream intake with bounded buffering
// @description - **Detection Rules**: Programmatic and declarative condition-tree rules
// @description - **Alert Lifecycle**: Deduplication, acknowledge, resolve, full audit trail
// @description - **Response Actions**: Bounded-concurrency automated action execution
// @description - **Real-time Updates**: WebSocket-based alert change stream
// @description - **Notifiers**: Rate-limited, circuit-breaker-protected webhooks
// @description
// @description ## Rate Limiting
// @description
// @description Default rate limit: 100 requests per minute per IP address.
// @description Rate limit headers are included in responses: `X-RateLimit-Limit`, `X-RateLimit-Remaining`, `X-RateLimit-Reset`.
//
// @contact.name Klaxon Authors
// @contact.url https://github.com/klaxonhq/klaxon
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @BasePath /api/v1
//
// @tag.name alerts
// @tag.description Alert query and lifecycle operations
//
// @tag.name rules
// @tag.description Detection rule management
//
// @tag.name events
// @tag.description Event ingestion
//
// @tag.name websocket
// @tag.description Real-time alert change stream
//
// @tag.name health
// @tag.description Liveness and readiness probes
package main
