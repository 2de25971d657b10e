// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package api provides the HTTP surface: REST endpoints for alerts, rules,
// statistics, and event intake, plus the WebSocket upgrade, Prometheus
// metrics, health, and Swagger UI.
//
// Routing uses chi with per-group middleware (request ID, real IP,
// recoverer, CORS, security headers, rate limiting, metrics). Handlers
// depend on narrow local interfaces over the detection engine and ingest
// pipeline, validate request bodies with go-playground/validator, and
// respond through shared helpers with stable error codes.
package api
