// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

/*
Package middleware provides HTTP middleware components shared across routes.

The components here are infrastructure concerns that sit below the router's
per-group middleware (CORS, rate limiting, security headers, which live in
the api package):

  - RequestID: UUID-based request tracking for distributed tracing
  - PrometheusMetrics: per-request latency and status instrumentation
  - Compression: gzip compression for JSON responses

All three are written as func(http.HandlerFunc) http.HandlerFunc so they can
wrap plain handlers directly or be bridged into a Chi router.
*/
package middleware
