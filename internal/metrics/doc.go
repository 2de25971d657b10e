// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package metrics provides Prometheus instrumentation for the detection
// pipeline: event intake, rule evaluation, alert lifecycle, response
// action execution, WebSocket fan-out, and the HTTP surface.
//
// Collectors are registered once at import time via promauto on the
// default registry and exposed by promhttp at /metrics. Hot-path callers
// go through the Record*/Set* helpers rather than touching collectors
// directly, keeping label conventions in one place.
package metrics
