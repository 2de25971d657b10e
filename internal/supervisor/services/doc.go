// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

/*
Package services provides suture.Service wrappers for Klaxon's long-running
components.

Each wrapper adapts a component's native lifecycle to suture's
Serve(ctx) error pattern and names itself via String() for supervision
logs. Components are referenced through small local interfaces so the
wrappers stay testable and free of import cycles:

  - HTTPServerService: http.Server's blocking ListenAndServe
  - WebSocketHubService: the hub's RunWithContext loop
  - PipelineService: the internal event pipeline's Run loop
  - NATSConsumerService: the JetStream consumer's Run loop
*/
package services
