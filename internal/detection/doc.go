// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package detection implements the rule-driven detection core: rule
// registration with cooldown deduplication, event evaluation, the sharded
// alert store with lifecycle tracking, and the bounded-concurrency response
// action executor.
//
// Detection Architecture:
//
//	Event -> Evaluator -> AlertStore -> change sink (WebSocket hub)
//	          |               ^
//	          v               |
//	     RuleRegistry    ActionExecutor -> external collaborators
//	     + Deduplicator
//
// The Engine type wires these pieces into one explicitly constructed
// instance with a defined startup and shutdown order. Events reach the
// engine through the ingest pipeline (NATS JetStream or HTTP) or directly
// via Engine.SubmitEvent.
//
// Alert lifecycle:
//   - created: a rule matched and the rule was outside its cooldown window
//   - acknowledged: one or more actors marked the alert as seen (idempotent)
//   - resolved: terminal; resolvedAt/resolvedBy are set exactly once
//
// Incidents are alerts carrying an append-only history of automated
// response actions (block_ip, disable_user, rotate_keys, ...), each
// recorded with rollback metadata whether it succeeded or not.
package detection
