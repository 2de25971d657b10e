// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import "errors"

// Sentinel errors for the ingest pipeline.
var (
	// ErrIntakeFull indicates the bounded intake buffer rejected an event;
	// the submitter applies its own backpressure policy.
	ErrIntakeFull = errors.New("intake buffer full")

	// ErrIntakeStopped indicates Submit was called after Stop.
	ErrIntakeStopped = errors.New("intake stopped")

	// ErrInvalidEvent indicates an event failed validation or decoding.
	ErrInvalidEvent = errors.New("invalid event")
)
