// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import "errors"

// Sentinel errors returned by the detection core. Callers should test with
// errors.Is; the HTTP layer maps these to stable response codes.
var (
	// ErrQueueFull indicates the action executor's bounded queue rejected a
	// submission. The caller decides its own backpressure policy.
	ErrQueueFull = errors.New("action queue full")

	// ErrShuttingDown indicates the engine is stopping and no longer accepts
	// events or action submissions.
	ErrShuttingDown = errors.New("engine shutting down")

	// ErrAlertNotFound indicates a mutation referenced a nonexistent alert.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrRuleNotFound indicates an operation referenced an unregistered rule.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrInvalidRule indicates a rule failed structural validation at
	// registration time.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrUnknownActionType indicates a submission named an action type with
	// no registered collaborator.
	ErrUnknownActionType = errors.New("unknown action type")
)
