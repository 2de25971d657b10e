// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"fmt"
	"time"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// Evaluator runs events through the enabled rules and emits alert creation
// requests for matches that clear their cooldown. It performs no I/O and
// has no side effects beyond Deduplicator state.
type Evaluator struct {
	registry *RuleRegistry
	dedup    *Deduplicator
	now      func() time.Time
}

// NewEvaluator creates an evaluator over the given registry and
// deduplicator.
func NewEvaluator(registry *RuleRegistry, dedup *Deduplicator) *Evaluator {
	return &Evaluator{registry: registry, dedup: dedup, now: time.Now}
}

// Evaluate returns zero or more alert creation requests for the event. A
// panicking condition or template is logged and treated as non-matching;
// it never blocks the remaining rules or the caller's event stream.
func (e *Evaluator) Evaluate(event Event, source, correlationID string) []AlertCreationRequest {
	var requests []AlertCreationRequest
	for _, rule := range e.registry.ListEnabled() {
		metrics.RecordRuleEvaluated(rule.ID)

		matched, err := e.safeMatch(rule, event)
		if err != nil {
			logging.Error().
				Err(err).
				Str("rule_id", rule.ID).
				Str("source", source).
				Msg("Rule evaluation failed")
			continue
		}
		if !matched {
			continue
		}
		metrics.RecordRuleMatched(rule.ID)

		now := e.now()
		if !e.dedup.TryAcquire(rule.ID, now, rule.CooldownMs) {
			metrics.RecordRuleSuppressed(rule.ID)
			logging.Debug().
				Str("rule_id", rule.ID).
				Str("source", source).
				Msg("Alert suppressed by cooldown")
			continue
		}

		requests = append(requests, AlertCreationRequest{
			Type:          rule.Type,
			Severity:      rule.Severity,
			Title:         rule.Name,
			Message:       e.safeRender(rule, event),
			Source:        source,
			Context:       map[string]interface{}(event),
			Tags:          append([]string(nil), rule.Tags...),
			CorrelationID: correlationID,
		})
	}
	return requests
}

// safeMatch isolates condition panics per rule.
func (e *Evaluator) safeMatch(rule *Rule, event Event) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = fmt.Errorf("condition panicked: %v", r)
		}
	}()
	return rule.Condition(event), nil
}

// safeRender isolates template panics; a broken template falls back to the
// rule description or name rather than losing the alert.
func (e *Evaluator) safeRender(rule *Rule, event Event) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Str("rule_id", rule.ID).
				Interface("panic", r).
				Msg("Message template panicked")
			msg = rule.Description
			if msg == "" {
				msg = rule.Name
			}
		}
	}()
	if rule.Template == nil {
		if rule.Description != "" {
			return rule.Description
		}
		return rule.Name
	}
	return rule.Template(event)
}
