// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// notifyTimeout bounds one notifier delivery attempt.
const notifyTimeout = 10 * time.Second

// EngineConfig tunes the detection engine.
type EngineConfig struct {
	Executor ExecutorConfig
}

// Engine wires the detection core into one explicitly constructed instance:
// registry, deduplicator, evaluator, alert store, action executor, and the
// notifier fan-out. All process-wide state lives here, with a defined
// construction and shutdown lifecycle.
type Engine struct {
	registry  *RuleRegistry
	dedup     *Deduplicator
	evaluator *Evaluator
	store     *AlertStore
	executor  *ActionExecutor
	repo      Repository

	mu        sync.RWMutex
	notifiers []Notifier
	stopped   bool

	notifyWG sync.WaitGroup
}

// NewEngine constructs an engine. sink receives store change events (wire
// the WebSocket hub here); repo may be nil for memory-only operation.
func NewEngine(cfg EngineConfig, sink ChangeSink, repo Repository) *Engine {
	registry := NewRuleRegistry()
	dedup := NewDeduplicator()
	store := NewAlertStore(sink, repo)
	return &Engine{
		registry:  registry,
		dedup:     dedup,
		evaluator: NewEvaluator(registry, dedup),
		store:     store,
		executor:  NewActionExecutor(store, cfg.Executor),
		repo:      repo,
	}
}

// Start restores persisted alerts and launches the action workers.
func (e *Engine) Start(ctx context.Context) error {
	if e.repo != nil {
		alerts, err := e.repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load persisted alerts: %w", err)
		}
		e.store.Restore(alerts)
		logging.Info().Int("count", len(alerts)).Msg("Restored persisted alerts")
	}
	e.executor.Start()
	logging.Info().Msg("Detection engine started")
	return nil
}

// Stop shuts the engine down in order: refuse new events, stop the action
// executor (draining queued submissions as rejected), wait for in-flight
// notifier deliveries, then close persistence.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.mu.Unlock()

	e.executor.Stop()
	e.notifyWG.Wait()
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close alert repository")
		}
	}
	logging.Info().Msg("Detection engine stopped")
}

// SubmitEvent evaluates one event against all enabled rules, materializing
// alerts for matches outside their cooldown windows. Returns
// ErrShuttingDown after Stop.
func (e *Engine) SubmitEvent(ctx context.Context, event Event, source, correlationID string) error {
	e.mu.RLock()
	stopped := e.stopped
	e.mu.RUnlock()
	if stopped {
		return ErrShuttingDown
	}

	metrics.RecordEventSubmitted(source)
	for _, req := range e.evaluator.Evaluate(event, source, correlationID) {
		alert := e.store.Create(req)
		logging.Info().
			Str("alert_id", alert.ID).
			Str("type", string(alert.Type)).
			Str("severity", string(alert.Severity)).
			Str("source", alert.Source).
			Msg("Alert created")
		e.notify(ctx, alert)
	}
	return nil
}

// notify fans the created alert out to all enabled notifiers without
// blocking the evaluation path. Delivery failures are logged, never
// propagated.
func (e *Engine) notify(ctx context.Context, alert Alert) {
	e.mu.RLock()
	notifiers := append([]Notifier(nil), e.notifiers...)
	e.mu.RUnlock()

	for _, n := range notifiers {
		if !n.Enabled() {
			continue
		}
		e.notifyWG.Add(1)
		go func(n Notifier) {
			defer e.notifyWG.Done()
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
			defer cancel()
			if err := n.Send(nctx, &alert); err != nil {
				logging.Error().
					Err(err).
					Str("notifier", n.Name()).
					Str("alert_id", alert.ID).
					Msg("Notifier delivery failed")
			}
		}(n)
	}
}

// AddNotifier registers a notifier for created-alert fan-out.
func (e *Engine) AddNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
	logging.Info().Str("notifier", n.Name()).Bool("enabled", n.Enabled()).Msg("Notifier registered")
}

// RegisterRule registers a rule carrying a Go predicate condition.
func (e *Engine) RegisterRule(rule *Rule) error {
	return e.registry.Register(rule)
}

// RegisterDeclarativeRule compiles the rule's declarative condition spec
// and registers the result. The spec is retained for API listings.
func (e *Engine) RegisterDeclarativeRule(rule *Rule, spec *ConditionSpec) error {
	cond, err := spec.Compile()
	if err != nil {
		return err
	}
	rule.Condition = cond
	rule.Spec = spec
	return e.registry.Register(rule)
}

// UnregisterRule removes a rule and its cooldown state.
func (e *Engine) UnregisterRule(id string) error {
	if err := e.registry.Unregister(id); err != nil {
		return err
	}
	e.dedup.Forget(id)
	return nil
}

// SetRuleEnabled flips a rule's enabled flag.
func (e *Engine) SetRuleEnabled(id string, enabled bool) error {
	return e.registry.SetEnabled(id, enabled)
}

// Rules returns copies of all registered rules in registration order, with
// cooldown bookkeeping stamped from the deduplicator.
func (e *Engine) Rules() []*Rule {
	rules := e.registry.List()
	out := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		c := *r
		if last, ok := e.dedup.LastTriggered(r.ID); ok {
			c.LastTriggeredAt = &last
		}
		out = append(out, &c)
	}
	return out
}

// Store exposes the alert store for the transport layers.
func (e *Engine) Store() *AlertStore {
	return e.store
}

// Executor exposes the action executor for the transport layers.
func (e *Engine) Executor() *ActionExecutor {
	return e.executor
}
