// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingNotifier captures Send calls
type recordingNotifier struct {
	name    string
	enabled bool
	mu      sync.Mutex
	sent    []Alert
	sendErr error
}

func (n *recordingNotifier) Name() string  { return n.name }
func (n *recordingNotifier) Enabled() bool { return n.enabled }

func (n *recordingNotifier) Send(_ context.Context, alert *Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, alert.Clone())
	return n.sendErr
}

func (n *recordingNotifier) Sent() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Alert(nil), n.sent...)
}

func waitForNotifications(t *testing.T, n *recordingNotifier, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(n.Sent()) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d notifications, have %d", want, len(n.Sent()))
}

func TestEngine_SubmitEventCreatesAlert(t *testing.T) {
	sink := &recordingSink{}
	engine := NewEngine(EngineConfig{}, sink, nil)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	if err := engine.RegisterRule(testRule("cpu-high")); err != nil {
		t.Fatal(err)
	}

	if err := engine.SubmitEvent(context.Background(), Event{"usage": 99}, "node-1", "corr-1"); err != nil {
		t.Fatal(err)
	}

	alerts := engine.Store().Query(nil)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Source != "node-1" || alerts[0].CorrelationID != "corr-1" {
		t.Errorf("provenance not carried: %+v", alerts[0])
	}
	if len(sink.Events()) != 1 {
		t.Errorf("expected 1 change event, got %d", len(sink.Events()))
	}
}

func TestEngine_SubmitEventAfterStop(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	engine.Stop()

	err := engine.SubmitEvent(context.Background(), Event{}, "src", "")
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestEngine_NotifierFanOut(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	defer engine.Stop()

	enabled := &recordingNotifier{name: "on", enabled: true}
	disabled := &recordingNotifier{name: "off", enabled: false}
	failing := &recordingNotifier{name: "broken", enabled: true, sendErr: errors.New("endpoint down")}
	engine.AddNotifier(enabled)
	engine.AddNotifier(disabled)
	engine.AddNotifier(failing)

	engine.RegisterRule(testRule("r1"))
	if err := engine.SubmitEvent(context.Background(), Event{}, "src", ""); err != nil {
		t.Fatal(err)
	}

	waitForNotifications(t, enabled, 1)
	waitForNotifications(t, failing, 1)
	if len(disabled.Sent()) != 0 {
		t.Error("disabled notifier received a delivery")
	}
}

func TestEngine_StopWaitsForNotifierDeliveries(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())

	n := &recordingNotifier{name: "slow", enabled: true}
	engine.AddNotifier(n)
	engine.RegisterRule(testRule("r1"))
	engine.SubmitEvent(context.Background(), Event{}, "src", "")

	engine.Stop()
	if len(n.Sent()) != 1 {
		t.Fatal("Stop returned before notifier delivery completed")
	}
}

func TestEngine_RegisterDeclarativeRule(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	defer engine.Stop()

	spec := &ConditionSpec{Field: "cpu.usage", Operator: OpGT, Value: 90}
	rule := &Rule{
		ID:       "cpu-high",
		Name:     "High CPU",
		Type:     TypePerformance,
		Severity: SeverityHigh,
		Enabled:  true,
	}
	if err := engine.RegisterDeclarativeRule(rule, spec); err != nil {
		t.Fatal(err)
	}

	// Matching event fires, non-matching does not.
	engine.SubmitEvent(context.Background(), Event{"cpu": map[string]interface{}{"usage": 95.0}}, "node", "")
	engine.SubmitEvent(context.Background(), Event{"cpu": map[string]interface{}{"usage": 10.0}}, "node", "")
	if n := engine.Store().Len(); n != 1 {
		t.Fatalf("expected 1 alert, got %d", n)
	}

	// The spec is listed back for API consumers.
	rules := engine.Rules()
	if len(rules) != 1 || rules[0].Spec == nil {
		t.Fatal("declarative spec not retained in listing")
	}
	if rules[0].Spec.Field != "cpu.usage" {
		t.Errorf("spec field = %q", rules[0].Spec.Field)
	}
}

func TestEngine_RegisterDeclarativeRuleBadSpec(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	spec := &ConditionSpec{Field: "a", Operator: "fuzzy", Value: 1}
	err := engine.RegisterDeclarativeRule(testRule("r1"), spec)
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestEngine_RulesStampLastTriggered(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	defer engine.Stop()

	rule := testRule("r1")
	rule.CooldownMs = 60_000
	engine.RegisterRule(rule)

	before := engine.Rules()
	if before[0].LastTriggeredAt != nil {
		t.Error("LastTriggeredAt set before any firing")
	}

	engine.SubmitEvent(context.Background(), Event{}, "src", "")

	after := engine.Rules()
	if after[0].LastTriggeredAt == nil {
		t.Fatal("LastTriggeredAt not stamped after firing")
	}
}

func TestEngine_UnregisterRuleClearsCooldown(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	defer engine.Stop()

	rule := testRule("r1")
	rule.CooldownMs = 3_600_000
	engine.RegisterRule(rule)
	engine.SubmitEvent(context.Background(), Event{}, "src", "")

	if err := engine.UnregisterRule("r1"); err != nil {
		t.Fatal(err)
	}

	// Re-registering starts with a clean window: the first match fires.
	fresh := testRule("r1")
	fresh.CooldownMs = 3_600_000
	engine.RegisterRule(fresh)
	engine.SubmitEvent(context.Background(), Event{}, "src", "")

	if n := engine.Store().Len(); n != 2 {
		t.Fatalf("expected 2 alerts (cooldown cleared on unregister), got %d", n)
	}
}

func TestEngine_SetRuleEnabled(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	defer engine.Stop()

	engine.RegisterRule(testRule("r1"))
	if err := engine.SetRuleEnabled("r1", false); err != nil {
		t.Fatal(err)
	}
	engine.SubmitEvent(context.Background(), Event{}, "src", "")
	if n := engine.Store().Len(); n != 0 {
		t.Fatalf("disabled rule produced %d alerts", n)
	}

	if err := engine.SetRuleEnabled("ghost", true); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestEngine_StartRestoresPersistedAlerts(t *testing.T) {
	repo := &recordingRepo{loadRet: []Alert{
		{ID: "old-1", Type: TypeError, Severity: SeverityMedium, Title: "restored", Timestamp: time.Now().Add(-time.Hour)},
	}}
	engine := NewEngine(EngineConfig{}, nil, repo)
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok := engine.Store().Get("old-1"); !ok {
		t.Fatal("persisted alert not restored")
	}

	engine.Stop()
	repo.mu.Lock()
	closed := repo.closed
	repo.mu.Unlock()
	if !closed {
		t.Error("repository not closed on engine stop")
	}
}

func TestEngine_StopIdempotent(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.Start(context.Background())
	engine.Stop()
	engine.Stop() // must not panic
}
