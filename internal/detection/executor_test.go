// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T, cfg ExecutorConfig) (*ActionExecutor, *AlertStore) {
	t.Helper()
	store := NewAlertStore(nil, nil)
	e := NewActionExecutor(store, cfg)
	return e, store
}

// waitForActions polls until the alert carries n response actions or the
// deadline passes.
func waitForActions(t *testing.T, store *AlertStore, alertID string, n int) Alert {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		alert, ok := store.Get(alertID)
		if ok && len(alert.ResponseActions) >= n {
			return alert
		}
		time.Sleep(5 * time.Millisecond)
	}
	alert, _ := store.Get(alertID)
	t.Fatalf("timed out waiting for %d actions, have %d", n, len(alert.ResponseActions))
	return Alert{}
}

func TestActionExecutor_SuccessRecordsAction(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	rollback := "unblock via firewall api"
	e.RegisterAction(ActionBlockIP, func(ctx context.Context, params map[string]interface{}) (bool, string, *string, error) {
		return true, "blocked " + params["ip"].(string), &rollback, nil
	})
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	actionID, err := e.Submit(alert.ID, ActionBlockIP, map[string]interface{}{"ip": "10.0.0.9"}, "ops", 0)
	if err != nil {
		t.Fatal(err)
	}

	got := waitForActions(t, store, alert.ID, 1)
	action := got.ResponseActions[0]
	if action.ID != actionID {
		t.Errorf("recorded ID %q != submitted ID %q", action.ID, actionID)
	}
	if !action.Success || action.Result != "blocked 10.0.0.9" {
		t.Errorf("unexpected outcome: %+v", action)
	}
	if !action.RollbackPossible || action.RollbackInstructions != rollback {
		t.Errorf("rollback not recorded: %+v", action)
	}
	if action.ExecutedBy != "ops" {
		t.Errorf("ExecutedBy = %q", action.ExecutedBy)
	}
}

func TestActionExecutor_FailureStillRecorded(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	e.RegisterAction(ActionCreateTicket, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		return false, "", nil, errors.New("ticket api unreachable")
	})
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	if _, err := e.Submit(alert.ID, ActionCreateTicket, nil, "ops", 0); err != nil {
		t.Fatal(err)
	}

	got := waitForActions(t, store, alert.ID, 1)
	action := got.ResponseActions[0]
	if action.Success {
		t.Error("failed action recorded as success")
	}
	if action.Result != "ticket api unreachable" {
		t.Errorf("error not captured in result: %q", action.Result)
	}
}

func TestActionExecutor_PanicConvertedToFailure(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	e.RegisterAction(ActionRotateKeys, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		panic("integration exploded")
	})
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	if _, err := e.Submit(alert.ID, ActionRotateKeys, nil, "ops", 0); err != nil {
		t.Fatal(err)
	}

	got := waitForActions(t, store, alert.ID, 1)
	if got.ResponseActions[0].Success {
		t.Error("panicking action recorded as success")
	}
}

func TestActionExecutor_TimeoutRecordsTimeout(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	block := make(chan struct{})
	defer close(block)
	e.RegisterAction(ActionIsolateSystem, func(ctx context.Context, _ map[string]interface{}) (bool, string, *string, error) {
		<-block // ignores ctx on purpose
		return true, "", nil, nil
	})
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	if _, err := e.Submit(alert.ID, ActionIsolateSystem, nil, "ops", 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	got := waitForActions(t, store, alert.ID, 1)
	action := got.ResponseActions[0]
	if action.Success {
		t.Error("timed-out action recorded as success")
	}
	if action.Result != "timeout" {
		t.Errorf("result = %q, want %q", action.Result, "timeout")
	}
}

func TestActionExecutor_BoundedConcurrency(t *testing.T) {
	const maxConcurrent = 2
	e, store := newTestExecutor(t, ExecutorConfig{MaxConcurrent: maxConcurrent, QueueSize: 32})

	var inFlight, highWater int64
	e.RegisterAction(ActionNotifyAdmin, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			hw := atomic.LoadInt64(&highWater)
			if n <= hw || atomic.CompareAndSwapInt64(&highWater, hw, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return true, "", nil, nil
	})
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	const submissions = 10
	for i := 0; i < submissions; i++ {
		if _, err := e.Submit(alert.ID, ActionNotifyAdmin, nil, "ops", 0); err != nil {
			t.Fatal(err)
		}
	}

	waitForActions(t, store, alert.ID, submissions)
	if hw := atomic.LoadInt64(&highWater); hw > maxConcurrent {
		t.Errorf("high-water mark %d exceeds limit %d", hw, maxConcurrent)
	}
}

func TestActionExecutor_QueueFull(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{MaxConcurrent: 1, QueueSize: 1})
	block := make(chan struct{})
	e.RegisterAction(ActionBackupData, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		<-block
		return true, "", nil, nil
	})
	e.Start()

	alert := store.Create(testRequest())

	// Fill the worker and the single queue slot, then expect rejection.
	// The first submission may be picked up immediately, so keep submitting
	// until the queue rejects.
	var sawFull bool
	for i := 0; i < 4; i++ {
		if _, err := e.Submit(alert.ID, ActionBackupData, nil, "ops", 0); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	if !sawFull {
		t.Error("expected ErrQueueFull once capacity was exhausted")
	}

	close(block)
	e.Stop()
}

func TestActionExecutor_SubmitErrors(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	e.RegisterAction(ActionBlockIP, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		return true, "", nil, nil
	})
	e.Start()

	alert := store.Create(testRequest())

	if _, err := e.Submit(alert.ID, "launch_missiles", nil, "ops", 0); !errors.Is(err, ErrUnknownActionType) {
		t.Errorf("expected ErrUnknownActionType, got %v", err)
	}
	if _, err := e.Submit("ghost-alert", ActionBlockIP, nil, "ops", 0); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("expected ErrAlertNotFound, got %v", err)
	}

	e.Stop()
	if _, err := e.Submit(alert.ID, ActionBlockIP, nil, "ops", 0); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown after Stop, got %v", err)
	}
}

func TestActionExecutor_StopDrainsQueueAsRejected(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{MaxConcurrent: 1, QueueSize: 8})
	started := make(chan struct{})
	block := make(chan struct{})
	var once sync.Once
	e.RegisterAction(ActionDisableUser, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		once.Do(func() { close(started) })
		<-block
		return true, "done", nil, nil
	})
	e.Start()

	alert := store.Create(testRequest())
	const submissions = 5
	for i := 0; i < submissions; i++ {
		if _, err := e.Submit(alert.ID, ActionDisableUser, nil, "ops", 0); err != nil {
			t.Fatal(err)
		}
	}

	<-started     // one task is in flight
	close(block)  // let it finish during Stop
	e.Stop()

	got, _ := store.Get(alert.ID)
	if len(got.ResponseActions) != submissions {
		t.Fatalf("expected all %d submissions recorded, got %d", submissions, len(got.ResponseActions))
	}
	var rejected int
	for _, a := range got.ResponseActions {
		if !a.Success && a.Result == "shutting down" {
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("expected queued submissions to be recorded as shutting-down rejections")
	}
}

func TestActionExecutor_SubmitRacingStopNeverPanics(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{MaxConcurrent: 2, QueueSize: 4})
	e.RegisterAction(ActionNotifyAdmin, func(context.Context, map[string]interface{}) (bool, string, *string, error) {
		return true, "notified", nil, nil
	})
	e.Start()
	alert := store.Create(testRequest())

	// Hammer Submit from several goroutines while Stop runs. Every
	// submission either lands (and is executed or drained) or is refused
	// with a sentinel; none may panic on the queue.
	var accepted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 50; i++ {
				_, err := e.Submit(alert.ID, ActionNotifyAdmin, nil, "ops", 0)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrShuttingDown), errors.Is(err, ErrQueueFull):
				default:
					t.Errorf("unexpected submit error: %v", err)
					return
				}
			}
		}()
	}
	close(start)
	e.Stop()
	wg.Wait()

	// Nothing silently dropped: every accepted submission was recorded,
	// either as an execution or as a shutting-down rejection.
	got, _ := store.Get(alert.ID)
	if int64(len(got.ResponseActions)) != accepted.Load() {
		t.Fatalf("accepted %d submissions but recorded %d actions", accepted.Load(), len(got.ResponseActions))
	}

	if _, err := e.Submit(alert.ID, ActionNotifyAdmin, nil, "ops", 0); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("post-stop submit returned %v, want ErrShuttingDown", err)
	}
}

func TestActionExecutor_StopIdempotent(t *testing.T) {
	e, _ := newTestExecutor(t, ExecutorConfig{})
	e.Start()
	e.Stop()
	e.Stop() // must not panic
}

func TestRegisterDefaultActions(t *testing.T) {
	e, store := newTestExecutor(t, ExecutorConfig{})
	RegisterDefaultActions(e)
	e.Start()
	defer e.Stop()

	alert := store.Create(testRequest())
	params := map[string]interface{}{
		"ip":      "10.0.0.1",
		"user_id": "u-7",
		"host":    "web-01",
		"scope":   "api-keys",
		"message": "incident",
		"summary": "repeated auth failures",
		"target":  "auth-db",
	}
	for _, typ := range []ResponseActionType{
		ActionBlockIP, ActionDisableUser, ActionIsolateSystem,
		ActionRotateKeys, ActionNotifyAdmin, ActionCreateTicket, ActionBackupData,
	} {
		if _, err := e.Submit(alert.ID, typ, params, "ops", 0); err != nil {
			t.Errorf("submit %s: %v", typ, err)
		}
	}

	got := waitForActions(t, store, alert.ID, 7)
	for _, a := range got.ResponseActions {
		if !a.Success {
			t.Errorf("default action %s failed: %s", a.Type, a.Result)
		}
	}
	for _, a := range got.ResponseActions {
		if a.Type == ActionBlockIP && !a.RollbackPossible {
			t.Error("block_ip should record rollback instructions")
		}
		if a.Type == ActionRotateKeys && a.RollbackPossible {
			t.Error("rotate_keys rollback is not possible")
		}
	}
}
