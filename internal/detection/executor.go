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

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// Default executor tuning. Queue capacity bounds memory under bursts;
// submissions beyond it are rejected with ErrQueueFull.
const (
	DefaultMaxConcurrentActions = 4
	DefaultActionQueueSize      = 256
	DefaultActionTimeout        = 30 * time.Second
)

// actionOutcome is what a collaborator call produces, threaded through the
// circuit breaker.
type actionOutcome struct {
	success              bool
	result               string
	rollbackInstructions *string
}

type actionTask struct {
	alertID    string
	actionID   string
	actionType ResponseActionType
	parameters map[string]interface{}
	executedBy string
	timeout    time.Duration
}

// ExecutorConfig tunes the action executor.
type ExecutorConfig struct {
	MaxConcurrent  int
	QueueSize      int
	DefaultTimeout time.Duration
}

// ActionExecutor runs automated response actions through a fixed pool of
// workers over a bounded FIFO queue. Every execution attempt, successful or
// not, is recorded as exactly one ResponseAction on the target alert.
type ActionExecutor struct {
	store  *AlertStore
	cfg    ExecutorConfig
	queue  chan actionTask
	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time

	mu            sync.Mutex
	shuttingDown  bool
	collaborators map[ResponseActionType]ActionFunc
	breakers      map[ResponseActionType]*gobreaker.CircuitBreaker[actionOutcome]
}

// NewActionExecutor creates an executor bound to the store. Call Start
// before submitting and Stop to drain.
func NewActionExecutor(store *AlertStore, cfg ExecutorConfig) *ActionExecutor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentActions
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultActionQueueSize
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultActionTimeout
	}
	return &ActionExecutor{
		store:         store,
		cfg:           cfg,
		queue:         make(chan actionTask, cfg.QueueSize),
		stopCh:        make(chan struct{}),
		now:           time.Now,
		collaborators: make(map[ResponseActionType]ActionFunc),
		breakers:      make(map[ResponseActionType]*gobreaker.CircuitBreaker[actionOutcome]),
	}
}

// RegisterAction binds a collaborator to an action type, replacing any
// previous binding. Each type gets its own circuit breaker so one failing
// integration cannot burn worker time for the others.
func (e *ActionExecutor) RegisterAction(actionType ResponseActionType, fn ActionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collaborators[actionType] = fn
	e.breakers[actionType] = gobreaker.NewCircuitBreaker[actionOutcome](gobreaker.Settings{
		Name:    "action-" + string(actionType),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Start launches the worker pool.
func (e *ActionExecutor) Start() {
	for i := 0; i < e.cfg.MaxConcurrent; i++ {
		e.wg.Add(1)
		go e.worker()
	}
}

// Submit enqueues one action execution and returns the ID of the
// ResponseAction record that will eventually be appended to the alert.
// Returns ErrQueueFull when the bounded queue is at capacity,
// ErrShuttingDown after Stop, ErrAlertNotFound for unknown alerts, and
// ErrUnknownActionType for types with no collaborator. timeout <= 0 uses
// the configured default.
func (e *ActionExecutor) Submit(alertID string, actionType ResponseActionType, parameters map[string]interface{}, executedBy string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	if e.shuttingDown {
		e.mu.Unlock()
		return "", ErrShuttingDown
	}
	_, registered := e.collaborators[actionType]
	e.mu.Unlock()

	if !registered {
		return "", fmt.Errorf("%w: %s", ErrUnknownActionType, actionType)
	}
	if _, ok := e.store.Get(alertID); !ok {
		return "", ErrAlertNotFound
	}
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}

	task := actionTask{
		alertID:    alertID,
		actionID:   uuid.New().String(),
		actionType: actionType,
		parameters: parameters,
		executedBy: executedBy,
		timeout:    timeout,
	}
	// The enqueue happens under e.mu and rechecks the flag so it cannot
	// race Stop: once Stop has set shuttingDown, no new task can enter
	// the queue and the drain below sees everything that made it in.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shuttingDown {
		return "", ErrShuttingDown
	}
	select {
	case e.queue <- task:
		metrics.SetActionQueueDepth(len(e.queue))
		return task.actionID, nil
	default:
		return "", ErrQueueFull
	}
}

// Stop stops the workers after their in-flight executions, then drains the
// queue, recording each not-started submission as a failed ResponseAction
// with result "shutting down". Nothing is silently dropped.
func (e *ActionExecutor) Stop() {
	e.mu.Lock()
	if e.shuttingDown {
		e.mu.Unlock()
		return
	}
	e.shuttingDown = true
	e.mu.Unlock()

	close(e.stopCh)
	e.wg.Wait()

	// Drain without closing the queue. Submit sends on it under e.mu, so
	// the channel must stay open; the shuttingDown flag already guarantees
	// no task arrives after this loop empties it.
	for {
		select {
		case task := <-e.queue:
			e.record(task, actionOutcome{success: false, result: "shutting down"})
		default:
			metrics.SetActionQueueDepth(0)
			return
		}
	}
}

func (e *ActionExecutor) worker() {
	defer e.wg.Done()
	for {
		// Stop takes priority over further queued work.
		select {
		case <-e.stopCh:
			return
		default:
		}
		select {
		case <-e.stopCh:
			return
		case task := <-e.queue:
			metrics.SetActionQueueDepth(len(e.queue))
			e.execute(task)
		}
	}
}

// execute invokes the collaborator with a timeout. The collaborator runs in
// its own goroutine so a call that ignores cancellation still releases the
// worker slot; its out-of-band completion is discarded.
func (e *ActionExecutor) execute(task actionTask) {
	metrics.RecordActionInFlight(1)
	defer metrics.RecordActionInFlight(-1)
	start := e.now()

	e.mu.Lock()
	fn := e.collaborators[task.actionType]
	cb := e.breakers[task.actionType]
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), task.timeout)
	defer cancel()

	done := make(chan actionOutcome, 1)
	go func() {
		outcome, err := cb.Execute(func() (actionOutcome, error) {
			return invokeCollaborator(ctx, fn, task.parameters)
		})
		if err != nil {
			outcome = actionOutcome{success: false, result: err.Error()}
		}
		done <- outcome
	}()

	var outcome actionOutcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		outcome = actionOutcome{success: false, result: "timeout"}
	}

	metrics.RecordActionExecuted(string(task.actionType), outcome.success, e.now().Sub(start))
	e.record(task, outcome)
}

// invokeCollaborator calls the external action, converting panics into
// failures so a broken integration never kills a worker.
func invokeCollaborator(ctx context.Context, fn ActionFunc, params map[string]interface{}) (outcome actionOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = actionOutcome{}
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	success, result, rollback, err := fn(ctx, params)
	if err != nil {
		return actionOutcome{}, err
	}
	return actionOutcome{success: success, result: result, rollbackInstructions: rollback}, nil
}

func (e *ActionExecutor) record(task actionTask, outcome actionOutcome) {
	action := ResponseAction{
		ID:         task.actionID,
		Type:       task.actionType,
		Parameters: task.parameters,
		ExecutedAt: e.now(),
		ExecutedBy: task.executedBy,
		Success:    outcome.success,
		Result:     outcome.result,
	}
	if outcome.rollbackInstructions != nil {
		action.RollbackPossible = true
		action.RollbackInstructions = *outcome.rollbackInstructions
	}
	if !e.store.AppendAction(task.alertID, action) {
		logging.Warn().
			Str("alert_id", task.alertID).
			Str("action_id", task.actionID).
			Msg("Action result dropped: alert no longer exists")
	}
}
