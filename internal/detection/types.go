// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"time"
)

// AlertType categorizes what kind of condition a rule detects.
type AlertType string

// Alert type constants.
const (
	TypeError       AlertType = "error"
	TypePerformance AlertType = "performance"
	TypeSecurity    AlertType = "security"
	TypeHealth      AlertType = "health"
	TypeBusiness    AlertType = "business"
	TypeSystem      AlertType = "system"
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case TypeError, TypePerformance, TypeSecurity, TypeHealth, TypeBusiness, TypeSystem:
		return true
	}
	return false
}

// Severity indicates alert urgency.
type Severity string

// Severity levels ordered from least to most urgent.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank maps severities to a comparable order for minimum-severity
// gating in notifiers.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at or above min in urgency.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Event is the payload a rule condition inspects. The core imposes no
// schema beyond what individual conditions look up.
type Event map[string]interface{}

// Condition is a pure predicate over an event payload. Conditions must not
// perform I/O; a panicking condition is isolated by the Evaluator and
// treated as non-matching.
type Condition func(event Event) bool

// MessageTemplate renders the alert message for a matched event.
type MessageTemplate func(event Event) string

// Rule maps a condition to an alert severity with cooldown-based
// deduplication. Immutable after registration except for the Enabled flag
// and cooldown bookkeeping held by the Deduplicator.
type Rule struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Type            AlertType       `json:"type"`
	Severity        Severity        `json:"severity"`
	Condition       Condition       `json:"-"`
	Template        MessageTemplate `json:"-"`
	CooldownMs      int64           `json:"cooldown_ms"`
	Tags            []string        `json:"tags,omitempty"`
	Enabled         bool            `json:"enabled"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`

	// Spec is retained for rules registered declaratively so they can be
	// listed back over the API. Nil for Go-predicate rules.
	Spec *ConditionSpec `json:"condition,omitempty"`
}

// ResponseActionType identifies an automated remediation.
type ResponseActionType string

// Supported response action types.
const (
	ActionBlockIP       ResponseActionType = "block_ip"
	ActionDisableUser   ResponseActionType = "disable_user"
	ActionIsolateSystem ResponseActionType = "isolate_system"
	ActionRotateKeys    ResponseActionType = "rotate_keys"
	ActionNotifyAdmin   ResponseActionType = "notify_admin"
	ActionCreateTicket  ResponseActionType = "create_ticket"
	ActionBackupData    ResponseActionType = "backup_data"
)

// Valid reports whether t is a known response action type.
func (t ResponseActionType) Valid() bool {
	switch t {
	case ActionBlockIP, ActionDisableUser, ActionIsolateSystem, ActionRotateKeys,
		ActionNotifyAdmin, ActionCreateTicket, ActionBackupData:
		return true
	}
	return false
}

// ResponseAction records one automated remediation attempt against an
// incident. Records are append-only: a retry produces a new entry rather
// than mutating a prior one.
type ResponseAction struct {
	ID                   string                 `json:"id"`
	Type                 ResponseActionType     `json:"type"`
	Parameters           map[string]interface{} `json:"parameters,omitempty"`
	ExecutedAt           time.Time              `json:"executed_at"`
	ExecutedBy           string                 `json:"executed_by"`
	Success              bool                   `json:"success"`
	Result               string                 `json:"result,omitempty"`
	RollbackPossible     bool                   `json:"rollback_possible"`
	RollbackInstructions string                 `json:"rollback_instructions,omitempty"`
}

// Alert is a lifecycle-tracked record of a detected condition. An Alert
// carrying response actions is an incident.
type Alert struct {
	ID              string                 `json:"id"`
	Type            AlertType              `json:"type"`
	Severity        Severity               `json:"severity"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	Source          string                 `json:"source"`
	Timestamp       time.Time              `json:"timestamp"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	CorrelationID   string                 `json:"correlation_id,omitempty"`
	Resolved        bool                   `json:"resolved"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy      string                 `json:"resolved_by,omitempty"`
	AcknowledgedBy  []string               `json:"acknowledged_by,omitempty"`
	ResponseActions []ResponseAction       `json:"response_actions,omitempty"`
}

// Clone returns a deep copy so callers can hand alerts across goroutines
// without racing on the slices and context map.
func (a *Alert) Clone() Alert {
	c := *a
	if a.Context != nil {
		c.Context = make(map[string]interface{}, len(a.Context))
		for k, v := range a.Context {
			c.Context[k] = v
		}
	}
	c.Tags = append([]string(nil), a.Tags...)
	c.AcknowledgedBy = append([]string(nil), a.AcknowledgedBy...)
	c.ResponseActions = append([]ResponseAction(nil), a.ResponseActions...)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// AlertCreationRequest is the Evaluator's output: everything needed to
// materialize an Alert except the ID and timestamp, which the store stamps.
type AlertCreationRequest struct {
	Type          AlertType              `json:"type"`
	Severity      Severity               `json:"severity"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Source        string                 `json:"source"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Filter selects alerts by attribute. Categories are conjunctive across and
// disjunctive within: an alert matches when every non-empty category
// contains at least one of the alert's values. An empty filter matches
// everything.
type Filter struct {
	Types      []AlertType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	Sources    []string    `json:"sources,omitempty"`
	Tags       []string    `json:"tags,omitempty"`

	// Resolved narrows by lifecycle state when non-nil.
	Resolved *bool `json:"resolved,omitempty"`
}

// Matches reports whether the alert satisfies every filter category.
func (f *Filter) Matches(a *Alert) bool {
	if f == nil {
		return true
	}
	if len(f.Types) > 0 && !containsType(f.Types, a.Type) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, a.Severity) {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, a.Source) {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, a.Tags) {
		return false
	}
	if f.Resolved != nil && a.Resolved != *f.Resolved {
		return false
	}
	return true
}

func containsType(set []AlertType, v AlertType) bool {
	for _, t := range set {
		if t == v {
			return true
		}
	}
	return false
}

func containsSeverity(set []Severity, v Severity) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}

// Statistics summarizes the store's current contents.
type Statistics struct {
	Total                 int                  `json:"total"`
	Active                int                  `json:"active"`
	Resolved              int                  `json:"resolved"`
	BySeverity            map[Severity]int     `json:"by_severity"`
	ByType                map[AlertType]int    `json:"by_type"`
	BySource              map[string]int       `json:"by_source"`
	AverageResolutionTime time.Duration        `json:"average_resolution_time_ns"`
}

// ChangeKind distinguishes store change events.
type ChangeKind string

// Change event kinds as seen by broadcast sinks.
const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// ChangeEvent is emitted by the store on every externally visible state
// transition, exactly once per transition.
type ChangeEvent struct {
	Kind  ChangeKind
	Alert Alert
}

// ChangeSink receives store change events. Implementations must not block;
// the store calls OnAlertChange synchronously from the mutating goroutine.
type ChangeSink interface {
	OnAlertChange(ev ChangeEvent)
}

// ChangeSinkFunc adapts a function to the ChangeSink interface.
type ChangeSinkFunc func(ev ChangeEvent)

// OnAlertChange implements ChangeSink.
func (f ChangeSinkFunc) OnAlertChange(ev ChangeEvent) { f(ev) }

// Repository persists alerts across restarts. Implementations must be safe
// for concurrent Persist calls.
type Repository interface {
	// Load returns all persisted alerts at startup.
	Load(ctx context.Context) ([]Alert, error)
	// Persist upserts one alert after a mutation.
	Persist(ctx context.Context, alert *Alert) error
	// Close releases backend resources.
	Close() error
}

// Notifier delivers created alerts to an external channel (webhook, chat).
// Send failures are logged by the engine, never propagated.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, alert *Alert) error
}

// ActionFunc is one external action collaborator. Implementations must be
// safe for concurrent invocation; panics are caught by the executor and
// converted into failed ResponseActions.
type ActionFunc func(ctx context.Context, params map[string]interface{}) (success bool, result string, rollbackInstructions *string, err error)
