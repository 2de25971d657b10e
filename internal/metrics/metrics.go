// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event intake metrics
	EventsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_events_submitted_total",
			Help: "Total number of events submitted for evaluation",
		},
		[]string{"source"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_events_dropped_total",
			Help: "Total number of events rejected by the intake",
		},
		[]string{"reason"}, // "capacity", "invalid", "shutdown"
	)

	IntakeQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klaxon_intake_queue_depth",
			Help: "Current number of events buffered in the intake channel",
		},
	)

	// Rule evaluation metrics
	RulesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_rules_evaluated_total",
			Help: "Total number of rule condition evaluations",
		},
		[]string{"rule_id"},
	)

	RulesMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_rules_matched_total",
			Help: "Total number of rule condition matches",
		},
		[]string{"rule_id"},
	)

	RulesSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_rules_suppressed_total",
			Help: "Total number of matches suppressed by cooldown windows",
		},
		[]string{"rule_id"},
	)

	// Alert lifecycle metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_alerts_acknowledged_total",
			Help: "Total number of alert acknowledgements",
		},
	)

	AlertsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_alert_persist_errors_total",
			Help: "Total number of failed alert persistence writes",
		},
	)

	// Response action metrics
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_actions_executed_total",
			Help: "Total number of response action executions",
		},
		[]string{"action_type", "outcome"}, // outcome: "success", "failure"
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klaxon_action_duration_seconds",
			Help:    "Duration of response action executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action_type"},
	)

	ActionQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klaxon_action_queue_depth",
			Help: "Current number of queued response action submissions",
		},
	)

	ActionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klaxon_actions_in_flight",
			Help: "Current number of concurrently executing response actions",
		},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "klaxon_websocket_connections",
			Help: "Current number of live WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klaxon_websocket_messages_sent_total",
			Help: "Total number of messages delivered to WebSocket clients",
		},
		[]string{"type"},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_websocket_messages_dropped_total",
			Help: "Total number of messages dropped due to slow clients",
		},
	)

	// HTTP surface metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klaxon_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// NATS ingest metrics
	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS subjects",
		},
	)

	NATSParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "klaxon_nats_parse_failures_total",
			Help: "Total number of NATS messages dropped as unparseable",
		},
	)
)

// RecordEventSubmitted counts one event handed to the evaluator.
func RecordEventSubmitted(source string) {
	EventsSubmitted.WithLabelValues(source).Inc()
}

// RecordEventDropped counts one event rejected before evaluation.
func RecordEventDropped(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}

// SetIntakeQueueDepth records the current intake buffer occupancy.
func SetIntakeQueueDepth(depth int) {
	IntakeQueueDepth.Set(float64(depth))
}

// RecordRuleEvaluated counts one condition evaluation.
func RecordRuleEvaluated(ruleID string) {
	RulesEvaluated.WithLabelValues(ruleID).Inc()
}

// RecordRuleMatched counts one condition match.
func RecordRuleMatched(ruleID string) {
	RulesMatched.WithLabelValues(ruleID).Inc()
}

// RecordRuleSuppressed counts one match suppressed by cooldown.
func RecordRuleSuppressed(ruleID string) {
	RulesSuppressed.WithLabelValues(ruleID).Inc()
}

// RecordAlertCreated counts one materialized alert.
func RecordAlertCreated(alertType, severity string) {
	AlertsCreated.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertAcknowledged counts one acknowledgement.
func RecordAlertAcknowledged() {
	AlertsAcknowledged.Inc()
}

// RecordAlertResolved counts one resolution.
func RecordAlertResolved() {
	AlertsResolved.Inc()
}

// RecordPersistError counts one failed repository write.
func RecordPersistError() {
	PersistErrors.Inc()
}

// RecordActionExecuted counts one action execution attempt with its
// duration.
func RecordActionExecuted(actionType string, success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	ActionsExecuted.WithLabelValues(actionType, outcome).Inc()
	ActionDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// SetActionQueueDepth records the current action queue occupancy.
func SetActionQueueDepth(depth int) {
	ActionQueueDepth.Set(float64(depth))
}

// RecordActionInFlight adjusts the in-flight execution gauge by delta.
func RecordActionInFlight(delta int) {
	ActionsInFlight.Add(float64(delta))
}

// RecordWSConnect adjusts the live connection gauge by delta (+1 on
// register, -1 on unregister).
func RecordWSConnect(delta int) {
	WSConnections.Add(float64(delta))
}

// RecordWSMessageSent counts one delivered WebSocket message by type.
func RecordWSMessageSent(messageType string) {
	WSMessagesSent.WithLabelValues(messageType).Inc()
}

// RecordWSMessageDropped counts one message dropped for a slow client.
func RecordWSMessageDropped() {
	WSMessagesDropped.Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordNATSConsumed counts one message received from NATS.
func RecordNATSConsumed() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSParseFailed counts one unparseable NATS message.
func RecordNATSParseFailed() {
	NATSParseFailures.Inc()
}
