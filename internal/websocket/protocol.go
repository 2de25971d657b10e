// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package websocket

import (
	"time"

	"github.com/klaxonhq/klaxon/internal/detection"
)

// Client command types.
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandAcknowledge = "acknowledge"
	CommandResolve     = "resolve"
	CommandGetActive   = "get_active"
	CommandGetStats    = "get_stats"
)

// Server message types.
const (
	MessageConnected    = "connected"
	MessageSubscribed   = "subscribed"
	MessageAlert        = "alert"
	MessageAlertUpdate  = "alert_update"
	MessageActiveAlerts = "active_alerts"
	MessageStatistics   = "statistics"
	MessageError        = "error"
)

// Error codes carried by error messages.
const (
	CodeAlertNotFound  = "ALERT_NOT_FOUND"
	CodeInvalidCommand = "INVALID_COMMAND"
)

// Command is one client-to-server message.
type Command struct {
	Type    string            `json:"type"`
	Filters *detection.Filter `json:"filters,omitempty"`
	AlertID string            `json:"alertId,omitempty"`
	UserID  string            `json:"userId,omitempty"`
}

// ServerMessage is one server-to-client message. Fields are populated per
// message type; Timestamp is always set.
type ServerMessage struct {
	Type           string                `json:"type"`
	ConnectionID   string                `json:"connectionId,omitempty"`
	SubscriptionID string                `json:"subscriptionId,omitempty"`
	Alert          *detection.Alert      `json:"alert,omitempty"`
	Alerts         []detection.Alert     `json:"alerts,omitempty"`
	Stats          *detection.Statistics `json:"stats,omitempty"`
	Code           string                `json:"code,omitempty"`
	Message        string                `json:"message,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// newMessage stamps a server message of the given type.
func newMessage(msgType string) ServerMessage {
	return ServerMessage{Type: msgType, Timestamp: time.Now().UTC()}
}

// Subscription is a connection's declared interest filter. Ephemeral:
// created on subscribe, replaced by a repeat subscribe, destroyed on
// unsubscribe or disconnect. Never persisted.
type Subscription struct {
	ID           string
	ConnectionID string
	Filters      *detection.Filter
}

// Matches reports whether the subscription's filters select the alert.
// A subscription with no filters matches every alert.
func (s *Subscription) Matches(alert *detection.Alert) bool {
	if s.Filters == nil {
		return true
	}
	// Lifecycle state never gates live fan-out; subscribers see updates to
	// alerts they saw created, including the resolving transition.
	f := *s.Filters
	f.Resolved = nil
	return f.Matches(alert)
}
