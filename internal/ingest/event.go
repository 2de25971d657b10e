// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package ingest

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Event is one structured record submitted for evaluation. The payload is
// an arbitrary JSON object; the core enforces no schema beyond what rule
// conditions inspect.
type Event struct {
	Payload       map[string]interface{} `json:"payload"`
	Source        string                 `json:"source"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	ReceivedAt    time.Time              `json:"received_at"`
}

// Validate checks the fields every path requires.
func (e *Event) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidEvent)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidEvent)
	}
	return nil
}

// Marshal serializes the event for the internal topic and NATS subjects.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes one event, stamping ReceivedAt when the producer
// left it zero.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	return &e, nil
}
