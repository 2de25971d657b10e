// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/klaxonhq/klaxon/internal/ingest"
)

// EventRequest is the body for HTTP event submission.
type EventRequest struct {
	Payload       map[string]interface{} `json:"payload" validate:"required"`
	Source        string                 `json:"source" validate:"required,max=256"`
	CorrelationID string                 `json:"correlation_id" validate:"max=128"`
}

// eventAccepted is the 202 payload for accepted events.
type eventAccepted struct {
	Accepted bool `json:"accepted"`
}

// SubmitEvent accepts one event into the intake.
//
// @Summary Submit event
// @Description Validates and enqueues one event for rule evaluation
// @Tags Events
// @Accept json
// @Produce json
// @Param body body EventRequest true "Event to evaluate"
// @Success 202 {object} APIResponse{data=eventAccepted}
// @Failure 400 {object} APIResponse
// @Failure 429 {object} APIResponse "Intake at capacity"
// @Router /events [post]
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.events.Submit(&ingest.Event{
		Payload:       req.Payload,
		Source:        req.Source,
		CorrelationID: req.CorrelationID,
		ReceivedAt:    time.Now().UTC(),
	})
	switch {
	case err == nil:
		respondData(w, http.StatusAccepted, eventAccepted{Accepted: true})
	case errors.Is(err, ingest.ErrIntakeFull):
		respondError(w, http.StatusTooManyRequests, ErrCodeCapacityExceeded, "event intake at capacity, retry later", nil)
	case errors.Is(err, ingest.ErrIntakeStopped):
		respondError(w, http.StatusServiceUnavailable, ErrCodeShuttingDown, "event intake is shutting down", nil)
	case errors.Is(err, ingest.ErrInvalidEvent):
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "event submission failed", err)
	}
}
