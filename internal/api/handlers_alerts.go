// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/klaxonhq/klaxon/internal/detection"
)

// AcknowledgeRequest is the body for alert acknowledgement.
type AcknowledgeRequest struct {
	UserID string `json:"user_id" validate:"required,max=256"`
}

// ResolveRequest is the body for alert resolution.
type ResolveRequest struct {
	UserID string `json:"user_id" validate:"required,max=256"`
}

// ActionRequest is the body for response action submission.
type ActionRequest struct {
	Type       string                 `json:"type" validate:"required,actiontype"`
	Parameters map[string]interface{} `json:"parameters"`
	ExecutedBy string                 `json:"executed_by" validate:"required,max=256"`
	TimeoutMs  int64                  `json:"timeout_ms" validate:"gte=0"`
}

// actionAccepted is the response payload for accepted action submissions.
type actionAccepted struct {
	ActionID string `json:"action_id"`
	AlertID  string `json:"alert_id"`
	Status   string `json:"status"`
}

// parseAlertFilter builds a detection filter from list query parameters.
func parseAlertFilter(r *http.Request) *detection.Filter {
	q := r.URL.Query()
	filter := &detection.Filter{
		Sources: parseCommaSeparated(q.Get("sources")),
		Tags:    parseCommaSeparated(q.Get("tags")),
	}
	for _, t := range parseCommaSeparated(q.Get("types")) {
		filter.Types = append(filter.Types, detection.AlertType(t))
	}
	for _, s := range parseCommaSeparated(q.Get("severities")) {
		filter.Severities = append(filter.Severities, detection.Severity(s))
	}
	if v := q.Get("resolved"); v != "" {
		if resolved, err := strconv.ParseBool(v); err == nil {
			filter.Resolved = &resolved
		}
	}
	return filter
}

// paginate slices the alert list by limit/offset query parameters.
func paginate(alerts []detection.Alert, r *http.Request) []detection.Alert {
	offset := getIntParam(r, "offset", 0)
	limit := getIntParam(r, "limit", 100)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset >= len(alerts) {
		return []detection.Alert{}
	}
	end := offset + limit
	if end > len(alerts) {
		end = len(alerts)
	}
	return alerts[offset:end]
}

// Alerts lists alerts matching the query filters.
//
// @Summary List alerts
// @Description Lists alerts filtered by types, severities, sources, tags, and resolution state
// @Tags Alerts
// @Produce json
// @Param types query string false "Comma-separated alert types"
// @Param severities query string false "Comma-separated severities"
// @Param sources query string false "Comma-separated sources"
// @Param tags query string false "Comma-separated tags"
// @Param resolved query bool false "Resolution state"
// @Param limit query int false "Page size (default 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} APIResponse{data=[]detection.Alert}
// @Router /alerts [get]
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.alerts.Query(parseAlertFilter(r))
	page := paginate(alerts, r)
	respondList(w, page, len(page))
}

// ActiveAlerts lists unresolved alerts matching the query filters.
//
// @Summary List active alerts
// @Tags Alerts
// @Produce json
// @Success 200 {object} APIResponse{data=[]detection.Alert}
// @Router /alerts/active [get]
func (h *Handler) ActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.alerts.Active(parseAlertFilter(r))
	page := paginate(alerts, r)
	respondList(w, page, len(page))
}

// AlertStats returns aggregate alert statistics.
//
// @Summary Alert statistics
// @Tags Alerts
// @Produce json
// @Success 200 {object} APIResponse{data=detection.Statistics}
// @Router /alerts/stats [get]
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.alerts.Statistics())
}

// Alert returns one alert by ID.
//
// @Summary Get alert
// @Tags Alerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 200 {object} APIResponse{data=detection.Alert}
// @Failure 404 {object} APIResponse
// @Router /alerts/{id} [get]
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert, ok := h.alerts.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeAlertNotFound, "alert not found: "+sanitizeLogValue(id), nil)
		return
	}
	respondData(w, http.StatusOK, alert)
}

// AcknowledgeAlert marks an alert as seen by an actor.
//
// @Summary Acknowledge alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param body body AcknowledgeRequest true "Acknowledging actor"
// @Success 200 {object} APIResponse{data=detection.Alert}
// @Failure 404 {object} APIResponse
// @Router /alerts/{id}/acknowledge [post]
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AcknowledgeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.alerts.Acknowledge(id, req.UserID) {
		respondError(w, http.StatusNotFound, ErrCodeAlertNotFound, "alert not found: "+sanitizeLogValue(id), nil)
		return
	}
	alert, _ := h.alerts.Get(id)
	respondData(w, http.StatusOK, alert)
}

// ResolveAlert resolves an alert. Resolution is terminal; resolving an
// already-resolved alert returns 404 with ALERT_NOT_FOUND semantics
// distinct from the unknown-ID case only in the message.
//
// @Summary Resolve alert
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param body body ResolveRequest true "Resolving actor"
// @Success 200 {object} APIResponse{data=detection.Alert}
// @Failure 404 {object} APIResponse
// @Router /alerts/{id}/resolve [post]
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ResolveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.alerts.Resolve(id, req.UserID) {
		respondError(w, http.StatusNotFound, ErrCodeAlertNotFound,
			"alert not found or already resolved: "+sanitizeLogValue(id), nil)
		return
	}
	alert, _ := h.alerts.Get(id)
	respondData(w, http.StatusOK, alert)
}

// SubmitAction queues a response action against an alert.
//
// @Summary Submit response action
// @Tags Alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param body body ActionRequest true "Action to execute"
// @Success 202 {object} APIResponse{data=actionAccepted}
// @Failure 404 {object} APIResponse
// @Failure 429 {object} APIResponse "Action queue full"
// @Router /alerts/{id}/actions [post]
func (h *Handler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	actionID, err := h.actions.Submit(
		id,
		detection.ResponseActionType(req.Type),
		req.Parameters,
		req.ExecutedBy,
		time.Duration(req.TimeoutMs)*time.Millisecond,
	)
	switch {
	case err == nil:
		respondData(w, http.StatusAccepted, actionAccepted{
			ActionID: actionID,
			AlertID:  id,
			Status:   "queued",
		})
	case errors.Is(err, detection.ErrAlertNotFound):
		respondError(w, http.StatusNotFound, ErrCodeAlertNotFound, "alert not found: "+sanitizeLogValue(id), nil)
	case errors.Is(err, detection.ErrQueueFull):
		respondError(w, http.StatusTooManyRequests, ErrCodeCapacityExceeded, "action queue full, retry later", nil)
	case errors.Is(err, detection.ErrShuttingDown):
		respondError(w, http.StatusServiceUnavailable, ErrCodeShuttingDown, "engine is shutting down", nil)
	case errors.Is(err, detection.ErrUnknownActionType):
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown action type: "+sanitizeLogValue(req.Type), nil)
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "action submission failed", err)
	}
}
