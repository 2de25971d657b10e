// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package api

import (
	"net/http"
	"time"

	"github.com/klaxonhq/klaxon/internal/detection"
	"github.com/klaxonhq/klaxon/internal/ingest"
	ws "github.com/klaxonhq/klaxon/internal/websocket"
)

// AlertService is the store surface alert endpoints consume.
type AlertService interface {
	Get(id string) (detection.Alert, bool)
	Query(filter *detection.Filter) []detection.Alert
	Active(filter *detection.Filter) []detection.Alert
	Statistics() detection.Statistics
	Acknowledge(id, actor string) bool
	Resolve(id, actor string) bool
}

// RuleService is the engine surface rule endpoints consume.
type RuleService interface {
	Rules() []*detection.Rule
	RegisterDeclarativeRule(rule *detection.Rule, spec *detection.ConditionSpec) error
	UnregisterRule(id string) error
	SetRuleEnabled(id string, enabled bool) error
}

// ActionService submits response actions for execution.
type ActionService interface {
	Submit(alertID string, actionType detection.ResponseActionType, parameters map[string]interface{}, executedBy string, timeout time.Duration) (string, error)
}

// EventService accepts events into the ingest pipeline.
type EventService interface {
	Submit(event *ingest.Event) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	alerts  AlertService
	rules   RuleService
	actions ActionService
	events  EventService
	hub     *ws.Hub

	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates the handler set.
func NewHandler(alerts AlertService, rules RuleService, actions ActionService, events EventService, hub *ws.Hub, corsOrigins []string) *Handler {
	return &Handler{
		alerts:      alerts,
		rules:       rules,
		actions:     actions,
		events:      events,
		hub:         hub,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// healthStatus is the health endpoint payload.
type healthStatus struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ActiveAlerts  int    `json:"active_alerts"`
	RuleCount     int    `json:"rule_count"`
	WSClients     int    `json:"websocket_clients"`
}

// Health reports liveness and component status.
//
// @Summary Service health
// @Description Reports liveness plus active alert, rule, and connection counts
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=healthStatus}
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.alerts.Statistics()
	status := healthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		ActiveAlerts:  stats.Active,
		RuleCount:     len(h.rules.Rules()),
	}
	if h.hub != nil {
		status.WSClients = h.hub.GetClientCount()
	}
	respondData(w, http.StatusOK, status)
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
//
// @Summary Kubernetes liveness probe
// @Description Returns 200 OK if the process is alive, regardless of external dependencies
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse "Service is alive"
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only once the engine and hub are wired and accepting work.
//
// @Summary Kubernetes readiness probe
// @Description Returns 200 OK only if the service is ready to accept events and connections. Returns 503 if not ready.
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse "Service is ready"
// @Failure 503 {object} APIResponse "Service is not ready"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	intakeReady := h.events != nil
	hubReady := h.hub != nil

	ready := intakeReady && hubReady
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	respondData(w, statusCode, map[string]interface{}{
		"intake_ready":   intakeReady,
		"hub_ready":      hubReady,
		"ready_to_serve": ready,
		"uptime":         time.Since(h.startTime).Seconds(),
	})
}
