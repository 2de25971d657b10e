// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klaxonhq/klaxon/internal/detection"
)

// RuleRequest is the body for declarative rule registration.
type RuleRequest struct {
	ID          string                   `json:"id" validate:"required,max=128"`
	Name        string                   `json:"name" validate:"required,max=256"`
	Description string                   `json:"description" validate:"max=1024"`
	Type        string                   `json:"type" validate:"required,alerttype"`
	Severity    string                   `json:"severity" validate:"required,severity"`
	Condition   *detection.ConditionSpec `json:"condition" validate:"required"`
	CooldownMs  int64                    `json:"cooldown_ms" validate:"gte=0"`
	Tags        []string                 `json:"tags" validate:"max=32,dive,max=64"`
	Enabled     *bool                    `json:"enabled"`
}

// RulePatchRequest is the body for enable/disable toggling.
type RulePatchRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// Rules lists registered rules in registration order.
//
// @Summary List rules
// @Tags Rules
// @Produce json
// @Success 200 {object} APIResponse{data=[]detection.Rule}
// @Router /rules [get]
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	rules := h.rules.Rules()
	respondList(w, rules, len(rules))
}

// CreateRule registers a declarative rule.
//
// @Summary Register rule
// @Description Registers a rule with a declarative {field, operator, value} condition
// @Tags Rules
// @Accept json
// @Produce json
// @Param body body RuleRequest true "Rule definition"
// @Success 201 {object} APIResponse{data=detection.Rule}
// @Failure 400 {object} APIResponse
// @Router /rules [post]
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule := &detection.Rule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Type:        detection.AlertType(req.Type),
		Severity:    detection.Severity(req.Severity),
		CooldownMs:  req.CooldownMs,
		Tags:        req.Tags,
		Enabled:     enabled,
	}
	if err := h.rules.RegisterDeclarativeRule(rule, req.Condition); err != nil {
		if errors.Is(err, detection.ErrInvalidRule) {
			respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "rule registration failed", err)
		return
	}
	respondData(w, http.StatusCreated, rule)
}

// DeleteRule unregisters a rule.
//
// @Summary Unregister rule
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 "No Content"
// @Failure 404 {object} APIResponse
// @Router /rules/{id} [delete]
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.rules.UnregisterRule(id); err != nil {
		if errors.Is(err, detection.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeRuleNotFound, "rule not found: "+sanitizeLogValue(id), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "rule removal failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PatchRule enables or disables a rule.
//
// @Summary Enable or disable rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param body body RulePatchRequest true "Enabled flag"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Router /rules/{id} [patch]
func (h *Handler) PatchRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RulePatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.rules.SetRuleEnabled(id, *req.Enabled); err != nil {
		if errors.Is(err, detection.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, ErrCodeRuleNotFound, "rule not found: "+sanitizeLogValue(id), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "rule update failed", err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{"id": id, "enabled": *req.Enabled})
}
