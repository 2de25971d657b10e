// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a
// thread-safe singleton validator instance with user-friendly error
// messages. It integrates with the API error format for consistent error
// responses.
//
// # Quick Start
//
//	type AcknowledgeRequest struct {
//	    UserID string `json:"user_id" validate:"required,max=256"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req AcknowledgeRequest
//	    // ... decode ...
//	    if err := validation.ValidateStruct(&req); err != nil {
//	        apiErr := err.ToAPIError()
//	        // respond with 400 and apiErr.Message / apiErr.Details
//	        return
//	    }
//	}
//
// Validation happens through struct tags, so request types in the api
// package declare their constraints declaratively (required, oneof enums
// for alert types and severities, numeric bounds for timeouts).
package validation
