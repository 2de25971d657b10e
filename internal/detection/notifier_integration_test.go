// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

//go:build integration

package detection

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/klaxonhq/klaxon/internal/testinfra"
)

// TestEngine_WebhookDeliveryEndToEnd drives the full detection path: an
// event matches a declarative rule, the resulting alert is delivered to a
// webhook target, and the payload envelope is intact.
func TestEngine_WebhookDeliveryEndToEnd(t *testing.T) {
	target := testinfra.NewWebhookCaptureServer(t)

	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.AddNotifier(NewWebhookNotifier(WebhookConfig{
		Name:    "capture",
		URL:     target.URL(),
		Headers: map[string]string{"Authorization": "Bearer test-token"},
		Enabled: true,
	}))
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	err := engine.RegisterDeclarativeRule(&Rule{
		ID:       "disk-full",
		Name:     "Disk Full",
		Type:     TypeSystem,
		Severity: SeverityCritical,
		Enabled:  true,
	}, &ConditionSpec{Field: "disk.used_pct", Operator: "gte", Value: 95.0})
	if err != nil {
		t.Fatal(err)
	}

	err = engine.SubmitEvent(context.Background(), Event{
		"disk": map[string]interface{}{"used_pct": 98.2},
	}, "node-agent", "corr-int")
	if err != nil {
		t.Fatal(err)
	}

	if !target.WaitForCaptures(1, 10*time.Second) {
		t.Fatal("webhook delivery never arrived")
	}

	capture := target.Captures()[0]
	if capture.Method != http.MethodPost {
		t.Errorf("method = %s", capture.Method)
	}
	if got := capture.Headers.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization = %q", got)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(capture.Body, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.EventType != "alert.created" || payload.Source != "klaxon" {
		t.Errorf("envelope = %+v", payload)
	}
	if payload.Alert.Severity != SeverityCritical {
		t.Errorf("severity = %s", payload.Alert.Severity)
	}
}

// TestEngine_WebhookFailureDoesNotBlockDetection verifies a failing target
// never stalls alert creation.
func TestEngine_WebhookFailureDoesNotBlockDetection(t *testing.T) {
	target := testinfra.NewWebhookCaptureServer(t)
	target.ResponseStatus = http.StatusBadGateway

	engine := NewEngine(EngineConfig{}, nil, nil)
	engine.AddNotifier(NewWebhookNotifier(WebhookConfig{
		Name:    "failing",
		URL:     target.URL(),
		Enabled: true,
	}))
	if err := engine.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer engine.Stop()

	err := engine.RegisterDeclarativeRule(&Rule{
		ID:       "auth-failures",
		Name:     "Auth Failures",
		Type:     TypeSecurity,
		Severity: SeverityHigh,
		Enabled:  true,
	}, &ConditionSpec{Field: "failures", Operator: "gt", Value: 10.0})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		err := engine.SubmitEvent(context.Background(), Event{"failures": 20.0}, "auth-gateway", "")
		if err != nil {
			t.Fatal(err)
		}
	}

	if !target.WaitForCaptures(1, 10*time.Second) {
		t.Fatal("failing target never contacted")
	}
	// Cooldown defaults to zero, so every event fires; the store holds all
	// three alerts regardless of delivery failures.
	deadline := time.Now().Add(5 * time.Second)
	for engine.Store().Statistics().Total < 3 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := engine.Store().Statistics().Total; got != 3 {
		t.Errorf("alerts created = %d, want 3", got)
	}
}
