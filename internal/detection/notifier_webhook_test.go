// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

func TestWebhookNotifier_DeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotHeaders = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		Name:    "pager",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Enabled: true,
	})

	alert := Alert{ID: "a1", Type: TypeSecurity, Severity: SeverityCritical, Title: "breach"}
	if err := n.Send(context.Background(), &alert); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	var payload WebhookPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if payload.EventType != "alert.created" || payload.Source != "klaxon" {
		t.Errorf("unexpected envelope: %+v", payload)
	}
	if payload.Alert == nil || payload.Alert.ID != "a1" {
		t.Error("alert missing from payload")
	}
	if gotHeaders.Get("Authorization") != "Bearer tok" {
		t.Error("configured header not sent")
	}
	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Error("content type not set")
	}
}

func TestWebhookNotifier_MinSeverityGate(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		Name:        "pager",
		URL:         srv.URL,
		MinSeverity: SeverityHigh,
		Enabled:     true,
	})

	low := Alert{ID: "a1", Severity: SeverityLow}
	if err := n.Send(context.Background(), &low); err != nil {
		t.Fatalf("below-threshold send must be a silent skip, got %v", err)
	}
	high := Alert{ID: "a2", Severity: SeverityHigh}
	if err := n.Send(context.Background(), &high); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{Name: "pager", URL: srv.URL, Enabled: true})
	alert := Alert{ID: "a1", Severity: SeverityHigh}
	if err := n.Send(context.Background(), &alert); err == nil {
		t.Fatal("expected error on 5xx response")
	}
}

func TestWebhookNotifier_BreakerOpensAfterFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{Name: "pager", URL: srv.URL, Enabled: true})
	alert := Alert{ID: "a1", Severity: SeverityHigh}
	for i := 0; i < 5; i++ {
		if err := n.Send(context.Background(), &alert); err == nil {
			t.Fatal("expected delivery failure")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	// Breaker trips at 3 consecutive failures; later sends fail fast
	// without reaching the endpoint.
	if calls >= 5 {
		t.Errorf("breaker never opened: endpoint hit %d times", calls)
	}
}

func TestWebhookNotifier_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  WebhookConfig
		want bool
	}{
		{"enabled with url", WebhookConfig{Enabled: true, URL: "http://x"}, true},
		{"disabled", WebhookConfig{Enabled: false, URL: "http://x"}, false},
		{"enabled without url", WebhookConfig{Enabled: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewWebhookNotifier(tt.cfg).Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebhookNotifier_DefaultName(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{URL: "http://x"})
	if n.Name() != "webhook" {
		t.Errorf("Name() = %q, want %q", n.Name(), "webhook")
	}
}
