// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

//go:build integration

package testinfra

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// WebhookCapture is one recorded delivery from a notifier under test.
type WebhookCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// WebhookCaptureServer records every alert delivery a webhook notifier
// makes so tests can assert on payloads, headers, and retry behavior.
type WebhookCaptureServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []WebhookCapture

	// ResponseStatus is the HTTP status to return (default 200). Set a 5xx
	// to exercise the notifier's failure and breaker paths.
	ResponseStatus int

	// ResponseFunc overrides the canned response when non-nil.
	ResponseFunc func(w http.ResponseWriter, r *http.Request)
}

// NewWebhookCaptureServer starts the capture server; it is closed via
// t.Cleanup.
func NewWebhookCaptureServer(t *testing.T) *WebhookCaptureServer {
	t.Helper()

	s := &WebhookCaptureServer{ResponseStatus: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			_ = r.Body.Close()
		}

		s.mu.Lock()
		s.captures = append(s.captures, WebhookCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		s.mu.Unlock()

		if s.ResponseFunc != nil {
			s.ResponseFunc(w, r)
			return
		}
		w.WriteHeader(s.ResponseStatus)
	}))
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the server URL to configure as a webhook target.
func (s *WebhookCaptureServer) URL() string {
	return s.Server.URL
}

// Captures returns a copy of all recorded deliveries.
func (s *WebhookCaptureServer) Captures() []WebhookCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookCapture, len(s.captures))
	copy(out, s.captures)
	return out
}

// Reset clears recorded deliveries.
func (s *WebhookCaptureServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = nil
}

// WaitForCaptures waits until at least n deliveries arrive or the timeout
// elapses, returning whether the threshold was reached.
func (s *WebhookCaptureServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		count := len(s.captures)
		s.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}
