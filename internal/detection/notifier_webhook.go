// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/klaxonhq/klaxon/internal/logging"
)

// WebhookConfig configures a webhook notifier.
type WebhookConfig struct {
	// Name distinguishes multiple webhook targets in logs.
	Name string
	// URL receives the POSTed payload.
	URL string
	// Headers are added to every request (e.g. auth tokens).
	Headers map[string]string
	// MinSeverity gates delivery; alerts below it are skipped silently.
	MinSeverity Severity
	// RatePerSecond caps outbound requests; 0 means unlimited.
	RatePerSecond float64
	// Enabled toggles the notifier without unregistering it.
	Enabled bool
}

// WebhookPayload is the JSON body delivered to webhook endpoints.
type WebhookPayload struct {
	Alert     *Alert    `json:"alert"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// WebhookNotifier delivers created alerts to an external HTTP endpoint.
// Delivery is rate limited and breaker-protected so a dead endpoint cannot
// back up the engine's notify fan-out.
type WebhookNotifier struct {
	cfg     WebhookConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a webhook notifier. The HTTP client carries a
// 10 second timeout independent of the caller's context.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Name == "" {
		cfg.Name = "webhook"
	}
	if cfg.MinSeverity == "" {
		cfg.MinSeverity = SeverityLow
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &WebhookNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "notifier-" + cfg.Name,
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("notifier", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Webhook circuit breaker state change")
			},
		}),
	}
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return w.cfg.Name }

// Enabled implements Notifier.
func (w *WebhookNotifier) Enabled() bool { return w.cfg.Enabled && w.cfg.URL != "" }

// Send implements Notifier. Alerts below the configured minimum severity
// are skipped without error.
func (w *WebhookNotifier) Send(ctx context.Context, alert *Alert) error {
	if !alert.Severity.AtLeast(w.cfg.MinSeverity) {
		return nil
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit wait: %w", err)
	}

	payload := WebhookPayload{
		Alert:     alert,
		EventType: "alert.created",
		Timestamp: time.Now().UTC(),
		Source:    "klaxon",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("webhook delivery to %s: %w", w.cfg.Name, err)
	}
	return nil
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Klaxon-Webhook/1.0")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
