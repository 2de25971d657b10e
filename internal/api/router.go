// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

// Package api provides HTTP routing using Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/klaxonhq/klaxon/internal/middleware"
)

// Router wires handlers and middleware into an HTTP routing tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router from a handler and middleware configuration.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
// This allows the middleware package's wrappers to work with Chi's r.Use().
func chiHandlerFunc(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting (1000/min) allows frequent monitoring
	// while preventing abuse
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Alert Endpoints
	// ========================
	r.Route("/api/v1/alerts", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiHandlerFunc(middleware.PrometheusMetrics))
		r.Use(chiHandlerFunc(middleware.Compression))

		r.Get("/", router.handler.Alerts)
		r.Get("/active", router.handler.ActiveAlerts)
		r.Get("/stats", router.handler.AlertStats)
		r.Get("/{id}", router.handler.Alert)

		r.Post("/{id}/acknowledge", router.handler.AcknowledgeAlert)
		r.Post("/{id}/resolve", router.handler.ResolveAlert)
		r.Post("/{id}/actions", router.handler.SubmitAction)
	})

	// ========================
	// Rule Endpoints
	// ========================
	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiHandlerFunc(middleware.PrometheusMetrics))

		r.Get("/", router.handler.Rules)
		r.Post("/", router.handler.CreateRule)
		r.Delete("/{id}", router.handler.DeleteRule)
		r.Patch("/{id}", router.handler.PatchRule)
	})

	// ========================
	// Event Ingestion
	// ========================
	// Higher rate limit ceiling: feeders submit at machine rates
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitIngest())
		r.Use(APISecurityHeaders())
		r.Use(chiHandlerFunc(middleware.PrometheusMetrics))

		r.Post("/", router.handler.SubmitEvent)
	})

	// ========================
	// Realtime
	// ========================
	// WebSocket upgrade bypasses the response-writing middleware; the hub
	// enforces its own backpressure per connection
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Get("/", router.handler.WebSocket)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}
