// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables. See the package doc for
// the precedence rules.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Security    SecurityConfig    `koanf:"security"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Executor    ExecutorConfig    `koanf:"executor"`
	Notifiers   NotifiersConfig   `koanf:"notifiers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Timeout applies to both read and write on the listener.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development" or "production". Production tightens
	// validation (no wildcard CORS).
	Environment string `koanf:"environment"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// IngestConfig holds event intake settings, including the optional NATS
// consumer for machine-rate feeds.
type IngestConfig struct {
	// BufferSize is the intake queue capacity. Submissions beyond it are
	// rejected rather than blocking producers.
	BufferSize int `koanf:"buffer_size"`

	NATS NATSConfig `koanf:"nats"`
}

// NATSConfig holds settings for the JetStream event consumer and the
// optional embedded server.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	Subject     string `koanf:"subject"`
	StreamName  string `koanf:"stream_name"`
	DurableName string `koanf:"durable_name"`
	QueueGroup  string `koanf:"queue_group"`

	// EmbeddedServer runs an in-process NATS server instead of connecting
	// to an external one.
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
}

// PersistenceConfig holds alert durability settings.
type PersistenceConfig struct {
	// Backend is one of "memory", "badger", or "duckdb".
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

// ExecutorConfig holds response action executor settings.
type ExecutorConfig struct {
	MaxConcurrent  int           `koanf:"max_concurrent"`
	QueueSize      int           `koanf:"queue_size"`
	DefaultTimeout time.Duration `koanf:"default_timeout"`
}

// NotifiersConfig holds outbound notifier definitions.
type NotifiersConfig struct {
	Webhooks []WebhookNotifierConfig `koanf:"webhooks"`
}

// WebhookNotifierConfig defines a single webhook notifier. Structured
// entries like this come from the config file, not the environment.
type WebhookNotifierConfig struct {
	Name          string            `koanf:"name"`
	URL           string            `koanf:"url"`
	Headers       map[string]string `koanf:"headers"`
	MinSeverity   string            `koanf:"min_severity"`
	RatePerSecond float64           `koanf:"rate_per_second"`
	Enabled       bool              `koanf:"enabled"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
