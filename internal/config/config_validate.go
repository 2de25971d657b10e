// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
}

var validPersistenceBackends = map[string]bool{
	"memory": true, "badger": true, "duckdb": true,
}

var validSeverities = map[string]bool{
	"": true, // unset means notify on everything
	"low": true, "medium": true, "high": true, "critical": true,
}

// Validate checks the configuration for values that would make the service
// misbehave at runtime. It returns the first problem found; startup should
// refuse to proceed on any error.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("environment must be development or production, got %q", c.Server.Environment)
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be json or console, got %q", c.Logging.Format)
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}

	if !validPersistenceBackends[c.Persistence.Backend] {
		return fmt.Errorf("persistence backend must be memory, badger, or duckdb, got %q", c.Persistence.Backend)
	}
	if c.Persistence.Backend != "memory" && c.Persistence.Path == "" {
		return fmt.Errorf("persistence path is required for backend %q", c.Persistence.Backend)
	}

	if c.Executor.MaxConcurrent < 1 {
		return fmt.Errorf("executor max_concurrent must be at least 1, got %d", c.Executor.MaxConcurrent)
	}
	if c.Executor.QueueSize < 1 {
		return fmt.Errorf("executor queue_size must be at least 1, got %d", c.Executor.QueueSize)
	}
	if c.Executor.DefaultTimeout <= 0 {
		return fmt.Errorf("executor default_timeout must be positive, got %s", c.Executor.DefaultTimeout)
	}

	return c.validateNotifiers()
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitReqs < 1 && !c.Security.RateLimitDisabled {
		return fmt.Errorf("rate limit requests must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow <= 0 && !c.Security.RateLimitDisabled {
		return fmt.Errorf("rate limit window must be positive, got %s", c.Security.RateLimitWindow)
	}

	// Wildcard CORS is acceptable in development, never in production.
	if c.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}

	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.BufferSize < 1 {
		return fmt.Errorf("intake buffer size must be at least 1, got %d", c.Ingest.BufferSize)
	}

	n := c.Ingest.NATS
	if !n.Enabled {
		return nil
	}
	if n.URL == "" && !n.EmbeddedServer {
		return fmt.Errorf("NATS URL is required when the consumer is enabled without an embedded server")
	}
	if n.Subject == "" {
		return fmt.Errorf("NATS subject is required when the consumer is enabled")
	}
	if n.EmbeddedServer {
		if n.Port < 1 || n.Port > 65535 {
			return fmt.Errorf("embedded NATS port must be between 1 and 65535, got %d", n.Port)
		}
		if n.StoreDir == "" {
			return fmt.Errorf("embedded NATS store_dir is required")
		}
	}

	return nil
}

func (c *Config) validateNotifiers() error {
	seen := make(map[string]bool, len(c.Notifiers.Webhooks))
	for i, wh := range c.Notifiers.Webhooks {
		if wh.Name == "" {
			return fmt.Errorf("webhook notifier %d: name is required", i)
		}
		if seen[wh.Name] {
			return fmt.Errorf("webhook notifier %q: duplicate name", wh.Name)
		}
		seen[wh.Name] = true

		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook notifier %q: invalid URL %q", wh.Name, wh.URL)
		}
		if !validSeverities[wh.MinSeverity] {
			return fmt.Errorf("webhook notifier %q: invalid min_severity %q", wh.Name, wh.MinSeverity)
		}
		if wh.RatePerSecond < 0 {
			return fmt.Errorf("webhook notifier %q: rate_per_second must not be negative", wh.Name)
		}
	}
	return nil
}
