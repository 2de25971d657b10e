// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

/*
Package config provides layered configuration loading using Koanf v2.

Configuration is assembled from three sources in increasing precedence:

 1. Defaults: built-in sensible defaults for every optional setting
 2. Config file: optional YAML file (config.yaml, or CONFIG_PATH)
 3. Environment variables: override any scalar setting

Environment variables use flat names (HTTP_PORT, LOG_LEVEL, NATS_URL) that
are mapped to nested config paths by an explicit table, so stray variables
in the process environment never leak into the configuration. List-valued
settings (CORS origins) accept comma-separated values from the environment.
Webhook notifier definitions are structured and therefore file-only.

Example:

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    // refuse to start on invalid configuration
	}
*/
package config
