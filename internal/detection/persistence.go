// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"fmt"
)

// Persistence backend names accepted by NewRepository.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendDuckDB = "duckdb"
)

// PersistenceConfig selects and locates the alert repository backend.
type PersistenceConfig struct {
	Backend string
	Path    string
}

// NewRepository creates the repository for the configured backend. The
// memory backend is a no-op: alerts stay engine-resident and do not
// survive restart, which is an acceptable degraded mode.
func NewRepository(cfg PersistenceConfig) (Repository, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return nil, nil
	case BackendBadger:
		return NewBadgerRepository(cfg.Path)
	case BackendDuckDB:
		return NewDuckDBRepository(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Backend)
	}
}

// NopRepository persists nothing. Useful in tests that want a non-nil
// repository without disk I/O.
type NopRepository struct{}

// Load implements Repository.
func (NopRepository) Load(context.Context) ([]Alert, error) { return nil, nil }

// Persist implements Repository.
func (NopRepository) Persist(context.Context, *Alert) error { return nil }

// Close implements Repository.
func (NopRepository) Close() error { return nil }
