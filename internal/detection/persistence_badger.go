// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const alertKeyPrefix = "alert:"

// BadgerRepository persists alerts in a Badger key-value store, one key per
// alert with a JSON value.
type BadgerRepository struct {
	db *badger.DB
}

// NewBadgerRepository opens (or creates) the Badger database at path.
func NewBadgerRepository(path string) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for alerts: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

// Load implements Repository via prefix iteration over alert keys.
func (r *BadgerRepository) Load(_ context.Context) ([]Alert, error) {
	var alerts []Alert
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(alertKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var a Alert
				if err := json.Unmarshal(val, &a); err != nil {
					return fmt.Errorf("unmarshal alert: %w", err)
				}
				alerts = append(alerts, a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	return alerts, nil
}

// Persist implements Repository with a full-value upsert.
func (r *BadgerRepository) Persist(_ context.Context, alert *Alert) error {
	val, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(alertKeyPrefix+alert.ID), val)
	})
	if err != nil {
		return fmt.Errorf("persist alert %s: %w", alert.ID, err)
	}
	return nil
}

// Close implements Repository.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}
