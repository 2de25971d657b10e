// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
)

const alertsSchema = `CREATE TABLE IF NOT EXISTS alerts (
	id VARCHAR PRIMARY KEY,
	type VARCHAR NOT NULL,
	severity VARCHAR NOT NULL,
	title VARCHAR NOT NULL,
	message VARCHAR NOT NULL,
	source VARCHAR NOT NULL,
	created_at TIMESTAMP NOT NULL,
	correlation_id VARCHAR,
	resolved BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at TIMESTAMP,
	resolved_by VARCHAR,
	context JSON,
	tags JSON,
	acknowledged_by JSON,
	response_actions JSON
)`

// DuckDBRepository persists alerts in a DuckDB table. Variable-shaped
// fields (context, tags, acknowledgers, action history) are stored as JSON
// columns; mutations are full-row upserts keyed on the alert id.
type DuckDBRepository struct {
	db *sql.DB
}

// NewDuckDBRepository opens the DuckDB database at path (":memory:" for
// in-memory) and initializes the schema.
func NewDuckDBRepository(path string) (*DuckDBRepository, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.Exec(alertsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init alerts schema: %w", err)
	}
	// Flush the WAL so the schema survives an unclean shutdown.
	if _, err := db.Exec("CHECKPOINT"); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint after schema init: %w", err)
	}
	return &DuckDBRepository{db: db}, nil
}

// Load implements Repository.
func (r *DuckDBRepository) Load(ctx context.Context) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
		id, type, severity, title, message, source, created_at,
		COALESCE(correlation_id, ''), resolved, resolved_at, COALESCE(resolved_by, ''),
		CAST(context AS VARCHAR), CAST(tags AS VARCHAR),
		CAST(acknowledged_by AS VARCHAR), CAST(response_actions AS VARCHAR)
		FROM alerts`)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		a, err := scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}

func scanAlertRow(rows *sql.Rows) (Alert, error) {
	var a Alert
	var resolvedAt sql.NullTime
	var contextJSON, tagsJSON, ackedJSON, actionsJSON sql.NullString

	if err := rows.Scan(
		&a.ID, &a.Type, &a.Severity, &a.Title, &a.Message, &a.Source, &a.Timestamp,
		&a.CorrelationID, &a.Resolved, &resolvedAt, &a.ResolvedBy,
		&contextJSON, &tagsJSON, &ackedJSON, &actionsJSON,
	); err != nil {
		return Alert{}, fmt.Errorf("scan alert row: %w", err)
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if err := unmarshalColumn(contextJSON, &a.Context); err != nil {
		return Alert{}, fmt.Errorf("decode context for %s: %w", a.ID, err)
	}
	if err := unmarshalColumn(tagsJSON, &a.Tags); err != nil {
		return Alert{}, fmt.Errorf("decode tags for %s: %w", a.ID, err)
	}
	if err := unmarshalColumn(ackedJSON, &a.AcknowledgedBy); err != nil {
		return Alert{}, fmt.Errorf("decode acknowledgers for %s: %w", a.ID, err)
	}
	if err := unmarshalColumn(actionsJSON, &a.ResponseActions); err != nil {
		return Alert{}, fmt.Errorf("decode actions for %s: %w", a.ID, err)
	}
	return a, nil
}

func unmarshalColumn(col sql.NullString, dst interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

// Persist implements Repository with delete-then-insert, which DuckDB
// handles atomically inside one transaction.
func (r *DuckDBRepository) Persist(ctx context.Context, alert *Alert) error {
	contextJSON, err := marshalColumn(alert.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	tagsJSON, err := marshalColumn(alert.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	ackedJSON, err := marshalColumn(alert.AcknowledgedBy)
	if err != nil {
		return fmt.Errorf("encode acknowledgers: %w", err)
	}
	actionsJSON, err := marshalColumn(alert.ResponseActions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", alert.ID); err != nil {
		return fmt.Errorf("delete prior row for %s: %w", alert.ID, err)
	}
	var resolvedAt interface{}
	if alert.ResolvedAt != nil {
		resolvedAt = alert.ResolvedAt.UTC()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO alerts
		(id, type, severity, title, message, source, created_at, correlation_id,
		 resolved, resolved_at, resolved_by, context, tags, acknowledged_by, response_actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, string(alert.Type), string(alert.Severity), alert.Title, alert.Message,
		alert.Source, alert.Timestamp.UTC(), alert.CorrelationID,
		alert.Resolved, resolvedAt, alert.ResolvedBy,
		contextJSON, tagsJSON, ackedJSON, actionsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert alert %s: %w", alert.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert for %s: %w", alert.ID, err)
	}
	return nil
}

func marshalColumn(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case map[string]interface{}:
		if x == nil {
			return nil, nil
		}
	case []string:
		if x == nil {
			return nil, nil
		}
	case []ResponseAction:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Close flushes and closes the database.
func (r *DuckDBRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		r.db.Close()
		return fmt.Errorf("checkpoint on close: %w", err)
	}
	return r.db.Close()
}
