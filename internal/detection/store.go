// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klaxonhq/klaxon/internal/logging"
	"github.com/klaxonhq/klaxon/internal/metrics"
)

// shardCount is fixed; alerts hash to shards by fnv of their ID.
const shardCount = 32

// AlertStore holds alert records sharded across fixed buckets. Map access
// takes the shard lock; lifecycle mutations additionally take a per-record
// lock so concurrent acknowledge/resolve/appendAction on the same alert are
// linearizable without a global lock.
type AlertStore struct {
	shards [shardCount]*storeShard
	sink   ChangeSink
	repo   Repository
	now    func() time.Time
}

type storeShard struct {
	mu      sync.RWMutex
	records map[string]*alertRecord
}

type alertRecord struct {
	mu    sync.Mutex
	alert Alert
}

// NewAlertStore creates a store. sink receives one change event per state
// transition; repo, when non-nil, is upserted on every mutation (failures
// are logged and counted, never fatal: memory stays authoritative).
func NewAlertStore(sink ChangeSink, repo Repository) *AlertStore {
	s := &AlertStore{sink: sink, repo: repo, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &storeShard{records: make(map[string]*alertRecord)}
	}
	return s
}

// SetSink replaces the change sink. Intended for wiring at startup, before
// events flow.
func (s *AlertStore) SetSink(sink ChangeSink) {
	s.sink = sink
}

func (s *AlertStore) shardFor(id string) *storeShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

// Restore inserts previously persisted alerts without emitting change
// events or re-persisting. Called once at startup before the sink is live.
func (s *AlertStore) Restore(alerts []Alert) {
	for i := range alerts {
		a := alerts[i].Clone()
		if a.ID == "" {
			continue
		}
		shard := s.shardFor(a.ID)
		shard.mu.Lock()
		shard.records[a.ID] = &alertRecord{alert: a}
		shard.mu.Unlock()
	}
}

// Create materializes an alert from the request: allocates the ID, stamps
// the creation time, stores it, and emits a created event.
func (s *AlertStore) Create(req AlertCreationRequest) Alert {
	alert := Alert{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Severity:      req.Severity,
		Title:         req.Title,
		Message:       req.Message,
		Source:        req.Source,
		Timestamp:     s.now(),
		Context:       req.Context,
		Tags:          req.Tags,
		CorrelationID: req.CorrelationID,
	}

	// The record lock is taken before the insert and held through the
	// created emission, so a mutation that finds the alert concurrently
	// cannot emit its updated event ahead of created.
	rec := &alertRecord{alert: alert}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	shard := s.shardFor(alert.ID)
	shard.mu.Lock()
	shard.records[alert.ID] = rec
	shard.mu.Unlock()

	metrics.RecordAlertCreated(string(alert.Type), string(alert.Severity))
	s.persist(&rec.alert)
	s.emit(ChangeEvent{Kind: ChangeCreated, Alert: rec.alert.Clone()})
	return rec.alert.Clone()
}

// Acknowledge appends actor to the alert's acknowledger set. Idempotent: a
// repeat by the same actor returns true without emitting a second event.
// Returns false for unknown IDs.
func (s *AlertStore) Acknowledge(id, actor string) bool {
	rec := s.lookup(id)
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for _, a := range rec.alert.AcknowledgedBy {
		if a == actor {
			return true
		}
	}
	rec.alert.AcknowledgedBy = append(rec.alert.AcknowledgedBy, actor)

	metrics.RecordAlertAcknowledged()
	s.persist(&rec.alert)
	s.emit(ChangeEvent{Kind: ChangeUpdated, Alert: rec.alert.Clone()})
	return true
}

// Resolve marks the alert resolved. Terminal: returns false if the alert is
// unknown or already resolved, and no fields change on the repeat call.
func (s *AlertStore) Resolve(id, actor string) bool {
	rec := s.lookup(id)
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.alert.Resolved {
		return false
	}
	now := s.now()
	rec.alert.Resolved = true
	rec.alert.ResolvedAt = &now
	rec.alert.ResolvedBy = actor

	metrics.RecordAlertResolved()
	s.persist(&rec.alert)
	s.emit(ChangeEvent{Kind: ChangeUpdated, Alert: rec.alert.Clone()})
	return true
}

// AppendAction appends one response action record to the alert's history.
// Returns false for unknown IDs.
func (s *AlertStore) AppendAction(id string, action ResponseAction) bool {
	rec := s.lookup(id)
	if rec == nil {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.alert.ResponseActions = append(rec.alert.ResponseActions, action)

	s.persist(&rec.alert)
	s.emit(ChangeEvent{Kind: ChangeUpdated, Alert: rec.alert.Clone()})
	return true
}

// Get returns a copy of the alert by ID.
func (s *AlertStore) Get(id string) (Alert, bool) {
	rec := s.lookup(id)
	if rec == nil {
		return Alert{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.alert.Clone(), true
}

// Query returns copies of all alerts matching the filter, newest first.
// The same filter semantics drive broadcast fan-out, so query results and
// subscription deliveries always agree.
func (s *AlertStore) Query(filter *Filter) []Alert {
	var out []Alert
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, rec := range shard.records {
			rec.mu.Lock()
			if filter.Matches(&rec.alert) {
				out = append(out, rec.alert.Clone())
			}
			rec.mu.Unlock()
		}
		shard.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Active returns all unresolved alerts matching the filter.
func (s *AlertStore) Active(filter *Filter) []Alert {
	active := false
	f := Filter{Resolved: &active}
	if filter != nil {
		f = *filter
		f.Resolved = &active
	}
	return s.Query(&f)
}

// Statistics summarizes the current store contents. Average resolution
// time is computed over resolved alerts only.
func (s *AlertStore) Statistics() Statistics {
	stats := Statistics{
		BySeverity: make(map[Severity]int),
		ByType:     make(map[AlertType]int),
		BySource:   make(map[string]int),
	}
	var resolutionSum time.Duration
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, rec := range shard.records {
			rec.mu.Lock()
			a := &rec.alert
			stats.Total++
			stats.BySeverity[a.Severity]++
			stats.ByType[a.Type]++
			stats.BySource[a.Source]++
			if a.Resolved {
				stats.Resolved++
				if a.ResolvedAt != nil {
					resolutionSum += a.ResolvedAt.Sub(a.Timestamp)
				}
			} else {
				stats.Active++
			}
			rec.mu.Unlock()
		}
		shard.mu.RUnlock()
	}
	if stats.Resolved > 0 {
		stats.AverageResolutionTime = resolutionSum / time.Duration(stats.Resolved)
	}
	return stats
}

// Len returns the number of stored alerts.
func (s *AlertStore) Len() int {
	n := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		n += len(shard.records)
		shard.mu.RUnlock()
	}
	return n
}

func (s *AlertStore) lookup(id string) *alertRecord {
	shard := s.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.records[id]
}

// emit delivers one change event to the sink. Called with the record lock
// held so per-alert delivery order matches mutation order.
func (s *AlertStore) emit(ev ChangeEvent) {
	if s.sink != nil {
		s.sink.OnAlertChange(ev)
	}
}

func (s *AlertStore) persist(alert *Alert) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Persist(ctx, alert); err != nil {
		metrics.RecordPersistError()
		logging.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Msg("Alert persist failed")
	}
}
