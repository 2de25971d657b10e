// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"sync"
	"time"
)

// Deduplicator enforces per-rule cooldown windows. The check-and-set in
// TryAcquire is the single serialization point that prevents duplicate
// alert storms when the same rule matches on concurrent event streams.
//
// The cooldown key is the rule ID alone, not (rule, source): a rule firing
// for one host suppresses firings for every host until the window expires.
type Deduplicator struct {
	mu            sync.Mutex
	lastTriggered map[string]time.Time
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{lastTriggered: make(map[string]time.Time)}
}

// TryAcquire returns true and atomically records now as the rule's new
// lastTriggeredAt iff the rule is outside its cooldown window. A zero
// cooldown never suppresses.
func (d *Deduplicator) TryAcquire(ruleID string, now time.Time, cooldownMs int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cooldownMs > 0 {
		if last, ok := d.lastTriggered[ruleID]; ok {
			if now.Sub(last) < time.Duration(cooldownMs)*time.Millisecond {
				return false
			}
		}
	}
	d.lastTriggered[ruleID] = now
	return true
}

// LastTriggered returns the last firing time recorded for a rule.
func (d *Deduplicator) LastTriggered(ruleID string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.lastTriggered[ruleID]
	return t, ok
}

// Forget drops cooldown state for a rule, typically on unregister.
func (d *Deduplicator) Forget(ruleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastTriggered, ruleID)
}
