// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"fmt"
	"sync"
)

// RuleRegistry holds the set of detection rules. Read-mostly: evaluation
// takes a read lock, registration a write lock. Registration order is
// preserved so listings are deterministic.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string
}

// NewRuleRegistry creates an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: make(map[string]*Rule)}
}

// Register adds a rule, or replaces the rule with the same ID in place
// (retaining its registration-order slot). The rule is validated first.
func (r *RuleRegistry) Register(rule *Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[rule.ID]; !exists {
		r.order = append(r.order, rule.ID)
	}
	r.rules[rule.ID] = rule
	return nil
}

// Unregister removes the rule by ID. Returns ErrRuleNotFound for unknown IDs.
func (r *RuleRegistry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(r.rules, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips a rule's enabled flag. A disabled rule never fires.
func (r *RuleRegistry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	// Rules are immutable once stored so readers never race; replace the
	// stored value instead of mutating in place.
	c := *rule
	c.Enabled = enabled
	r.rules[id] = &c
	return nil
}

// Get returns the rule by ID.
func (r *RuleRegistry) Get(id string) (*Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// List returns all rules in registration order.
func (r *RuleRegistry) List() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rules[id])
	}
	return out
}

// ListEnabled returns enabled rules in registration order.
func (r *RuleRegistry) ListEnabled() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.order))
	for _, id := range r.order {
		if rule := r.rules[id]; rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

// Len returns the number of registered rules.
func (r *RuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

func validateRule(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if rule.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !rule.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, rule.Type)
	}
	if !rule.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRule, rule.Severity)
	}
	if rule.Condition == nil {
		return fmt.Errorf("%w: condition is required", ErrInvalidRule)
	}
	if rule.CooldownMs < 0 {
		return fmt.Errorf("%w: cooldown must be >= 0", ErrInvalidRule)
	}
	return nil
}
