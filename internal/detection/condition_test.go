// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"errors"
	"testing"
)

func TestConditionSpec_Compile(t *testing.T) {
	event := Event{
		"cpu":      map[string]interface{}{"usage": 92.5},
		"status":   "degraded",
		"code":     float64(500),
		"hostname": "web-01.prod.internal",
	}

	tests := []struct {
		name  string
		spec  ConditionSpec
		match bool
	}{
		{"gt match", ConditionSpec{Field: "cpu.usage", Operator: OpGT, Value: 90}, true},
		{"gt no match", ConditionSpec{Field: "cpu.usage", Operator: OpGT, Value: 95}, false},
		{"gte boundary", ConditionSpec{Field: "cpu.usage", Operator: OpGTE, Value: 92.5}, true},
		{"lt match", ConditionSpec{Field: "cpu.usage", Operator: OpLT, Value: 100}, true},
		{"lte boundary", ConditionSpec{Field: "cpu.usage", Operator: OpLTE, Value: 92.5}, true},
		{"eq string", ConditionSpec{Field: "status", Operator: OpEQ, Value: "degraded"}, true},
		{"eq numeric coercion int vs float64", ConditionSpec{Field: "code", Operator: OpEQ, Value: 500}, true},
		{"neq present differing", ConditionSpec{Field: "status", Operator: OpNEQ, Value: "healthy"}, true},
		{"neq present equal", ConditionSpec{Field: "status", Operator: OpNEQ, Value: "degraded"}, false},
		{"neq missing field never matches", ConditionSpec{Field: "absent", Operator: OpNEQ, Value: "x"}, false},
		{"contains match", ConditionSpec{Field: "hostname", Operator: OpContains, Value: "prod"}, true},
		{"contains no match", ConditionSpec{Field: "hostname", Operator: OpContains, Value: "staging"}, false},
		{"contains non-string field", ConditionSpec{Field: "code", Operator: OpContains, Value: "50"}, false},
		{"exists match", ConditionSpec{Field: "cpu.usage", Operator: OpExists}, true},
		{"exists missing", ConditionSpec{Field: "cpu.temp", Operator: OpExists}, false},
		{"missing field numeric", ConditionSpec{Field: "mem.usage", Operator: OpGT, Value: 1}, false},
		{"non-numeric field for numeric op", ConditionSpec{Field: "status", Operator: OpGT, Value: 1}, false},
		{"dot path through non-map", ConditionSpec{Field: "status.sub", Operator: OpExists}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := tt.spec.Compile()
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got := cond(event); got != tt.match {
				t.Errorf("match = %v, want %v", got, tt.match)
			}
		})
	}
}

func TestConditionSpec_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		spec ConditionSpec
	}{
		{"empty field", ConditionSpec{Operator: OpEQ, Value: 1}},
		{"unknown operator", ConditionSpec{Field: "a", Operator: "regex", Value: "x"}},
		{"numeric op with string value", ConditionSpec{Field: "a", Operator: OpGT, Value: "high"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.spec.Compile(); !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}
