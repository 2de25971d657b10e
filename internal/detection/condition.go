// Klaxon - Threat Detection and Alert Notification Engine
// Copyright 2026 Klaxon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/klaxonhq/klaxon

package detection

import (
	"fmt"
	"strings"
)

// ConditionSpec is the declarative condition carried by rules registered
// over the API or from config. Field is a dot path into the event payload
// (e.g. "cpu.usage").
type ConditionSpec struct {
	Field    string      `json:"field" validate:"required"`
	Operator string      `json:"operator" validate:"required,oneof=gt gte lt lte eq neq contains exists"`
	Value    interface{} `json:"value"`
}

// Condition operator names.
const (
	OpGT       = "gt"
	OpGTE      = "gte"
	OpLT       = "lt"
	OpLTE      = "lte"
	OpEQ       = "eq"
	OpNEQ      = "neq"
	OpContains = "contains"
	OpExists   = "exists"
)

// Compile translates the spec into a Condition predicate. Numeric
// comparisons coerce both sides to float64; a missing field or a
// non-coercible value never matches (except neq, which matches when the
// present value differs).
func (s *ConditionSpec) Compile() (Condition, error) {
	if s.Field == "" {
		return nil, fmt.Errorf("%w: condition field is required", ErrInvalidRule)
	}
	path := strings.Split(s.Field, ".")

	switch s.Operator {
	case OpExists:
		return func(event Event) bool {
			_, ok := lookupPath(event, path)
			return ok
		}, nil

	case OpGT, OpGTE, OpLT, OpLTE:
		want, ok := toFloat(s.Value)
		if !ok {
			return nil, fmt.Errorf("%w: operator %q requires a numeric value", ErrInvalidRule, s.Operator)
		}
		op := s.Operator
		return func(event Event) bool {
			raw, ok := lookupPath(event, path)
			if !ok {
				return false
			}
			got, ok := toFloat(raw)
			if !ok {
				return false
			}
			switch op {
			case OpGT:
				return got > want
			case OpGTE:
				return got >= want
			case OpLT:
				return got < want
			default:
				return got <= want
			}
		}, nil

	case OpEQ:
		want := s.Value
		return func(event Event) bool {
			raw, ok := lookupPath(event, path)
			return ok && looseEqual(raw, want)
		}, nil

	case OpNEQ:
		want := s.Value
		return func(event Event) bool {
			raw, ok := lookupPath(event, path)
			return ok && !looseEqual(raw, want)
		}, nil

	case OpContains:
		want := fmt.Sprintf("%v", s.Value)
		return func(event Event) bool {
			raw, ok := lookupPath(event, path)
			if !ok {
				return false
			}
			str, ok := raw.(string)
			return ok && strings.Contains(str, want)
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidRule, s.Operator)
	}
}

// lookupPath walks nested map[string]interface{} values along the dot path.
func lookupPath(event Event, path []string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(event)
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// toFloat coerces JSON-decoded numeric representations to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// looseEqual compares values with numeric coercion so that a config int
// matches a JSON-decoded float64.
func looseEqual(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}
