package filter

import (
	"errors"
	"fmt"
)

// ErrFilterError is returned for a malformed filter: an operator object
// containing an unrecognized key or more than one operator, or an operator
// whose payload has the wrong type.
var ErrFilterError = errors.New("filter: malformed condition")

// Op identifies a filter comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpExists
)

var opNames = map[string]Op{
	"$eq":     OpEq,
	"$ne":     OpNe,
	"$gt":     OpGt,
	"$gte":    OpGte,
	"$lt":     OpLt,
	"$lte":    OpLte,
	"$in":     OpIn,
	"$nin":    OpNin,
	"$exists": OpExists,
}

// Condition is one field-level predicate: a sum type over the supported
// operators. Exactly one of the payload fields is meaningful, selected by
// Op. Evaluation (see evaluate) is a switch over Op, not string-keyed
// dispatch; a Condition whose Op is outside the defined set matches nothing.
type Condition struct {
	Op     Op
	Value  Value   // for Eq, Ne, Gt, Gte, Lt, Lte
	Values []Value // for In, Nin
	Exists bool    // for Exists
}

// Eq builds an equality condition.
func Eq(v Value) Condition { return Condition{Op: OpEq, Value: v} }

// Ne builds a not-equal condition.
func Ne(v Value) Condition { return Condition{Op: OpNe, Value: v} }

// Gt builds a greater-than condition.
func Gt(v Value) Condition { return Condition{Op: OpGt, Value: v} }

// Gte builds a greater-than-or-equal condition.
func Gte(v Value) Condition { return Condition{Op: OpGte, Value: v} }

// Lt builds a less-than condition.
func Lt(v Value) Condition { return Condition{Op: OpLt, Value: v} }

// Lte builds a less-than-or-equal condition.
func Lte(v Value) Condition { return Condition{Op: OpLte, Value: v} }

// In builds a membership condition.
func In(vs []Value) Condition { return Condition{Op: OpIn, Values: vs} }

// Nin builds a negated-membership condition.
func Nin(vs []Value) Condition { return Condition{Op: OpNin, Values: vs} }

// Exists builds a key-presence condition.
func Exists(want bool) Condition { return Condition{Op: OpExists, Exists: want} }

// Filter is a mapping from metadata field name to the condition it must
// satisfy. Multiple keys are conjoined (logical AND); there is no
// disjunction or nesting beyond the single operator object per key, per
// spec.
type Filter map[string]Condition

// FromMap builds a Filter from the dictionary-of-conditions wire shape:
// a plain scalar means equality, an operator object (map with $-prefixed
// keys) maps 1:1 onto Condition. Unknown operator keys return
// ErrFilterError rather than being silently ignored, a deliberate,
// documented choice (see DESIGN.md). An operator object holds a single
// operator: one with several operators is rejected with ErrFilterError, and
// an empty one places no constraint on its field.
func FromMap(raw map[string]any) (Filter, error) {
	out := make(Filter, len(raw))
	for field, rawCond := range raw {
		if m, ok := rawCond.(map[string]any); ok && len(m) == 0 {
			continue
		}
		cond, err := conditionFromAny(rawCond)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		out[field] = cond
	}
	return out, nil
}

func conditionFromAny(raw any) (Condition, error) {
	asMap, ok := raw.(map[string]any)
	if !ok {
		// Bare scalar: exact equality.
		return Eq(FromAny(raw)), nil
	}

	// An operator object may only contain recognized operator keys, and
	// exactly one of them: a Condition stores a single operator.
	for key := range asMap {
		if _, known := opNames[key]; !known {
			return Condition{}, fmt.Errorf("%w: unknown operator %q", ErrFilterError, key)
		}
	}
	if len(asMap) > 1 {
		return Condition{}, fmt.Errorf("%w: one operator per field, got %d", ErrFilterError, len(asMap))
	}
	for key, val := range asMap {
		op := opNames[key]
		switch op {
		case OpIn, OpNin:
			items, ok := val.([]any)
			if !ok {
				return Condition{}, fmt.Errorf("%w: %q requires a list", ErrFilterError, key)
			}
			vals := make([]Value, len(items))
			for i, it := range items {
				vals[i] = FromAny(it)
			}
			return Condition{Op: op, Values: vals}, nil
		case OpExists:
			b, ok := val.(bool)
			if !ok {
				return Condition{}, fmt.Errorf("%w: %q requires a bool", ErrFilterError, key)
			}
			return Condition{Op: op, Exists: b}, nil
		default:
			return Condition{Op: op, Value: FromAny(val)}, nil
		}
	}
	// Empty operator object: FromMap drops such fields before calling here;
	// on its own this condition requires only that the key be present.
	return Condition{Op: OpExists, Exists: true}, nil
}

// Matches reports whether metadata satisfies f in its entirety (logical
// AND across all fields).
func (f Filter) Matches(metadata Metadata) bool {
	for field, cond := range f {
		val, present := metadata[field]
		if !evaluate(cond, val, present) {
			return false
		}
	}
	return true
}

// evaluate applies a single Condition to one field's (possibly absent)
// value. A key whose metadata value is absent fails the condition for any
// operator except $exists, per spec.
func evaluate(cond Condition, val Value, present bool) bool {
	switch cond.Op {
	case OpExists:
		return present == cond.Exists
	}

	if !present {
		return false
	}

	switch cond.Op {
	case OpEq:
		return val.Equal(cond.Value)
	case OpNe:
		return !val.Equal(cond.Value)
	case OpGt:
		r, ok := val.Compare(cond.Value)
		return ok && r > 0
	case OpGte:
		r, ok := val.Compare(cond.Value)
		return ok && r >= 0
	case OpLt:
		r, ok := val.Compare(cond.Value)
		return ok && r < 0
	case OpLte:
		r, ok := val.Compare(cond.Value)
		return ok && r <= 0
	case OpIn:
		for _, want := range cond.Values {
			if val.Equal(want) {
				return true
			}
		}
		return false
	case OpNin:
		for _, want := range cond.Values {
			if val.Equal(want) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
