package engine

import (
	"encoding/json"
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

// EvaluateCondition evaluates a condition tree against one entity. It
// is total: absent fields and incomparable values make leaves evaluate
// to a boolean, never an error. Equality never matches an absent
// value, inequality is true for one, and orderings are false.
func EvaluateCondition(c domain.Condition, e *Entity) bool {
	switch cond := c.(type) {
	case domain.GroupCondition:
		return evalGroup(cond, e)
	case domain.FieldCondition:
		return evalLeaf(cond, e)
	default:
		return false
	}
}

func evalGroup(g domain.GroupCondition, e *Entity) bool {
	switch g.Operator {
	case domain.BoolAnd:
		for _, child := range g.Conditions {
			if !EvaluateCondition(child, e) {
				return false
			}
		}
		return true
	case domain.BoolOr:
		for _, child := range g.Conditions {
			if EvaluateCondition(child, e) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalLeaf(c domain.FieldCondition, e *Entity) bool {
	lhs, lok := e.Resolve(c.Field)
	if lok && lhs == nil {
		lok = false
	}

	switch c.Operator {
	case domain.OpIsNull:
		return !lok
	case domain.OpIsNotNull:
		return lok
	}

	rhs, rok := resolveRHS(c, e)

	switch c.Operator {
	case domain.OpEqual:
		return lok && rok && valuesEqual(lhs, rhs)
	case domain.OpNotEqual:
		return !lok || !rok || !valuesEqual(lhs, rhs)
	case domain.OpGreater:
		cmp, ok := compareValues(lhs, rhs, lok, rok)
		return ok && cmp > 0
	case domain.OpGreaterEqual:
		cmp, ok := compareValues(lhs, rhs, lok, rok)
		return ok && cmp >= 0
	case domain.OpLess:
		cmp, ok := compareValues(lhs, rhs, lok, rok)
		return ok && cmp < 0
	case domain.OpLessEqual:
		cmp, ok := compareValues(lhs, rhs, lok, rok)
		return ok && cmp <= 0
	case domain.OpIn:
		return lok && rok && memberOf(lhs, rhs)
	case domain.OpNotIn:
		return !lok || !rok || !memberOf(lhs, rhs)
	default:
		return false
	}
}

// resolveRHS produces the comparison operand: either the static value
// or another field of the same entity, optionally shifted by a time
// offset. An unresolvable reference behaves like an absent value.
func resolveRHS(c domain.FieldCondition, e *Entity) (any, bool) {
	if c.FieldRef == "" {
		return c.Static, c.Static != nil
	}
	v, ok := e.Resolve(c.FieldRef)
	if !ok || v == nil {
		return nil, false
	}
	if c.Offset == nil {
		return v, true
	}
	t, tok := asTime(v)
	if !tok {
		return nil, false
	}
	return t.Add(c.Offset.Duration()).Format(time.RFC3339), true
}

func valuesEqual(a, b any) bool {
	// A multi-valued left side matches when any element matches.
	if list, ok := a.([]any); ok {
		for _, elem := range list {
			if valuesEqual(elem, b) {
				return true
			}
		}
		return false
	}

	if af, aok := asNumber(a); aok {
		if bf, bok := asNumber(b); bok {
			return af == bf
		}
		return false
	}
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			return at.Equal(bt)
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// compareValues orders two resolved values. Numbers order numerically,
// timestamps chronologically; everything else is incomparable and
// yields ok=false, which makes the enclosing ordering operator false.
func compareValues(a, b any, aok, bok bool) (int, bool) {
	if !aok || !bok {
		return 0, false
	}
	if af, ok := asNumber(a); ok {
		bf, ok := asNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	at, aIsTime := asTime(a)
	bt, bIsTime := asTime(b)
	if aIsTime && bIsTime {
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func memberOf(v, set any) bool {
	list, ok := set.([]any)
	if !ok {
		return false
	}
	for _, elem := range list {
		if valuesEqual(v, elem) {
			return true
		}
	}
	return false
}

func asNumber(v any) (float64, bool) {
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
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
