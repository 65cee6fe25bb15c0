package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Operator is a comparison operator in a filter condition.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpIsNull       Operator = "IS_NULL"
	OpIsNotNull    Operator = "IS_NOT_NULL"
	OpIn           Operator = "IN"
	OpNotIn        Operator = "NOT_IN"
)

// Nullary reports whether the operator takes no right-hand value.
func (o Operator) Nullary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Valid reports whether the operator is one the evaluator understands.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual,
		OpIsNull, OpIsNotNull, OpIn, OpNotIn:
		return true
	}
	return false
}

// BoolOp combines child conditions in a compound condition.
type BoolOp string

const (
	BoolAnd BoolOp = "AND"
	BoolOr  BoolOp = "OR"
)

// OffsetUnit is the unit of a time offset on a field reference.
type OffsetUnit string

const (
	UnitMinutes OffsetUnit = "minutes"
	UnitHours   OffsetUnit = "hours"
	UnitDays    OffsetUnit = "days"
)

// TimeOffset is a signed offset applied to a referenced time value
// before comparison, e.g. "scheduled_earliest + 15 minutes".
type TimeOffset struct {
	Amount float64    `json:"offset"`
	Unit   OffsetUnit `json:"unit"`
}

// Duration converts the offset to a time.Duration.
func (o TimeOffset) Duration() time.Duration {
	switch o.Unit {
	case UnitHours:
		return time.Duration(o.Amount * float64(time.Hour))
	case UnitDays:
		return time.Duration(o.Amount * 24 * float64(time.Hour))
	default:
		return time.Duration(o.Amount * float64(time.Minute))
	}
}

// Condition is a filter expression evaluated against a single entity.
// It is a closed union: FieldCondition (leaf) or GroupCondition (AND/OR).
type Condition interface {
	isCondition()
}

// FieldCondition is a leaf condition comparing one dotted-path field
// against a static literal, another field on the same entity, or
// nothing (IS_NULL / IS_NOT_NULL).
type FieldCondition struct {
	Field    string
	Operator Operator

	// Static is the literal right-hand value. Nil for nullary
	// operators and field references.
	Static any

	// FieldRef references another dotted path on the same entity,
	// optionally shifted by Offset. Empty for static comparisons.
	FieldRef string
	Offset   *TimeOffset
}

func (FieldCondition) isCondition() {}

// GroupCondition combines two or more child conditions with AND or OR.
type GroupCondition struct {
	Operator   BoolOp
	Conditions []Condition
}

func (GroupCondition) isCondition() {}

// And builds an AND group. Convenience for baseline definitions and tests.
func And(conditions ...Condition) Condition {
	return GroupCondition{Operator: BoolAnd, Conditions: conditions}
}

// Or builds an OR group.
func Or(conditions ...Condition) Condition {
	return GroupCondition{Operator: BoolOr, Conditions: conditions}
}

// Where builds a static leaf condition.
func Where(field string, op Operator, value any) Condition {
	return FieldCondition{Field: field, Operator: op, Static: value}
}

// WhereField builds a field-reference leaf condition.
func WhereField(field string, op Operator, ref string, offset *TimeOffset) Condition {
	return FieldCondition{Field: field, Operator: op, FieldRef: ref, Offset: offset}
}

// conditionWire is the JSON shape of a condition, shared by metric
// formula filters and segment rules. It accepts both the compact form
// stored by baseline definitions ({"value": {"field": ..., "offset": ...}})
// and the explicit form emitted by the form builders
// ({"value_type": "field", "value_field": ...}).
type conditionWire struct {
	Type       string            `json:"type,omitempty"`
	Operator   string            `json:"operator,omitempty"`
	Field      string            `json:"field,omitempty"`
	Value      json.RawMessage   `json:"value,omitempty"`
	ValueType  string            `json:"value_type,omitempty"`
	ValueField string            `json:"value_field,omitempty"`
	Offset     *float64          `json:"offset,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
}

// fieldRefValue is the compact field-reference value object.
type fieldRefValue struct {
	Field  string   `json:"field"`
	Offset *float64 `json:"offset,omitempty"`
	Unit   string   `json:"unit,omitempty"`
}

// UnmarshalCondition parses a condition from its wire representation.
func UnmarshalCondition(data []byte) (Condition, error) {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid condition: %w", err)
	}
	return conditionFromWire(&w)
}

func conditionFromWire(w *conditionWire) (Condition, error) {
	lowerType := strings.ToLower(w.Type)
	if len(w.Conditions) > 0 || lowerType == "and" || lowerType == "or" {
		op := BoolAnd
		if lowerType == "or" || strings.EqualFold(w.Operator, "OR") {
			op = BoolOr
		}
		children := make([]Condition, 0, len(w.Conditions))
		for _, raw := range w.Conditions {
			child, err := UnmarshalCondition(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return GroupCondition{Operator: op, Conditions: children}, nil
	}

	leaf := FieldCondition{Field: w.Field, Operator: Operator(w.Operator)}

	if leaf.Operator.Nullary() {
		return leaf, nil
	}

	// Explicit field-reference form takes precedence.
	if w.ValueType == "field" && w.ValueField != "" {
		leaf.FieldRef = w.ValueField
		if w.Offset != nil {
			leaf.Offset = &TimeOffset{Amount: *w.Offset, Unit: offsetUnit(w.Unit)}
		}
		return leaf, nil
	}

	if len(w.Value) > 0 {
		// Compact field-reference form: value is an object with "field".
		var ref fieldRefValue
		if w.Value[0] == '{' && json.Unmarshal(w.Value, &ref) == nil && ref.Field != "" {
			leaf.FieldRef = ref.Field
			if ref.Offset != nil {
				leaf.Offset = &TimeOffset{Amount: *ref.Offset, Unit: offsetUnit(ref.Unit)}
			}
			return leaf, nil
		}

		var static any
		if err := json.Unmarshal(w.Value, &static); err != nil {
			return nil, fmt.Errorf("invalid condition value for field %q: %w", w.Field, err)
		}
		leaf.Static = static
	}

	return leaf, nil
}

func offsetUnit(unit string) OffsetUnit {
	switch OffsetUnit(strings.ToLower(unit)) {
	case UnitHours:
		return UnitHours
	case UnitDays:
		return UnitDays
	default:
		return UnitMinutes
	}
}

// MarshalCondition renders a condition in the canonical wire form.
func MarshalCondition(c Condition) ([]byte, error) {
	return json.Marshal(conditionToWire(c))
}

func conditionToWire(c Condition) map[string]any {
	switch cond := c.(type) {
	case GroupCondition:
		children := make([]map[string]any, 0, len(cond.Conditions))
		for _, child := range cond.Conditions {
			children = append(children, conditionToWire(child))
		}
		return map[string]any{
			"type":       strings.ToLower(string(cond.Operator)),
			"operator":   string(cond.Operator),
			"conditions": children,
		}
	case FieldCondition:
		out := map[string]any{
			"field":    cond.Field,
			"operator": string(cond.Operator),
		}
		switch {
		case cond.Operator.Nullary():
		case cond.FieldRef != "":
			out["value_type"] = "field"
			out["value_field"] = cond.FieldRef
			if cond.Offset != nil {
				out["offset"] = cond.Offset.Amount
				out["unit"] = string(cond.Offset.Unit)
			}
		default:
			out["value_type"] = "static"
			out["value"] = cond.Static
		}
		return out
	default:
		return map[string]any{}
	}
}

// ValidateCondition rejects malformed conditions at definition-save
// time so they are never silently evaluated as false.
func ValidateCondition(c Condition) error {
	switch cond := c.(type) {
	case nil:
		return fmt.Errorf("condition is required")
	case GroupCondition:
		if cond.Operator != BoolAnd && cond.Operator != BoolOr {
			return fmt.Errorf("compound condition: operator must be AND or OR, got %q", cond.Operator)
		}
		if len(cond.Conditions) < 2 {
			return fmt.Errorf("compound condition: at least 2 child conditions required, got %d", len(cond.Conditions))
		}
		for _, child := range cond.Conditions {
			if err := ValidateCondition(child); err != nil {
				return err
			}
		}
		return nil
	case FieldCondition:
		if cond.Field == "" {
			return fmt.Errorf("condition: missing required attribute \"field\"")
		}
		if !cond.Operator.Valid() {
			return fmt.Errorf("condition on %q: unknown operator %q", cond.Field, cond.Operator)
		}
		if cond.Operator.Nullary() {
			return nil
		}
		if cond.Static == nil && cond.FieldRef == "" {
			return fmt.Errorf("condition on %q: missing required attribute \"value\"", cond.Field)
		}
		if cond.Offset != nil && cond.FieldRef == "" {
			return fmt.Errorf("condition on %q: offset requires a field reference", cond.Field)
		}
		if (cond.Operator == OpIn || cond.Operator == OpNotIn) && cond.FieldRef == "" {
			if _, ok := cond.Static.([]any); !ok {
				return fmt.Errorf("condition on %q: %s requires a list value", cond.Field, cond.Operator)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %T", c)
	}
}
