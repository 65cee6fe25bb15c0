package engine

import (
	"github.com/openfreight/milepost/internal/domain"
)

// Result is the outcome of a formula evaluation. Undefined results
// (zero matching records for an average, zero denominator for a ratio)
// carry Defined=false instead of NaN or Infinity.
type Result struct {
	Value   float64
	Defined bool
}

// Defined wraps a concrete value.
func Defined(v float64) Result {
	return Result{Value: v, Defined: true}
}

// Undefined is the sentinel for results that have no numeric meaning.
var Undefined = Result{}

// EntityFilter narrows an entity collection before aggregation; the
// engine uses it to apply segment inclusion and exclusion rules.
type EntityFilter func(kind domain.EntityKind, entities []Entity) []Entity

// EvaluateFormula evaluates a formula against a record set. Each
// aggregation block runs over its own entity collection, falling back
// to defaultKind when the block names none. filter may be nil.
func EvaluateFormula(f domain.Formula, rs *RecordSet, defaultKind domain.EntityKind, filter EntityFilter) Result {
	switch v := f.(type) {
	case domain.Percentage:
		num := evaluateAggregation(v.Numerator, rs, defaultKind, filter)
		den := evaluateAggregation(v.Denominator, rs, defaultKind, filter)
		return ratio(num, den, 100)
	case domain.Division:
		num := evaluateAggregation(v.Numerator, rs, defaultKind, filter)
		den := evaluateAggregation(v.Denominator, rs, defaultKind, filter)
		scale := v.Multiplier
		if scale == 0 {
			scale = 1
		}
		return ratio(num, den, scale)
	case domain.Aggregate:
		return evaluateAggregation(v.Aggregation, rs, defaultKind, filter)
	default:
		return Undefined
	}
}

func ratio(num, den Result, scale float64) Result {
	if !num.Defined || !den.Defined || den.Value == 0 {
		return Undefined
	}
	return Defined(num.Value / den.Value * scale)
}

func evaluateAggregation(a domain.Aggregation, rs *RecordSet, defaultKind domain.EntityKind, filter EntityFilter) Result {
	kind := a.Entity
	if kind == "" {
		kind = defaultKind
	}
	entities := rs.Entities(kind)
	if filter != nil {
		entities = filter(kind, entities)
	}
	if a.Filter != nil {
		entities = filterEntities(a.Filter, entities)
	}

	switch a.Function {
	case domain.AggCount:
		return Defined(float64(len(entities)))
	case domain.AggSum, domain.AggField:
		values := collectNumbers(entities, fieldPath(a, kind))
		if len(values) == 0 {
			return Undefined
		}
		return Defined(sum(values))
	case domain.AggAvg:
		values := collectNumbers(entities, fieldPath(a, kind))
		if len(values) == 0 {
			return Undefined
		}
		return Defined(sum(values) / float64(len(values)))
	case domain.AggMin:
		values := collectNumbers(entities, fieldPath(a, kind))
		if len(values) == 0 {
			return Undefined
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return Defined(min)
	case domain.AggMax:
		values := collectNumbers(entities, fieldPath(a, kind))
		if len(values) == 0 {
			return Undefined
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return Defined(max)
	default:
		return Undefined
	}
}

func filterEntities(cond domain.Condition, entities []Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for i := range entities {
		if EvaluateCondition(cond, &entities[i]) {
			out = append(out, entities[i])
		}
	}
	return out
}

// fieldPath picks the aggregated path, defaulting to the monetary
// amount on charge line items.
func fieldPath(a domain.Aggregation, kind domain.EntityKind) string {
	if a.Field != "" {
		return a.Field
	}
	if kind == domain.EntityChargeItems {
		return "amount.value"
	}
	return ""
}

// collectNumbers resolves the path on every entity and keeps the
// numeric values. Absent or non-numeric resolutions are skipped;
// multi-valued resolutions contribute every numeric element.
func collectNumbers(entities []Entity, path string) []float64 {
	if path == "" {
		return nil
	}
	var out []float64
	for i := range entities {
		v, ok := entities[i].Resolve(path)
		if !ok {
			continue
		}
		if list, isList := v.([]any); isList {
			for _, elem := range list {
				if f, fok := asNumber(elem); fok {
					out = append(out, f)
				}
			}
			continue
		}
		if f, fok := asNumber(v); fok {
			out = append(out, f)
		}
	}
	return out
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
