package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityKind names a flattenable entity collection that formulas and
// segments operate over.
type EntityKind string

const (
	EntityLoads       EntityKind = "loads"
	EntityStops       EntityKind = "stops"
	EntityTenders     EntityKind = "tenders"
	EntityChargeItems EntityKind = "charges.line_items"
)

// Valid reports whether the kind names a known collection.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityLoads, EntityStops, EntityTenders, EntityChargeItems:
		return true
	}
	return false
}

// AggFunc is an aggregation function applied to an entity collection.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"

	// AggField resolves a single dotted path across the records in
	// scope and sums the values that resolve numerically. It backs the
	// {"type": "field", "path": ...} block used by per-record ratios
	// such as cost per mile.
	AggField AggFunc = "FIELD"
)

// Aggregation is one block of a formula: a function applied to a
// target entity collection after filtering.
type Aggregation struct {
	Function AggFunc

	// Entity overrides the metric's target collection for this block.
	// Empty means "inherit from the metric definition".
	Entity EntityKind

	// Field is the dotted path aggregated by SUM/AVG/MIN/MAX, or the
	// resolved path for FIELD blocks. Ignored by COUNT.
	Field string

	Filter Condition

	// wireType preserves the stored "type" discriminator so catalog
	// definitions round-trip byte-compatibly.
	wireType string
}

// Formula is a closed union of the metric formula shapes.
type Formula interface {
	isFormula()
}

// Percentage is numerator ÷ denominator × 100.
type Percentage struct {
	Numerator   Aggregation
	Denominator Aggregation
}

func (Percentage) isFormula() {}

// Division is numerator ÷ denominator, optionally scaled.
type Division struct {
	Numerator   Aggregation
	Denominator Aggregation
	Multiplier  float64 // 0 means no scaling
}

func (Division) isFormula() {}

// Aggregate is a single aggregation block used directly as the metric
// value: the average, sum, count and aggregation formula shapes.
type Aggregate struct {
	Aggregation
}

func (Aggregate) isFormula() {}

// aggregationWire is the JSON shape of an aggregation block. The
// stored catalog uses several historical spellings ("count", "sum",
// "average", "field") alongside the explicit "aggregation" form.
type aggregationWire struct {
	Type       string          `json:"type"`
	Function   string          `json:"function,omitempty"`
	Field      string          `json:"field,omitempty"`
	ValueField string          `json:"value_field,omitempty"`
	Path       string          `json:"path,omitempty"`
	Filter     json.RawMessage `json:"filter,omitempty"`
}

func aggregationFromWire(data []byte) (Aggregation, error) {
	var w aggregationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Aggregation{}, fmt.Errorf("invalid aggregation block: %w", err)
	}

	agg := Aggregation{wireType: strings.ToLower(w.Type)}

	if len(w.Filter) > 0 {
		filter, err := UnmarshalCondition(w.Filter)
		if err != nil {
			return Aggregation{}, err
		}
		agg.Filter = filter
	}

	switch agg.wireType {
	case "count":
		agg.Function = AggCount
		agg.Entity = entityOrEmpty(w.Field)
	case "sum":
		agg.Function = AggSum
		agg.Field = w.Field
	case "average", "avg":
		agg.Function = AggAvg
		agg.Field = w.Field
	case "min":
		agg.Function = AggMin
		agg.Field = w.Field
	case "max":
		agg.Function = AggMax
		agg.Field = w.Field
	case "field":
		agg.Function = AggField
		agg.Field = w.Path
	case "aggregation":
		agg.Function = AggFunc(strings.ToUpper(w.Function))
		// In the aggregation form "field" names the target collection
		// and "value_field" the aggregated path.
		if kind := entityOrEmpty(w.Field); kind != "" {
			agg.Entity = kind
			agg.Field = w.ValueField
		} else {
			agg.Field = w.Field
		}
	default:
		return Aggregation{}, fmt.Errorf("unknown aggregation type %q", w.Type)
	}

	return agg, nil
}

func entityOrEmpty(name string) EntityKind {
	kind := EntityKind(name)
	if kind.Valid() {
		return kind
	}
	return ""
}

func (a Aggregation) wire() map[string]any {
	out := map[string]any{}

	wireType := a.wireType
	if wireType == "" {
		wireType = "aggregation"
	}
	out["type"] = wireType

	switch wireType {
	case "count":
		if a.Entity != "" {
			out["field"] = string(a.Entity)
		}
	case "sum", "average", "avg", "min", "max":
		out["field"] = a.Field
	case "field":
		out["path"] = a.Field
	default:
		out["function"] = string(a.Function)
		if a.Entity != "" {
			out["field"] = string(a.Entity)
			if a.Field != "" {
				out["value_field"] = a.Field
			}
		} else if a.Field != "" {
			out["field"] = a.Field
		}
	}

	if a.Filter != nil {
		out["filter"] = conditionToWire(a.Filter)
	}
	return out
}

// formulaWire is the JSON envelope of a formula.
type formulaWire struct {
	Type        string          `json:"type"`
	Numerator   json.RawMessage `json:"numerator,omitempty"`
	Denominator json.RawMessage `json:"denominator,omitempty"`
	Multiplier  float64         `json:"multiplier,omitempty"`

	// Inline aggregation attributes for the average/sum/count shapes.
	Function   string          `json:"function,omitempty"`
	Field      string          `json:"field,omitempty"`
	ValueField string          `json:"value_field,omitempty"`
	Filter     json.RawMessage `json:"filter,omitempty"`
}

// UnmarshalFormula parses a formula from its wire representation.
func UnmarshalFormula(data []byte) (Formula, error) {
	var w formulaWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}

	switch strings.ToLower(w.Type) {
	case "percentage":
		num, den, err := ratioBlocks(&w)
		if err != nil {
			return nil, err
		}
		return Percentage{Numerator: num, Denominator: den}, nil

	case "division":
		num, den, err := ratioBlocks(&w)
		if err != nil {
			return nil, err
		}
		return Division{Numerator: num, Denominator: den, Multiplier: w.Multiplier}, nil

	case "average", "sum", "count", "aggregation", "min", "max":
		agg, err := aggregationFromWire(data)
		if err != nil {
			return nil, err
		}
		return Aggregate{Aggregation: agg}, nil

	case "":
		return nil, fmt.Errorf("formula: missing required attribute \"type\"")
	default:
		return nil, fmt.Errorf("formula: unknown type %q", w.Type)
	}
}

func ratioBlocks(w *formulaWire) (num, den Aggregation, err error) {
	if len(w.Numerator) == 0 {
		return num, den, fmt.Errorf("%s formula: missing required attribute \"numerator\"", w.Type)
	}
	if len(w.Denominator) == 0 {
		return num, den, fmt.Errorf("%s formula: missing required attribute \"denominator\"", w.Type)
	}
	if num, err = aggregationFromWire(w.Numerator); err != nil {
		return
	}
	den, err = aggregationFromWire(w.Denominator)
	return
}

// MarshalFormula renders a formula in its wire form.
func MarshalFormula(f Formula) ([]byte, error) {
	switch v := f.(type) {
	case Percentage:
		return json.Marshal(map[string]any{
			"type":        "percentage",
			"numerator":   v.Numerator.wire(),
			"denominator": v.Denominator.wire(),
		})
	case Division:
		out := map[string]any{
			"type":        "division",
			"numerator":   v.Numerator.wire(),
			"denominator": v.Denominator.wire(),
		}
		if v.Multiplier != 0 {
			out["multiplier"] = v.Multiplier
		}
		return json.Marshal(out)
	case Aggregate:
		return json.Marshal(v.Aggregation.wire())
	default:
		return nil, fmt.Errorf("unknown formula kind %T", f)
	}
}

// ValidateFormula rejects malformed formulas at definition-save time.
func ValidateFormula(f Formula) error {
	switch v := f.(type) {
	case nil:
		return fmt.Errorf("formula is required")
	case Percentage:
		if err := validateAggregation(v.Numerator); err != nil {
			return fmt.Errorf("numerator: %w", err)
		}
		if err := validateAggregation(v.Denominator); err != nil {
			return fmt.Errorf("denominator: %w", err)
		}
		return nil
	case Division:
		if err := validateAggregation(v.Numerator); err != nil {
			return fmt.Errorf("numerator: %w", err)
		}
		if err := validateAggregation(v.Denominator); err != nil {
			return fmt.Errorf("denominator: %w", err)
		}
		return nil
	case Aggregate:
		return validateAggregation(v.Aggregation)
	default:
		return fmt.Errorf("unknown formula kind %T", f)
	}
}

func validateAggregation(a Aggregation) error {
	switch a.Function {
	case AggCount:
	case AggSum, AggAvg, AggMin, AggMax:
		if a.Field == "" && a.Entity != EntityChargeItems {
			return fmt.Errorf("%s aggregation: missing required attribute \"field\"", a.Function)
		}
	case AggField:
		if a.Field == "" {
			return fmt.Errorf("field block: missing required attribute \"path\"")
		}
	default:
		return fmt.Errorf("unknown aggregation function %q", a.Function)
	}
	if a.Filter != nil {
		if err := ValidateCondition(a.Filter); err != nil {
			return err
		}
	}
	return nil
}

// Metric return types.
const (
	ReturnPercentage = "PERCENTAGE"
	ReturnCurrency   = "CURRENCY"
	ReturnDecimal    = "DECIMAL"
	ReturnInteger    = "INTEGER"
	ReturnDuration   = "DURATION"
)

// Metric categories.
const (
	CategoryPerformance = "PERFORMANCE"
	CategoryCost        = "COST"
	CategoryTender      = "TENDER"
	CategoryDwell       = "DWELL"
	CategoryService     = "SERVICE"
)

// MetricDefinition is a named, versioned KPI formula. Baseline
// definitions are seeded at startup and never mutated; custom
// definitions are created and managed through the API.
type MetricDefinition struct {
	MetricID    string
	MetricCode  string
	MetricName  string
	Description string
	Formula     Formula
	Entity      EntityKind // target collection, defaults to loads
	ReturnType  string
	Unit        string
	Precision   int
	IsBaseline  bool
	Category    string
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
}

// TargetEntity returns the collection the formula runs over.
func (m *MetricDefinition) TargetEntity() EntityKind {
	if m.Entity.Valid() {
		return m.Entity
	}
	return EntityLoads
}

// Validate rejects a malformed definition with an error naming the
// missing attribute.
func (m *MetricDefinition) Validate() error {
	if m.MetricCode == "" {
		return fmt.Errorf("metric definition: missing required attribute \"metric_code\"")
	}
	if m.MetricName == "" {
		return fmt.Errorf("metric %s: missing required attribute \"metric_name\"", m.MetricCode)
	}
	if m.Entity != "" && !m.Entity.Valid() {
		return fmt.Errorf("metric %s: unknown entity %q", m.MetricCode, m.Entity)
	}
	if err := ValidateFormula(m.Formula); err != nil {
		return fmt.Errorf("metric %s: %w", m.MetricCode, err)
	}
	return nil
}

// metricDefinitionWire mirrors the stored JSON shape of a definition.
type metricDefinitionWire struct {
	MetricID    string          `json:"metric_id"`
	MetricCode  string          `json:"metric_code"`
	MetricName  string          `json:"metric_name"`
	Description string          `json:"description,omitempty"`
	Formula     json.RawMessage `json:"formula"`
	Entity      string          `json:"entity,omitempty"`
	ReturnType  string          `json:"return_type"`
	Unit        string          `json:"unit"`
	Precision   int             `json:"precision"`
	IsBaseline  bool            `json:"is_baseline"`
	Category    string          `json:"category"`
	IsActive    *bool           `json:"is_active,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// UnmarshalJSON parses a definition, including its formula union.
func (m *MetricDefinition) UnmarshalJSON(data []byte) error {
	var w metricDefinitionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	formula, err := UnmarshalFormula(w.Formula)
	if err != nil {
		return fmt.Errorf("metric %s: %w", w.MetricCode, err)
	}

	active := true
	if w.IsActive != nil {
		active = *w.IsActive
	}

	*m = MetricDefinition{
		MetricID:    w.MetricID,
		MetricCode:  w.MetricCode,
		MetricName:  w.MetricName,
		Description: w.Description,
		Formula:     formula,
		Entity:      EntityKind(w.Entity),
		ReturnType:  w.ReturnType,
		Unit:        w.Unit,
		Precision:   w.Precision,
		IsBaseline:  w.IsBaseline,
		Category:    w.Category,
		IsActive:    active,
		CreatedBy:   w.CreatedBy,
	}
	if w.CreatedAt != nil {
		m.CreatedAt = *w.CreatedAt
	}
	return nil
}

// MarshalJSON renders a definition in the wire shape.
func (m MetricDefinition) MarshalJSON() ([]byte, error) {
	formula, err := MarshalFormula(m.Formula)
	if err != nil {
		return nil, err
	}

	w := metricDefinitionWire{
		MetricID:    m.MetricID,
		MetricCode:  m.MetricCode,
		MetricName:  m.MetricName,
		Description: m.Description,
		Formula:     formula,
		Entity:      string(m.Entity),
		ReturnType:  m.ReturnType,
		Unit:        m.Unit,
		Precision:   m.Precision,
		IsBaseline:  m.IsBaseline,
		Category:    m.Category,
		IsActive:    &m.IsActive,
		CreatedBy:   m.CreatedBy,
	}
	if !m.CreatedAt.IsZero() {
		w.CreatedAt = &m.CreatedAt
	}
	return json.Marshal(w)
}
