package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Segment types.
const (
	SegmentInclusion = "INCLUSION"
	SegmentExclusion = "EXCLUSION"
)

// AffectsAll is the sentinel metric code meaning a segment applies to
// every metric calculation.
const AffectsAll = "ALL"

// Segment is a named inclusion/exclusion filter applied to an entity
// collection before metric evaluation. Baseline segments share the
// immutable lifecycle of baseline metric definitions.
type Segment struct {
	SegmentID       string
	SegmentCode     string
	SegmentName     string
	Description     string
	SegmentType     string // INCLUSION or EXCLUSION
	AppliesTo       []EntityKind
	AffectedMetrics []string
	Rules           Condition
	AutoApply       bool
	IsBaseline      bool
	IsActive        bool
	CreatedBy       string
	CreatedAt       time.Time
}

// AppliesToEntity reports whether the segment applies to the given
// entity kind. Charge items are carved out of their parent load, so a
// LOAD segment covers them as well.
func (s *Segment) AppliesToEntity(kind EntityKind) bool {
	for _, k := range s.AppliesTo {
		if k == kind {
			return true
		}
		if k == EntityLoads && kind == EntityChargeItems {
			return true
		}
	}
	return false
}

// AffectsMetric reports whether the segment participates in the
// computation of the given metric code.
func (s *Segment) AffectsMetric(code string) bool {
	for _, m := range s.AffectedMetrics {
		if m == AffectsAll || m == code {
			return true
		}
	}
	return false
}

// Validate rejects a malformed segment with an error naming the
// missing attribute.
func (s *Segment) Validate() error {
	if s.SegmentCode == "" {
		return fmt.Errorf("segment: missing required attribute \"segment_code\"")
	}
	if s.SegmentType != SegmentInclusion && s.SegmentType != SegmentExclusion {
		return fmt.Errorf("segment %s: segment_type must be INCLUSION or EXCLUSION, got %q", s.SegmentCode, s.SegmentType)
	}
	if len(s.AppliesTo) == 0 {
		return fmt.Errorf("segment %s: missing required attribute \"applies_to\"", s.SegmentCode)
	}
	for _, kind := range s.AppliesTo {
		switch kind {
		case EntityLoads, EntityStops, EntityTenders:
		default:
			return fmt.Errorf("segment %s: applies_to entry %q is not LOAD, STOP or TENDER", s.SegmentCode, kind)
		}
	}
	if len(s.AffectedMetrics) == 0 {
		return fmt.Errorf("segment %s: missing required attribute \"affected_metrics\"", s.SegmentCode)
	}
	if err := ValidateCondition(s.Rules); err != nil {
		return fmt.Errorf("segment %s: %w", s.SegmentCode, err)
	}
	return nil
}

// segmentWire mirrors the stored JSON shape. applies_to uses the
// singular entity spellings (LOAD, STOP, TENDER).
type segmentWire struct {
	SegmentID       string          `json:"segment_id"`
	SegmentCode     string          `json:"segment_code"`
	SegmentName     string          `json:"segment_name"`
	Description     string          `json:"description,omitempty"`
	SegmentType     string          `json:"segment_type"`
	AppliesTo       []string        `json:"applies_to"`
	AffectedMetrics []string        `json:"affected_metrics"`
	Rules           json.RawMessage `json:"rules"`
	AutoApply       bool            `json:"auto_apply"`
	IsBaseline      bool            `json:"is_baseline,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
}

var entityNames = map[string]EntityKind{
	"LOAD":   EntityLoads,
	"STOP":   EntityStops,
	"TENDER": EntityTenders,
}

var entityWireNames = map[EntityKind]string{
	EntityLoads:   "LOAD",
	EntityStops:   "STOP",
	EntityTenders: "TENDER",
}

// UnmarshalJSON parses a segment, including its rule condition.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var w segmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	rules, err := UnmarshalCondition(w.Rules)
	if err != nil {
		return fmt.Errorf("segment %s: %w", w.SegmentCode, err)
	}

	applies := make([]EntityKind, 0, len(w.AppliesTo))
	for _, name := range w.AppliesTo {
		kind, ok := entityNames[name]
		if !ok {
			kind = EntityKind(name)
		}
		applies = append(applies, kind)
	}

	*s = Segment{
		SegmentID:       w.SegmentID,
		SegmentCode:     w.SegmentCode,
		SegmentName:     w.SegmentName,
		Description:     w.Description,
		SegmentType:     w.SegmentType,
		AppliesTo:       applies,
		AffectedMetrics: w.AffectedMetrics,
		Rules:           rules,
		AutoApply:       w.AutoApply,
		IsBaseline:      w.IsBaseline,
		IsActive:        w.IsActive,
		CreatedBy:       w.CreatedBy,
	}
	if w.CreatedAt != nil {
		s.CreatedAt = *w.CreatedAt
	}
	return nil
}

// MarshalJSON renders a segment in the wire shape.
func (s Segment) MarshalJSON() ([]byte, error) {
	rules, err := MarshalCondition(s.Rules)
	if err != nil {
		return nil, err
	}

	applies := make([]string, 0, len(s.AppliesTo))
	for _, kind := range s.AppliesTo {
		if name, ok := entityWireNames[kind]; ok {
			applies = append(applies, name)
		} else {
			applies = append(applies, string(kind))
		}
	}

	w := segmentWire{
		SegmentID:       s.SegmentID,
		SegmentCode:     s.SegmentCode,
		SegmentName:     s.SegmentName,
		Description:     s.Description,
		SegmentType:     s.SegmentType,
		AppliesTo:       applies,
		AffectedMetrics: s.AffectedMetrics,
		Rules:           rules,
		AutoApply:       s.AutoApply,
		IsBaseline:      s.IsBaseline,
		IsActive:        s.IsActive,
		CreatedBy:       s.CreatedBy,
	}
	if !s.CreatedAt.IsZero() {
		w.CreatedAt = &s.CreatedAt
	}
	return json.Marshal(w)
}

// Override actions.
const (
	OverrideInclude = "INCLUDE"
	OverrideExclude = "EXCLUDE"
)

// TransactionOverride is a manual exception tying one entity instance
// to one segment. Its action wins outright over the segment's rule for
// that entity while the override is effective.
type TransactionOverride struct {
	OverrideID     string     `json:"override_id"`
	EntityID       string     `json:"entity_id"`
	EntityType     string     `json:"entity_type"` // LOAD, STOP or TENDER
	SegmentID      string     `json:"segment_id"`
	OverrideAction string     `json:"override_action"`
	Reason         string     `json:"reason"`
	AppliedBy      string     `json:"applied_by"`
	AppliedAt      time.Time  `json:"applied_at"`
	EffectiveFrom  time.Time  `json:"effective_from"`
	EffectiveTo    *time.Time `json:"effective_to"`
}

// EffectiveAt reports whether the override is within its effective
// window at the given instant.
func (o *TransactionOverride) EffectiveAt(at time.Time) bool {
	if !o.EffectiveFrom.IsZero() && at.Before(o.EffectiveFrom) {
		return false
	}
	if o.EffectiveTo != nil && at.After(*o.EffectiveTo) {
		return false
	}
	return true
}

// Validate rejects a malformed override.
func (o *TransactionOverride) Validate() error {
	if o.EntityID == "" {
		return fmt.Errorf("override: missing required attribute \"entity_id\"")
	}
	if _, ok := entityNames[o.EntityType]; !ok {
		return fmt.Errorf("override %s: entity_type must be LOAD, STOP or TENDER, got %q", o.OverrideID, o.EntityType)
	}
	if o.SegmentID == "" {
		return fmt.Errorf("override %s: missing required attribute \"segment_id\"", o.OverrideID)
	}
	if o.OverrideAction != OverrideInclude && o.OverrideAction != OverrideExclude {
		return fmt.Errorf("override %s: override_action must be INCLUDE or EXCLUDE, got %q", o.OverrideID, o.OverrideAction)
	}
	return nil
}

// EntityKindFor maps an override entity_type to its collection kind.
func EntityKindFor(entityType string) (EntityKind, bool) {
	kind, ok := entityNames[entityType]
	return kind, ok
}
