package engine

import (
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

// overrideIndex resolves transaction overrides by entity and segment.
// The most recently applied effective override wins when several target
// the same pair.
type overrideIndex struct {
	byKey map[overrideKey]*domain.TransactionOverride
}

type overrideKey struct {
	entityID  string
	kind      domain.EntityKind
	segmentID string
}

func buildOverrideIndex(overrides []*domain.TransactionOverride, at time.Time) *overrideIndex {
	idx := &overrideIndex{byKey: make(map[overrideKey]*domain.TransactionOverride, len(overrides))}
	for _, o := range overrides {
		if !o.EffectiveAt(at) {
			continue
		}
		kind, ok := domain.EntityKindFor(o.EntityType)
		if !ok {
			continue
		}
		key := overrideKey{entityID: o.EntityID, kind: kind, segmentID: o.SegmentID}
		if existing, found := idx.byKey[key]; found && existing.AppliedAt.After(o.AppliedAt) {
			continue
		}
		idx.byKey[key] = o
	}
	return idx
}

func (idx *overrideIndex) action(entityID string, kind domain.EntityKind, segmentID string) (string, bool) {
	if idx == nil {
		return "", false
	}
	o, ok := idx.byKey[overrideKey{entityID: entityID, kind: kind, segmentID: segmentID}]
	if !ok {
		return "", false
	}
	return o.OverrideAction, true
}

// ApplySegment filters an entity collection through one segment's rule,
// honoring transaction overrides. An INCLUSION segment keeps entities
// its rule matches; an EXCLUSION segment drops them. An effective
// override on an entity replaces the rule outcome for that entity.
// Applying the same segment twice yields the same collection.
func ApplySegment(seg *domain.Segment, entities []Entity, overrides []*domain.TransactionOverride, at time.Time) []Entity {
	return applySegment(seg, entities, buildOverrideIndex(overrides, at))
}

func applySegment(seg *domain.Segment, entities []Entity, idx *overrideIndex) []Entity {
	out := make([]Entity, 0, len(entities))
	for i := range entities {
		if segmentKeeps(seg, &entities[i], idx) {
			out = append(out, entities[i])
		}
	}
	return out
}

// segmentKeeps decides whether one entity survives a segment. Segments
// scoped to loads cascade to nested entities through the parent load:
// a stop of an excluded load is excluded too.
func segmentKeeps(seg *domain.Segment, e *Entity, idx *overrideIndex) bool {
	target := e
	targetKind := e.Kind
	if !seg.AppliesToEntity(e.Kind) {
		if e.Parent == nil || !seg.AppliesToEntity(domain.EntityLoads) {
			return true
		}
		target = e.Parent
		targetKind = domain.EntityLoads
	}

	if action, ok := idx.action(target.ID, targetKind, seg.SegmentID); ok {
		return action == domain.OverrideInclude
	}

	matched := seg.Rules != nil && EvaluateCondition(seg.Rules, target)
	if seg.SegmentType == domain.SegmentInclusion {
		return matched
	}
	return !matched
}

// applySegments runs a set of segments over a collection in order. The
// result is the intersection of each segment's survivors, so ordering
// does not change the outcome.
func applySegments(segs []*domain.Segment, entities []Entity, idx *overrideIndex) []Entity {
	for _, seg := range segs {
		if len(entities) == 0 {
			break
		}
		entities = applySegment(seg, entities, idx)
	}
	return entities
}
