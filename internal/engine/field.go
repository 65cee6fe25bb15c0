// Package engine implements the metric formula and segment rule
// evaluator. Evaluation is synchronous and pure: it walks an immutable
// in-memory snapshot of loads and produces numeric results, with an
// explicit undefined sentinel instead of NaN or Infinity.
package engine

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"github.com/openfreight/milepost/internal/domain"
)

// Entity is one flattened record: a load, stop, tender or charge line
// item projected into a dotted-path addressable field map. Entities of
// nested kinds keep a reference to their parent load so load-level
// segments cascade to them.
type Entity struct {
	ID     string
	Kind   domain.EntityKind
	LoadID string
	Parent *Entity

	fields map[string]any
}

// Resolve walks a dotted path through the entity's nested containers.
// It returns the absent sentinel (ok=false) when an intermediate link
// is missing or null, never an error. Traversing a list maps the
// remaining path over every element and returns the flattened values.
func (e *Entity) Resolve(path string) (any, bool) {
	if e == nil || path == "" {
		return nil, false
	}
	return resolvePath(e.fields, strings.Split(path, "."))
}

func resolvePath(node any, parts []string) (any, bool) {
	if len(parts) == 0 {
		if node == nil {
			return nil, false
		}
		return node, true
	}

	switch v := node.(type) {
	case map[string]any:
		child, ok := v[parts[0]]
		if !ok || child == nil {
			return nil, false
		}
		return resolvePath(child, parts[1:])
	case []any:
		// Map the remaining path over every element.
		var out []any
		for _, elem := range v {
			if resolved, ok := resolvePath(elem, parts); ok {
				if list, isList := resolved.([]any); isList {
					out = append(out, list...)
				} else {
					out = append(out, resolved)
				}
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

// zeroTimestamp is how a never-recorded time.Time serializes.
const zeroTimestamp = "0001-01-01T00:00:00Z"

// toFields projects a domain struct into a generic field map via its
// JSON representation, so dotted paths line up with the wire format.
// Zero-valued timestamps are dropped so an unrecorded event resolves
// absent instead of comparing as year one.
func toFields(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	scrubZeroTimes(out)
	return out
}

func scrubZeroTimes(node map[string]any) {
	for key, value := range node {
		switch v := value.(type) {
		case string:
			if v == zeroTimestamp {
				delete(node, key)
			}
		case map[string]any:
			scrubZeroTimes(v)
		case []any:
			for _, elem := range v {
				if m, ok := elem.(map[string]any); ok {
					scrubZeroTimes(m)
				}
			}
		}
	}
}

// RecordSet is an immutable snapshot of loads with memoized flattened
// entity collections. Evaluating the same formula over the same
// RecordSet always yields the same result.
type RecordSet struct {
	mu      sync.Mutex
	loads   []*domain.Load
	byKind  map[domain.EntityKind][]Entity
	version string
}

// NewRecordSet builds a record set over the given loads.
func NewRecordSet(loads []*domain.Load) *RecordSet {
	return &RecordSet{
		loads:  loads,
		byKind: make(map[domain.EntityKind][]Entity, 4),
	}
}

// Loads returns the underlying load snapshot.
func (r *RecordSet) Loads() []*domain.Load {
	return r.loads
}

// Entities returns the flattened collection for a kind, building it on
// first use.
func (r *RecordSet) Entities(kind domain.EntityKind) []Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.byKind[kind]; ok {
		return cached
	}
	entities := flatten(kind, r.loads)
	r.byKind[kind] = entities
	return entities
}

// Version fingerprints the record set for cache keys. Two snapshots
// with the same loads (by id and creation time) share a version.
func (r *RecordSet) Version() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.version != "" {
		return r.version
	}
	keys := make([]string, 0, len(r.loads))
	for _, l := range r.loads {
		keys = append(keys, l.LoadID+"@"+l.Metadata.CreatedAt.UTC().Format("20060102T150405"))
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	r.version = fmt.Sprintf("%d-%x", len(r.loads), h.Sum64())
	return r.version
}

func flatten(kind domain.EntityKind, loads []*domain.Load) []Entity {
	switch kind {
	case domain.EntityLoads:
		return flattenLoads(loads)
	case domain.EntityStops:
		return flattenStops(loads)
	case domain.EntityTenders:
		return flattenTenders(loads)
	case domain.EntityChargeItems:
		return flattenChargeItems(loads)
	default:
		return nil
	}
}

func flattenLoads(loads []*domain.Load) []Entity {
	out := make([]Entity, 0, len(loads))
	for _, l := range loads {
		fields := toFields(l)
		if hours, ok := l.Tender.ResponseHours(); ok {
			fields["tender_response_hours"] = hours
		}
		// Single-tender model: the recorded tender is the first one.
		fields["first_tender_status"] = l.Tender.Status
		fields["total_cost"] = l.TotalCost()
		out = append(out, Entity{
			ID:     l.LoadID,
			Kind:   domain.EntityLoads,
			LoadID: l.LoadID,
			fields: fields,
		})
	}
	return out
}

func flattenStops(loads []*domain.Load) []Entity {
	var out []Entity
	for _, l := range loads {
		parent := loadEntity(l)
		for i := range l.Stops {
			stop := &l.Stops[i]
			fields := toFields(stop)
			if dwell, ok := stop.DwellMinutes(); ok {
				fields["dwell_time_minutes"] = dwell
			}
			fields["contract_type"] = l.ContractType
			fields["load"] = parent.fields
			out = append(out, Entity{
				ID:     stop.StopID,
				Kind:   domain.EntityStops,
				LoadID: l.LoadID,
				Parent: parent,
				fields: fields,
			})
		}
	}
	return out
}

func flattenTenders(loads []*domain.Load) []Entity {
	out := make([]Entity, 0, len(loads))
	for _, l := range loads {
		parent := loadEntity(l)
		fields := toFields(l.Tender)
		if hours, ok := l.Tender.ResponseHours(); ok {
			fields["response_hours"] = hours
			fields["tender_response_hours"] = hours
		}
		fields["contract_type"] = l.ContractType
		fields["load_id"] = l.LoadID
		fields["load"] = parent.fields
		out = append(out, Entity{
			ID:     l.LoadID,
			Kind:   domain.EntityTenders,
			LoadID: l.LoadID,
			Parent: parent,
			fields: fields,
		})
	}
	return out
}

func flattenChargeItems(loads []*domain.Load) []Entity {
	var out []Entity
	for _, l := range loads {
		if l.Charges == nil {
			continue
		}
		parent := loadEntity(l)
		for i, item := range l.Charges.LineItems {
			fields := toFields(item)
			fields["load_id"] = l.LoadID
			fields["contract_type"] = l.ContractType
			fields["load"] = parent.fields
			out = append(out, Entity{
				ID:     fmt.Sprintf("%s:%d", l.LoadID, i),
				Kind:   domain.EntityChargeItems,
				LoadID: l.LoadID,
				Parent: parent,
				fields: fields,
			})
		}
	}
	return out
}

func loadEntity(l *domain.Load) *Entity {
	entities := flattenLoads([]*domain.Load{l})
	return &entities[0]
}
