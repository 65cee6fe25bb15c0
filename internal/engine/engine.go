package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

var (
	// ErrMetricNotFound is returned when evaluation names a metric
	// code the engine has not loaded.
	ErrMetricNotFound = errors.New("metric not found")

	// ErrSegmentNotFound is returned when an evaluation request names
	// a segment code the engine has not loaded.
	ErrSegmentNotFound = errors.New("segment not found")
)

// Engine holds the active metric and segment definitions and evaluates
// them over record sets. Definitions are hot-reloadable; evaluation
// takes a read lock so reloads never block in-flight computations for
// long.
type Engine struct {
	mu           sync.RWMutex
	metrics      map[string]*domain.MetricDefinition
	segments     map[string]*domain.Segment
	segmentsByID map[string]*domain.Segment
	overrides    []*domain.TransactionOverride

	cache      domain.Cache
	resultTTL  time.Duration
	maxWorkers int
	now        func() time.Time
}

// NewEngine creates an evaluation engine. cache may be nil to disable
// result caching.
func NewEngine(cache domain.Cache, resultTTL time.Duration, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Engine{
		metrics:      make(map[string]*domain.MetricDefinition),
		segments:     make(map[string]*domain.Segment),
		segmentsByID: make(map[string]*domain.Segment),
		cache:        cache,
		resultTTL:    resultTTL,
		maxWorkers:   maxWorkers,
		now:          time.Now,
	}
}

// ValidateMetric checks a definition without mutating loaded state.
func (e *Engine) ValidateMetric(def *domain.MetricDefinition) error {
	if def == nil {
		return fmt.Errorf("metric definition is required")
	}
	return def.Validate()
}

// ValidateSegment checks a segment without mutating loaded state.
func (e *Engine) ValidateSegment(seg *domain.Segment) error {
	if seg == nil {
		return fmt.Errorf("segment is required")
	}
	return seg.Validate()
}

// LoadMetric validates and loads one metric definition.
func (e *Engine) LoadMetric(def *domain.MetricDefinition) error {
	if err := e.ValidateMetric(def); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics[def.MetricCode] = def
	return nil
}

// LoadMetrics loads the active definitions from a list.
func (e *Engine) LoadMetrics(defs []*domain.MetricDefinition) error {
	for _, def := range defs {
		if def.IsActive {
			if err := e.LoadMetric(def); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadMetrics replaces all loaded metric definitions atomically.
func (e *Engine) ReloadMetrics(defs []*domain.MetricDefinition) error {
	next := make(map[string]*domain.MetricDefinition, len(defs))
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		if err := def.Validate(); err != nil {
			return err
		}
		next[def.MetricCode] = def
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = next
	return nil
}

// LoadSegment validates and loads one segment.
func (e *Engine) LoadSegment(seg *domain.Segment) error {
	if err := e.ValidateSegment(seg); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.segments[seg.SegmentCode] = seg
	e.segmentsByID[seg.SegmentID] = seg
	return nil
}

// LoadSegments loads the active segments from a list.
func (e *Engine) LoadSegments(segs []*domain.Segment) error {
	for _, seg := range segs {
		if seg.IsActive {
			if err := e.LoadSegment(seg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadSegments replaces all loaded segments atomically.
func (e *Engine) ReloadSegments(segs []*domain.Segment) error {
	nextByCode := make(map[string]*domain.Segment, len(segs))
	nextByID := make(map[string]*domain.Segment, len(segs))
	for _, seg := range segs {
		if !seg.IsActive {
			continue
		}
		if err := seg.Validate(); err != nil {
			return err
		}
		nextByCode[seg.SegmentCode] = seg
		nextByID[seg.SegmentID] = seg
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.segments = nextByCode
	e.segmentsByID = nextByID
	return nil
}

// ReloadOverrides replaces the loaded transaction overrides. Overrides
// referencing unknown segments are kept but flagged; they are ignored
// during evaluation until the segment appears.
func (e *Engine) ReloadOverrides(overrides []*domain.TransactionOverride) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range overrides {
		if _, ok := e.segmentsByID[o.SegmentID]; !ok {
			slog.Warn("override references unknown segment",
				"override_id", o.OverrideID,
				"segment_id", o.SegmentID,
				"entity_id", o.EntityID)
		}
	}
	e.overrides = overrides
}

// MetricsCount returns the number of loaded metric definitions.
func (e *Engine) MetricsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.metrics)
}

// SegmentsCount returns the number of loaded segments.
func (e *Engine) SegmentsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.segments)
}

// GetMetric returns a loaded metric definition by code.
func (e *Engine) GetMetric(code string) (*domain.MetricDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.metrics[code]
	return def, ok
}

// GetSegment returns a loaded segment by code.
func (e *Engine) GetSegment(code string) (*domain.Segment, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seg, ok := e.segments[code]
	return seg, ok
}

// GetLoadedMetrics returns the loaded definitions sorted by code.
func (e *Engine) GetLoadedMetrics() []*domain.MetricDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	defs := make([]*domain.MetricDefinition, 0, len(e.metrics))
	for _, def := range e.metrics {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].MetricCode < defs[j].MetricCode })
	return defs
}

// GetLoadedSegments returns the loaded segments sorted by code.
func (e *Engine) GetLoadedSegments() []*domain.Segment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	segs := make([]*domain.Segment, 0, len(e.segments))
	for _, seg := range e.segments {
		segs = append(segs, seg)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].SegmentCode < segs[j].SegmentCode })
	return segs
}

// EvaluateOptions tunes a single evaluation.
type EvaluateOptions struct {
	// Segments adds segments by code on top of the auto-applied set.
	Segments []string
	// NoAutoApply skips segments marked for automatic application.
	NoAutoApply bool
	// BypassCache forces recomputation even on a cache hit.
	BypassCache bool
	// At sets the effective time for override windows; zero means now.
	At time.Time
}

// EvaluateMetric evaluates a loaded metric by code over a record set.
func (e *Engine) EvaluateMetric(ctx context.Context, code string, rs *RecordSet, opts EvaluateOptions) (Result, error) {
	e.mu.RLock()
	def, ok := e.metrics[code]
	e.mu.RUnlock()
	if !ok {
		return Undefined, fmt.Errorf("%w: %s", ErrMetricNotFound, code)
	}
	return e.EvaluateDefinition(ctx, def, rs, opts)
}

// EvaluateDefinition evaluates a definition that need not be loaded,
// applying the engine's segments and overrides. Results are cached per
// (metric, segment set, record set version) when a cache is attached.
func (e *Engine) EvaluateDefinition(ctx context.Context, def *domain.MetricDefinition, rs *RecordSet, opts EvaluateOptions) (Result, error) {
	segs, err := e.segmentsFor(def.MetricCode, opts)
	if err != nil {
		return Undefined, err
	}

	at := opts.At
	if at.IsZero() {
		at = e.now()
	}

	key := e.cacheKey(def.MetricCode, segs, rs)
	if e.cache != nil && !opts.BypassCache {
		if cached, cerr := e.cache.GetResult(ctx, key); cerr == nil && cached != nil {
			return Result{Value: cached.Value, Defined: cached.Defined}, nil
		}
	}

	e.mu.RLock()
	overrides := e.overrides
	known := e.segmentsByID
	e.mu.RUnlock()

	idx := buildOverrideIndex(effectiveOverrides(overrides, known), at)
	filter := func(kind domain.EntityKind, entities []Entity) []Entity {
		return applySegments(segs, entities, idx)
	}

	result := EvaluateFormula(def.Formula, rs, def.TargetEntity(), filter)

	if e.cache != nil {
		cached := &domain.CachedResult{
			MetricCode: def.MetricCode,
			Value:      result.Value,
			Defined:    result.Defined,
			ComputedAt: e.now().UTC().Format(time.RFC3339),
		}
		if cerr := e.cache.SetResult(ctx, key, cached, e.resultTTL); cerr != nil {
			slog.Warn("failed to cache evaluation result", "metric", def.MetricCode, "error", cerr)
		}
	}

	return result, nil
}

// EvaluateAll evaluates every loaded metric over the record set in
// parallel, bounded by the engine's worker limit.
func (e *Engine) EvaluateAll(ctx context.Context, rs *RecordSet, opts EvaluateOptions) map[string]Result {
	defs := e.GetLoadedMetrics()
	results := make([]Result, len(defs))

	// Pre-build every collection once so workers only read.
	for _, kind := range []domain.EntityKind{domain.EntityLoads, domain.EntityStops, domain.EntityTenders, domain.EntityChargeItems} {
		rs.Entities(kind)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)
	for i, def := range defs {
		wg.Add(1)
		go func(idx int, d *domain.MetricDefinition) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r, err := e.EvaluateDefinition(ctx, d, rs, opts)
			if err != nil {
				slog.Warn("metric evaluation failed", "metric", d.MetricCode, "error", err)
				r = Undefined
			}
			results[idx] = r
		}(i, def)
	}
	wg.Wait()

	out := make(map[string]Result, len(defs))
	for i, def := range defs {
		out[def.MetricCode] = results[i]
	}
	return out
}

// EvaluateSegment runs one loaded segment over an entity collection
// using the engine's overrides.
func (e *Engine) EvaluateSegment(code string, entities []Entity, at time.Time) ([]Entity, error) {
	e.mu.RLock()
	seg, ok := e.segments[code]
	overrides := e.overrides
	known := e.segmentsByID
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, code)
	}
	if at.IsZero() {
		at = e.now()
	}
	idx := buildOverrideIndex(effectiveOverrides(overrides, known), at)
	return applySegment(seg, entities, idx), nil
}

// segmentsFor collects the segments that apply to a metric: the
// auto-applied ones affecting it plus any explicitly requested codes.
// The slice is sorted by code so cache keys are stable.
func (e *Engine) segmentsFor(metricCode string, opts EvaluateOptions) ([]*domain.Segment, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]*domain.Segment)
	if !opts.NoAutoApply {
		for code, seg := range e.segments {
			if seg.AutoApply && seg.AffectsMetric(metricCode) {
				seen[code] = seg
			}
		}
	}
	for _, code := range opts.Segments {
		seg, ok := e.segments[code]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, code)
		}
		seen[code] = seg
	}

	segs := make([]*domain.Segment, 0, len(seen))
	for _, seg := range seen {
		segs = append(segs, seg)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].SegmentCode < segs[j].SegmentCode })
	return segs, nil
}

// cacheKey fingerprints the metric and sorted segment codes the same
// way RecordSet.Version fingerprints loads, so code sets that would
// concatenate identically still key separately.
func (e *Engine) cacheKey(metricCode string, segs []*domain.Segment, rs *RecordSet) string {
	h := fnv.New64a()
	h.Write([]byte(metricCode))
	h.Write([]byte{0})
	for _, seg := range segs {
		h.Write([]byte(seg.SegmentCode))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("eval:%s:%d-%x:%s", metricCode, len(segs), h.Sum64(), rs.Version())
}

// effectiveOverrides drops overrides whose segment is not loaded.
func effectiveOverrides(overrides []*domain.TransactionOverride, known map[string]*domain.Segment) []*domain.TransactionOverride {
	out := make([]*domain.TransactionOverride, 0, len(overrides))
	for _, o := range overrides {
		if _, ok := known[o.SegmentID]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Close releases the loaded definitions.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = make(map[string]*domain.MetricDefinition)
	e.segments = make(map[string]*domain.Segment)
	e.segmentsByID = make(map[string]*domain.Segment)
	e.overrides = nil
	return nil
}
