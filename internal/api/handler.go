package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openfreight/milepost/internal/assist"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
	"github.com/openfreight/milepost/internal/report"
	"github.com/openfreight/milepost/internal/repository"
	"github.com/openfreight/milepost/internal/snapshot"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *engine.Engine
	builder   *report.Builder
	snapshots *snapshot.Service
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, builder *report.Builder, snapshots *snapshot.Service, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    eng,
		builder:   builder,
		snapshots: snapshots,
		version:   version,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
// Either metric_code (a loaded definition) or definition (an inline
// one-off definition) must be present.
type EvaluateRequest struct {
	MetricCode  string          `json:"metric_code,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
	Segments    []string        `json:"segments,omitempty"`
	NoAutoApply bool            `json:"no_auto_apply,omitempty"`
	BypassCache bool            `json:"bypass_cache,omitempty"`
	At          *time.Time      `json:"at,omitempty"`
	Since       *time.Time      `json:"since,omitempty"`
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	MetricCode string   `json:"metric_code"`
	Value      *float64 `json:"value"`
	Defined    bool     `json:"defined"`
	Metadata   struct {
		TraceID          string `json:"trace_id"`
		RecordSetVersion string `json:"record_set_version"`
		TotalMs          int64  `json:"total_ms"`
		Version          string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.MetricCode == "" && len(req.Definition) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "metric_code or definition is required",
		})
		return
	}

	since := time.Time{}
	if req.Since != nil {
		since = *req.Since
	}

	rs, err := h.snapshots.RecordSet(ctx, since)
	if err != nil {
		slog.Error("failed to load record set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load record set",
		})
		return
	}

	opts := engine.EvaluateOptions{
		Segments:    req.Segments,
		NoAutoApply: req.NoAutoApply,
		BypassCache: req.BypassCache,
	}
	if req.At != nil {
		opts.At = *req.At
	}

	var result engine.Result
	code := req.MetricCode
	if len(req.Definition) > 0 {
		var def domain.MetricDefinition
		if err := json.Unmarshal(req.Definition, &def); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid definition: " + err.Error(),
			})
			return
		}
		if err := def.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		// Ad-hoc definitions always recompute
		opts.BypassCache = true
		code = def.MetricCode
		result, err = h.engine.EvaluateDefinition(ctx, &def, rs, opts)
	} else {
		result, err = h.engine.EvaluateMetric(ctx, code, rs, opts)
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrMetricNotFound) || errors.Is(err, engine.ErrSegmentNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}

	resp := EvaluateResponse{
		MetricCode: code,
		Defined:    result.Defined,
	}
	if result.Defined {
		v := result.Value
		resp.Value = &v
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.RecordSetVersion = rs.Version()
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// IngestLoad handles POST /loads requests.
func (h *Handler) IngestLoad(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var load domain.Load
	if err := json.NewDecoder(r.Body).Decode(&load); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if load.LoadID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "load_id is required",
		})
		return
	}
	if load.Metadata.CreatedAt.IsZero() {
		load.Metadata.CreatedAt = time.Now().UTC()
	}

	if err := h.repo.SaveLoad(ctx, &load); err != nil {
		slog.Error("failed to save load", "load_id", load.LoadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save load",
		})
		return
	}

	h.publish(ctx, domain.TopicLoadIngested, load.LoadID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"load_id": load.LoadID,
	})
}

// GetLoad retrieves a load by ID.
func (h *Handler) GetLoad(w http.ResponseWriter, r *http.Request) {
	loadID := chi.URLParam(r, "id")

	load, err := h.repo.GetLoad(r.Context(), loadID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "load not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get load", "load_id", loadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get load",
		})
		return
	}

	writeJSON(w, http.StatusOK, load)
}

// ListMetrics returns all loaded metric definitions.
func (h *Handler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.GetLoadedMetrics()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": defs,
		"count":   len(defs),
	})
}

// GetMetric retrieves a metric definition by code.
func (h *Handler) GetMetric(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if def, ok := h.engine.GetMetric(code); ok {
		writeJSON(w, http.StatusOK, def)
		return
	}

	// Inactive definitions live only in the repository
	def, err := h.repo.GetMetricDefinition(r.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "metric not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get metric", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metric",
		})
		return
	}

	writeJSON(w, http.StatusOK, def)
}

// CreateMetric creates a custom metric definition.
func (h *Handler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var def domain.MetricDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body: " + err.Error(),
		})
		return
	}

	if err := h.engine.ValidateMetric(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if _, err := h.repo.GetMetricDefinition(ctx, def.MetricCode); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "metric code already exists",
		})
		return
	}

	// Definitions created through the API are never baseline
	def.IsBaseline = false
	if def.MetricID == "" {
		def.MetricID = "met_" + uuid.New().String()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}

	if err := h.repo.SaveMetricDefinition(ctx, &def); err != nil {
		slog.Error("failed to save metric", "code", def.MetricCode, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save metric",
		})
		return
	}

	if def.IsActive {
		if err := h.engine.LoadMetric(&def); err != nil {
			slog.Error("failed to load metric into engine", "code", def.MetricCode, "error", err)
		}
	}

	h.publish(ctx, domain.TopicMetricUpdated, def.MetricCode)

	slog.Info("metric created", "code", def.MetricCode, "name", def.MetricName)
	writeJSON(w, http.StatusCreated, &def)
}

// UpdateMetric replaces a custom metric definition.
// Baseline definitions are immutable.
func (h *Handler) UpdateMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	existing, err := h.repo.GetMetricDefinition(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "metric not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metric",
		})
		return
	}
	if existing.IsBaseline {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "baseline metrics are immutable; duplicate to customize",
		})
		return
	}

	var def domain.MetricDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body: " + err.Error(),
		})
		return
	}
	def.MetricCode = code
	def.MetricID = existing.MetricID
	def.IsBaseline = false
	if def.CreatedAt.IsZero() {
		def.CreatedAt = existing.CreatedAt
	}

	if err := h.engine.ValidateMetric(&def); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveMetricDefinition(ctx, &def); err != nil {
		slog.Error("failed to update metric", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update metric",
		})
		return
	}

	h.reloadMetricsFromRepo(ctx)
	h.publish(ctx, domain.TopicMetricUpdated, code)

	slog.Info("metric updated", "code", code)
	writeJSON(w, http.StatusOK, &def)
}

// DuplicateMetricRequest is the request body for duplicating a metric.
type DuplicateMetricRequest struct {
	MetricCode string `json:"metric_code"`
	MetricName string `json:"metric_name,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
}

// DuplicateMetric clones a definition under a new code. This is the
// supported path for customizing a baseline metric.
func (h *Handler) DuplicateMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	source, err := h.repo.GetMetricDefinition(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "metric not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metric",
		})
		return
	}

	var req DuplicateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.MetricCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "metric_code is required",
		})
		return
	}
	if _, err := h.repo.GetMetricDefinition(ctx, req.MetricCode); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "metric code already exists",
		})
		return
	}

	clone := *source
	clone.MetricID = "met_" + uuid.New().String()
	clone.MetricCode = req.MetricCode
	clone.IsBaseline = false
	clone.CreatedAt = time.Now().UTC()
	if req.MetricName != "" {
		clone.MetricName = req.MetricName
	} else {
		clone.MetricName = source.MetricName + " (copy)"
	}
	if req.CreatedBy != "" {
		clone.CreatedBy = req.CreatedBy
	}

	if err := h.repo.SaveMetricDefinition(ctx, &clone); err != nil {
		slog.Error("failed to save duplicated metric", "code", clone.MetricCode, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save metric",
		})
		return
	}

	if clone.IsActive {
		if err := h.engine.LoadMetric(&clone); err != nil {
			slog.Error("failed to load duplicated metric", "code", clone.MetricCode, "error", err)
		}
	}

	h.publish(ctx, domain.TopicMetricUpdated, clone.MetricCode)

	slog.Info("metric duplicated", "source", code, "code", clone.MetricCode)
	writeJSON(w, http.StatusCreated, &clone)
}

// DeleteMetric deletes a custom metric definition.
// Baseline definitions cannot be deleted.
func (h *Handler) DeleteMetric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	existing, err := h.repo.GetMetricDefinition(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "metric not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get metric",
		})
		return
	}
	if existing.IsBaseline {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "baseline metrics cannot be deleted",
		})
		return
	}

	if err := h.repo.DeleteMetricDefinition(ctx, code); err != nil {
		slog.Error("failed to delete metric", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete metric",
		})
		return
	}

	h.reloadMetricsFromRepo(ctx)
	h.publish(ctx, domain.TopicMetricUpdated, code)

	slog.Info("metric deleted", "code", code)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "metric deleted",
	})
}

// ReloadMetrics reloads all active definitions from the database into
// the engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defs, err := h.repo.ListMetricDefinitions(ctx)
	if err != nil {
		slog.Error("failed to list metrics from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load metrics from database",
		})
		return
	}

	if err := h.engine.ReloadMetrics(defs); err != nil {
		slog.Error("failed to reload metrics into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload metrics: " + err.Error(),
		})
		return
	}

	slog.Info("metrics reloaded from database", "count", h.engine.MetricsCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "metrics reloaded successfully",
		"count":   h.engine.MetricsCount(),
	})
}

// ListSegments returns all loaded segments.
func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments := h.engine.GetLoadedSegments()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"segments": segments,
		"count":    len(segments),
	})
}

// GetSegment retrieves a segment by code.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if seg, ok := h.engine.GetSegment(code); ok {
		writeJSON(w, http.StatusOK, seg)
		return
	}

	seg, err := h.repo.GetSegment(r.Context(), code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "segment not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get segment", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get segment",
		})
		return
	}

	writeJSON(w, http.StatusOK, seg)
}

// CreateSegment creates a custom segment.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var seg domain.Segment
	if err := json.NewDecoder(r.Body).Decode(&seg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body: " + err.Error(),
		})
		return
	}

	if err := h.engine.ValidateSegment(&seg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if _, err := h.repo.GetSegment(ctx, seg.SegmentCode); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "segment code already exists",
		})
		return
	}

	seg.IsBaseline = false
	if seg.SegmentID == "" {
		seg.SegmentID = "seg_" + uuid.New().String()
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}

	if err := h.repo.SaveSegment(ctx, &seg); err != nil {
		slog.Error("failed to save segment", "code", seg.SegmentCode, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save segment",
		})
		return
	}

	if seg.IsActive {
		if err := h.engine.LoadSegment(&seg); err != nil {
			slog.Error("failed to load segment into engine", "code", seg.SegmentCode, "error", err)
		}
	}

	h.publish(ctx, domain.TopicSegmentUpdated, seg.SegmentCode)

	slog.Info("segment created", "code", seg.SegmentCode, "name", seg.SegmentName)
	writeJSON(w, http.StatusCreated, &seg)
}

// UpdateSegment replaces a custom segment. Baseline segments are
// immutable.
func (h *Handler) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	existing, err := h.repo.GetSegment(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "segment not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get segment",
		})
		return
	}
	if existing.IsBaseline {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "baseline segments are immutable",
		})
		return
	}

	var seg domain.Segment
	if err := json.NewDecoder(r.Body).Decode(&seg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body: " + err.Error(),
		})
		return
	}
	seg.SegmentCode = code
	seg.SegmentID = existing.SegmentID
	seg.IsBaseline = false
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = existing.CreatedAt
	}

	if err := h.engine.ValidateSegment(&seg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveSegment(ctx, &seg); err != nil {
		slog.Error("failed to update segment", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update segment",
		})
		return
	}

	h.reloadSegmentsFromRepo(ctx)
	h.publish(ctx, domain.TopicSegmentUpdated, code)

	slog.Info("segment updated", "code", code)
	writeJSON(w, http.StatusOK, &seg)
}

// DeleteSegment deletes a custom segment. Baseline segments cannot be
// deleted.
func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := chi.URLParam(r, "code")

	existing, err := h.repo.GetSegment(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "segment not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get segment",
		})
		return
	}
	if existing.IsBaseline {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "baseline segments cannot be deleted",
		})
		return
	}

	if err := h.repo.DeleteSegment(ctx, code); err != nil {
		slog.Error("failed to delete segment", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete segment",
		})
		return
	}

	h.reloadSegmentsFromRepo(ctx)
	h.publish(ctx, domain.TopicSegmentUpdated, code)

	slog.Info("segment deleted", "code", code)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "segment deleted",
	})
}

// ReloadSegments reloads all active segments from the database into
// the engine.
func (h *Handler) ReloadSegments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	segments, err := h.repo.ListSegments(ctx)
	if err != nil {
		slog.Error("failed to list segments from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load segments from database",
		})
		return
	}

	if err := h.engine.ReloadSegments(segments); err != nil {
		slog.Error("failed to reload segments into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload segments: " + err.Error(),
		})
		return
	}

	slog.Info("segments reloaded from database", "count", h.engine.SegmentsCount())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "segments reloaded successfully",
		"count":   h.engine.SegmentsCount(),
	})
}

// ListOverrides returns all stored transaction overrides.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.repo.ListOverrides(r.Context())
	if err != nil {
		slog.Error("failed to list overrides", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list overrides",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overrides": overrides,
		"count":     len(overrides),
	})
}

// CreateOverride records a manual per-entity segment exception.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var override domain.TransactionOverride
	if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body: " + err.Error(),
		})
		return
	}

	if err := override.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if override.OverrideID == "" {
		override.OverrideID = "ovr_" + uuid.New().String()
	}
	if override.AppliedAt.IsZero() {
		override.AppliedAt = time.Now().UTC()
	}

	if err := h.repo.SaveOverride(ctx, &override); err != nil {
		slog.Error("failed to save override", "id", override.OverrideID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save override",
		})
		return
	}

	h.reloadOverridesFromRepo(ctx)
	h.publish(ctx, domain.TopicOverrideUpdated, override.OverrideID)

	slog.Info("override created",
		"id", override.OverrideID,
		"entity_id", override.EntityID,
		"segment_id", override.SegmentID,
	)
	writeJSON(w, http.StatusCreated, &override)
}

// DeleteOverride removes a transaction override.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overrideID := chi.URLParam(r, "id")

	if err := h.repo.DeleteOverride(ctx, overrideID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "override not found",
			})
			return
		}
		slog.Error("failed to delete override", "id", overrideID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete override",
		})
		return
	}

	h.reloadOverridesFromRepo(ctx)
	h.publish(ctx, domain.TopicOverrideUpdated, overrideID)

	slog.Info("override deleted", "id", overrideID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "override deleted",
	})
}

// CarrierReports handles GET /reports/carriers. Reports are computed
// live over the current record set; from/to query parameters bound the
// period by load creation time.
func (h *Handler) CarrierReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period, err := periodFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	rs, err := h.snapshots.RecordSet(ctx, time.Time{})
	if err != nil {
		slog.Error("failed to load record set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load record set",
		})
		return
	}

	reports, err := h.builder.CarrierReports(ctx, rs, period)
	if err != nil {
		slog.Error("failed to build carrier reports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build carrier reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// LaneReports handles GET /reports/lanes.
func (h *Handler) LaneReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	period, err := periodFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	rs, err := h.snapshots.RecordSet(ctx, time.Time{})
	if err != nil {
		slog.Error("failed to load record set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load record set",
		})
		return
	}

	reports, err := h.builder.LaneReports(ctx, rs, period)
	if err != nil {
		slog.Error("failed to build lane reports", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build lane reports",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// AssistRequest is the request body for POST /assist.
type AssistRequest struct {
	Prompt string `json:"prompt"`
}

// Assist translates a natural-language prompt into a draft metric or
// segment definition. The draft is a starting point, never persisted.
func (h *Handler) Assist(w http.ResponseWriter, r *http.Request) {
	var req AssistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "prompt is required",
		})
		return
	}

	draft, ok := assist.Suggest(req.Prompt)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"matched": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matched": true,
		"draft":   draft,
	})
}

func (h *Handler) reloadMetricsFromRepo(ctx context.Context) {
	defs, err := h.repo.ListMetricDefinitions(ctx)
	if err != nil {
		slog.Error("failed to reload metrics", "error", err)
		return
	}
	if err := h.engine.ReloadMetrics(defs); err != nil {
		slog.Error("failed to reload metrics", "error", err)
	}
}

func (h *Handler) reloadSegmentsFromRepo(ctx context.Context) {
	segments, err := h.repo.ListSegments(ctx)
	if err != nil {
		slog.Error("failed to reload segments", "error", err)
		return
	}
	if err := h.engine.ReloadSegments(segments); err != nil {
		slog.Error("failed to reload segments", "error", err)
	}
}

func (h *Handler) reloadOverridesFromRepo(ctx context.Context) {
	overrides, err := h.repo.ListOverrides(ctx)
	if err != nil {
		slog.Error("failed to reload overrides", "error", err)
		return
	}
	h.engine.ReloadOverrides(overrides)
}

func (h *Handler) publish(ctx context.Context, topic, id string) {
	if h.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"id": id})
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func periodFromQuery(r *http.Request) (domain.TimePeriod, error) {
	var period domain.TimePeriod
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return period, errors.New("invalid from parameter, expected RFC3339")
		}
		period.Start = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return period, errors.New("invalid to parameter, expected RFC3339")
		}
		period.End = t
	}
	return period, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
