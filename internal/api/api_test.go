package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfreight/milepost/internal/baseline"
	"github.com/openfreight/milepost/internal/bus"
	"github.com/openfreight/milepost/internal/cache"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
	"github.com/openfreight/milepost/internal/report"
	"github.com/openfreight/milepost/internal/repository"
	"github.com/openfreight/milepost/internal/snapshot"
)

// createTestServer wires a server against a temp SQLite database with
// the baseline catalog seeded.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "milepost.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	for _, load := range baseline.Loads() {
		if err := repo.SaveLoad(ctx, load); err != nil {
			t.Fatalf("failed to seed load: %v", err)
		}
	}
	for _, def := range baseline.Metrics() {
		if err := repo.SaveMetricDefinition(ctx, def); err != nil {
			t.Fatalf("failed to seed metric: %v", err)
		}
	}
	for _, seg := range baseline.Segments() {
		if err := repo.SaveSegment(ctx, seg); err != nil {
			t.Fatalf("failed to seed segment: %v", err)
		}
	}

	c := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(16)
	t.Cleanup(func() { eventBus.Close() })

	eng := engine.NewEngine(c, time.Minute, 4)
	if err := eng.LoadMetrics(baseline.Metrics()); err != nil {
		t.Fatalf("failed to load metrics: %v", err)
	}
	if err := eng.LoadSegments(baseline.Segments()); err != nil {
		t.Fatalf("failed to load segments: %v", err)
	}

	snapshots := snapshot.NewService(repo, time.Minute)
	builder := report.NewBuilder(eng)

	return NewServer(cfg, repo, c, eventBus, eng, builder, snapshots, "test-v1")
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestEvaluateEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("BaselineMetric", func(t *testing.T) {
		rr := postJSON(t, server, "/evaluate", EvaluateRequest{MetricCode: "OTD_15MIN"})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp EvaluateResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.MetricCode != "OTD_15MIN" {
			t.Errorf("expected metric_code OTD_15MIN, got %s", resp.MetricCode)
		}
		if !resp.Defined {
			t.Error("expected a defined result over seeded loads")
		}
		if resp.Value == nil {
			t.Fatal("expected a value for a defined result")
		}
		if *resp.Value < 0 || *resp.Value > 100 {
			t.Errorf("percentage out of range: %f", *resp.Value)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected trace_id in metadata")
		}
		if resp.Metadata.RecordSetVersion == "" {
			t.Error("expected record_set_version in metadata")
		}
	})

	t.Run("SegmentsChangeResult", func(t *testing.T) {
		raw := postJSON(t, server, "/evaluate", EvaluateRequest{
			MetricCode:  "OTD_15MIN",
			NoAutoApply: true,
			BypassCache: true,
		})
		adjusted := postJSON(t, server, "/evaluate", EvaluateRequest{
			MetricCode:  "OTD_15MIN",
			Segments:    []string{"NO_TEST_LOADS"},
			NoAutoApply: true,
			BypassCache: true,
		})

		if raw.Code != http.StatusOK || adjusted.Code != http.StatusOK {
			t.Fatalf("expected 200s, got %d and %d", raw.Code, adjusted.Code)
		}

		var rawResp, adjResp EvaluateResponse
		json.Unmarshal(raw.Body.Bytes(), &rawResp)
		json.Unmarshal(adjusted.Body.Bytes(), &adjResp)
		if !rawResp.Defined || !adjResp.Defined {
			t.Fatal("expected both results defined")
		}
	})

	t.Run("InlineDefinition", func(t *testing.T) {
		def := domain.MetricDefinition{
			MetricCode: "ADHOC_LOAD_COUNT",
			MetricName: "Ad-hoc Load Count",
			Formula: domain.Aggregate{Aggregation: domain.Aggregation{
				Function: domain.AggCount,
				Entity:   domain.EntityLoads,
			}},
			Entity:     domain.EntityLoads,
			ReturnType: domain.ReturnInteger,
		}
		raw, _ := json.Marshal(&def)

		rr := postJSON(t, server, "/evaluate", EvaluateRequest{Definition: raw, NoAutoApply: true})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp EvaluateResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Value == nil || *resp.Value != float64(len(baseline.Loads())) {
			t.Errorf("expected count %d, got %v", len(baseline.Loads()), resp.Value)
		}
	})

	t.Run("UnknownMetric", func(t *testing.T) {
		rr := postJSON(t, server, "/evaluate", EvaluateRequest{MetricCode: "NOPE"})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("UnknownSegment", func(t *testing.T) {
		rr := postJSON(t, server, "/evaluate", EvaluateRequest{
			MetricCode: "OTD_15MIN",
			Segments:   []string{"MISSING_SEGMENT"},
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("MissingCodeAndDefinition", func(t *testing.T) {
		rr := postJSON(t, server, "/evaluate", EvaluateRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := postJSON(t, server, "/evaluate", EvaluateRequest{MetricCode: "OTD_15MIN"})

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestMetricEndpoints(t *testing.T) {
	server := createTestServer(t)

	customMetric := func(code string) *domain.MetricDefinition {
		return &domain.MetricDefinition{
			MetricCode: code,
			MetricName: "Custom " + code,
			Formula: domain.Aggregate{Aggregation: domain.Aggregation{
				Function: domain.AggCount,
				Entity:   domain.EntityLoads,
			}},
			Entity:     domain.EntityLoads,
			ReturnType: domain.ReturnInteger,
			IsActive:   true,
			CreatedBy:  "test",
		}
	}

	t.Run("ListIncludesBaseline", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count < len(baseline.Metrics()) {
			t.Errorf("expected at least %d metrics, got %d", len(baseline.Metrics()), resp.Count)
		}
	})

	t.Run("GetBaseline", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics/OTP_EXACT", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var def domain.MetricDefinition
		if err := json.Unmarshal(rr.Body.Bytes(), &def); err != nil {
			t.Fatalf("failed to parse metric: %v", err)
		}
		if !def.IsBaseline {
			t.Error("expected baseline flag on OTP_EXACT")
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics/NOPE", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateAndEvaluate", func(t *testing.T) {
		rr := postJSON(t, server, "/metrics", customMetric("CUSTOM_COUNT"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		eval := postJSON(t, server, "/evaluate", EvaluateRequest{MetricCode: "CUSTOM_COUNT"})
		if eval.Code != http.StatusOK {
			t.Fatalf("expected status 200 evaluating created metric, got %d", eval.Code)
		}
	})

	t.Run("CreateDuplicateCode", func(t *testing.T) {
		rr := postJSON(t, server, "/metrics", customMetric("OTP_EXACT"))
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := postJSON(t, server, "/metrics", map[string]any{"metric_name": "no code"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UpdateBaselineForbidden", func(t *testing.T) {
		raw, _ := json.Marshal(customMetric("OTP_EXACT"))
		req := httptest.NewRequest(http.MethodPut, "/metrics/OTP_EXACT", bytes.NewBuffer(raw))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rr.Code)
		}
	})

	t.Run("UpdateCustom", func(t *testing.T) {
		if rr := postJSON(t, server, "/metrics", customMetric("CUSTOM_UPD")); rr.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d", rr.Code)
		}

		updated := customMetric("CUSTOM_UPD")
		updated.MetricName = "Renamed"
		raw, _ := json.Marshal(updated)
		req := httptest.NewRequest(http.MethodPut, "/metrics/CUSTOM_UPD", bytes.NewBuffer(raw))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var def domain.MetricDefinition
		json.Unmarshal(rr.Body.Bytes(), &def)
		if def.MetricName != "Renamed" {
			t.Errorf("expected renamed metric, got %s", def.MetricName)
		}
	})

	t.Run("DuplicateBaseline", func(t *testing.T) {
		rr := postJSON(t, server, "/metrics/OTP_EXACT/duplicate", DuplicateMetricRequest{
			MetricCode: "OTP_EXACT_COPY",
			CreatedBy:  "test",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var def domain.MetricDefinition
		json.Unmarshal(rr.Body.Bytes(), &def)
		if def.IsBaseline {
			t.Error("duplicated metric must not be baseline")
		}
		if def.MetricCode != "OTP_EXACT_COPY" {
			t.Errorf("expected code OTP_EXACT_COPY, got %s", def.MetricCode)
		}
	})

	t.Run("DeleteBaselineForbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/metrics/OTP_EXACT", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rr.Code)
		}
	})

	t.Run("DeleteCustom", func(t *testing.T) {
		if rr := postJSON(t, server, "/metrics", customMetric("CUSTOM_DEL")); rr.Code != http.StatusCreated {
			t.Fatalf("setup create failed: %d", rr.Code)
		}

		req := httptest.NewRequest(http.MethodDelete, "/metrics/CUSTOM_DEL", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		get := httptest.NewRequest(http.MethodGet, "/metrics/CUSTOM_DEL", nil)
		grr := httptest.NewRecorder()
		server.Router().ServeHTTP(grr, get)
		if grr.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", grr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/metrics/reload", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestSegmentEndpoints(t *testing.T) {
	server := createTestServer(t)

	customSegment := func(code string) *domain.Segment {
		return &domain.Segment{
			SegmentCode:     code,
			SegmentName:     "Custom " + code,
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityLoads},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("load_status", domain.OpEqual, "CANCELLED"),
			IsActive:        true,
			CreatedBy:       "test",
		}
	}

	t.Run("ListIncludesBaseline", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/segments", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count < len(baseline.Segments()) {
			t.Errorf("expected at least %d segments, got %d", len(baseline.Segments()), resp.Count)
		}
	})

	t.Run("CreateGetDelete", func(t *testing.T) {
		rr := postJSON(t, server, "/segments", customSegment("NO_CANCELLED"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		get := httptest.NewRequest(http.MethodGet, "/segments/NO_CANCELLED", nil)
		grr := httptest.NewRecorder()
		server.Router().ServeHTTP(grr, get)
		if grr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", grr.Code)
		}

		del := httptest.NewRequest(http.MethodDelete, "/segments/NO_CANCELLED", nil)
		drr := httptest.NewRecorder()
		server.Router().ServeHTTP(drr, del)
		if drr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", drr.Code)
		}
	})

	t.Run("CreateDuplicateCode", func(t *testing.T) {
		rr := postJSON(t, server, "/segments", customSegment("NO_TEST_LOADS"))
		if rr.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rr.Code)
		}
	})

	t.Run("MutateBaselineForbidden", func(t *testing.T) {
		raw, _ := json.Marshal(customSegment("NO_TEST_LOADS"))
		put := httptest.NewRequest(http.MethodPut, "/segments/NO_TEST_LOADS", bytes.NewBuffer(raw))
		prr := httptest.NewRecorder()
		server.Router().ServeHTTP(prr, put)
		if prr.Code != http.StatusForbidden {
			t.Errorf("expected status 403 on update, got %d", prr.Code)
		}

		del := httptest.NewRequest(http.MethodDelete, "/segments/NO_TEST_LOADS", nil)
		drr := httptest.NewRecorder()
		server.Router().ServeHTTP(drr, del)
		if drr.Code != http.StatusForbidden {
			t.Errorf("expected status 403 on delete, got %d", drr.Code)
		}
	})

	t.Run("Reload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/segments/reload", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestOverrideEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateListDelete", func(t *testing.T) {
		rr := postJSON(t, server, "/overrides", &domain.TransactionOverride{
			EntityID:       "load-001",
			EntityType:     "LOAD",
			SegmentID:      "seg_weather",
			OverrideAction: domain.OverrideInclude,
			Reason:         "weather exclusion disputed by carrier",
			AppliedBy:      "analyst",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var created domain.TransactionOverride
		json.Unmarshal(rr.Body.Bytes(), &created)
		if created.OverrideID == "" {
			t.Fatal("expected generated override_id")
		}

		list := httptest.NewRequest(http.MethodGet, "/overrides", nil)
		lrr := httptest.NewRecorder()
		server.Router().ServeHTTP(lrr, list)
		if lrr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", lrr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(lrr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 override, got %d", resp.Count)
		}

		del := httptest.NewRequest(http.MethodDelete, "/overrides/"+created.OverrideID, nil)
		drr := httptest.NewRecorder()
		server.Router().ServeHTTP(drr, del)
		if drr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", drr.Code)
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := postJSON(t, server, "/overrides", &domain.TransactionOverride{EntityID: "load-001"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		del := httptest.NewRequest(http.MethodDelete, "/overrides/ovr_missing", nil)
		drr := httptest.NewRecorder()
		server.Router().ServeHTTP(drr, del)
		if drr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", drr.Code)
		}
	})
}

func TestLoadEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("IngestAndGet", func(t *testing.T) {
		load := &domain.Load{
			LoadID:     "load-api-001",
			LoadStatus: "DELIVERED",
			Carrier:    domain.CarrierRef{CarrierID: "car-001", SCAC: "SWFT"},
		}
		rr := postJSON(t, server, "/loads", load)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		get := httptest.NewRequest(http.MethodGet, "/loads/load-api-001", nil)
		grr := httptest.NewRecorder()
		server.Router().ServeHTTP(grr, get)
		if grr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", grr.Code)
		}
		var fetched domain.Load
		if err := json.Unmarshal(grr.Body.Bytes(), &fetched); err != nil {
			t.Fatalf("failed to parse load: %v", err)
		}
		if fetched.LoadID != "load-api-001" {
			t.Errorf("expected load-api-001, got %s", fetched.LoadID)
		}
		if fetched.Metadata.CreatedAt.IsZero() {
			t.Error("expected created_at to be stamped on ingest")
		}
	})

	t.Run("MissingLoadID", func(t *testing.T) {
		rr := postJSON(t, server, "/loads", &domain.Load{LoadStatus: "DELIVERED"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("GetUnknown", func(t *testing.T) {
		get := httptest.NewRequest(http.MethodGet, "/loads/load-missing", nil)
		grr := httptest.NewRecorder()
		server.Router().ServeHTTP(grr, get)
		if grr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", grr.Code)
		}
	})
}

func TestReportEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CarrierReports", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/carriers", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count == 0 {
			t.Error("expected carrier reports over seeded loads")
		}
	})

	t.Run("LaneReports", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/lanes", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("PeriodFilter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/carriers?from=2030-01-01T00:00:00Z", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 0 {
			t.Errorf("expected no reports for a future period, got %d", resp.Count)
		}
	})

	t.Run("InvalidPeriod", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/carriers?from=yesterday", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestAssistEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("MetricDraft", func(t *testing.T) {
		rr := postJSON(t, server, "/assist", AssistRequest{
			Prompt: "on-time delivery percentage with a 30 minute grace window",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Matched bool `json:"matched"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if !resp.Matched {
			t.Error("expected a draft for an on-time delivery prompt")
		}
	})

	t.Run("MissingPrompt", func(t *testing.T) {
		rr := postJSON(t, server, "/assist", AssistRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
