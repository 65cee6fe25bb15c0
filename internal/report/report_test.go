package report

import (
	"context"
	"testing"
	"time"

	"github.com/openfreight/milepost/internal/baseline"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
)

func newBuilder(t *testing.T) (*Builder, *engine.RecordSet) {
	t.Helper()
	e := engine.NewEngine(nil, 0, 4)
	if err := e.LoadMetrics(baseline.Metrics()); err != nil {
		t.Fatalf("failed to load metrics: %v", err)
	}
	if err := e.LoadSegments(baseline.Segments()); err != nil {
		t.Fatalf("failed to load segments: %v", err)
	}
	return NewBuilder(e), engine.NewRecordSet(baseline.Loads())
}

func TestCarrierReports(t *testing.T) {
	b, rs := newBuilder(t)
	reports, err := b.CarrierReports(context.Background(), rs, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("carrier reports failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 carriers, got %d", len(reports))
	}

	// Sorted by carrier id: car_hunt, car_knight, car_swift.
	hunt := reports[0]
	if hunt.Carrier.CarrierID != "car_hunt" {
		t.Fatalf("expected car_hunt first, got %s", hunt.Carrier.CarrierID)
	}
	if hunt.Volume.TotalLoads != 2 {
		t.Errorf("hunt volume = %d, want 2", hunt.Volume.TotalLoads)
	}

	// Hunt's deliveries are both late raw (carrier and customer
	// fault); the customer-fault one drops under the exclusions.
	if hunt.Performance.OTDExact == nil || *hunt.Performance.OTDExact != 0 {
		t.Errorf("hunt raw OTD = %v, want 0", hunt.Performance.OTDExact)
	}
	if hunt.PerformanceExcludingFault == nil || hunt.PerformanceExcludingFault.OTDExact == nil {
		t.Fatal("expected a fault-adjusted OTD for hunt")
	}
	if *hunt.PerformanceExcludingFault.OTDExact != 0 {
		// The carrier-fault delivery stays in scope.
		t.Errorf("hunt adjusted OTD = %v, want 0", *hunt.PerformanceExcludingFault.OTDExact)
	}

	swift := reports[2]
	if swift.Carrier.CarrierID != "car_swift" {
		t.Fatalf("expected car_swift last, got %s", swift.Carrier.CarrierID)
	}
	// Swift: load_001 and load_004 delivered on time; load_007 has no
	// delivery arrival yet.
	if swift.Performance.OTDExact == nil || *swift.Performance.OTDExact != 100 {
		t.Errorf("swift raw OTD = %v, want 100", swift.Performance.OTDExact)
	}
	if swift.Tender.AcceptanceRate == nil || *swift.Tender.AcceptanceRate != 50 {
		// One accepted, one rejected, one pending.
		t.Errorf("swift acceptance rate = %v, want 50", swift.Tender.AcceptanceRate)
	}
	if swift.Tender.RejectionRate == nil || *swift.Tender.RejectionRate != 50 {
		t.Errorf("swift rejection rate = %v, want 50", swift.Tender.RejectionRate)
	}
	if swift.Cost.TotalSpend == 0 {
		t.Error("expected swift spend to be summed")
	}
	if len(swift.Lanes) == 0 {
		t.Error("expected lane breakdown for swift")
	}
}

func TestCarrierReportPeriodFilter(t *testing.T) {
	b, rs := newBuilder(t)
	period := domain.TimePeriod{
		Start: time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	reports, err := b.CarrierReports(context.Background(), rs, period)
	if err != nil {
		t.Fatalf("carrier reports failed: %v", err)
	}
	for _, rep := range reports {
		if rep.TimePeriod != period {
			t.Errorf("report period = %+v, want %+v", rep.TimePeriod, period)
		}
		if rep.Carrier.CarrierID == "car_knight" && rep.Volume.TotalLoads != 1 {
			t.Errorf("knight loads in window = %d, want 1", rep.Volume.TotalLoads)
		}
	}
}

func TestLaneReports(t *testing.T) {
	b, rs := newBuilder(t)
	reports, err := b.LaneReports(context.Background(), rs, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("lane reports failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 lanes, got %d", len(reports))
	}
	codes := []string{reports[0].Lane.LaneCode, reports[1].Lane.LaneCode, reports[2].Lane.LaneCode}
	want := []string{"ATL-MIA", "CHI-DAL", "LAX-PHX"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("lane order = %v, want %v", codes, want)
		}
	}

	atlMia := reports[0]
	if atlMia.Volume.TotalLoads != 3 {
		t.Errorf("ATL-MIA volume = %d, want 3", atlMia.Volume.TotalLoads)
	}
	if atlMia.Lane.Origin.LocationCode != "ATL" || atlMia.Lane.Destination.LocationCode != "MIA" {
		t.Errorf("lane endpoints wrong: %+v", atlMia.Lane)
	}
	if atlMia.Performance.OTDExact == nil {
		t.Error("expected a defined OTD for ATL-MIA")
	}
}

func TestSnapshots(t *testing.T) {
	b, rs := newBuilder(t)
	snaps, err := b.Snapshots(context.Background(), rs, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("snapshots failed: %v", err)
	}
	// 3 carriers + 3 lanes.
	if len(snaps) != 6 {
		t.Fatalf("expected 6 snapshots, got %d", len(snaps))
	}
	kinds := map[string]int{}
	for _, s := range snaps {
		kinds[s.Kind]++
		if s.ID == "" || s.Key == "" || len(s.Report) == 0 {
			t.Errorf("incomplete snapshot: %+v", s)
		}
	}
	if kinds[domain.SnapshotCarrier] != 3 || kinds[domain.SnapshotLane] != 3 {
		t.Errorf("snapshot kinds = %v", kinds)
	}
}

func TestUndefinedMetricsStayNil(t *testing.T) {
	// An engine with no dwell metric loaded must yield nil, not zero.
	e := engine.NewEngine(nil, 0, 2)
	if err := e.LoadMetrics(baseline.Metrics()[:5]); err != nil {
		t.Fatalf("failed to load metrics: %v", err)
	}
	b := NewBuilder(e)
	rs := engine.NewRecordSet(baseline.Loads())

	reports, err := b.CarrierReports(context.Background(), rs, domain.TimePeriod{})
	if err != nil {
		t.Fatalf("carrier reports failed: %v", err)
	}
	for _, rep := range reports {
		if rep.Performance.AvgDwellMinutes != nil {
			t.Error("missing metric should surface as nil")
		}
	}
}
