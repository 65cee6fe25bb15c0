package engine

import (
	"testing"

	"github.com/openfreight/milepost/internal/domain"
)

func TestResolveDottedPaths(t *testing.T) {
	rs := NewRecordSet(fixtureLoads())
	loads := rs.Entities(domain.EntityLoads)
	if len(loads) != 3 {
		t.Fatalf("expected 3 load entities, got %d", len(loads))
	}
	ld100 := &loads[0]

	tests := []struct {
		name string
		path string
		want any
		ok   bool
	}{
		{"top-level string", "load_id", "LD-100", true},
		{"nested struct", "carrier.scac", "SWFT", true},
		{"nested number", "length_of_haul.value", float64(500), true},
		{"nested bool", "metadata.is_test", false, true},
		{"timestamp as string", "tender.accepted_at", "2024-03-01T10:00:00Z", true},
		{"missing field", "no_such_field", nil, false},
		{"missing intermediate", "carrier.missing.deep", nil, false},
		{"path through absent optional", "tender.rejected_at", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ld100.Resolve(tt.path)
			if ok != tt.ok {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Errorf("Resolve(%q) = %v (%T), want %v", tt.path, got, got, tt.want)
			}
		})
	}
}

func TestResolveThroughList(t *testing.T) {
	rs := NewRecordSet(fixtureLoads())
	loads := rs.Entities(domain.EntityLoads)
	ld100 := &loads[0]

	got, ok := ld100.Resolve("charges.line_items.amount.value")
	if !ok {
		t.Fatal("expected charge amounts to resolve")
	}
	values, isList := got.([]any)
	if !isList || len(values) != 2 {
		t.Fatalf("expected 2 flattened amounts, got %v", got)
	}
	if values[0] != float64(1000) || values[1] != float64(250) {
		t.Errorf("unexpected amounts: %v", values)
	}
}

func TestDerivedFields(t *testing.T) {
	rs := NewRecordSet(fixtureLoads())

	loads := rs.Entities(domain.EntityLoads)
	if v, ok := loads[0].Resolve("tender_response_hours"); !ok || v != float64(2) {
		t.Errorf("LD-100 tender_response_hours = %v, %v; want 2, true", v, ok)
	}
	if v, ok := loads[0].Resolve("first_tender_status"); !ok || v != domain.TenderAccepted {
		t.Errorf("LD-100 first_tender_status = %v, %v", v, ok)
	}
	if v, ok := loads[0].Resolve("total_cost"); !ok || v != float64(1250) {
		t.Errorf("LD-100 total_cost = %v, %v; want 1250, true", v, ok)
	}

	stops := rs.Entities(domain.EntityStops)
	if len(stops) != 6 {
		t.Fatalf("expected 6 stop entities, got %d", len(stops))
	}
	// LD-100 pickup dwelled 45 minutes.
	if v, ok := stops[0].Resolve("dwell_time_minutes"); !ok || v != float64(45) {
		t.Errorf("dwell_time_minutes = %v, %v; want 45, true", v, ok)
	}
	// Stops inherit the parent contract and expose the load.
	if v, ok := stops[0].Resolve("contract_type"); !ok || v != "CONTRACT_PRIMARY" {
		t.Errorf("contract_type = %v, %v", v, ok)
	}
	if v, ok := stops[0].Resolve("load.mode"); !ok || v != "TRUCKLOAD" {
		t.Errorf("load.mode = %v, %v", v, ok)
	}
	// No dwell until both actuals are recorded.
	if _, ok := stops[5].Resolve("dwell_time_minutes"); ok {
		t.Error("expected no dwell for a stop without actuals")
	}

	tenders := rs.Entities(domain.EntityTenders)
	if v, ok := tenders[1].Resolve("response_hours"); !ok || v != float64(30) {
		t.Errorf("LD-200 response_hours = %v, %v; want 30, true", v, ok)
	}
	if _, ok := tenders[0].Resolve("rejection_reason"); ok {
		t.Error("expected no rejection_reason on an accepted tender")
	}

	items := rs.Entities(domain.EntityChargeItems)
	if len(items) != 4 {
		t.Fatalf("expected 4 charge line items, got %d", len(items))
	}
	if v, ok := items[0].Resolve("load_id"); !ok || v != "LD-100" {
		t.Errorf("charge item load_id = %v, %v", v, ok)
	}
}

// departureOnlyLoad builds a delivered load whose pickup has a
// recorded departure but no arrival.
func departureOnlyLoad() *domain.Load {
	return &domain.Load{
		LoadID:     "LD-400",
		LoadType:   "SHIPMENT",
		LoadStatus: "DELIVERED",
		Mode:       "TRUCKLOAD",
		Carrier:    domain.CarrierRef{CarrierID: "CAR-1", SCAC: "SWFT", Name: "Swift Logistics"},
		Stops: []domain.Stop{
			{
				StopID:      "LD-400_01",
				Sequence:    1,
				StopType:    domain.StopPickup,
				LoadingType: domain.LoadingDrop,
				Location:    domain.Location{LocationID: "LOC-1", LocationCode: "CHI"},
				Appointment: domain.Appointment{
					Type:              "APPOINTMENT",
					ScheduledEarliest: ts("2024-03-10T10:00:00Z"),
					ScheduledLatest:   ts("2024-03-10T12:00:00Z"),
				},
				Actual: &domain.ActualTimes{Departure: ts("2024-03-10T11:00:00Z")},
			},
		},
		Metadata: domain.LoadMetadata{CreatedAt: ts("2024-03-10T00:00:00Z")},
	}
}

func TestUnrecordedArrivalResolvesAbsent(t *testing.T) {
	rs := NewRecordSet([]*domain.Load{departureOnlyLoad()})
	stops := rs.Entities(domain.EntityStops)
	if len(stops) != 1 {
		t.Fatalf("expected 1 stop entity, got %d", len(stops))
	}

	if v, ok := stops[0].Resolve("actual.arrival"); ok {
		t.Errorf("unrecorded arrival should be absent, resolved %v", v)
	}
	if v, ok := stops[0].Resolve("actual.departure"); !ok || v != "2024-03-10T11:00:00Z" {
		t.Errorf("actual.departure = %v, %v; want the recorded departure", v, ok)
	}
}

func TestRecordSetVersionStable(t *testing.T) {
	a := NewRecordSet(fixtureLoads())
	b := NewRecordSet(fixtureLoads())
	if a.Version() != b.Version() {
		t.Errorf("same loads should share a version: %s vs %s", a.Version(), b.Version())
	}

	shorter := NewRecordSet(fixtureLoads()[:2])
	if shorter.Version() == a.Version() {
		t.Error("different load sets should have different versions")
	}
}
