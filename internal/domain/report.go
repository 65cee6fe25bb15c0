package domain

import (
	"encoding/json"
	"time"
)

// MetricValue is a computed metric, possibly undefined. An undefined
// value (zero denominator, empty aggregate) must never be rendered as
// zero by consumers.
type MetricValue struct {
	MetricCode string   `json:"metric_code"`
	Value      *float64 `json:"value"` // nil when undefined
	Unit       string   `json:"unit,omitempty"`
	Precision  int      `json:"precision,omitempty"`
}

// Defined reports whether the value is usable.
func (v MetricValue) Defined() bool {
	return v.Value != nil
}

// TimePeriod bounds a report.
type TimePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// VolumeStats counts the loads behind a report.
type VolumeStats struct {
	TotalLoads int `json:"total_loads"`
	Shipments  int `json:"shipments"`
	Tenders    int `json:"tenders"`
}

// PerformanceStats holds on-time and dwell roll-ups. Undefined values
// (no measurable stops) are nil.
type PerformanceStats struct {
	OTPExact          *float64 `json:"otp_exact"`
	OTP15Min          *float64 `json:"otp_15min"`
	OTP60Min          *float64 `json:"otp_60min"`
	OTDExact          *float64 `json:"otd_exact"`
	OTD15Min          *float64 `json:"otd_15min"`
	AvgDwellMinutes   *float64 `json:"avg_dwell_time"`
	EligiblePickups   int      `json:"eligible_pickups,omitempty"`
	EligibleDeliveries int     `json:"eligible_deliveries,omitempty"`
}

// TenderStats holds tender roll-ups.
type TenderStats struct {
	AcceptanceRate   *float64 `json:"acceptance_rate"`
	RejectionRate    *float64 `json:"rejection_rate"`
	AvgResponseHours *float64 `json:"avg_response_time_hours"`
	FTAR             *float64 `json:"ftar"`
}

// CostStats holds cost roll-ups.
type CostStats struct {
	AvgCostPerMile *float64 `json:"avg_cost_per_mile"`
	CostIndex      *float64 `json:"cost_index,omitempty"`
	TotalSpend     float64  `json:"total_spend"`
	Currency       string   `json:"currency"`
}

// CarrierReport is the per-carrier roll-up. Performance is reported
// twice: raw, and with the fault-exclusion segments applied; the
// second figure comes from re-running the evaluator with a different
// segment set, never from a hardcoded field.
type CarrierReport struct {
	Carrier    Carrier          `json:"carrier"`
	TimePeriod TimePeriod       `json:"time_period"`
	Volume     VolumeStats      `json:"volume"`
	Performance PerformanceStats `json:"performance"`
	PerformanceExcludingFault *PerformanceStats `json:"performance_excluding_shipper_fault,omitempty"`
	Tender     TenderStats      `json:"tender"`
	Cost       CostStats        `json:"cost"`
	Lanes      []CarrierLanePerformance `json:"lanes,omitempty"`
}

// CarrierLanePerformance summarizes one carrier on one lane.
type CarrierLanePerformance struct {
	LaneCode  string   `json:"lane_code"`
	LoadCount int      `json:"load_count"`
	OTPExact  *float64 `json:"otp_exact"`
	OTPExactExcludingFault *float64 `json:"otp_exact_excluding_shipper_fault,omitempty"`
	AvgCPM    *float64 `json:"avg_cpm"`
}

// LaneReport is the per-lane roll-up.
type LaneReport struct {
	Lane       Lane             `json:"lane"`
	TimePeriod TimePeriod       `json:"time_period"`
	Volume     VolumeStats      `json:"volume"`
	Performance PerformanceStats `json:"performance"`
	PerformanceExcludingFault *PerformanceStats `json:"performance_excluding_shipper_fault,omitempty"`
	Tender     TenderStats      `json:"tender"`
	Cost       CostStats        `json:"cost"`
}

// Report snapshot kinds.
const (
	SnapshotCarrier = "carrier"
	SnapshotLane    = "lane"
)

// ReportSnapshot is a persisted roll-up computed by the async worker.
type ReportSnapshot struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"` // carrier or lane
	Key        string          `json:"key"`  // carrier_id or lane_code
	ComputedAt time.Time       `json:"computed_at"`
	Report     json.RawMessage `json:"report"`
}
