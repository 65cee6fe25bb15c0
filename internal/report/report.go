// Package report rolls evaluated metrics up by carrier and lane. Every
// figure in a report comes from running the evaluation engine over a
// scoped record set; the fault-adjusted columns are the same formulas
// evaluated with the exclusion segments applied.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
)

// Builder computes carrier and lane roll-ups through an engine.
type Builder struct {
	engine *engine.Engine
	now    func() time.Time
}

// NewBuilder creates a report builder over an engine with loaded
// metric and segment definitions.
func NewBuilder(e *engine.Engine) *Builder {
	return &Builder{engine: e, now: time.Now}
}

func resultPtr(r engine.Result) *float64 {
	if !r.Defined {
		return nil
	}
	v := r.Value
	return &v
}

func (b *Builder) metric(ctx context.Context, code string, rs *engine.RecordSet, opts engine.EvaluateOptions) *float64 {
	r, err := b.engine.EvaluateMetric(ctx, code, rs, opts)
	if err != nil {
		return nil
	}
	return resultPtr(r)
}

func (b *Builder) performance(ctx context.Context, rs *engine.RecordSet, opts engine.EvaluateOptions) domain.PerformanceStats {
	stats := domain.PerformanceStats{
		OTPExact:        b.metric(ctx, "OTP_EXACT", rs, opts),
		OTP15Min:        b.metric(ctx, "OTP_15MIN", rs, opts),
		OTP60Min:        b.metric(ctx, "OTP_60MIN", rs, opts),
		OTDExact:        b.metric(ctx, "OTD_EXACT", rs, opts),
		OTD15Min:        b.metric(ctx, "OTD_15MIN", rs, opts),
		AvgDwellMinutes: b.metric(ctx, "AVG_DWELL_TIME", rs, opts),
	}
	for _, l := range rs.Loads() {
		for _, s := range l.Stops {
			if s.Actual == nil {
				continue
			}
			switch s.StopType {
			case domain.StopPickup:
				stats.EligiblePickups++
			case domain.StopDelivery:
				stats.EligibleDeliveries++
			}
		}
	}
	return stats
}

func (b *Builder) tender(ctx context.Context, rs *engine.RecordSet, opts engine.EvaluateOptions) domain.TenderStats {
	stats := domain.TenderStats{
		AcceptanceRate:   b.metric(ctx, "TENDER_ACCEPTANCE_RATE", rs, opts),
		AvgResponseHours: b.metric(ctx, "TENDER_RESPONSE_TIME", rs, opts),
		FTAR:             b.metric(ctx, "FTAR", rs, opts),
	}
	if stats.AcceptanceRate != nil {
		rejection := 100 - *stats.AcceptanceRate
		stats.RejectionRate = &rejection
	}
	return stats
}

func (b *Builder) cost(ctx context.Context, rs *engine.RecordSet, opts engine.EvaluateOptions) domain.CostStats {
	stats := domain.CostStats{
		AvgCostPerMile: b.metric(ctx, "CPM_ALL_IN", rs, opts),
		CostIndex:      b.metric(ctx, "COST_INDEX", rs, opts),
		Currency:       "USD",
	}
	for _, l := range rs.Loads() {
		stats.TotalSpend += l.TotalCost()
	}
	return stats
}

func volume(loads []*domain.Load) domain.VolumeStats {
	v := domain.VolumeStats{TotalLoads: len(loads)}
	for _, l := range loads {
		if l.LoadType == "SHIPMENT" {
			v.Shipments++
		}
		if l.Tender.Status != "" {
			v.Tenders++
		}
	}
	return v
}

func withinPeriod(l *domain.Load, period domain.TimePeriod) bool {
	if !period.Start.IsZero() && l.Metadata.CreatedAt.Before(period.Start) {
		return false
	}
	if !period.End.IsZero() && l.Metadata.CreatedAt.After(period.End) {
		return false
	}
	return true
}

// CarrierReports builds one report per carrier present in the record
// set, ordered by carrier id. The fault-adjusted block re-runs the
// same formulas with the auto-applied exclusion segments.
func (b *Builder) CarrierReports(ctx context.Context, rs *engine.RecordSet, period domain.TimePeriod) ([]*domain.CarrierReport, error) {
	groups := make(map[string][]*domain.Load)
	refs := make(map[string]domain.CarrierRef)
	for _, l := range rs.Loads() {
		if !withinPeriod(l, period) {
			continue
		}
		groups[l.Carrier.CarrierID] = append(groups[l.Carrier.CarrierID], l)
		refs[l.Carrier.CarrierID] = l.Carrier
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	raw := engine.EvaluateOptions{NoAutoApply: true}
	adjusted := engine.EvaluateOptions{}

	reports := make([]*domain.CarrierReport, 0, len(ids))
	for _, id := range ids {
		loads := groups[id]
		scoped := engine.NewRecordSet(loads)
		ref := refs[id]

		excluding := b.performance(ctx, scoped, adjusted)
		rep := &domain.CarrierReport{
			Carrier: domain.Carrier{
				CarrierID: ref.CarrierID,
				SCAC:      ref.SCAC,
				Name:      ref.Name,
				Active:    true,
			},
			TimePeriod:                period,
			Volume:                    volume(loads),
			Performance:               b.performance(ctx, scoped, raw),
			PerformanceExcludingFault: &excluding,
			Tender:                    b.tender(ctx, scoped, raw),
			Cost:                      b.cost(ctx, scoped, raw),
			Lanes:                     b.carrierLanes(ctx, loads, raw, adjusted),
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func (b *Builder) carrierLanes(ctx context.Context, loads []*domain.Load, raw, adjusted engine.EvaluateOptions) []domain.CarrierLanePerformance {
	byLane := make(map[string][]*domain.Load)
	for _, l := range loads {
		code := l.Lane()
		if code == "" {
			continue
		}
		byLane[code] = append(byLane[code], l)
	}

	codes := make([]string, 0, len(byLane))
	for code := range byLane {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]domain.CarrierLanePerformance, 0, len(codes))
	for _, code := range codes {
		scoped := engine.NewRecordSet(byLane[code])
		out = append(out, domain.CarrierLanePerformance{
			LaneCode:               code,
			LoadCount:              len(byLane[code]),
			OTPExact:               b.metric(ctx, "OTP_EXACT", scoped, raw),
			OTPExactExcludingFault: b.metric(ctx, "OTP_EXACT", scoped, adjusted),
			AvgCPM:                 b.metric(ctx, "CPM_ALL_IN", scoped, raw),
		})
	}
	return out
}

// LaneReports builds one report per lane, ordered by lane code.
func (b *Builder) LaneReports(ctx context.Context, rs *engine.RecordSet, period domain.TimePeriod) ([]*domain.LaneReport, error) {
	groups := make(map[string][]*domain.Load)
	for _, l := range rs.Loads() {
		if !withinPeriod(l, period) {
			continue
		}
		code := l.Lane()
		if code == "" {
			continue
		}
		groups[code] = append(groups[code], l)
	}

	codes := make([]string, 0, len(groups))
	for code := range groups {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	raw := engine.EvaluateOptions{NoAutoApply: true}
	adjusted := engine.EvaluateOptions{}

	reports := make([]*domain.LaneReport, 0, len(codes))
	for _, code := range codes {
		loads := groups[code]
		scoped := engine.NewRecordSet(loads)

		origin := loads[0].OriginStop()
		dest := loads[0].DestinationStop()
		lane := domain.Lane{LaneCode: code}
		if origin != nil {
			lane.Origin = origin.Location
		}
		if dest != nil {
			lane.Destination = dest.Location
		}

		excluding := b.performance(ctx, scoped, adjusted)
		reports = append(reports, &domain.LaneReport{
			Lane:                      lane,
			TimePeriod:                period,
			Volume:                    volume(loads),
			Performance:               b.performance(ctx, scoped, raw),
			PerformanceExcludingFault: &excluding,
			Tender:                    b.tender(ctx, scoped, raw),
			Cost:                      b.cost(ctx, scoped, raw),
		})
	}
	return reports, nil
}

// Snapshots serializes roll-ups for persistence by the async worker.
func (b *Builder) Snapshots(ctx context.Context, rs *engine.RecordSet, period domain.TimePeriod) ([]*domain.ReportSnapshot, error) {
	computedAt := b.now().UTC()

	carriers, err := b.CarrierReports(ctx, rs, period)
	if err != nil {
		return nil, err
	}
	lanes, err := b.LaneReports(ctx, rs, period)
	if err != nil {
		return nil, err
	}

	snaps := make([]*domain.ReportSnapshot, 0, len(carriers)+len(lanes))
	for _, rep := range carriers {
		data, err := json.Marshal(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize carrier report: %w", err)
		}
		snaps = append(snaps, &domain.ReportSnapshot{
			ID:         uuid.New().String(),
			Kind:       domain.SnapshotCarrier,
			Key:        rep.Carrier.CarrierID,
			ComputedAt: computedAt,
			Report:     data,
		})
	}
	for _, rep := range lanes {
		data, err := json.Marshal(rep)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize lane report: %w", err)
		}
		snaps = append(snaps, &domain.ReportSnapshot{
			ID:         uuid.New().String(),
			Kind:       domain.SnapshotLane,
			Key:        rep.Lane.LaneCode,
			ComputedAt: computedAt,
			Report:     data,
		})
	}
	return snaps, nil
}
