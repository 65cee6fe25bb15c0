package baseline

import (
	"github.com/openfreight/milepost/internal/domain"
)

// Segments returns the baseline segment catalog. All fault and data
// hygiene exclusions auto-apply; PRIMARY_CONTRACT_ONLY is an opt-in
// inclusion lens.
func Segments() []*domain.Segment {
	segs := []*domain.Segment{
		{
			SegmentID:       "seg_no_shipper_fault",
			SegmentCode:     "NO_SHIPPER_FAULT",
			SegmentName:     "Exclude Shipper Fault",
			Description:     "Drops stops whose late arrival was attributed to the shipper",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityStops},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("late_reason.responsible_party", domain.OpEqual, domain.PartyShipper),
			AutoApply:       true,
		},
		{
			SegmentID:       "seg_no_customer_fault",
			SegmentCode:     "NO_CUSTOMER_FAULT",
			SegmentName:     "Exclude Customer Fault",
			Description:     "Drops stops whose late arrival was attributed to the customer",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityStops},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("late_reason.responsible_party", domain.OpEqual, domain.PartyCustomer),
			AutoApply:       true,
		},
		{
			SegmentID:       "seg_no_test_loads",
			SegmentCode:     "NO_TEST_LOADS",
			SegmentName:     "Exclude Test Loads",
			Description:     "Drops loads flagged as test traffic, along with their stops and charges",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityLoads},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("metadata.is_test", domain.OpEqual, true),
			AutoApply:       true,
		},
		{
			SegmentID:       "seg_no_contract_backup",
			SegmentCode:     "NO_CONTRACT_BACKUP",
			SegmentName:     "Exclude Backup Contracts",
			Description:     "Drops backup-contract loads from cost metrics",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityLoads},
			AffectedMetrics: []string{"CPM_ALL_IN", "CPM_LINEHAUL", "COST_INDEX"},
			Rules:           domain.Where("contract_type", domain.OpEqual, "CONTRACT_BACKUP"),
			AutoApply:       false,
		},
		{
			SegmentID:       "seg_weather_exclusion",
			SegmentCode:     "WEATHER_EXCLUSION",
			SegmentName:     "Exclude Weather Delays",
			Description:     "Drops stops delayed by weather events",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityStops},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("late_reason.code", domain.OpIn, []any{"WEATHER", "WEATHER_DELAY"}),
			AutoApply:       false,
		},
		{
			SegmentID:       "seg_force_majeure",
			SegmentCode:     "FORCE_MAJEURE_EXCLUSION",
			SegmentName:     "Exclude Force Majeure",
			Description:     "Drops stops delayed by events outside any party's control",
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityStops},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("late_reason.responsible_party", domain.OpEqual, domain.PartyForceMajeure),
			AutoApply:       true,
		},
		{
			SegmentID:       "seg_primary_contract_only",
			SegmentCode:     "PRIMARY_CONTRACT_ONLY",
			SegmentName:     "Primary Contract Only",
			Description:     "Restricts evaluation to primary-contract loads",
			SegmentType:     domain.SegmentInclusion,
			AppliesTo:       []domain.EntityKind{domain.EntityLoads},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           domain.Where("contract_type", domain.OpEqual, "CONTRACT_PRIMARY"),
			AutoApply:       false,
		},
	}

	for _, seg := range segs {
		seg.IsBaseline = true
		seg.IsActive = true
		seg.CreatedBy = "system"
		seg.CreatedAt = catalogTime
	}
	return segs
}

// Overrides returns the seeded transaction overrides: analyst
// decisions that re-include records a baseline exclusion would drop.
func Overrides() []*domain.TransactionOverride {
	return []*domain.TransactionOverride{
		{
			OverrideID:     "ovr_stop_002_01",
			EntityID:       "stop_002_01",
			EntityType:     "STOP",
			SegmentID:      "seg_no_shipper_fault",
			OverrideAction: domain.OverrideInclude,
			Reason:         "Shipper delay disputed and withdrawn after carrier review",
			AppliedBy:      "analyst",
			AppliedAt:      catalogTime,
		},
		{
			OverrideID:     "ovr_load_008",
			EntityID:       "load_008",
			EntityType:     "LOAD",
			SegmentID:      "seg_no_test_loads",
			OverrideAction: domain.OverrideInclude,
			Reason:         "Pilot lane flagged as test but carries billable freight",
			AppliedBy:      "analyst",
			AppliedAt:      catalogTime,
		},
	}
}
