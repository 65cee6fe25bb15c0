// Package assist drafts metric and segment definitions from free-text
// requests. It is an ordered keyword rule table, not a language model:
// the first rule whose trigger matches produces a draft the caller can
// review, adjust and submit through the definition API.
package assist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/openfreight/milepost/internal/baseline"
	"github.com/openfreight/milepost/internal/domain"
)

// Draft is a suggested definition with an explanation of what the
// assistant understood.
type Draft struct {
	Kind    string                   `json:"kind"` // "metric" or "segment"
	Summary string                   `json:"summary"`
	Metric  *domain.MetricDefinition `json:"metric,omitempty"`
	Segment *domain.Segment          `json:"segment,omitempty"`
}

type rule struct {
	name  string
	match func(prompt string) bool
	build func(prompt string) *Draft
}

var graceRe = regexp.MustCompile(`(\d+)\s*(?:min|minute|minutes)`)

// graceMinutes extracts a grace window like "within 30 minutes".
func graceMinutes(prompt string) (float64, bool) {
	m := graceRe.FindStringSubmatch(prompt)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

func titled(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}

func anyOf(prompt string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(prompt, w) {
			return true
		}
	}
	return false
}

func draftID(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// baselineMetric clones a baseline definition into a custom draft.
func baselineMetric(code string) *domain.MetricDefinition {
	for _, def := range baseline.Metrics() {
		if def.MetricCode == code {
			clone := *def
			clone.MetricID = draftID("met")
			clone.MetricCode = "CUSTOM_" + code
			clone.IsBaseline = false
			clone.CreatedBy = "assistant"
			return &clone
		}
	}
	return nil
}

func onTimeDraft(prompt, stopType string) *Draft {
	base := "OTP_EXACT"
	noun := "pickup"
	if stopType == domain.StopDelivery {
		base = "OTD_EXACT"
		noun = "delivery"
	}
	def := baselineMetric(base)
	summary := fmt.Sprintf("Draft on-time %s percentage over stops with a recorded arrival", noun)

	if grace, ok := graceMinutes(prompt); ok {
		def.Formula = domain.Percentage{
			Numerator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, stopType),
					domain.WhereField("actual.arrival", domain.OpLessEqual, "appointment.scheduled_earliest",
						&domain.TimeOffset{Amount: grace, Unit: domain.UnitMinutes}),
				),
			},
			Denominator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, stopType),
					domain.Where("actual.arrival", domain.OpIsNotNull, nil),
				),
			},
		}
		def.MetricName = fmt.Sprintf("On-Time %s (%.0f Minute Grace)", titled(noun), grace)
		summary = fmt.Sprintf("Draft on-time %s percentage with a %.0f minute grace window", noun, grace)
	}

	return &Draft{Kind: "metric", Summary: summary, Metric: def}
}

func exclusionDraft(code, name, summary string, appliesTo domain.EntityKind, rules domain.Condition) *Draft {
	return &Draft{
		Kind:    "segment",
		Summary: summary,
		Segment: &domain.Segment{
			SegmentID:       draftID("seg"),
			SegmentCode:     code,
			SegmentName:     name,
			SegmentType:     domain.SegmentExclusion,
			AppliesTo:       []domain.EntityKind{appliesTo},
			AffectedMetrics: []string{domain.AffectsAll},
			Rules:           rules,
			CreatedBy:       "assistant",
			IsActive:        true,
		},
	}
}

// ruleTable is evaluated top to bottom; the first match wins, so the
// more specific triggers sit above the generic ones.
var ruleTable = []rule{
	{
		name:  "on_time_delivery",
		match: func(p string) bool { return anyOf(p, "on-time delivery", "on time delivery", "otd", "delivery performance") },
		build: func(p string) *Draft { return onTimeDraft(p, domain.StopDelivery) },
	},
	{
		name:  "on_time_pickup",
		match: func(p string) bool { return anyOf(p, "on-time pickup", "on time pickup", "otp", "pickup performance") },
		build: func(p string) *Draft { return onTimeDraft(p, domain.StopPickup) },
	},
	{
		name:  "cost_per_mile_linehaul",
		match: func(p string) bool { return anyOf(p, "cost per mile") && anyOf(p, "linehaul", "line haul") },
		build: func(p string) *Draft {
			return &Draft{
				Kind:    "metric",
				Summary: "Draft linehaul-only cost per mile",
				Metric:  baselineMetric("CPM_LINEHAUL"),
			}
		},
	},
	{
		name:  "cost_per_mile",
		match: func(p string) bool { return anyOf(p, "cost per mile", "cpm", "all-in cost") },
		build: func(p string) *Draft {
			return &Draft{
				Kind:    "metric",
				Summary: "Draft all-in cost per mile across every charge type",
				Metric:  baselineMetric("CPM_ALL_IN"),
			}
		},
	},
	{
		name:  "tender_acceptance",
		match: func(p string) bool { return anyOf(p, "tender accept", "acceptance rate") },
		build: func(p string) *Draft {
			return &Draft{
				Kind:    "metric",
				Summary: "Draft tender acceptance percentage over resolved tenders",
				Metric:  baselineMetric("TENDER_ACCEPTANCE_RATE"),
			}
		},
	},
	{
		name:  "tender_response",
		match: func(p string) bool { return anyOf(p, "tender response", "response time") },
		build: func(p string) *Draft {
			return &Draft{
				Kind:    "metric",
				Summary: "Draft average tender response time in hours",
				Metric:  baselineMetric("TENDER_RESPONSE_TIME"),
			}
		},
	},
	{
		name:  "dwell",
		match: func(p string) bool { return anyOf(p, "dwell") },
		build: func(p string) *Draft {
			draft := &Draft{
				Kind:    "metric",
				Summary: "Draft average dwell minutes across stops with recorded actuals",
				Metric:  baselineMetric("AVG_DWELL_TIME"),
			}
			if grace, ok := graceMinutes(p); ok && anyOf(p, "over", "above", "exceed", "more than") {
				draft.Metric.Formula = domain.Percentage{
					Numerator: domain.Aggregation{
						Function: domain.AggCount,
						Filter:   domain.Where("dwell_time_minutes", domain.OpGreater, grace),
					},
					Denominator: domain.Aggregation{
						Function: domain.AggCount,
						Filter:   domain.Where("dwell_time_minutes", domain.OpIsNotNull, nil),
					},
				}
				draft.Metric.MetricName = fmt.Sprintf("Stops Dwelling Over %.0f Minutes", grace)
				draft.Metric.ReturnType = domain.ReturnPercentage
				draft.Metric.Unit = "%"
				draft.Summary = fmt.Sprintf("Draft percentage of stops dwelling over %.0f minutes", grace)
			}
			return draft
		},
	},
	{
		name:  "exclude_weather",
		match: func(p string) bool { return anyOf(p, "weather") && anyOf(p, "exclude", "without", "ignore", "remove") },
		build: func(p string) *Draft {
			return exclusionDraft("CUSTOM_WEATHER_EXCLUSION", "Exclude Weather Delays",
				"Draft exclusion for stops delayed by weather",
				domain.EntityStops,
				domain.Where("late_reason.code", domain.OpIn, []any{"WEATHER", "WEATHER_DELAY"}))
		},
	},
	{
		name:  "exclude_test_loads",
		match: func(p string) bool { return anyOf(p, "test load", "test traffic", "test data") && anyOf(p, "exclude", "without", "ignore", "remove") },
		build: func(p string) *Draft {
			return exclusionDraft("CUSTOM_NO_TEST_LOADS", "Exclude Test Loads",
				"Draft exclusion for loads flagged as test traffic",
				domain.EntityLoads,
				domain.Where("metadata.is_test", domain.OpEqual, true))
		},
	},
	{
		name:  "exclude_fault",
		match: func(p string) bool {
			return anyOf(p, "shipper fault", "customer fault", "carrier fault") && anyOf(p, "exclude", "without", "ignore", "remove")
		},
		build: func(p string) *Draft {
			party := domain.PartyShipper
			label := "shipper"
			switch {
			case strings.Contains(p, "customer fault"):
				party, label = domain.PartyCustomer, "customer"
			case strings.Contains(p, "carrier fault"):
				party, label = domain.PartyCarrier, "carrier"
			}
			return exclusionDraft("CUSTOM_NO_"+strings.ToUpper(label)+"_FAULT",
				"Exclude "+titled(label)+" Fault",
				fmt.Sprintf("Draft exclusion for stops late due to the %s", label),
				domain.EntityStops,
				domain.Where("late_reason.responsible_party", domain.OpEqual, party))
		},
	},
	{
		name:  "primary_contract_only",
		match: func(p string) bool { return anyOf(p, "primary contract", "primary only", "contracted lanes") },
		build: func(p string) *Draft {
			return &Draft{
				Kind:    "segment",
				Summary: "Draft inclusion restricting evaluation to primary-contract loads",
				Segment: &domain.Segment{
					SegmentID:       draftID("seg"),
					SegmentCode:     "CUSTOM_PRIMARY_CONTRACT_ONLY",
					SegmentName:     "Primary Contract Only",
					SegmentType:     domain.SegmentInclusion,
					AppliesTo:       []domain.EntityKind{domain.EntityLoads},
					AffectedMetrics: []string{domain.AffectsAll},
					Rules:           domain.Where("contract_type", domain.OpEqual, "CONTRACT_PRIMARY"),
					CreatedBy:       "assistant",
					IsActive:        true,
				},
			}
		},
	},
}

// Suggest runs the prompt through the rule table and returns the first
// matching draft. ok is false when no trigger matched.
func Suggest(prompt string) (*Draft, bool) {
	p := strings.ToLower(strings.TrimSpace(prompt))
	if p == "" {
		return nil, false
	}
	for _, r := range ruleTable {
		if r.match(p) {
			return r.build(p), true
		}
	}
	return nil, false
}
