// Package baseline ships the metric and segment catalog every
// deployment starts from. Baseline definitions are seeded into the
// repository on first boot and cannot be mutated through the API;
// duplicating one into a custom definition is the supported way to
// tweak a formula.
package baseline

import (
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

var catalogTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func offset(minutes float64) *domain.TimeOffset {
	return &domain.TimeOffset{Amount: minutes, Unit: domain.UnitMinutes}
}

// onTimeStopFormula builds the shared on-time percentage over stops:
// arrivals by the scheduled appointment time (plus a grace offset)
// over stops of the given type with a recorded arrival.
func onTimeStopFormula(stopType string, grace *domain.TimeOffset) domain.Formula {
	return domain.Percentage{
		Numerator: domain.Aggregation{
			Function: domain.AggCount,
			Filter: domain.And(
				domain.Where("stop_type", domain.OpEqual, stopType),
				domain.WhereField("actual.arrival", domain.OpLessEqual, "appointment.scheduled_earliest", grace),
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
}

func costPerMileFormula(chargeFilter domain.Condition) domain.Formula {
	return domain.Division{
		Numerator: domain.Aggregation{
			Function: domain.AggSum,
			Entity:   domain.EntityChargeItems,
			Field:    "amount.value",
			Filter:   chargeFilter,
		},
		Denominator: domain.Aggregation{
			Function: domain.AggSum,
			Entity:   domain.EntityLoads,
			Field:    "length_of_haul.value",
		},
	}
}

// Metrics returns the baseline metric definitions.
func Metrics() []*domain.MetricDefinition {
	defs := []*domain.MetricDefinition{
		{
			MetricID:    "met_otp_exact",
			MetricCode:  "OTP_EXACT",
			MetricName:  "On-Time Pickup (Exact)",
			Description: "Pickups arriving on or before the scheduled time",
			Formula:     onTimeStopFormula(domain.StopPickup, nil),
			Entity:      domain.EntityStops,
			ReturnType:  domain.ReturnPercentage,
			Unit:        "%",
			Precision:   1,
			Category:    domain.CategoryPerformance,
		},
		{
			MetricID:    "met_otp_15min",
			MetricCode:  "OTP_15MIN",
			MetricName:  "On-Time Pickup (15 Minute Grace)",
			Description: "Pickups arriving within 15 minutes of the scheduled time",
			Formula:     onTimeStopFormula(domain.StopPickup, offset(15)),
			Entity:      domain.EntityStops,
			ReturnType:  domain.ReturnPercentage,
			Unit:        "%",
			Precision:   1,
			Category:    domain.CategoryPerformance,
		},
		{
			MetricID:    "met_otp_60min",
			MetricCode:  "OTP_60MIN",
			MetricName:  "On-Time Pickup (60 Minute Grace)",
			Description: "Pickups arriving within 60 minutes of the scheduled time",
			Formula:     onTimeStopFormula(domain.StopPickup, offset(60)),
			Entity:      domain.EntityStops,
			ReturnType:  domain.ReturnPercentage,
			Unit:        "%",
			Precision:   1,
			Category:    domain.CategoryPerformance,
		},
		{
			MetricID:    "met_otd_exact",
			MetricCode:  "OTD_EXACT",
			MetricName:  "On-Time Delivery (Exact)",
			Description: "Deliveries arriving on or before the scheduled time",
			Formula:     onTimeStopFormula(domain.StopDelivery, nil),
			Entity:      domain.EntityStops,
			ReturnType:  domain.ReturnPercentage,
			Unit:        "%",
			Precision:   1,
			Category:    domain.CategoryPerformance,
		},
		{
			MetricID:    "met_otd_15min",
			MetricCode:  "OTD_15MIN",
			MetricName:  "On-Time Delivery (15 Minute Grace)",
			Description: "Deliveries arriving within 15 minutes of the scheduled time",
			Formula:     onTimeStopFormula(domain.StopDelivery, offset(15)),
			Entity:      domain.EntityStops,
			ReturnType:  domain.ReturnPercentage,
			Unit:        "%",
			Precision:   1,
			Category:    domain.CategoryPerformance,
		},
		{
			MetricID:    "met_cpm_all_in",
			MetricCode:  "CPM_ALL_IN",
			MetricName:  "Cost Per Mile (All-In)",
			Description: "Total spend across every charge type over total miles",
			Formula:     costPerMileFormula(nil),
			Entity:      domain.EntityLoads,
			ReturnType:  domain.ReturnCurrency,
			Unit:        "USD/mile",
			Precision:   2,
			Category:    domain.CategoryCost,
		},
		{
			MetricID:    "met_cpm_linehaul",
			MetricCode:  "CPM_LINEHAUL",
			MetricName:  "Cost Per Mile (Linehaul)",
			Description: "Linehaul spend over total miles",
			Formula:     costPerMileFormula(domain.Where("charge_type", domain.OpEqual, domain.ChargeLineHaul)),
			Entity:      domain.EntityLoads,
			ReturnType:  domain.ReturnCurrency,
			Unit:        "USD/mile",
			Precision:   2,
			Category:    domain.CategoryCost,
		},
		{
			MetricID:    "met_tender_acceptance",
			MetricCode:  "TENDER_ACCEPTANCE_RATE",
			MetricName:  "Tender Acceptance Rate",
			Description: "Accepted tenders over resolved tenders",
			Formula: domain.Percentage{
				Numerator: domain.Aggregation{
					Function: domain.AggCount,
					Filter:   domain.Where("status", domain.OpEqual, domain.TenderAccepted),
				},
				Denominator: domain.Aggregation{
					Function: domain.AggCount,
					Filter:   domain.Where("status", domain.OpIn, []any{domain.TenderAccepted, domain.TenderRejected}),
				},
			},
			Entity:     domain.EntityTenders,
			ReturnType: domain.ReturnPercentage,
			Unit:       "%",
			Precision:  1,
			Category:   domain.CategoryTender,
		},
		{
			MetricID:    "met_tender_response",
			MetricCode:  "TENDER_RESPONSE_TIME",
			MetricName:  "Tender Response Time",
			Description: "Average hours from tender to acceptance or rejection",
			Formula: domain.Aggregate{Aggregation: domain.Aggregation{
				Function: domain.AggAvg,
				Field:    "response_hours",
			}},
			Entity:     domain.EntityTenders,
			ReturnType: domain.ReturnDecimal,
			Unit:       "hours",
			Precision:  1,
			Category:   domain.CategoryTender,
		},
		{
			MetricID:    "met_ftar",
			MetricCode:  "FTAR",
			MetricName:  "First Tender Acceptance Rate",
			Description: "Loads whose first tender was accepted over loads with a resolved first tender",
			Formula: domain.Percentage{
				Numerator: domain.Aggregation{
					Function: domain.AggCount,
					Filter:   domain.Where("first_tender_status", domain.OpEqual, domain.TenderAccepted),
				},
				Denominator: domain.Aggregation{
					Function: domain.AggCount,
					Filter:   domain.Where("first_tender_status", domain.OpIn, []any{domain.TenderAccepted, domain.TenderRejected}),
				},
			},
			Entity:     domain.EntityLoads,
			ReturnType: domain.ReturnPercentage,
			Unit:       "%",
			Precision:  1,
			Category:   domain.CategoryTender,
		},
		{
			MetricID:    "met_avg_dwell",
			MetricCode:  "AVG_DWELL_TIME",
			MetricName:  "Average Dwell Time",
			Description: "Average minutes from arrival to departure across stops",
			Formula: domain.Aggregate{Aggregation: domain.Aggregation{
				Function: domain.AggAvg,
				Field:    "dwell_time_minutes",
			}},
			Entity:     domain.EntityStops,
			ReturnType: domain.ReturnDecimal,
			Unit:       "minutes",
			Precision:  0,
			Category:   domain.CategoryDwell,
		},
		{
			MetricID:    "met_cost_index",
			MetricCode:  "COST_INDEX",
			MetricName:  "Cost Index",
			Description: "Average all-in spend per load",
			Formula: domain.Division{
				Numerator: domain.Aggregation{
					Function: domain.AggSum,
					Entity:   domain.EntityChargeItems,
					Field:    "amount.value",
				},
				Denominator: domain.Aggregation{
					Function: domain.AggCount,
					Entity:   domain.EntityLoads,
				},
			},
			Entity:     domain.EntityLoads,
			ReturnType: domain.ReturnCurrency,
			Unit:       "USD",
			Precision:  2,
			Category:   domain.CategoryCost,
		},
	}

	for _, def := range defs {
		def.IsBaseline = true
		def.IsActive = true
		def.CreatedBy = "system"
		def.CreatedAt = catalogTime
	}
	return defs
}
