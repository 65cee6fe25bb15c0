package engine

import (
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tsp(s string) *time.Time {
	t := ts(s)
	return &t
}

// fixtureLoads builds a small fleet with known on-time behavior:
//
//	LD-100: delivered on time, tender accepted in 2h, primary contract
//	LD-200: delivery 45 min late (shipper fault), tender accepted in 30h
//	LD-300: test load, tender rejected, delivery late (carrier fault)
func fixtureLoads() []*domain.Load {
	return []*domain.Load{
		{
			LoadID:       "LD-100",
			LoadType:     "SHIPMENT",
			LoadStatus:   "DELIVERED",
			Mode:         "TRUCKLOAD",
			Carrier:      domain.CarrierRef{CarrierID: "CAR-1", SCAC: "SWFT", Name: "Swift Logistics"},
			ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 500, Unit: "miles"},
			Charges: &domain.Charges{LineItems: []domain.ChargeLineItem{
				{ChargeType: domain.ChargeLineHaul, Amount: domain.Amount{Currency: "USD", Value: 1000}},
				{ChargeType: domain.ChargeFuelSurcharge, Amount: domain.Amount{Currency: "USD", Value: 250}},
			}},
			Tender: domain.Tender{
				TenderedAt: ts("2024-03-01T08:00:00Z"),
				AcceptedAt: tsp("2024-03-01T10:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				{
					StopID:      "LD-100_01",
					Sequence:    1,
					StopType:    domain.StopPickup,
					LoadingType: domain.LoadingLive,
					Location:    domain.Location{LocationID: "LOC-1", LocationCode: "CHI", City: "Chicago", State: "IL", Type: "WAREHOUSE"},
					Appointment: domain.Appointment{
						Type:              "APPOINTMENT",
						ScheduledEarliest: ts("2024-03-02T10:00:00Z"),
						ScheduledLatest:   ts("2024-03-02T12:00:00Z"),
					},
					Actual: &domain.ActualTimes{
						Arrival:   ts("2024-03-02T09:30:00Z"),
						Departure: ts("2024-03-02T10:15:00Z"),
					},
				},
				{
					StopID:      "LD-100_02",
					Sequence:    2,
					StopType:    domain.StopDelivery,
					LoadingType: domain.LoadingLive,
					Location:    domain.Location{LocationID: "LOC-2", LocationCode: "DAL", City: "Dallas", State: "TX", Type: "DISTRIBUTION_CENTER"},
					Appointment: domain.Appointment{
						Type:              "APPOINTMENT",
						ScheduledEarliest: ts("2024-03-03T12:00:00Z"),
						ScheduledLatest:   ts("2024-03-03T14:00:00Z"),
					},
					Actual: &domain.ActualTimes{
						Arrival:   ts("2024-03-03T11:00:00Z"),
						Departure: ts("2024-03-03T12:30:00Z"),
					},
				},
			},
			Metadata: domain.LoadMetadata{CreatedAt: ts("2024-03-01T00:00:00Z")},
		},
		{
			LoadID:       "LD-200",
			LoadType:     "SHIPMENT",
			LoadStatus:   "DELIVERED",
			Mode:         "TRUCKLOAD",
			Carrier:      domain.CarrierRef{CarrierID: "CAR-2", SCAC: "KNXT", Name: "Knight Express"},
			ContractType: "CONTRACT_BACKUP",
			LengthOfHaul: domain.LengthOfHaul{Value: 800, Unit: "miles"},
			Charges: &domain.Charges{LineItems: []domain.ChargeLineItem{
				{ChargeType: domain.ChargeLineHaul, Amount: domain.Amount{Currency: "USD", Value: 1800}},
			}},
			Tender: domain.Tender{
				TenderedAt: ts("2024-03-04T06:00:00Z"),
				AcceptedAt: tsp("2024-03-05T12:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				{
					StopID:      "LD-200_01",
					Sequence:    1,
					StopType:    domain.StopPickup,
					LoadingType: domain.LoadingDrop,
					Location:    domain.Location{LocationID: "LOC-3", LocationCode: "ATL", City: "Atlanta", State: "GA", Type: "WAREHOUSE"},
					Appointment: domain.Appointment{
						Type:              "WINDOW",
						ScheduledEarliest: ts("2024-03-05T10:00:00Z"),
						ScheduledLatest:   ts("2024-03-05T12:00:00Z"),
					},
					Actual: &domain.ActualTimes{
						Arrival:   ts("2024-03-05T09:00:00Z"),
						Departure: ts("2024-03-05T11:30:00Z"),
					},
				},
				{
					StopID:      "LD-200_02",
					Sequence:    2,
					StopType:    domain.StopDelivery,
					LoadingType: domain.LoadingLive,
					Location:    domain.Location{LocationID: "LOC-4", LocationCode: "MIA", City: "Miami", State: "FL", Type: "FULFILLMENT_CENTER"},
					Appointment: domain.Appointment{
						Type:              "APPOINTMENT",
						ScheduledEarliest: ts("2024-03-06T14:00:00Z"),
						ScheduledLatest:   ts("2024-03-06T16:00:00Z"),
					},
					Actual: &domain.ActualTimes{
						Arrival:   ts("2024-03-06T14:45:00Z"),
						Departure: ts("2024-03-06T16:00:00Z"),
					},
					LateReason: &domain.LateReason{
						Code:             "SHIPPER_DELAY",
						ResponsibleParty: domain.PartyShipper,
						ReportedAt:       ts("2024-03-06T15:00:00Z"),
					},
				},
			},
			Metadata: domain.LoadMetadata{CreatedAt: ts("2024-03-04T00:00:00Z")},
		},
		{
			LoadID:       "LD-300",
			LoadType:     "SHIPMENT",
			LoadStatus:   "DELIVERED",
			Mode:         "TRUCKLOAD",
			Carrier:      domain.CarrierRef{CarrierID: "CAR-1", SCAC: "SWFT", Name: "Swift Logistics"},
			ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 300, Unit: "miles"},
			Charges: &domain.Charges{LineItems: []domain.ChargeLineItem{
				{ChargeType: domain.ChargeLineHaul, Amount: domain.Amount{Currency: "USD", Value: 750}},
			}},
			Tender: domain.Tender{
				TenderedAt:      ts("2024-03-07T08:00:00Z"),
				RejectedAt:      tsp("2024-03-07T09:00:00Z"),
				Status:          domain.TenderRejected,
				RejectionReason: "NO_CAPACITY",
			},
			Stops: []domain.Stop{
				{
					StopID:      "LD-300_01",
					Sequence:    1,
					StopType:    domain.StopPickup,
					LoadingType: domain.LoadingLive,
					Location:    domain.Location{LocationID: "LOC-1", LocationCode: "CHI", City: "Chicago", State: "IL", Type: "WAREHOUSE"},
					Appointment: domain.Appointment{
						Type:              "APPOINTMENT",
						ScheduledEarliest: ts("2024-03-08T09:00:00Z"),
						ScheduledLatest:   ts("2024-03-08T11:00:00Z"),
					},
					Actual: &domain.ActualTimes{
						Arrival:   ts("2024-03-08T09:30:00Z"),
						Departure: ts("2024-03-08T10:00:00Z"),
					},
					LateReason: &domain.LateReason{
						Code:             "CARRIER_DELAY",
						ResponsibleParty: domain.PartyCarrier,
						ReportedAt:       ts("2024-03-08T09:45:00Z"),
					},
				},
				{
					StopID:      "LD-300_02",
					Sequence:    2,
					StopType:    domain.StopDelivery,
					LoadingType: domain.LoadingLive,
					Location:    domain.Location{LocationID: "LOC-2", LocationCode: "DAL", City: "Dallas", State: "TX", Type: "DISTRIBUTION_CENTER"},
					Appointment: domain.Appointment{
						Type:              "APPOINTMENT",
						ScheduledEarliest: ts("2024-03-09T10:00:00Z"),
						ScheduledLatest:   ts("2024-03-09T12:00:00Z"),
					},
				},
			},
			Metadata: domain.LoadMetadata{CreatedAt: ts("2024-03-07T00:00:00Z"), IsTest: true},
		},
	}
}

// onTimePickupMetric counts pickups arriving by the scheduled start
// of the appointment window over all pickups with a recorded arrival.
func onTimePickupMetric() *domain.MetricDefinition {
	return &domain.MetricDefinition{
		MetricID:   "met_test_otp",
		MetricCode: "OTP_EXACT",
		MetricName: "On-Time Pickup",
		Formula: domain.Percentage{
			Numerator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, domain.StopPickup),
					domain.WhereField("actual.arrival", domain.OpLessEqual, "appointment.scheduled_earliest", nil),
				),
			},
			Denominator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, domain.StopPickup),
					domain.Where("actual.arrival", domain.OpIsNotNull, nil),
				),
			},
		},
		Entity:     domain.EntityStops,
		ReturnType: domain.ReturnPercentage,
		Unit:       "%",
		Precision:  1,
		IsActive:   true,
		Category:   domain.CategoryPerformance,
	}
}

// onTimeDeliveryMetric is the delivery counterpart. Over the fixture
// fleet it evaluates to 50.0 raw: LD-100 delivers on time, LD-200 is
// 45 minutes late, LD-300's delivery has no recorded arrival.
func onTimeDeliveryMetric() *domain.MetricDefinition {
	return &domain.MetricDefinition{
		MetricID:   "met_test_otd",
		MetricCode: "OTD_EXACT",
		MetricName: "On-Time Delivery",
		Formula: domain.Percentage{
			Numerator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, domain.StopDelivery),
					domain.WhereField("actual.arrival", domain.OpLessEqual, "appointment.scheduled_earliest", nil),
				),
			},
			Denominator: domain.Aggregation{
				Function: domain.AggCount,
				Filter: domain.And(
					domain.Where("stop_type", domain.OpEqual, domain.StopDelivery),
					domain.Where("actual.arrival", domain.OpIsNotNull, nil),
				),
			},
		},
		Entity:     domain.EntityStops,
		ReturnType: domain.ReturnPercentage,
		Unit:       "%",
		Precision:  1,
		IsActive:   true,
		Category:   domain.CategoryPerformance,
	}
}

func noShipperFaultSegment() *domain.Segment {
	return &domain.Segment{
		SegmentID:       "seg_no_shipper_fault",
		SegmentCode:     "NO_SHIPPER_FAULT",
		SegmentName:     "Exclude Shipper-Fault Stops",
		SegmentType:     domain.SegmentExclusion,
		AppliesTo:       []domain.EntityKind{domain.EntityStops},
		AffectedMetrics: []string{domain.AffectsAll},
		Rules:           domain.Where("late_reason.responsible_party", domain.OpEqual, domain.PartyShipper),
		AutoApply:       true,
		IsActive:        true,
	}
}

func noTestLoadsSegment() *domain.Segment {
	return &domain.Segment{
		SegmentID:       "seg_no_test_loads",
		SegmentCode:     "NO_TEST_LOADS",
		SegmentName:     "Exclude Test Loads",
		SegmentType:     domain.SegmentExclusion,
		AppliesTo:       []domain.EntityKind{domain.EntityLoads},
		AffectedMetrics: []string{domain.AffectsAll},
		Rules:           domain.Where("metadata.is_test", domain.OpEqual, true),
		AutoApply:       true,
		IsActive:        true,
	}
}
