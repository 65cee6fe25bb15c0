package baseline

import (
	"time"

	"github.com/openfreight/milepost/internal/domain"
)

// Carriers returns the sample carrier directory.
func Carriers() []*domain.Carrier {
	return []*domain.Carrier{
		{CarrierID: "car_swift", SCAC: "SWFT", Name: "Swift Logistics", CarrierType: "ASSET", ContractType: "CONTRACT_PRIMARY", Active: true},
		{CarrierID: "car_knight", SCAC: "KNXT", Name: "Knight Express", CarrierType: "ASSET", ContractType: "CONTRACT_PRIMARY", Active: true},
		{CarrierID: "car_hunt", SCAC: "JBHT", Name: "Hunt Transport", CarrierType: "BROKER", ContractType: "CONTRACT_BACKUP", Active: true},
	}
}

// Locations returns the sample facility directory.
func Locations() []*domain.Location {
	return []*domain.Location{
		{LocationID: "loc_chi", LocationCode: "CHI", Name: "Chicago DC", City: "Chicago", State: "IL", Type: "DISTRIBUTION_CENTER"},
		{LocationID: "loc_dal", LocationCode: "DAL", Name: "Dallas Warehouse", City: "Dallas", State: "TX", Type: "WAREHOUSE"},
		{LocationID: "loc_atl", LocationCode: "ATL", Name: "Atlanta Hub", City: "Atlanta", State: "GA", Type: "WAREHOUSE"},
		{LocationID: "loc_mia", LocationCode: "MIA", Name: "Miami FC", City: "Miami", State: "FL", Type: "FULFILLMENT_CENTER"},
		{LocationID: "loc_lax", LocationCode: "LAX", Name: "Los Angeles Port", City: "Los Angeles", State: "CA", Type: "PORT"},
		{LocationID: "loc_phx", LocationCode: "PHX", Name: "Phoenix DC", City: "Phoenix", State: "AZ", Type: "DISTRIBUTION_CENTER"},
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic("baseline: bad sample timestamp " + s)
	}
	return t
}

func timePtr(s string) *time.Time {
	t := mustTime(s)
	return &t
}

func sampleStop(id string, seq int, stopType string, loc domain.Location, scheduled string, arrival, departure string, late *domain.LateReason) domain.Stop {
	start := mustTime(scheduled)
	stop := domain.Stop{
		StopID:      id,
		Sequence:    seq,
		StopType:    stopType,
		LoadingType: domain.LoadingLive,
		Location:    loc,
		Appointment: domain.Appointment{
			Type:              "APPOINTMENT",
			ScheduledEarliest: start,
			ScheduledLatest:   start.Add(2 * time.Hour),
		},
		LateReason: late,
	}
	if arrival != "" {
		stop.Actual = &domain.ActualTimes{
			Arrival:   mustTime(arrival),
			Departure: mustTime(departure),
		}
	}
	return stop
}

func sampleCharges(lineHaul, fuel, accessorial float64) *domain.Charges {
	items := []domain.ChargeLineItem{
		{ChargeType: domain.ChargeLineHaul, Amount: domain.Amount{Currency: "USD", Value: lineHaul}},
	}
	if fuel > 0 {
		items = append(items, domain.ChargeLineItem{ChargeType: domain.ChargeFuelSurcharge, Amount: domain.Amount{Currency: "USD", Value: fuel}})
	}
	if accessorial > 0 {
		items = append(items, domain.ChargeLineItem{ChargeType: domain.ChargeAccessorial, Amount: domain.Amount{Currency: "USD", Value: accessorial}})
	}
	return &domain.Charges{LineItems: items}
}

// Loads returns the sample fleet: eight delivered or in-flight loads
// covering on-time, fault-attributed, rejected-tender, pending and
// test-flagged scenarios. stop_002_01 and load_008 pair with the
// seeded overrides.
func Loads() []*domain.Load {
	swift := domain.CarrierRef{CarrierID: "car_swift", SCAC: "SWFT", Name: "Swift Logistics"}
	knight := domain.CarrierRef{CarrierID: "car_knight", SCAC: "KNXT", Name: "Knight Express"}
	hunt := domain.CarrierRef{CarrierID: "car_hunt", SCAC: "JBHT", Name: "Hunt Transport"}

	chi := Locations()[0]
	dal := Locations()[1]
	atl := Locations()[2]
	mia := Locations()[3]
	lax := Locations()[4]
	phx := Locations()[5]

	return []*domain.Load{
		{
			LoadID: "load_001", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: swift, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 920, Unit: "miles"},
			Charges:      sampleCharges(1840, 380, 0),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-03T08:00:00Z"),
				AcceptedAt: timePtr("2024-06-03T10:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_001_01", 1, domain.StopPickup, *chi, "2024-06-04T10:00:00Z", "2024-06-04T09:20:00Z", "2024-06-04T10:05:00Z", nil),
				sampleStop("stop_001_02", 2, domain.StopDelivery, *dal, "2024-06-05T14:00:00Z", "2024-06-05T13:10:00Z", "2024-06-05T14:20:00Z", nil),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-03T00:00:00Z")},
		},
		{
			LoadID: "load_002", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: knight, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 660, Unit: "miles"},
			Charges:      sampleCharges(1320, 280, 150),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-05T06:00:00Z"),
				AcceptedAt: timePtr("2024-06-05T11:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_002_01", 1, domain.StopPickup, *atl, "2024-06-06T10:00:00Z", "2024-06-06T11:15:00Z", "2024-06-06T12:00:00Z",
					&domain.LateReason{Code: "SHIPPER_NOT_READY", ResponsibleParty: domain.PartyShipper, ReportedAt: mustTime("2024-06-06T11:30:00Z")}),
				sampleStop("stop_002_02", 2, domain.StopDelivery, *mia, "2024-06-07T16:00:00Z", "2024-06-07T15:30:00Z", "2024-06-07T17:00:00Z", nil),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-05T00:00:00Z")},
		},
		{
			LoadID: "load_003", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: hunt, ContractType: "CONTRACT_BACKUP",
			LengthOfHaul: domain.LengthOfHaul{Value: 920, Unit: "miles"},
			Charges:      sampleCharges(2300, 420, 200),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-08T06:00:00Z"),
				AcceptedAt: timePtr("2024-06-09T08:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_003_01", 1, domain.StopPickup, *chi, "2024-06-10T09:00:00Z", "2024-06-10T08:40:00Z", "2024-06-10T09:30:00Z", nil),
				sampleStop("stop_003_02", 2, domain.StopDelivery, *dal, "2024-06-11T12:00:00Z", "2024-06-11T14:30:00Z", "2024-06-11T15:10:00Z",
					&domain.LateReason{Code: "BREAKDOWN", ResponsibleParty: domain.PartyCarrier, ReportedAt: mustTime("2024-06-11T13:00:00Z")}),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-08T00:00:00Z")},
		},
		{
			LoadID: "load_004", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: swift, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 370, Unit: "miles"},
			Charges:      sampleCharges(820, 160, 0),
			Tender: domain.Tender{
				TenderedAt:      mustTime("2024-06-10T08:00:00Z"),
				RejectedAt:      timePtr("2024-06-10T09:00:00Z"),
				Status:          domain.TenderRejected,
				RejectionReason: "NO_CAPACITY",
			},
			Stops: []domain.Stop{
				sampleStop("stop_004_01", 1, domain.StopPickup, *lax, "2024-06-11T08:00:00Z", "2024-06-11T07:45:00Z", "2024-06-11T08:40:00Z", nil),
				sampleStop("stop_004_02", 2, domain.StopDelivery, *phx, "2024-06-11T20:00:00Z", "2024-06-11T19:20:00Z", "2024-06-11T20:30:00Z", nil),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-10T00:00:00Z")},
		},
		{
			LoadID: "load_005", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: knight, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 660, Unit: "miles"},
			Charges:      sampleCharges(1280, 260, 0),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-12T07:00:00Z"),
				AcceptedAt: timePtr("2024-06-12T09:30:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_005_01", 1, domain.StopPickup, *atl, "2024-06-13T10:00:00Z", "2024-06-13T09:50:00Z", "2024-06-13T10:40:00Z", nil),
				sampleStop("stop_005_02", 2, domain.StopDelivery, *mia, "2024-06-14T16:00:00Z", "2024-06-14T19:45:00Z", "2024-06-14T20:30:00Z",
					&domain.LateReason{Code: "WEATHER", ResponsibleParty: domain.PartyForceMajeure, ReportedAt: mustTime("2024-06-14T17:00:00Z")}),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-12T00:00:00Z")},
		},
		{
			LoadID: "load_006", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: hunt, ContractType: "CONTRACT_BACKUP",
			LengthOfHaul: domain.LengthOfHaul{Value: 370, Unit: "miles"},
			Charges:      sampleCharges(910, 180, 75),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-14T06:00:00Z"),
				AcceptedAt: timePtr("2024-06-14T18:00:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_006_01", 1, domain.StopPickup, *lax, "2024-06-15T09:00:00Z", "2024-06-15T08:30:00Z", "2024-06-15T09:45:00Z", nil),
				sampleStop("stop_006_02", 2, domain.StopDelivery, *phx, "2024-06-15T21:00:00Z", "2024-06-15T22:10:00Z", "2024-06-15T23:00:00Z",
					&domain.LateReason{Code: "RECEIVER_CLOSED", ResponsibleParty: domain.PartyCustomer, ReportedAt: mustTime("2024-06-15T21:30:00Z")}),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-14T00:00:00Z")},
		},
		{
			LoadID: "load_007", LoadType: "SHIPMENT", LoadStatus: "IN_TRANSIT", Mode: "TRUCKLOAD",
			Carrier: swift, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 920, Unit: "miles"},
			Charges:      sampleCharges(1790, 360, 0),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-16T08:00:00Z"),
				Status:     domain.TenderPending,
			},
			Stops: []domain.Stop{
				sampleStop("stop_007_01", 1, domain.StopPickup, *chi, "2024-06-17T10:00:00Z", "2024-06-17T09:40:00Z", "2024-06-17T10:20:00Z", nil),
				sampleStop("stop_007_02", 2, domain.StopDelivery, *dal, "2024-06-18T14:00:00Z", "", "", nil),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-16T00:00:00Z")},
		},
		{
			LoadID: "load_008", LoadType: "SHIPMENT", LoadStatus: "DELIVERED", Mode: "TRUCKLOAD",
			Carrier: knight, ContractType: "CONTRACT_PRIMARY",
			LengthOfHaul: domain.LengthOfHaul{Value: 660, Unit: "miles"},
			Charges:      sampleCharges(1310, 270, 0),
			Tender: domain.Tender{
				TenderedAt: mustTime("2024-06-17T07:00:00Z"),
				AcceptedAt: timePtr("2024-06-17T08:30:00Z"),
				Status:     domain.TenderAccepted,
			},
			Stops: []domain.Stop{
				sampleStop("stop_008_01", 1, domain.StopPickup, *atl, "2024-06-18T10:00:00Z", "2024-06-18T09:10:00Z", "2024-06-18T10:00:00Z", nil),
				sampleStop("stop_008_02", 2, domain.StopDelivery, *mia, "2024-06-19T16:00:00Z", "2024-06-19T15:00:00Z", "2024-06-19T16:10:00Z", nil),
			},
			Metadata: domain.LoadMetadata{CreatedAt: mustTime("2024-06-17T00:00:00Z"), IsTest: true},
		},
	}
}
