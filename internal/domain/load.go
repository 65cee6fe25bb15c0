package domain

import (
	"time"
)

// Load represents a single shipment transaction: the carrier it was
// tendered to, its charge line items, and the ordered stops it served.
type Load struct {
	LoadID        string `json:"load_id"`
	LoadType      string `json:"load_type"`   // "SHIPMENT" or "TENDER"
	LoadStatus    string `json:"load_status"` // DELIVERED, IN_TRANSIT, REJECTED, PENDING
	Mode          string `json:"mode"`        // TRUCKLOAD, LTL, PARCEL
	EquipmentType string `json:"equipment_type,omitempty"`

	Carrier      CarrierRef   `json:"carrier"`
	ContractType string       `json:"contract_type"` // CONTRACT_PRIMARY or CONTRACT_BACKUP
	LengthOfHaul LengthOfHaul `json:"length_of_haul"`

	Charges *Charges `json:"charges,omitempty"`
	Tender  Tender   `json:"tender"`
	Stops   []Stop   `json:"stops"`

	Metadata LoadMetadata `json:"metadata"`
}

// CarrierRef is the carrier reference embedded in a load.
type CarrierRef struct {
	CarrierID string `json:"carrier_id"`
	SCAC      string `json:"scac"`
	Name      string `json:"name"`
}

// LengthOfHaul is the distance of a load.
// Value must be positive for any cost-per-mile computation; a zero
// value makes the division undefined, never an error.
type LengthOfHaul struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// LoadMetadata carries bookkeeping attributes of a load.
type LoadMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	IsTest    bool      `json:"is_test"`
}

// Charge type constants.
const (
	ChargeLineHaul      = "LINE_HAUL"
	ChargeFuelSurcharge = "FUEL_SURCHARGE"
	ChargeDetention     = "DETENTION"
	ChargeAccessorial   = "ACCESSORIAL"
)

// Charges holds the charge line items of a load.
type Charges struct {
	LineItems []ChargeLineItem `json:"line_items"`
}

// ChargeLineItem is a single typed charge on a load.
type ChargeLineItem struct {
	ChargeType string `json:"charge_type"`
	Amount     Amount `json:"amount"`
}

// Amount is a monetary value.
type Amount struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

// Tender status constants.
const (
	TenderAccepted = "ACCEPTED"
	TenderRejected = "REJECTED"
	TenderPending  = "PENDING"
)

// Tender records the offer of a load to a carrier and the response.
// Response time is accepted_at or rejected_at minus tendered_at;
// it is undefined while the tender is PENDING.
type Tender struct {
	TenderedAt      time.Time  `json:"tendered_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// ResponseHours returns the tender response time in hours.
// ok is false while the tender is pending.
func (t Tender) ResponseHours() (float64, bool) {
	var responded *time.Time
	switch t.Status {
	case TenderAccepted:
		responded = t.AcceptedAt
	case TenderRejected:
		responded = t.RejectedAt
	}
	if responded == nil {
		return 0, false
	}
	return responded.Sub(t.TenderedAt).Hours(), true
}

// Stop type and loading type constants.
const (
	StopPickup   = "PICKUP"
	StopDelivery = "DELIVERY"

	LoadingLive = "LIVE"
	LoadingDrop = "DROP"
)

// Stop is one scheduled visit within a load.
type Stop struct {
	StopID      string      `json:"stop_id"`
	Sequence    int         `json:"sequence"`
	StopType    string      `json:"stop_type"`
	LoadingType string      `json:"loading_type"`
	Location    Location    `json:"location"`
	Appointment Appointment `json:"appointment"`
	Actual      *ActualTimes `json:"actual,omitempty"`
	LateReason  *LateReason  `json:"late_reason,omitempty"`
}

// DwellMinutes returns the time spent at the stop from arrival to
// departure. ok is false until both actuals are recorded.
func (s Stop) DwellMinutes() (float64, bool) {
	if s.Actual == nil || s.Actual.Arrival.IsZero() || s.Actual.Departure.IsZero() {
		return 0, false
	}
	return s.Actual.Departure.Sub(s.Actual.Arrival).Minutes(), true
}

// Appointment is the scheduled window of a stop. The original window is
// retained separately when the appointment was rescheduled.
type Appointment struct {
	Type              string     `json:"type"` // APPOINTMENT or WINDOW
	ScheduledEarliest time.Time  `json:"scheduled_earliest"`
	ScheduledLatest   time.Time  `json:"scheduled_latest"`
	OriginalEarliest  *time.Time `json:"original_earliest,omitempty"`
	OriginalLatest    *time.Time `json:"original_latest,omitempty"`
}

// ActualTimes are the recorded arrival and departure of a stop.
// A stop with no recorded arrival is excluded from on-time
// computations, never counted as late.
type ActualTimes struct {
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

// Responsible party constants for late reasons.
const (
	PartyShipper      = "SHIPPER"
	PartyCarrier      = "CARRIER"
	PartyCustomer     = "CUSTOMER"
	PartyForceMajeure = "FORCE_MAJEURE"
)

// LateReason attributes a late arrival to a responsible party.
type LateReason struct {
	Code             string    `json:"code"`
	Description      string    `json:"description,omitempty"`
	ResponsibleParty string    `json:"responsible_party"`
	ReportedAt       time.Time `json:"reported_at,omitempty"`
}

// Location is a physical facility referenced by stops and lanes.
type Location struct {
	LocationID   string  `json:"location_id"`
	LocationCode string  `json:"location_code"`
	Name         string  `json:"name"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	PostalCode   string  `json:"postal_code,omitempty"`
	CountryCode  string  `json:"country_code,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
	Type         string  `json:"type"` // WAREHOUSE, FULFILLMENT_CENTER, PORT, DISTRIBUTION_CENTER
}

// Carrier is a transportation provider.
type Carrier struct {
	CarrierID    string `json:"carrier_id"`
	SCAC         string `json:"scac"`
	Name         string `json:"name"`
	CarrierType  string `json:"carrier_type"` // ASSET or BROKER
	ContractType string `json:"contract_type"`
	Active       bool   `json:"active"`
}

// LaneCode builds the canonical lane key for an origin/destination pair.
func LaneCode(origin, destination Location) string {
	return origin.LocationCode + "-" + destination.LocationCode
}

// Lane is an origin/destination pair served by one or more carriers.
type Lane struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	LaneCode    string   `json:"lane_code"`
}

// OriginStop returns the first pickup stop of the load, if any.
func (l *Load) OriginStop() *Stop {
	for i := range l.Stops {
		if l.Stops[i].StopType == StopPickup {
			return &l.Stops[i]
		}
	}
	return nil
}

// DestinationStop returns the last delivery stop of the load, if any.
func (l *Load) DestinationStop() *Stop {
	for i := len(l.Stops) - 1; i >= 0; i-- {
		if l.Stops[i].StopType == StopDelivery {
			return &l.Stops[i]
		}
	}
	return nil
}

// Lane returns the lane code of the load, or "" when it has no
// complete pickup/delivery pair.
func (l *Load) Lane() string {
	origin := l.OriginStop()
	dest := l.DestinationStop()
	if origin == nil || dest == nil {
		return ""
	}
	return LaneCode(origin.Location, dest.Location)
}

// TotalCost sums every charge line item on the load.
func (l *Load) TotalCost() float64 {
	if l.Charges == nil {
		return 0
	}
	var total float64
	for _, item := range l.Charges.LineItems {
		total += item.Amount.Value
	}
	return total
}
