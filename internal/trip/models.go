// Package trip holds the trip-request document model and the pure
// negotiation state machine that governs its status transitions.
package trip

import "time"

// Collection is the document collection trip requests live in.
const Collection = "tripRequests"

// Status is the wire-level trip status vocabulary. Values must match
// exactly for interop with other implementations of the protocol.
type Status string

const (
	StatusPending                    Status = "pending"
	StatusCountered                  Status = "countered"
	StatusDeclined                   Status = "declined"
	StatusNegotiation                Status = "negotiation"
	StatusAwaitingClientConfirmation Status = "awaiting-client-confirmation"
	StatusAccepted                   Status = "accepted"
	StatusClientAccepted             Status = "client-accepted"
	StatusFinalized                  Status = "accepted-and-finalized"
	StatusCancelled                  Status = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFinalized
}

// Valid reports whether s is part of the wire vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCountered, StatusDeclined, StatusNegotiation,
		StatusAwaitingClientConfirmation, StatusAccepted, StatusClientAccepted,
		StatusFinalized, StatusCancelled:
		return true
	}
	return false
}

// Source identifies the author of the standing counter-offer.
type Source string

const (
	SourceClient Source = "client"
	SourceDriver Source = "driver"
)

// Role is the negotiation role of a party.
type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "driver"
)

// Party is the common projection of whichever profile type the caller
// authenticated as. Both session types consume it uniformly.
type Party struct {
	Role        Role   `json:"role"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// TransportationMode is the requested vehicle class.
type TransportationMode string

const (
	ModeCar       TransportationMode = "Car"
	ModeBus       TransportationMode = "Bus"
	ModeKekeNapep TransportationMode = "Keke-Napep"
)

// Valid reports whether m is a known transportation mode.
func (m TransportationMode) Valid() bool {
	return m == ModeCar || m == ModeBus || m == ModeKekeNapep
}

// Location is a geocoded point. Set at creation, immutable thereafter.
type Location struct {
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	FormattedAddress string  `json:"formattedAddress"`
}

// DriverDetails is attached when a driver accepts or counters.
type DriverDetails struct {
	Name               string `json:"name"`
	Avatar             string `json:"avatar,omitempty"`
	VehicleType        string `json:"vehicleType"`
	VehiclePlateNumber string `json:"vehiclePlateNumber"`
	ETA                string `json:"eta,omitempty"`
}

// ClientDetails is attached when the client accepts a counter or confirms.
type ClientDetails struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ClientID    string `json:"clientId"`
}

// TripRequest is the shared negotiation document between one client and
// prospective drivers. The store is the single source of truth; this
// struct is always a decoded snapshot, never authoritative state.
type TripRequest struct {
	ID                  string             `json:"id"`
	PickupLocation      Location           `json:"pickupLocation"`
	DestinationLocation Location           `json:"destinationLocation"`
	TransportationMode  TransportationMode `json:"transportationMode"`
	ClientID            string             `json:"clientId"`
	Status              Status             `json:"status"`
	Offer               float64            `json:"offer"`
	CounterOffer        *float64           `json:"counterOffer,omitempty"`
	Source              Source             `json:"source,omitempty"`
	DriverID            string             `json:"driverId,omitempty"`
	DriverDetails       *DriverDetails     `json:"driverDetails,omitempty"`
	ClientDetails       *ClientDetails     `json:"clientDetails,omitempty"`
	DeclinedOffers      []string           `json:"declinedOffers,omitempty"`
	DeclinedBy          Source             `json:"declinedBy,omitempty"`
	RetryAllowedAt      *time.Time         `json:"retryAllowedAt,omitempty"`
	Message             string             `json:"message,omitempty"`
	FinalOffer          *float64           `json:"finalOffer,omitempty"`
	FinalizedAt         *time.Time         `json:"finalizedAt,omitempty"`
	Distance            string             `json:"distance,omitempty"`
	Duration            string             `json:"duration,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`

	// Version is the store revision this snapshot was observed at. Used as
	// the write precondition; not part of the document payload.
	Version int64 `json:"-"`
}

// HasDeclined reports whether the driver already sits in the declined set.
func (t *TripRequest) HasDeclined(driverID string) bool {
	for _, id := range t.DeclinedOffers {
		if id == driverID {
			return true
		}
	}
	return false
}
