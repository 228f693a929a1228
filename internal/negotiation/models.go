package negotiation

import "github.com/movaride/negotiation/internal/trip"

// API request types

// LocationPayload is a geocoded point in a request body.
type LocationPayload struct {
	Lat              float64 `json:"lat" binding:"required,latitude"`
	Lng              float64 `json:"lng" binding:"required,longitude"`
	FormattedAddress string  `json:"formattedAddress" binding:"required"`
}

func (l LocationPayload) toLocation() trip.Location {
	return trip.Location{Lat: l.Lat, Lng: l.Lng, FormattedAddress: l.FormattedAddress}
}

// CreateTripRequest starts a negotiation.
type CreateTripRequest struct {
	PickupLocation      LocationPayload `json:"pickupLocation" binding:"required"`
	DestinationLocation LocationPayload `json:"destinationLocation" binding:"required"`
	TransportationMode  string          `json:"transportationMode" binding:"required,oneof=Car Bus Keke-Napep"`
	Offer               float64         `json:"offer" binding:"required,gt=0"`
}

// DriverDetailsPayload rides along with driver counters and accepts.
type DriverDetailsPayload struct {
	VehicleType        string `json:"vehicleType" binding:"required"`
	VehiclePlateNumber string `json:"vehiclePlateNumber" binding:"required"`
	ETA                string `json:"eta"`
}

// CounterRequest submits a counter-offer from either party.
type CounterRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	// Driver details are required when a driver counters; ignored for
	// client counters.
	Driver *DriverDetailsPayload `json:"driver,omitempty"`
}

// AcceptRequest accepts the standing offer.
type AcceptRequest struct {
	// PhoneNumber is attached to the client details on a client accept.
	PhoneNumber string `json:"phoneNumber,omitempty"`
	// Driver details are required when a driver accepts directly.
	Driver *DriverDetailsPayload `json:"driver,omitempty"`
}

// ConfirmRequest finalizes an accepted trip.
type ConfirmRequest struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}
