// Package ridehistory derives per-party ride records from finalized trip
// negotiations for display in ride-history lists.
package ridehistory

import (
	"fmt"
	"time"

	"github.com/movaride/negotiation/internal/trip"
)

// RecordStatus is the lifecycle a ride record tracks for history display.
// Deliberately narrower than the trip status vocabulary.
type RecordStatus string

const (
	RecordClientAccepted RecordStatus = "client-accepted"
	RecordFinalized      RecordStatus = "finalized"
)

// RideRecord is a denormalized snapshot of a trip at acceptance time,
// written once per party. Never mutated by the negotiation engine.
type RideRecord struct {
	TripID              string                  `json:"tripId"`
	ClientID            string                  `json:"clientId"`
	DriverID            string                  `json:"driverId,omitempty"`
	Status              RecordStatus            `json:"status"`
	PickupLocation      trip.Location           `json:"pickupLocation"`
	DestinationLocation trip.Location           `json:"destinationLocation"`
	TransportationMode  trip.TransportationMode `json:"transportationMode"`
	Offer               float64                 `json:"offer"`
	FinalOffer          float64                 `json:"finalOffer"`
	Distance            string                  `json:"distance,omitempty"`
	Duration            string                  `json:"duration,omitempty"`
	DriverDetails       *trip.DriverDetails     `json:"driverDetails,omitempty"`
	ClientDetails       *trip.ClientDetails     `json:"clientDetails,omitempty"`
	RequestedAt         time.Time               `json:"requestedAt"`
	FinalizedAt         *time.Time              `json:"finalizedAt,omitempty"`
}

// CollectionForParty names the party's ride collection.
func CollectionForParty(partyID string, role trip.Role) string {
	if role == trip.RoleDriver {
		return fmt.Sprintf("driverRides/%s/rides", partyID)
	}
	return fmt.Sprintf("clientRides/%s/rides", partyID)
}
