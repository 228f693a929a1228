package ridehistory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/logger"
)

// Project derives the per-party ride record from a trip snapshot. Pure and
// idempotent: projecting the same snapshot twice yields identical records.
func Project(t *trip.TripRequest) *RideRecord {
	status := RecordClientAccepted
	if t.Status == trip.StatusFinalized {
		status = RecordFinalized
	}

	var finalOffer float64
	if t.FinalOffer != nil {
		finalOffer = *t.FinalOffer
	}

	return &RideRecord{
		TripID:              t.ID,
		ClientID:            t.ClientID,
		DriverID:            t.DriverID,
		Status:              status,
		PickupLocation:      t.PickupLocation,
		DestinationLocation: t.DestinationLocation,
		TransportationMode:  t.TransportationMode,
		Offer:               t.Offer,
		FinalOffer:          finalOffer,
		Distance:            t.Distance,
		Duration:            t.Duration,
		DriverDetails:       t.DriverDetails,
		ClientDetails:       t.ClientDetails,
		RequestedAt:         t.CreatedAt,
		FinalizedAt:         t.FinalizedAt,
	}
}

// Projector writes ride records into each party's ride collection at the
// two transitions that create or refresh them.
type Projector struct {
	store docstore.Store
}

// NewProjector creates a projector over the given store.
func NewProjector(store docstore.Store) *Projector {
	return &Projector{store: store}
}

// Record projects the trip and upserts the record for both parties, keyed
// by trip id so retries overwrite with identical data.
func (p *Projector) Record(ctx context.Context, t *trip.TripRequest) error {
	record := Project(t)
	doc := record.document()

	if err := p.store.Set(ctx, CollectionForParty(t.ClientID, trip.RoleClient), t.ID, doc); err != nil {
		return fmt.Errorf("record client ride: %w", err)
	}
	if t.DriverID != "" {
		if err := p.store.Set(ctx, CollectionForParty(t.DriverID, trip.RoleDriver), t.ID, doc); err != nil {
			return fmt.Errorf("record driver ride: %w", err)
		}
	}

	logger.WithContext(ctx).Debug("ride record projected",
		zap.String("trip_id", t.ID),
		zap.String("status", string(record.Status)),
	)
	return nil
}

// ListForParty returns the party's ride records, most recent first. A
// finite read, not a live stream.
func (p *Projector) ListForParty(ctx context.Context, partyID string, role trip.Role) ([]*RideRecord, error) {
	snaps, err := p.store.List(ctx, CollectionForParty(partyID, role))
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}

	records := make([]*RideRecord, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, recordFromSnapshot(snap))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RequestedAt.After(records[j].RequestedAt)
	})
	return records, nil
}

func (r *RideRecord) document() map[string]interface{} {
	doc := map[string]interface{}{
		"tripId":   r.TripID,
		"clientId": r.ClientID,
		"status":   string(r.Status),
		"pickupLocation": map[string]interface{}{
			"lat": r.PickupLocation.Lat, "lng": r.PickupLocation.Lng,
			"formattedAddress": r.PickupLocation.FormattedAddress,
		},
		"destinationLocation": map[string]interface{}{
			"lat": r.DestinationLocation.Lat, "lng": r.DestinationLocation.Lng,
			"formattedAddress": r.DestinationLocation.FormattedAddress,
		},
		"transportationMode": string(r.TransportationMode),
		"offer":              r.Offer,
		"finalOffer":         r.FinalOffer,
		"requestedAt":        r.RequestedAt,
	}
	if r.DriverID != "" {
		doc["driverId"] = r.DriverID
	}
	if r.Distance != "" {
		doc["distance"] = r.Distance
	}
	if r.Duration != "" {
		doc["duration"] = r.Duration
	}
	if r.DriverDetails != nil {
		doc["driverDetails"] = map[string]interface{}{
			"name":               r.DriverDetails.Name,
			"avatar":             r.DriverDetails.Avatar,
			"vehicleType":        r.DriverDetails.VehicleType,
			"vehiclePlateNumber": r.DriverDetails.VehiclePlateNumber,
			"eta":                r.DriverDetails.ETA,
		}
	}
	if r.ClientDetails != nil {
		doc["clientDetails"] = map[string]interface{}{
			"name":        r.ClientDetails.Name,
			"avatar":      r.ClientDetails.Avatar,
			"phoneNumber": r.ClientDetails.PhoneNumber,
			"clientId":    r.ClientDetails.ClientID,
		}
	}
	if r.FinalizedAt != nil {
		doc["finalizedAt"] = *r.FinalizedAt
	}
	return doc
}

func recordFromSnapshot(snap *docstore.Snapshot) *RideRecord {
	// Ride records share the trip document field layout, so reuse its codec
	// for the overlapping fields.
	t := trip.FromSnapshot(snap)

	r := &RideRecord{
		TripID:              stringField(snap.Data, "tripId"),
		ClientID:            t.ClientID,
		DriverID:            t.DriverID,
		Status:              RecordStatus(stringField(snap.Data, "status")),
		PickupLocation:      t.PickupLocation,
		DestinationLocation: t.DestinationLocation,
		TransportationMode:  t.TransportationMode,
		Offer:               t.Offer,
		Distance:            t.Distance,
		Duration:            t.Duration,
		DriverDetails:       t.DriverDetails,
		ClientDetails:       t.ClientDetails,
		FinalizedAt:         t.FinalizedAt,
	}
	if t.FinalOffer != nil {
		r.FinalOffer = *t.FinalOffer
	}
	if ts, ok := snap.Data["requestedAt"].(time.Time); ok {
		r.RequestedAt = ts
	}
	return r
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
