// Package negotiation binds client and driver parties to trip documents,
// translating store snapshots into semantic events and user intents into
// guarded, preconditioned writes.
package negotiation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/events"
	"github.com/movaride/negotiation/internal/pool"
	"github.com/movaride/negotiation/internal/ridehistory"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/logger"
)

// Service owns the shared collaborators and opens per-trip sessions.
// The store handle is injected here; nothing in this package reaches for
// process-wide state.
type Service struct {
	store     docstore.Store
	engine    *trip.Engine
	projector *ridehistory.Projector
	pool      *pool.Index       // optional
	publisher *events.Publisher // optional
}

// NewService wires the negotiation service.
func NewService(store docstore.Store, engine *trip.Engine, projector *ridehistory.Projector, poolIndex *pool.Index, publisher *events.Publisher) *Service {
	if engine == nil {
		engine = trip.NewEngine()
	}
	return &Service{
		store:     store,
		engine:    engine,
		projector: projector,
		pool:      poolIndex,
		publisher: publisher,
	}
}

// CreateRequest validates and writes a new pending trip request, indexing
// it into the driver-facing pending pool.
func (s *Service) CreateRequest(ctx context.Context, client trip.Party, pickup, destination trip.Location, mode trip.TransportationMode, offer float64) (*trip.TripRequest, error) {
	if client.Role != trip.RoleClient {
		return nil, &trip.ValidationError{Field: "role", Reason: "only clients create trip requests"}
	}

	t, err := s.engine.NewRequest(pickup, destination, mode, client.ID, offer)
	if err != nil {
		return nil, err
	}

	id, err := s.store.Create(ctx, trip.Collection, t.Document())
	if err != nil {
		return nil, fmt.Errorf("create trip request: %w", err)
	}
	t.ID = id

	if s.pool != nil {
		if err := s.pool.Add(ctx, mode, id); err != nil {
			// The trip exists either way; drivers can still reach it by id.
			logger.WithContext(ctx).Warn("pending pool index add failed",
				zap.String("trip_id", id), zap.Error(err))
		}
	}

	s.publisher.Publish(id, trip.RequestOpened{Trip: t})

	logger.WithContext(ctx).Info("trip request created",
		zap.String("trip_id", id),
		zap.String("client_id", client.ID),
		zap.String("mode", string(mode)),
		zap.Float64("offer", offer),
	)
	return t, nil
}

// GetTrip reads the current trip snapshot.
func (s *Service) GetTrip(ctx context.Context, tripID string) (*trip.TripRequest, error) {
	snap, err := s.store.Get(ctx, trip.Collection, tripID)
	if err != nil {
		return nil, err
	}
	return trip.FromSnapshot(snap), nil
}

// OpenTrips lists pending trips matching the driver's transportation mode.
func (s *Service) OpenTrips(ctx context.Context, mode trip.TransportationMode) ([]*trip.TripRequest, error) {
	if !mode.Valid() {
		return nil, &trip.ValidationError{Field: "transportationMode", Reason: "must be Car, Bus or Keke-Napep"}
	}
	if s.pool != nil {
		return s.pool.ListPending(ctx, s.store, mode)
	}

	// Without an index, fall back to scanning the collection.
	snaps, err := s.store.List(ctx, trip.Collection)
	if err != nil {
		return nil, err
	}
	trips := make([]*trip.TripRequest, 0)
	for _, snap := range snaps {
		t := trip.FromSnapshot(snap)
		if t.Status == trip.StatusPending && t.TransportationMode == mode {
			trips = append(trips, t)
		}
	}
	return trips, nil
}

// History lists the party's finalized ride records, most recent first.
func (s *Service) History(ctx context.Context, partyID string, role trip.Role) ([]*ridehistory.RideRecord, error) {
	return s.projector.ListForParty(ctx, partyID, role)
}

// ClientSession opens a client-side session over one trip.
func (s *Service) ClientSession(profile trip.Party, tripID string) *ClientSession {
	return &ClientSession{session: session{svc: s, profile: profile, tripID: tripID}}
}

// DriverSession opens a driver-side session over one trip.
func (s *Service) DriverSession(profile trip.Party, tripID string) *DriverSession {
	return &DriverSession{session: session{svc: s, profile: profile, tripID: tripID}}
}
