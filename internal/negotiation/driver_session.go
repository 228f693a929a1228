package negotiation

import (
	"context"

	"github.com/movaride/negotiation/internal/trip"
)

// DriverSession binds one driver to one trip request. Drivers discover
// trips through the pending pool (mode equality, no guard logic) before
// opening a session.
type DriverSession struct {
	session
}

// SubmitCounter proposes a new fare, attaching the driver's details for
// the client's view.
func (s *DriverSession) SubmitCounter(ctx context.Context, amount float64, details trip.DriverDetails) (*trip.TripRequest, error) {
	return s.apply(ctx, "counter", func(t *trip.TripRequest) (*trip.Patch, error) {
		return s.svc.engine.DriverCounter(t, s.profile, amount, details)
	})
}

// AcceptOffer takes the client's standing offer as-is, without a prior
// counter.
func (s *DriverSession) AcceptOffer(ctx context.Context, details trip.DriverDetails) (*trip.TripRequest, error) {
	return s.apply(ctx, "accept", func(t *trip.TripRequest) (*trip.Patch, error) {
		return s.svc.engine.DriverAccept(t, s.profile, details)
	})
}

// DeclineOffer walks away from the client's standing counter.
func (s *DriverSession) DeclineOffer(ctx context.Context) (*trip.TripRequest, error) {
	return s.apply(ctx, "decline", func(t *trip.TripRequest) (*trip.Patch, error) {
		return s.svc.engine.DriverDecline(t, s.profile)
	})
}
