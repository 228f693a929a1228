package negotiation

import (
	"context"

	"github.com/movaride/negotiation/internal/trip"
)

// ClientSession binds one client to one trip request.
type ClientSession struct {
	session
}

// SubmitCounter counters the driver's standing offer.
func (s *ClientSession) SubmitCounter(ctx context.Context, amount float64) (*trip.TripRequest, error) {
	return s.apply(ctx, "counter", func(t *trip.TripRequest) (*trip.Patch, error) {
		if err := s.checkOwnership(t); err != nil {
			return nil, err
		}
		return s.svc.engine.ClientCounter(t, s.profile, amount)
	})
}

// AcceptCounterOffer accepts the driver's counter-offer, or confirms a
// driver's direct acceptance, depending on the trip's state. phoneNumber
// rides along into the client details shown to the driver.
func (s *ClientSession) AcceptCounterOffer(ctx context.Context, phoneNumber string) (*trip.TripRequest, error) {
	return s.apply(ctx, "accept", func(t *trip.TripRequest) (*trip.Patch, error) {
		if err := s.checkOwnership(t); err != nil {
			return nil, err
		}
		return s.svc.engine.ClientAccept(t, s.profile, trip.ClientDetails{
			Name:        s.profile.DisplayName,
			Avatar:      s.profile.Avatar,
			PhoneNumber: phoneNumber,
			ClientID:    s.profile.ID,
		})
	})
}

// ConfirmFinal finalizes an accepted trip, attaching the confirmed route's
// distance and duration.
func (s *ClientSession) ConfirmFinal(ctx context.Context, distance, duration string) (*trip.TripRequest, error) {
	return s.apply(ctx, "confirm", func(t *trip.TripRequest) (*trip.Patch, error) {
		if err := s.checkOwnership(t); err != nil {
			return nil, err
		}
		return s.svc.engine.ConfirmFinal(t, distance, duration)
	})
}

// DeclineOffer rejects the driver's standing offer, opening the retry
// cooldown.
func (s *ClientSession) DeclineOffer(ctx context.Context) (*trip.TripRequest, error) {
	return s.apply(ctx, "decline", func(t *trip.TripRequest) (*trip.Patch, error) {
		if err := s.checkOwnership(t); err != nil {
			return nil, err
		}
		return s.svc.engine.Decline(t, s.profile)
	})
}

func (s *ClientSession) checkOwnership(t *trip.TripRequest) error {
	if t.ClientID != s.profile.ID {
		return &trip.RejectedTransitionError{
			Action: "act on", Status: t.Status, Reason: "trip belongs to another client",
		}
	}
	return nil
}
