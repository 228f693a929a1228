package negotiation

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/logger"
)

// ObserveFunc receives each classified event with the snapshot that
// produced it. Invoked asynchronously, once per store notification.
type ObserveFunc func(event trip.Event, t *trip.TripRequest)

// session is the role-agnostic half of a negotiation session: one party,
// one trip id, no authoritative state beyond the last-seen snapshot.
type session struct {
	svc     *Service
	profile trip.Party
	tripID  string

	mu   sync.Mutex
	last *trip.TripRequest
}

// TripID returns the bound trip id.
func (s *session) TripID() string { return s.tripID }

// current re-reads the document; the store is the single source of truth.
func (s *session) current(ctx context.Context) (*trip.TripRequest, error) {
	snap, err := s.svc.store.Get(ctx, trip.Collection, s.tripID)
	if err != nil {
		return nil, err
	}
	t := trip.FromSnapshot(snap)

	s.mu.Lock()
	s.last = t
	s.mu.Unlock()
	return t, nil
}

// apply runs one guarded transition: read, decide, preconditioned write.
// Guard failures return before any write; a lost race surfaces as
// docstore.ErrConflict with no partial state.
func (s *session) apply(ctx context.Context, action string, decide func(*trip.TripRequest) (*trip.Patch, error)) (*trip.TripRequest, error) {
	before, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	patch, err := decide(before)
	if err != nil {
		return nil, err
	}

	pre := docstore.Precondition{
		ExpectedVersion: before.Version,
		ExpectedStatus:  string(patch.ExpectedStatus),
	}
	if err := s.svc.store.Update(ctx, trip.Collection, s.tripID, patch.Fields, pre); err != nil {
		return nil, fmt.Errorf("%s trip %s: %w", action, s.tripID, err)
	}

	if patch.DeclinedDriver != "" {
		if err := s.svc.store.AppendToSet(ctx, trip.Collection, s.tripID, "declinedOffers", patch.DeclinedDriver); err != nil {
			return nil, fmt.Errorf("%s trip %s: record declined driver: %w", action, s.tripID, err)
		}
	}

	after, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	s.postTransition(ctx, before, after)

	logger.WithContext(ctx).Info("trip transition applied",
		zap.String("trip_id", s.tripID),
		zap.String("action", action),
		zap.String("party", string(s.profile.Role)),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
	)
	return after, nil
}

// postTransition handles the side effects a committed transition fans out:
// pool maintenance, ride-record projection, event publishing.
func (s *session) postTransition(ctx context.Context, before, after *trip.TripRequest) {
	if s.svc.pool != nil && before.Status == trip.StatusPending && after.Status != trip.StatusPending {
		if err := s.svc.pool.Remove(ctx, after.TransportationMode, s.tripID); err != nil {
			logger.WithContext(ctx).Warn("pending pool index remove failed",
				zap.String("trip_id", s.tripID), zap.Error(err))
		}
	}

	if after.Status == trip.StatusClientAccepted || after.Status == trip.StatusFinalized {
		if err := s.svc.projector.Record(ctx, after); err != nil {
			// Projection retries ride on the next transition or a replay;
			// the negotiation itself already committed.
			logger.WithContext(ctx).Error("ride record projection failed",
				zap.String("trip_id", s.tripID), zap.Error(err))
		}
	}

	if event := trip.Classify(before, after); event != nil {
		s.svc.publisher.Publish(s.tripID, event)
	}
}

// Observe subscribes to the trip document and classifies every snapshot
// against the previous one. Never blocks the caller; fn runs on the store's
// notification goroutine. The returned function cancels the subscription.
func (s *session) Observe(ctx context.Context, fn ObserveFunc) (func(), error) {
	var mu sync.Mutex
	var prev *trip.TripRequest

	return s.svc.store.Subscribe(ctx, trip.Collection, s.tripID, func(snap *docstore.Snapshot) {
		next := trip.FromSnapshot(snap)

		mu.Lock()
		event := trip.Classify(prev, next)
		prev = next
		mu.Unlock()

		s.mu.Lock()
		s.last = next
		s.mu.Unlock()

		if event != nil {
			fn(event, next)
		}
	})
}

// Cancel closes the trip from any non-terminal state. Available to both
// roles and not guarded against the other party's in-flight action.
func (s *session) Cancel(ctx context.Context) (*trip.TripRequest, error) {
	return s.apply(ctx, "cancel", func(t *trip.TripRequest) (*trip.Patch, error) {
		return s.svc.engine.Cancel(t, s.profile)
	})
}
