// Package pool indexes open trip requests by transportation mode so
// drivers can discover work without scanning the whole trip collection.
// A read-side query only; it carries no transition guards.
package pool

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/trip"
)

// Index is a Redis-backed set of pending trip ids per mode.
type Index struct {
	rdb redis.Cmdable
}

// NewIndex creates an index over the given Redis client.
func NewIndex(rdb redis.Cmdable) *Index {
	return &Index{rdb: rdb}
}

func key(mode trip.TransportationMode) string {
	return "pending:" + string(mode)
}

// Add registers a newly created pending trip.
func (i *Index) Add(ctx context.Context, mode trip.TransportationMode, tripID string) error {
	if err := i.rdb.SAdd(ctx, key(mode), tripID).Err(); err != nil {
		return fmt.Errorf("pool add: %w", err)
	}
	return nil
}

// Remove drops a trip that left the pending pool.
func (i *Index) Remove(ctx context.Context, mode trip.TransportationMode, tripID string) error {
	if err := i.rdb.SRem(ctx, key(mode), tripID).Err(); err != nil {
		return fmt.Errorf("pool remove: %w", err)
	}
	return nil
}

// OpenTripIDs lists the indexed trip ids for a mode.
func (i *Index) OpenTripIDs(ctx context.Context, mode trip.TransportationMode) ([]string, error) {
	ids, err := i.rdb.SMembers(ctx, key(mode)).Result()
	if err != nil {
		return nil, fmt.Errorf("pool members: %w", err)
	}
	return ids, nil
}

// ListPending hydrates the indexed trips from the store and filters out
// entries whose document moved on since they were indexed. Stale index
// entries are pruned as a side effect.
func (i *Index) ListPending(ctx context.Context, store docstore.Store, mode trip.TransportationMode) ([]*trip.TripRequest, error) {
	ids, err := i.OpenTripIDs(ctx, mode)
	if err != nil {
		return nil, err
	}

	trips := make([]*trip.TripRequest, 0, len(ids))
	for _, id := range ids {
		snap, err := store.Get(ctx, trip.Collection, id)
		if err == docstore.ErrNotFound {
			_ = i.Remove(ctx, mode, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		t := trip.FromSnapshot(snap)
		if t.Status != trip.StatusPending || t.TransportationMode != mode {
			_ = i.Remove(ctx, mode, id)
			continue
		}
		trips = append(trips, t)
	}
	return trips, nil
}
