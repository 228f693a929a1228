package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryStoreCreateAndGet tests document creation
func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{
		"status": "pending",
		"offer":  500.0,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := store.Get(ctx, "trips", id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "pending", snap.Data["status"])
	assert.Equal(t, 500.0, snap.Data["offer"])
	assert.NotNil(t, snap.Data["createdAt"])
	assert.NotNil(t, snap.Data["updatedAt"])
}

// TestMemoryStoreGetMissing tests the not-found path
func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "trips", "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStoreUpdateMerges tests shallow merge semantics
func TestMemoryStoreUpdateMerges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{
		"status": "pending",
		"offer":  500.0,
	})
	require.NoError(t, err)

	err = store.Update(ctx, "trips", id, map[string]interface{}{
		"status":       "countered",
		"counterOffer": 800.0,
	}, Precondition{})
	require.NoError(t, err)

	snap, err := store.Get(ctx, "trips", id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, "countered", snap.Data["status"])
	assert.Equal(t, 800.0, snap.Data["counterOffer"])
	// Untouched fields survive the merge.
	assert.Equal(t, 500.0, snap.Data["offer"])
}

// TestMemoryStoreUpdatePreconditions tests optimistic concurrency
func TestMemoryStoreUpdatePreconditions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{"status": "pending"})
	require.NoError(t, err)

	t.Run("stale version conflicts", func(t *testing.T) {
		err := store.Update(ctx, "trips", id, map[string]interface{}{"status": "countered"},
			Precondition{ExpectedVersion: 99})

		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("wrong status conflicts", func(t *testing.T) {
		err := store.Update(ctx, "trips", id, map[string]interface{}{"status": "countered"},
			Precondition{ExpectedStatus: "negotiation"})

		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("matching precondition applies", func(t *testing.T) {
		err := store.Update(ctx, "trips", id, map[string]interface{}{"status": "countered"},
			Precondition{ExpectedVersion: 1, ExpectedStatus: "pending"})

		require.NoError(t, err)

		snap, err := store.Get(ctx, "trips", id)
		require.NoError(t, err)
		assert.Equal(t, "countered", snap.Data["status"])
	})

	t.Run("lost race surfaces as conflict", func(t *testing.T) {
		snap, err := store.Get(ctx, "trips", id)
		require.NoError(t, err)

		// A competing writer lands first.
		require.NoError(t, store.Update(ctx, "trips", id,
			map[string]interface{}{"message": "interleaved"}, Precondition{}))

		err = store.Update(ctx, "trips", id, map[string]interface{}{"status": "cancelled"},
			Precondition{ExpectedVersion: snap.Version})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

// TestMemoryStoreAppendToSet tests set-union semantics
func TestMemoryStoreAppendToSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{"status": "negotiation"})
	require.NoError(t, err)

	require.NoError(t, store.AppendToSet(ctx, "trips", id, "declinedOffers", "driver-1"))
	require.NoError(t, store.AppendToSet(ctx, "trips", id, "declinedOffers", "driver-2"))
	// Duplicate append is a no-op.
	require.NoError(t, store.AppendToSet(ctx, "trips", id, "declinedOffers", "driver-1"))

	snap, err := store.Get(ctx, "trips", id)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"driver-1", "driver-2"}, snap.Data["declinedOffers"])
}

// TestMemoryStoreSet tests full-document writes under explicit ids
func TestMemoryStoreSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "rides", "trip-1", map[string]interface{}{
		"status": "client-accepted",
	}))
	require.NoError(t, store.Set(ctx, "rides", "trip-1", map[string]interface{}{
		"status": "finalized",
	}))

	snap, err := store.Get(ctx, "rides", "trip-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, "finalized", snap.Data["status"])
}

// TestMemoryStoreList tests collection listing
func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, "trips", map[string]interface{}{"status": "pending"})
		require.NoError(t, err)
	}

	snaps, err := store.List(ctx, "trips")
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	empty, err := store.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestMemoryStoreSubscribe tests change notifications including the
// subscriber's own writes
func TestMemoryStoreSubscribe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{"status": "pending"})
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 8)

	unsubscribe, err := store.Subscribe(ctx, "trips", id, func(snap *Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Data["status"].(string))
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer unsubscribe()

	// Initial snapshot arrives first.
	waitFor(t, done)

	require.NoError(t, store.Update(ctx, "trips", id,
		map[string]interface{}{"status": "countered"}, Precondition{}))
	waitFor(t, done)

	require.NoError(t, store.Update(ctx, "trips", id,
		map[string]interface{}{"status": "client-accepted"}, Precondition{}))
	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"pending", "countered", "client-accepted"}, seen)
}

// TestMemoryStoreUnsubscribe tests that a cancelled subscription stops
// receiving notifications
func TestMemoryStoreUnsubscribe(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{"status": "pending"})
	require.NoError(t, err)

	notified := make(chan struct{}, 8)
	unsubscribe, err := store.Subscribe(ctx, "trips", id, func(*Snapshot) {
		notified <- struct{}{}
	})
	require.NoError(t, err)

	waitFor(t, notified) // initial snapshot

	unsubscribe()
	unsubscribe() // second call is a no-op

	require.NoError(t, store.Update(ctx, "trips", id,
		map[string]interface{}{"status": "countered"}, Precondition{}))

	select {
	case <-notified:
		t.Fatal("notification after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestMemoryStoreSnapshotIsolation tests that snapshots cannot mutate
// stored state
func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "trips", map[string]interface{}{
		"status": "pending",
		"pickupLocation": map[string]interface{}{
			"formattedAddress": "Ikeja",
		},
	})
	require.NoError(t, err)

	snap, err := store.Get(ctx, "trips", id)
	require.NoError(t, err)
	snap.Data["status"] = "mutated"
	snap.Data["pickupLocation"].(map[string]interface{})["formattedAddress"] = "elsewhere"

	fresh, err := store.Get(ctx, "trips", id)
	require.NoError(t, err)
	assert.Equal(t, "pending", fresh.Data["status"])
	assert.Equal(t, "Ikeja", fresh.Data["pickupLocation"].(map[string]interface{})["formattedAddress"])
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}
