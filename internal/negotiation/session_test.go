package negotiation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/ridehistory"
	"github.com/movaride/negotiation/internal/trip"
)

type fixture struct {
	svc    *Service
	store  *docstore.MemoryStore
	now    time.Time
	client trip.Party
	driver trip.Party
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  docstore.NewMemoryStore(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		client: trip.Party{Role: trip.RoleClient, ID: "client-1", DisplayName: "Ada"},
		driver: trip.Party{Role: trip.RoleDriver, ID: "driver-1", DisplayName: "Musa"},
	}
	engine := &trip.Engine{
		MinimumFare:   trip.MinimumFare,
		RetryCooldown: trip.DefaultRetryCooldown,
		Clock:         f.clock,
	}
	f.svc = NewService(f.store, engine, ridehistory.NewProjector(f.store), nil, nil)
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) createTrip(t *testing.T, offer float64) *trip.TripRequest {
	t.Helper()

	pickup := trip.Location{Lat: 6.5244, Lng: 3.3792, FormattedAddress: "Ikeja City Mall, Lagos"}
	dest := trip.Location{Lat: 6.4281, Lng: 3.4219, FormattedAddress: "Victoria Island, Lagos"}

	created, err := f.svc.CreateRequest(context.Background(), f.client, pickup, dest, trip.ModeCar, offer)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	return created
}

func carDetails(name string) trip.DriverDetails {
	return trip.DriverDetails{Name: name, VehicleType: "Toyota Corolla", VehiclePlateNumber: "LAG-123-XY", ETA: "5 mins"}
}

// TestNegotiationHappyPath walks a full haggle: driver counters, client
// counters back, driver counters again, client accepts, client confirms.
func TestNegotiationHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	clientSession := f.svc.ClientSession(f.client, created.ID)
	driverSession := f.svc.DriverSession(f.driver, created.ID)

	// Driver counters the pending request.
	after, err := driverSession.SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)
	assert.Equal(t, trip.StatusCountered, after.Status)
	assert.Equal(t, trip.SourceDriver, after.Source)
	require.NotNil(t, after.CounterOffer)
	assert.Equal(t, 900.0, *after.CounterOffer)
	assert.Equal(t, "driver-1", after.DriverID)

	// Client counters back.
	after, err = clientSession.SubmitCounter(ctx, 700)
	require.NoError(t, err)
	assert.Equal(t, trip.SourceClient, after.Source)
	assert.Equal(t, 700.0, *after.CounterOffer)

	// Driver narrows the gap.
	after, err = driverSession.SubmitCounter(ctx, 800, carDetails("Musa"))
	require.NoError(t, err)
	assert.Equal(t, trip.SourceDriver, after.Source)

	// Client takes the offer.
	after, err = clientSession.AcceptCounterOffer(ctx, "+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, trip.StatusClientAccepted, after.Status)
	require.NotNil(t, after.FinalOffer)
	assert.Equal(t, 800.0, *after.FinalOffer)
	assert.Nil(t, after.CounterOffer)
	require.NotNil(t, after.ClientDetails)
	assert.Equal(t, "+2348012345678", after.ClientDetails.PhoneNumber)

	// Client confirms the route.
	after, err = clientSession.ConfirmFinal(ctx, "12.4 km", "28 mins")
	require.NoError(t, err)
	assert.Equal(t, trip.StatusFinalized, after.Status)
	require.NotNil(t, after.FinalizedAt)
	assert.Equal(t, "12.4 km", after.Distance)

	// Both parties see the ride in their history.
	clientRides, err := f.svc.History(ctx, "client-1", trip.RoleClient)
	require.NoError(t, err)
	require.Len(t, clientRides, 1)
	assert.Equal(t, ridehistory.RecordFinalized, clientRides[0].Status)
	assert.Equal(t, 800.0, clientRides[0].FinalOffer)

	driverRides, err := f.svc.History(ctx, "driver-1", trip.RoleDriver)
	require.NoError(t, err)
	require.Len(t, driverRides, 1)
	assert.Equal(t, created.ID, driverRides[0].TripID)
}

// TestDirectDriverAcceptance covers the driver taking the client's offer
// without countering.
func TestDirectDriverAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	driverSession := f.svc.DriverSession(f.driver, created.ID)
	after, err := driverSession.AcceptOffer(ctx, carDetails("Musa"))
	require.NoError(t, err)
	assert.Equal(t, trip.StatusAwaitingClientConfirmation, after.Status)
	assert.Equal(t, "driver-1", after.DriverID)

	clientSession := f.svc.ClientSession(f.client, created.ID)
	after, err = clientSession.AcceptCounterOffer(ctx, "+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, trip.StatusAccepted, after.Status)
	// No counter was involved, so no final offer is fixed here.
	assert.Nil(t, after.FinalOffer)
}

// TestDeclineAndRetry covers the decline cooldown and the declined set.
func TestDeclineAndRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	firstDriver := f.svc.DriverSession(f.driver, created.ID)
	_, err := firstDriver.SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)

	clientSession := f.svc.ClientSession(f.client, created.ID)
	after, err := clientSession.DeclineOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, trip.StatusNegotiation, after.Status)
	assert.True(t, after.HasDeclined("driver-1"))
	require.NotNil(t, after.RetryAllowedAt)
	assert.Nil(t, after.CounterOffer)

	// The declined driver cannot re-engage during the cooldown... but the
	// trip is in negotiation, so a counter needs a fresh pending/countered
	// state anyway. A direct accept from negotiation is allowed for others.
	other := trip.Party{Role: trip.RoleDriver, ID: "driver-2", DisplayName: "Ben"}
	otherSession := f.svc.DriverSession(other, created.ID)
	after, err = otherSession.AcceptOffer(ctx, carDetails("Ben"))
	require.NoError(t, err)
	assert.Equal(t, trip.StatusAwaitingClientConfirmation, after.Status)
	assert.Equal(t, "driver-2", after.DriverID)
	// The declined set survives re-engagement.
	assert.True(t, after.HasDeclined("driver-1"))
}

// TestDriverDeclineOpensCooldown covers the driver walking away from a
// client counter.
func TestDriverDeclineOpensCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	driverSession := f.svc.DriverSession(f.driver, created.ID)
	_, err := driverSession.SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)

	clientSession := f.svc.ClientSession(f.client, created.ID)
	_, err = clientSession.SubmitCounter(ctx, 600)
	require.NoError(t, err)

	after, err := driverSession.DeclineOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, trip.StatusNegotiation, after.Status)
	assert.True(t, after.HasDeclined("driver-1"))
	assert.Equal(t, trip.SourceDriver, after.DeclinedBy)
}

// TestRejectedTransitionWritesNothing verifies guard failures leave the
// document untouched.
func TestRejectedTransitionWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	// Client cannot counter a pending trip; no driver offer stands.
	clientSession := f.svc.ClientSession(f.client, created.ID)
	_, err := clientSession.SubmitCounter(ctx, 600)

	var rerr *trip.RejectedTransitionError
	require.ErrorAs(t, err, &rerr)

	snap, err := f.store.Get(ctx, trip.Collection, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "pending", snap.Data["status"])
}

// TestOwnershipGuard verifies a stranger's client session is rejected.
func TestOwnershipGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	_, err := f.svc.DriverSession(f.driver, created.ID).SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)

	stranger := trip.Party{Role: trip.RoleClient, ID: "client-2", DisplayName: "Eve"}
	_, err = f.svc.ClientSession(stranger, created.ID).AcceptCounterOffer(ctx, "")

	var rerr *trip.RejectedTransitionError
	require.ErrorAs(t, err, &rerr)
}

// TestCancel verifies either party can close an open trip and terminal
// trips reject everything.
func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	after, err := f.svc.ClientSession(f.client, created.ID).Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, trip.StatusCancelled, after.Status)

	_, err = f.svc.DriverSession(f.driver, created.ID).SubmitCounter(ctx, 900, carDetails("Musa"))
	var rerr *trip.RejectedTransitionError
	require.ErrorAs(t, err, &rerr)

	_, err = f.svc.ClientSession(f.client, created.ID).Cancel(ctx)
	require.ErrorAs(t, err, &rerr)
}

// TestClientAcceptedProjection verifies the ride record appears at
// client acceptance, before finalization.
func TestClientAcceptedProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	_, err := f.svc.DriverSession(f.driver, created.ID).SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)
	_, err = f.svc.ClientSession(f.client, created.ID).AcceptCounterOffer(ctx, "")
	require.NoError(t, err)

	rides, err := f.svc.History(ctx, "client-1", trip.RoleClient)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, ridehistory.RecordClientAccepted, rides[0].Status)
	assert.Equal(t, 900.0, rides[0].FinalOffer)
}

// TestObserve verifies subscribers see the classified event stream.
func TestObserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	clientSession := f.svc.ClientSession(f.client, created.ID)

	var mu sync.Mutex
	var kinds []string
	notify := make(chan struct{}, 16)

	cancel, err := clientSession.Observe(ctx, func(event trip.Event, _ *trip.TripRequest) {
		mu.Lock()
		kinds = append(kinds, event.Kind())
		mu.Unlock()
		notify <- struct{}{}
	})
	require.NoError(t, err)
	defer cancel()

	waitEvent(t, notify) // initial snapshot opens the stream

	_, err = f.svc.DriverSession(f.driver, created.ID).SubmitCounter(ctx, 900, carDetails("Musa"))
	require.NoError(t, err)
	waitEvent(t, notify)

	_, err = clientSession.AcceptCounterOffer(ctx, "")
	require.NoError(t, err)
	waitEvent(t, notify)

	_, err = clientSession.ConfirmFinal(ctx, "12.4 km", "28 mins")
	require.NoError(t, err)
	waitEvent(t, notify)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"request.opened",
		"counter.received",
		"client.accepted",
		"trip.finalized",
	}, kinds)
}

// TestOpenTripsFallbackScan verifies mode-filtered discovery without a
// pool index.
func TestOpenTripsFallbackScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createTrip(t, 500)

	trips, err := f.svc.OpenTrips(ctx, trip.ModeCar)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, created.ID, trips[0].ID)

	// Other modes see nothing.
	trips, err = f.svc.OpenTrips(ctx, trip.ModeBus)
	require.NoError(t, err)
	assert.Empty(t, trips)

	// Bad mode is rejected.
	_, err = f.svc.OpenTrips(ctx, "Helicopter")
	var verr *trip.ValidationError
	require.ErrorAs(t, err, &verr)
}

// TestCreateRequestValidation verifies role and floor checks at creation.
func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pickup := trip.Location{FormattedAddress: "A"}
	dest := trip.Location{FormattedAddress: "B"}

	t.Run("driver cannot create", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.driver, pickup, dest, trip.ModeCar, 500)

		var verr *trip.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "role", verr.Field)
	})

	t.Run("offer below floor", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.client, pickup, dest, trip.ModeCar, 299)

		var verr *trip.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func waitEvent(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
