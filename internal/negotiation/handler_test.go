package negotiation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/common"
	"github.com/movaride/negotiation/pkg/middleware"
)

func setupRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	router := gin.New()
	NewHandler(f.svc).RegisterRoutes(router.Group("/api/v1"))
	return router, f
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}, party *trip.Party) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if party != nil {
		req.Header.Set(middleware.UserIDHeader, party.ID)
		req.Header.Set(middleware.UserRoleHeader, string(party.Role))
		req.Header.Set(middleware.UserNameHeader, party.DisplayName)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) common.Response {
	t.Helper()
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func validCreateBody() CreateTripRequest {
	return CreateTripRequest{
		PickupLocation:      LocationPayload{Lat: 6.5244, Lng: 3.3792, FormattedAddress: "Ikeja City Mall, Lagos"},
		DestinationLocation: LocationPayload{Lat: 6.4281, Lng: 3.4219, FormattedAddress: "Victoria Island, Lagos"},
		TransportationMode:  "Car",
		Offer:               500,
	}
}

// TestCreateTripEndpoint tests POST /trips
func TestCreateTripEndpoint(t *testing.T) {
	router, f := setupRouter(t)

	t.Run("client creates a trip", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/trips", validCreateBody(), &f.client)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
	})

	t.Run("driver cannot create a trip", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/trips", validCreateBody(), &f.driver)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/api/v1/trips", validCreateBody(), nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("offer below floor is rejected", func(t *testing.T) {
		body := validCreateBody()
		body.Offer = 250
		w := doRequest(t, router, http.MethodPost, "/api/v1/trips", body, &f.client)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
	})
}

// TestGetTripEndpoint tests GET /trips/:id
func TestGetTripEndpoint(t *testing.T) {
	router, f := setupRouter(t)
	created := f.createTrip(t, 500)

	t.Run("returns the trip", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/trips/"+created.ID, nil, &f.client)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing trip is 404", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/trips/nope", nil, &f.client)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// TestOpenTripsEndpoint tests GET /trips/open
func TestOpenTripsEndpoint(t *testing.T) {
	router, f := setupRouter(t)
	created := f.createTrip(t, 500)

	t.Run("driver sees matching pending trips", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/trips?mode=Car", nil, &f.driver)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		trips, ok := resp.Data.([]interface{})
		require.True(t, ok)
		require.Len(t, trips, 1)
		first := trips[0].(map[string]interface{})
		assert.Equal(t, created.ID, first["id"])
	})

	t.Run("client is forbidden", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/trips?mode=Car", nil, &f.client)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad mode is rejected", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/v1/trips?mode=Helicopter", nil, &f.driver)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// TestCounterEndpoint tests POST /trips/:id/counter for both roles
func TestCounterEndpoint(t *testing.T) {
	router, f := setupRouter(t)
	created := f.createTrip(t, 500)
	path := fmt.Sprintf("/api/v1/trips/%s/counter", created.ID)

	t.Run("driver counter requires details", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, path, CounterRequest{Amount: 900}, &f.driver)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("driver counters", func(t *testing.T) {
		body := CounterRequest{Amount: 900, Driver: &DriverDetailsPayload{
			VehicleType: "Toyota Corolla", VehiclePlateNumber: "LAG-123-XY",
		}}
		w := doRequest(t, router, http.MethodPost, path, body, &f.driver)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("client counters back", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, path, CounterRequest{Amount: 700}, &f.client)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("guard failure is a conflict", func(t *testing.T) {
		// The client's own counter is standing; countering again is invalid.
		w := doRequest(t, router, http.MethodPost, path, CounterRequest{Amount: 750}, &f.client)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

// TestAcceptConfirmFlow tests accept and confirm endpoints end to end
func TestAcceptConfirmFlow(t *testing.T) {
	router, f := setupRouter(t)
	created := f.createTrip(t, 500)

	counterBody := CounterRequest{Amount: 900, Driver: &DriverDetailsPayload{
		VehicleType: "Toyota Corolla", VehiclePlateNumber: "LAG-123-XY",
	}}
	w := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/counter", created.ID), counterBody, &f.driver)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/accept", created.ID),
		AcceptRequest{PhoneNumber: "+2348012345678"}, &f.client)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/confirm", created.ID),
		ConfirmRequest{Distance: "12.4 km", Duration: "28 mins"}, &f.client)
	require.Equal(t, http.StatusOK, w.Code)

	// Both parties now have ride history.
	w = doRequest(t, router, http.MethodGet, "/api/v1/rides", nil, &f.client)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	rides, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, rides, 1)

	// Driver confirm is forbidden.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/confirm", created.ID),
		ConfirmRequest{}, &f.driver)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestDeclineAndCancelEndpoints tests decline and cancel routes
func TestDeclineAndCancelEndpoints(t *testing.T) {
	router, f := setupRouter(t)
	created := f.createTrip(t, 500)

	counterBody := CounterRequest{Amount: 900, Driver: &DriverDetailsPayload{
		VehicleType: "Toyota Corolla", VehiclePlateNumber: "LAG-123-XY",
	}}
	w := doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/counter", created.ID), counterBody, &f.driver)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/decline", created.ID), nil, &f.client)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/cancel", created.ID), nil, &f.client)
	require.Equal(t, http.StatusOK, w.Code)

	// Terminal trips conflict on further actions.
	w = doRequest(t, router, http.MethodPost, fmt.Sprintf("/api/v1/trips/%s/cancel", created.ID), nil, &f.client)
	assert.Equal(t, http.StatusConflict, w.Code)
}
