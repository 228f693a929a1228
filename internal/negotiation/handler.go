package negotiation

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/common"
	"github.com/movaride/negotiation/pkg/middleware"
)

// Handler exposes the negotiation service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates the HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the negotiation endpoints on the given group.
// All routes expect the gateway identity headers.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(middleware.Identity())

	rg.POST("/trips", h.CreateTrip)
	rg.GET("/trips", h.OpenTrips)
	rg.GET("/trips/:id", h.GetTrip)
	rg.POST("/trips/:id/counter", h.Counter)
	rg.POST("/trips/:id/accept", h.Accept)
	rg.POST("/trips/:id/decline", h.Decline)
	rg.POST("/trips/:id/confirm", h.Confirm)
	rg.POST("/trips/:id/cancel", h.Cancel)
	rg.GET("/rides", h.Rides)
}

// CreateTrip opens a new trip request for the authenticated client.
func (h *Handler) CreateTrip(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindErrorResponse(c, err)
		return
	}

	t, err := h.svc.CreateRequest(c.Request.Context(), party,
		req.PickupLocation.toLocation(), req.DestinationLocation.toLocation(),
		trip.TransportationMode(req.TransportationMode), req.Offer)
	if err != nil {
		respondError(c, err)
		return
	}
	common.CreatedResponse(c, t)
}

// GetTrip returns the current trip document.
func (h *Handler) GetTrip(c *gin.Context) {
	t, err := h.svc.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// OpenTrips lists pending trips for the driver's transportation mode,
// taken from the `mode` query parameter.
func (h *Handler) OpenTrips(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}
	if party.Role != trip.RoleDriver {
		common.ErrorResponse(c, http.StatusForbidden, "only drivers browse open trips")
		return
	}

	trips, err := h.svc.OpenTrips(c.Request.Context(), trip.TransportationMode(c.Query("mode")))
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, trips)
}

// Counter submits a counter-offer from either party.
func (h *Handler) Counter(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	var req CounterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindErrorResponse(c, err)
		return
	}

	var t *trip.TripRequest
	var err error
	switch party.Role {
	case trip.RoleClient:
		t, err = h.svc.ClientSession(party, c.Param("id")).SubmitCounter(c.Request.Context(), req.Amount)
	case trip.RoleDriver:
		if req.Driver == nil {
			common.ErrorResponse(c, http.StatusBadRequest, "driver is required")
			return
		}
		t, err = h.svc.DriverSession(party, c.Param("id")).SubmitCounter(c.Request.Context(), req.Amount, driverDetails(party, req.Driver))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// Accept takes the other party's standing offer.
func (h *Handler) Accept(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	// The accept body is optional for clients; an empty body means accept
	// the standing offer as-is.
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.BindErrorResponse(c, err)
		return
	}

	var t *trip.TripRequest
	var err error
	switch party.Role {
	case trip.RoleClient:
		t, err = h.svc.ClientSession(party, c.Param("id")).AcceptCounterOffer(c.Request.Context(), req.PhoneNumber)
	case trip.RoleDriver:
		if req.Driver == nil {
			common.ErrorResponse(c, http.StatusBadRequest, "driver is required")
			return
		}
		t, err = h.svc.DriverSession(party, c.Param("id")).AcceptOffer(c.Request.Context(), driverDetails(party, req.Driver))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// Decline rejects the other party's standing offer.
func (h *Handler) Decline(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	var t *trip.TripRequest
	var err error
	switch party.Role {
	case trip.RoleClient:
		t, err = h.svc.ClientSession(party, c.Param("id")).DeclineOffer(c.Request.Context())
	case trip.RoleDriver:
		t, err = h.svc.DriverSession(party, c.Param("id")).DeclineOffer(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// Confirm finalizes a client-accepted trip.
func (h *Handler) Confirm(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}
	if party.Role != trip.RoleClient {
		common.ErrorResponse(c, http.StatusForbidden, "only clients confirm trips")
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.BindErrorResponse(c, err)
		return
	}

	t, err := h.svc.ClientSession(party, c.Param("id")).ConfirmFinal(c.Request.Context(), req.Distance, req.Duration)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// Cancel closes the trip from any non-terminal state.
func (h *Handler) Cancel(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	var t *trip.TripRequest
	var err error
	switch party.Role {
	case trip.RoleClient:
		t, err = h.svc.ClientSession(party, c.Param("id")).Cancel(c.Request.Context())
	case trip.RoleDriver:
		t, err = h.svc.DriverSession(party, c.Param("id")).Cancel(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, t)
}

// Rides lists the authenticated party's ride history, most recent first.
func (h *Handler) Rides(c *gin.Context) {
	party, ok := h.party(c)
	if !ok {
		return
	}

	records, err := h.svc.History(c.Request.Context(), party.ID, party.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessResponse(c, records)
}

func (h *Handler) party(c *gin.Context) (trip.Party, bool) {
	id, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return trip.Party{}, false
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return trip.Party{}, false
	}
	return trip.Party{
		Role:        trip.Role(role),
		ID:          id,
		DisplayName: middleware.GetUserName(c),
	}, true
}

func driverDetails(party trip.Party, p *DriverDetailsPayload) trip.DriverDetails {
	return trip.DriverDetails{
		Name:               party.DisplayName,
		Avatar:             party.Avatar,
		VehicleType:        p.VehicleType,
		VehiclePlateNumber: p.VehiclePlateNumber,
		ETA:                p.ETA,
	}
}

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var verr *trip.ValidationError
	var rerr *trip.RejectedTransitionError
	switch {
	case errors.As(err, &verr):
		common.ErrorResponse(c, http.StatusBadRequest, verr.Error())
	case errors.As(err, &rerr):
		common.ErrorResponse(c, http.StatusConflict, rerr.Error())
	case errors.Is(err, docstore.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "trip not found")
	case errors.Is(err, docstore.ErrConflict):
		common.ErrorResponse(c, http.StatusConflict, "trip changed concurrently, retry")
	case errors.Is(err, docstore.ErrUnavailable):
		common.ErrorResponse(c, http.StatusServiceUnavailable, "storage unavailable")
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
}
