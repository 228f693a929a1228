package trip

import (
	"fmt"
	"time"
)

// MinimumFare is the floor for any offer or counter-offer, in currency units.
const MinimumFare = 300

// DefaultRetryCooldown blocks re-engagement after a decline.
const DefaultRetryCooldown = 60 * time.Second

// Patch is the outcome of a valid transition: the partial document to
// write and the precondition protecting it. Guard evaluation is
// synchronous and side-effect-free; nothing is written until the caller
// applies the patch.
type Patch struct {
	Fields map[string]interface{}
	// ExpectedStatus is the status the document must still hold at write
	// time. A write that finds a different status fails as a conflict.
	ExpectedStatus Status
	// DeclinedDriver, when non-empty, must be unioned into declinedOffers
	// alongside the patch.
	DeclinedDriver string
}

// Engine evaluates the negotiation guard table. It is pure: methods read a
// snapshot and return a Patch, never touching the store.
type Engine struct {
	MinimumFare   float64
	RetryCooldown time.Duration
	Clock         func() time.Time
}

// NewEngine returns an engine with the protocol defaults.
func NewEngine() *Engine {
	return &Engine{
		MinimumFare:   MinimumFare,
		RetryCooldown: DefaultRetryCooldown,
		Clock:         time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// NewRequest validates creation input and returns the initial pending
// document state.
func (e *Engine) NewRequest(pickup, destination Location, mode TransportationMode, clientID string, offer float64) (*TripRequest, error) {
	switch {
	case pickup.FormattedAddress == "":
		return nil, &ValidationError{Field: "pickupLocation", Reason: "required"}
	case destination.FormattedAddress == "":
		return nil, &ValidationError{Field: "destinationLocation", Reason: "required"}
	case !mode.Valid():
		return nil, &ValidationError{Field: "transportationMode", Reason: "must be Car, Bus or Keke-Napep"}
	case clientID == "":
		return nil, &ValidationError{Field: "clientId", Reason: "required"}
	case offer < e.MinimumFare:
		return nil, &ValidationError{Field: "offer", Reason: fmt.Sprintf("below minimum fare of %.0f", e.MinimumFare)}
	}

	return &TripRequest{
		PickupLocation:      pickup,
		DestinationLocation: destination,
		TransportationMode:  mode,
		ClientID:            clientID,
		Status:              StatusPending,
		Offer:               offer,
	}, nil
}

// ClientCounter submits the client's counter to a driver's standing offer.
func (e *Engine) ClientCounter(t *TripRequest, client Party, amount float64) (*Patch, error) {
	if err := e.checkCounterAmount(t, RoleClient, amount); err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, rejected("counter", t, "trip is closed")
	}
	if e.cooldownActive(t) && t.DeclinedBy == SourceClient {
		// The decline cooldown binds the declining party.
		return nil, rejected("counter", t, "retry cooldown active")
	}
	if t.Status != StatusCountered || t.Source != SourceDriver {
		return nil, rejected("counter", t, "no driver offer to counter")
	}

	return &Patch{
		ExpectedStatus: t.Status,
		Fields: map[string]interface{}{
			"status":       string(StatusCountered),
			"counterOffer": amount,
			"source":       string(SourceClient),
			"message":      fmt.Sprintf("%s offered %.0f", client.DisplayName, amount),
		},
	}, nil
}

// DriverCounter submits a driver's counter-offer, attaching the driver's
// details for the client's view.
func (e *Engine) DriverCounter(t *TripRequest, driver Party, amount float64, details DriverDetails) (*Patch, error) {
	if err := e.checkCounterAmount(t, RoleDriver, amount); err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, rejected("counter", t, "trip is closed")
	}
	if e.cooldownActive(t) && t.HasDeclined(driver.ID) {
		return nil, rejected("counter", t, "driver must wait out the retry cooldown")
	}

	ok := t.Status == StatusPending ||
		(t.Status == StatusCountered && t.Source == SourceClient)
	if !ok {
		return nil, rejected("counter", t, "trip is not open for a driver counter")
	}

	return &Patch{
		ExpectedStatus: t.Status,
		Fields: map[string]interface{}{
			"status":        string(StatusCountered),
			"counterOffer":  amount,
			"source":        string(SourceDriver),
			"driverId":      driver.ID,
			"driverDetails": encodeDriverDetails(details),
			"message":       fmt.Sprintf("%s countered with %.0f", driver.DisplayName, amount),
		},
	}, nil
}

// DriverAccept takes the client's standing offer as-is.
func (e *Engine) DriverAccept(t *TripRequest, driver Party, details DriverDetails) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("accept", t, "trip is closed")
	}
	if t.Status != StatusPending && t.Status != StatusNegotiation {
		return nil, rejected("accept", t, "trip is not awaiting a driver")
	}

	return &Patch{
		ExpectedStatus: t.Status,
		Fields: map[string]interface{}{
			"status":        string(StatusAwaitingClientConfirmation),
			"driverId":      driver.ID,
			"driverDetails": encodeDriverDetails(details),
			"message":       fmt.Sprintf("%s accepted your offer", driver.DisplayName),
		},
	}, nil
}

// ClientAccept accepts either a driver's counter-offer or a driver's
// direct acceptance, depending on the current state.
func (e *Engine) ClientAccept(t *TripRequest, client Party, details ClientDetails) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("accept", t, "trip is closed")
	}

	switch {
	case t.Status == StatusCountered && t.Source == SourceDriver:
		if t.CounterOffer == nil {
			return nil, rejected("accept", t, "no counter-offer on record")
		}
		if t.FinalOffer != nil {
			return nil, rejected("accept", t, "final offer already set")
		}
		return &Patch{
			ExpectedStatus: t.Status,
			Fields: map[string]interface{}{
				"status":        string(StatusClientAccepted),
				"clientDetails": encodeClientDetails(details),
				"finalOffer":    *t.CounterOffer,
				"counterOffer":  nil,
				"source":        nil,
				"message":       fmt.Sprintf("%s accepted the offer of %.0f", client.DisplayName, *t.CounterOffer),
			},
		}, nil

	case t.Status == StatusAwaitingClientConfirmation:
		return &Patch{
			ExpectedStatus: t.Status,
			Fields: map[string]interface{}{
				"status":        string(StatusAccepted),
				"clientDetails": encodeClientDetails(details),
				"message":       fmt.Sprintf("%s confirmed the driver", client.DisplayName),
			},
		}, nil
	}

	return nil, rejected("accept", t, "nothing to accept")
}

// Decline rejects the driver's standing offer, opening the retry cooldown
// and recording the driver in the declined set.
func (e *Engine) Decline(t *TripRequest, client Party) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("decline", t, "trip is closed")
	}
	declinable := (t.Status == StatusCountered && t.Source == SourceDriver) ||
		t.Status == StatusNegotiation
	if !declinable {
		return nil, rejected("decline", t, "no driver offer to decline")
	}
	if t.DriverID == "" {
		return nil, rejected("decline", t, "no driver on record")
	}

	retryAt := e.now().Add(e.RetryCooldown)
	return &Patch{
		ExpectedStatus: t.Status,
		DeclinedDriver: t.DriverID,
		Fields: map[string]interface{}{
			"status":         string(StatusNegotiation),
			"counterOffer":   nil,
			"source":         nil,
			"declinedBy":     string(SourceClient),
			"retryAllowedAt": retryAt,
			"message":        fmt.Sprintf("%s declined the offer", client.DisplayName),
		},
	}, nil
}

// DriverDecline walks the driver away from the client's standing counter,
// recording the driver in the declined set and opening the cooldown
// against them.
func (e *Engine) DriverDecline(t *TripRequest, driver Party) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("decline", t, "trip is closed")
	}
	if t.Status != StatusCountered || t.Source != SourceClient {
		return nil, rejected("decline", t, "no client offer to decline")
	}

	retryAt := e.now().Add(e.RetryCooldown)
	return &Patch{
		ExpectedStatus: t.Status,
		DeclinedDriver: driver.ID,
		Fields: map[string]interface{}{
			"status":         string(StatusNegotiation),
			"counterOffer":   nil,
			"source":         nil,
			"declinedBy":     string(SourceDriver),
			"retryAllowedAt": retryAt,
			"message":        fmt.Sprintf("%s declined the offer", driver.DisplayName),
		},
	}, nil
}

// ConfirmFinal finalizes an accepted trip, fixing the fare and attaching
// the confirmed route's distance and duration.
func (e *Engine) ConfirmFinal(t *TripRequest, distance, duration string) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("confirm", t, "trip is closed")
	}
	if t.Status != StatusClientAccepted {
		return nil, rejected("confirm", t, "trip has no accepted offer to confirm")
	}
	if t.FinalizedAt != nil {
		return nil, rejected("confirm", t, "trip already finalized")
	}

	return &Patch{
		ExpectedStatus: t.Status,
		Fields: map[string]interface{}{
			"status":      string(StatusFinalized),
			"finalizedAt": e.now(),
			"distance":    distance,
			"duration":    duration,
			"message":     "trip confirmed and finalized",
		},
	}, nil
}

// Cancel closes the trip from any non-terminal state.
func (e *Engine) Cancel(t *TripRequest, by Party) (*Patch, error) {
	if t.Status.Terminal() {
		return nil, rejected("cancel", t, "trip is closed")
	}

	return &Patch{
		ExpectedStatus: t.Status,
		Fields: map[string]interface{}{
			"status":  string(StatusCancelled),
			"message": fmt.Sprintf("cancelled by %s", by.Role),
		},
	}, nil
}

func (e *Engine) checkCounterAmount(t *TripRequest, by Role, amount float64) error {
	if amount < e.MinimumFare {
		return &ValidationError{Field: "counterOffer", Reason: fmt.Sprintf("below minimum fare of %.0f", e.MinimumFare)}
	}
	if last, ok := lastOfferBy(t, by); ok && last == amount {
		return &ValidationError{Field: "counterOffer", Reason: "amount equals your previous offer"}
	}
	return nil
}

func (e *Engine) cooldownActive(t *TripRequest) bool {
	return t.RetryAllowedAt != nil && e.now().Before(*t.RetryAllowedAt)
}

// lastOfferBy returns the party's most recent offer: the standing counter
// when it is theirs, or the original offer for a client who has not
// countered yet.
func lastOfferBy(t *TripRequest, by Role) (float64, bool) {
	if t.CounterOffer != nil && Role(t.Source) == by {
		return *t.CounterOffer, true
	}
	if by == RoleClient {
		return t.Offer, true
	}
	return 0, false
}
