package trip

import "time"

// Event is a semantic change derived from two consecutive document
// snapshots. Classification lives here once; both session types consume
// identical events instead of re-diffing snapshots per listener.
type Event interface {
	Kind() string
}

// RequestOpened fires on the first snapshot a subscriber sees.
type RequestOpened struct {
	Trip *TripRequest `json:"trip"`
}

func (RequestOpened) Kind() string { return "request.opened" }

// CounterReceived fires when a new counter-offer lands.
type CounterReceived struct {
	Amount  float64 `json:"amount"`
	By      Source  `json:"by"`
	Message string  `json:"message,omitempty"`
}

func (CounterReceived) Kind() string { return "counter.received" }

// DriverAccepted fires when a driver takes the client's offer directly.
type DriverAccepted struct {
	DriverID string         `json:"driverId"`
	Driver   *DriverDetails `json:"driver,omitempty"`
}

func (DriverAccepted) Kind() string { return "driver.accepted" }

// ClientAccepted fires when the client accepts a driver's counter-offer.
type ClientAccepted struct {
	FinalOffer float64 `json:"finalOffer"`
}

func (ClientAccepted) Kind() string { return "client.accepted" }

// DriverConfirmed fires when the client confirms a direct driver accept.
type DriverConfirmed struct {
	DriverID string `json:"driverId"`
}

func (DriverConfirmed) Kind() string { return "driver.confirmed" }

// Declined fires when the client declines the standing driver offer.
type Declined struct {
	DriverID       string     `json:"driverId"`
	Message        string     `json:"message,omitempty"`
	RetryAllowedAt *time.Time `json:"retryAllowedAt,omitempty"`
}

func (Declined) Kind() string { return "offer.declined" }

// Finalized fires once the trip reaches accepted-and-finalized.
type Finalized struct {
	FinalOffer  float64    `json:"finalOffer"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
}

func (Finalized) Kind() string { return "trip.finalized" }

// Cancelled fires when either party cancels.
type Cancelled struct {
	Message string `json:"message,omitempty"`
}

func (Cancelled) Kind() string { return "trip.cancelled" }

// StatusChanged covers transitions with no richer classification.
type StatusChanged struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

func (StatusChanged) Kind() string { return "status.changed" }

// Classify derives the semantic event between two snapshots of the same
// trip. Returns nil when nothing observable changed.
func Classify(prev, next *TripRequest) Event {
	if next == nil {
		return nil
	}
	if prev == nil {
		return RequestOpened{Trip: next}
	}

	if prev.Status == next.Status {
		// Same state, new counter: the countered loop re-enters itself.
		if next.Status == StatusCountered && counterChanged(prev, next) {
			return CounterReceived{Amount: *next.CounterOffer, By: next.Source, Message: next.Message}
		}
		return nil
	}

	switch next.Status {
	case StatusCountered:
		if next.CounterOffer != nil {
			return CounterReceived{Amount: *next.CounterOffer, By: next.Source, Message: next.Message}
		}
	case StatusAwaitingClientConfirmation:
		return DriverAccepted{DriverID: next.DriverID, Driver: next.DriverDetails}
	case StatusClientAccepted:
		if next.FinalOffer != nil {
			return ClientAccepted{FinalOffer: *next.FinalOffer}
		}
	case StatusAccepted:
		return DriverConfirmed{DriverID: next.DriverID}
	case StatusNegotiation:
		return Declined{DriverID: next.DriverID, Message: next.Message, RetryAllowedAt: next.RetryAllowedAt}
	case StatusFinalized:
		var offer float64
		if next.FinalOffer != nil {
			offer = *next.FinalOffer
		}
		return Finalized{FinalOffer: offer, FinalizedAt: next.FinalizedAt}
	case StatusCancelled:
		return Cancelled{Message: next.Message}
	}

	return StatusChanged{From: prev.Status, To: next.Status}
}

func counterChanged(prev, next *TripRequest) bool {
	if next.CounterOffer == nil {
		return false
	}
	if prev.CounterOffer == nil {
		return true
	}
	return *prev.CounterOffer != *next.CounterOffer || prev.Source != next.Source
}
