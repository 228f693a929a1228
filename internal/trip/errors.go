package trip

import "fmt"

// ValidationError rejects malformed input before any transition is
// evaluated. Local and non-fatal; no store write is attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RejectedTransitionError rejects an action whose guard-table row is not
// satisfied for the current document state. Local and non-fatal; no store
// write is attempted.
type RejectedTransitionError struct {
	Action string
	Status Status
	Source Source
	Reason string
}

func (e *RejectedTransitionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("cannot %s while status is %q (source %q): %s", e.Action, e.Status, e.Source, e.Reason)
	}
	return fmt.Sprintf("cannot %s while status is %q: %s", e.Action, e.Status, e.Reason)
}

func rejected(action string, t *TripRequest, reason string) error {
	return &RejectedTransitionError{Action: action, Status: t.Status, Source: t.Source, Reason: reason}
}
