package order

import (
	"fmt"
)

// ErrInvalidTransition is returned when a status change does not follow the
// order lifecycle graph. The violation is not retryable: the caller submitted
// a transition that can never be legal from the current state.
var ErrInvalidTransition = fmt.Errorf("invalid status transition")

// Status represents the lifecycle state of an order.
// It implements a state machine with defined transitions to ensure
// orders follow the correct delivery workflow.
//
// State transitions:
//
//	Pending ──> Preparing ──> OutForDelivery ──> Delivered
//	   │            │
//	   └────────────┴──> Cancelled
//
// Delivered and Cancelled are terminal: no further transitions are accepted.
// No transition skips a stage except the explicit cancellation edges.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Pending is the initial status when an order is first created.
	// Orders in this status are waiting for a driver to be secured.
	Pending

	// Preparing indicates the order has been confirmed and is being prepared.
	Preparing

	// OutForDelivery indicates the assigned driver is carrying the order.
	OutForDelivery

	// Delivered indicates the order reached its destination.
	// This is a terminal state.
	Delivered

	// Cancelled indicates the order was cancelled before leaving for delivery.
	// Reachable from Pending or Preparing only. This is a terminal state.
	Cancelled
)

// getStatusStrings returns a map of Status values to their string representations.
func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:        "Unknown",
		Pending:        "Pending",
		Preparing:      "Preparing",
		OutForDelivery: "OutForDelivery",
		Delivered:      "Delivered",
		Cancelled:      "Cancelled",
	}
}

// getStatusSuccessors returns the legal successor set for every valid status.
// Terminal states map to an empty set.
func getStatusSuccessors() map[Status][]Status {
	return map[Status][]Status{
		Pending:        {Preparing, Cancelled},
		Preparing:      {OutForDelivery, Cancelled},
		OutForDelivery: {Delivered},
		Delivered:      {},
		Cancelled:      {},
	}
}

// Validate checks if the Status value is valid.
//
// Valid statuses are: Pending, Preparing, OutForDelivery, Delivered, Cancelled.
// Unknown (0) and any other values are invalid.
func (s Status) Validate() error {
	if _, ok := getStatusSuccessors()[s]; !ok {
		return fmt.Errorf("%d is not a valid status", s)
	}
	return nil
}

// String returns the human-readable name of the status.
// Returns "Unknown" for invalid status values.
// This method implements the fmt.Stringer interface.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// StatusFromString parses a status from its string representation.
// Returns an error for unknown names and for "Unknown" itself, which is
// never a legal stored status.
func StatusFromString(s string) (Status, error) {
	for status, str := range getStatusStrings() {
		if str == s && status != Unknown {
			return status, nil
		}
	}
	return Unknown, fmt.Errorf("%q is not a valid status", s)
}

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	successors, ok := getStatusSuccessors()[s]
	return ok && len(successors) == 0
}

// CanTransitionTo reports whether next is a legal successor of the current status.
// Invalid statuses have no successors.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range getStatusSuccessors()[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionTo returns next if it is a legal successor of the current status.
//
// Returns:
//   - (next, nil) on a valid transition
//   - (Unknown, error wrapping ErrInvalidTransition) if the move violates the graph
//
// This method is used by Order.TransitionTo to enforce the lifecycle.
func (s Status) TransitionTo(next Status) (Status, error) {
	if err := next.Validate(); err != nil {
		return Unknown, fmt.Errorf("%w: %s", ErrInvalidTransition, err)
	}

	if !s.CanTransitionTo(next) {
		return Unknown, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}

	return next, nil
}
