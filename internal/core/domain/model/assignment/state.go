package assignment

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// State is the closed set of assignment outcomes.
//
// Transitions:
//
//	Offered ──> Accepted ──> Completed
//	   │            │
//	   ├──> Rejected│
//	   ├──> Expired │
//	   └──> Cancelled <──┘
//
// Rejected, Expired, Cancelled and Completed are terminal. Consumers are
// expected to switch exhaustively over the variants rather than extend them.
type State int

const (
	// StateUnknown represents an invalid or undefined state.
	StateUnknown State = iota

	// Offered means the order was proposed to the driver and a response
	// or timeout is pending. At most one Offered assignment exists per
	// order and per driver at any time.
	Offered

	// Accepted means the driver took the offer and is serving the order.
	Accepted

	// Rejected means the driver declined the offer. Terminal.
	Rejected

	// Expired means the offer deadline elapsed without a response. Terminal.
	Expired

	// Cancelled means the offer or assignment was withdrawn, e.g. the order
	// was cancelled or the driver went offline. Terminal.
	Cancelled

	// Completed means the delivery finished successfully. Terminal.
	Completed
)

// getStateStrings returns a map of State values to their string representations.
func getStateStrings() map[State]string {
	return map[State]string{
		StateUnknown: "Unknown",
		Offered:      "Offered",
		Accepted:     "Accepted",
		Rejected:     "Rejected",
		Expired:      "Expired",
		Cancelled:    "Cancelled",
		Completed:    "Completed",
	}
}

// Validate checks if the State value is valid.
func (s State) Validate() error {
	switch s {
	case Offered, Accepted, Rejected, Expired, Cancelled, Completed:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("state",
			fmt.Errorf("%d is not a valid assignment state", s))
	}
}

// String returns the human-readable name of the state.
// This method implements the fmt.Stringer interface.
func (s State) String() string {
	if str, ok := getStateStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// StateFromString parses a state from its string representation.
func StateFromString(str string) (State, error) {
	for state, s := range getStateStrings() {
		if s == str && state != StateUnknown {
			return state, nil
		}
	}
	return StateUnknown, errs.NewValueIsInvalidErrorWithCause("state",
		fmt.Errorf("%q is not a valid assignment state", str))
}

// IsTerminal reports whether the state accepts no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case Rejected, Expired, Cancelled, Completed:
		return true
	case Offered, Accepted:
		return false
	default:
		return false
	}
}
