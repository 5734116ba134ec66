package driver

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// Availability represents a driver's dispatch eligibility.
//
// Transitions:
//
//	Offline ──> Available ──> Assigned ──> Available
//	   ▲            │             │
//	   └────────────┴─────────────┘
//
// A driver can go Offline from any state. Only Available drivers are
// candidates for dispatch; a driver holds at most one active assignment,
// which is what Assigned encodes.
type Availability int

const (
	// AvailabilityUnknown represents an invalid or undefined availability.
	AvailabilityUnknown Availability = iota

	// Available means the driver is on shift and eligible for offers.
	Available

	// Assigned means the driver accepted an offer and is serving an order.
	Assigned

	// Offline means the driver is off shift and invisible to dispatch.
	Offline
)

// getAvailabilityStrings returns a map of Availability values to their string representations.
func getAvailabilityStrings() map[Availability]string {
	return map[Availability]string{
		AvailabilityUnknown: "Unknown",
		Available:           "Available",
		Assigned:            "Assigned",
		Offline:             "Offline",
	}
}

// Validate checks if the Availability value is valid.
// Valid values are Available, Assigned and Offline.
func (a Availability) Validate() error {
	switch a {
	case Available, Assigned, Offline:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("availability",
			fmt.Errorf("%d is not a valid availability", a))
	}
}

// String returns the human-readable name of the availability.
// This method implements the fmt.Stringer interface.
func (a Availability) String() string {
	if str, ok := getAvailabilityStrings()[a]; ok {
		return str
	}
	return "Unknown"
}

// AvailabilityFromString parses an availability from its string representation.
func AvailabilityFromString(s string) (Availability, error) {
	for availability, str := range getAvailabilityStrings() {
		if str == s && availability != AvailabilityUnknown {
			return availability, nil
		}
	}
	return AvailabilityUnknown, errs.NewValueIsInvalidErrorWithCause("availability",
		fmt.Errorf("%q is not a valid availability", s))
}
