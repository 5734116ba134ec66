package driver

import (
	"fmt"

	"dispatch/internal/pkg/errs"
)

// VehicleClass categorizes the vehicle a driver operates.
// It is informational for dispatch consumers (capacity, ETA heuristics);
// the engine itself only requires the value to be valid.
type VehicleClass int

const (
	// VehicleUnknown represents an invalid or undefined vehicle class.
	VehicleUnknown VehicleClass = iota

	// Bicycle is a pedal or electric bicycle.
	Bicycle

	// Motorcycle is a motorcycle or scooter.
	Motorcycle

	// Car is a passenger car or small van.
	Car
)

// getVehicleClassStrings returns a map of VehicleClass values to their string representations.
func getVehicleClassStrings() map[VehicleClass]string {
	return map[VehicleClass]string{
		VehicleUnknown: "Unknown",
		Bicycle:        "Bicycle",
		Motorcycle:     "Motorcycle",
		Car:            "Car",
	}
}

// Validate checks if the VehicleClass value is valid.
func (v VehicleClass) Validate() error {
	switch v {
	case Bicycle, Motorcycle, Car:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("vehicleClass",
			fmt.Errorf("%d is not a valid vehicle class", v))
	}
}

// String returns the human-readable name of the vehicle class.
// This method implements the fmt.Stringer interface.
func (v VehicleClass) String() string {
	if str, ok := getVehicleClassStrings()[v]; ok {
		return str
	}
	return "Unknown"
}

// VehicleClassFromString parses a vehicle class from its string representation.
func VehicleClassFromString(s string) (VehicleClass, error) {
	for class, str := range getVehicleClassStrings() {
		if str == s && class != VehicleUnknown {
			return class, nil
		}
	}
	return VehicleUnknown, errs.NewValueIsInvalidErrorWithCause("vehicleClass",
		fmt.Errorf("%q is not a valid vehicle class", s))
}
