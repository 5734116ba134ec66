package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrSetDriverShiftCommandIsNotConstructed = errors.New(
	"SetDriverShiftCommand must be created via NewSetDriverShiftCommand constructor",
)

// SetDriverShiftCommand represents a driver starting or ending a shift.
// Ending a shift while holding an open offer or assignment withdraws it and
// puts the affected order back into the dispatch pool.
type SetDriverShiftCommand struct { //nolint:recvcheck //using for validation
	driverID kernel.UUID
	online   bool

	guard guard.ConstructorGuard
}

// NewSetDriverShiftCommand creates a shift change command.
func NewSetDriverShiftCommand(driverID kernel.UUID, online bool) (SetDriverShiftCommand, error) {
	cmd := SetDriverShiftCommand{
		online: online,
		guard:  guard.NewConstructorGuard(),
	}

	if err := cmd.setDriverID(driverID); err != nil {
		return SetDriverShiftCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c SetDriverShiftCommand) Validate() error {
	return c.guard.Validate(ErrSetDriverShiftCommandIsNotConstructed)
}

// DriverID returns the driver changing shift.
func (c SetDriverShiftCommand) DriverID() kernel.UUID {
	return c.driverID
}

// Online reports whether the driver is starting (true) or ending (false)
// a shift.
func (c SetDriverShiftCommand) Online() bool {
	return c.online
}

func (c *SetDriverShiftCommand) setDriverID(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	c.driverID = driverID
	return nil
}
