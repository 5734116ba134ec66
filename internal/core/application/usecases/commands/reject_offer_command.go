package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrRejectOfferCommandIsNotConstructed = errors.New(
	"RejectOfferCommand must be created via NewRejectOfferCommand constructor",
)

// RejectOfferCommand represents a driver declining a dispatch offer.
type RejectOfferCommand struct { //nolint:recvcheck //using for validation
	assignmentID kernel.UUID
	driverID     kernel.UUID

	guard guard.ConstructorGuard
}

// NewRejectOfferCommand creates an offer rejection command.
func NewRejectOfferCommand(assignmentID kernel.UUID, driverID kernel.UUID) (RejectOfferCommand, error) {
	cmd := RejectOfferCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setAssignmentID(assignmentID),
		cmd.setDriverID(driverID),
	); err != nil {
		return RejectOfferCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c RejectOfferCommand) Validate() error {
	return c.guard.Validate(ErrRejectOfferCommandIsNotConstructed)
}

// AssignmentID returns the offer being declined.
func (c RejectOfferCommand) AssignmentID() kernel.UUID {
	return c.assignmentID
}

// DriverID returns the declining driver.
func (c RejectOfferCommand) DriverID() kernel.UUID {
	return c.driverID
}

func (c *RejectOfferCommand) setAssignmentID(assignmentID kernel.UUID) error {
	if err := assignmentID.Validate(); err != nil {
		return err
	}

	c.assignmentID = assignmentID
	return nil
}

func (c *RejectOfferCommand) setDriverID(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	c.driverID = driverID
	return nil
}
