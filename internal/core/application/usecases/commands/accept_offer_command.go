package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var ErrAcceptOfferCommandIsNotConstructed = errors.New(
	"AcceptOfferCommand must be created via NewAcceptOfferCommand constructor",
)

// AcceptOfferCommand represents a driver accepting a dispatch offer.
// The driver id must match the offer's addressee; a driver cannot accept an
// offer made to someone else.
type AcceptOfferCommand struct { //nolint:recvcheck //using for validation
	assignmentID kernel.UUID
	driverID     kernel.UUID

	guard guard.ConstructorGuard
}

// NewAcceptOfferCommand creates an offer acceptance command.
func NewAcceptOfferCommand(assignmentID kernel.UUID, driverID kernel.UUID) (AcceptOfferCommand, error) {
	cmd := AcceptOfferCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setAssignmentID(assignmentID),
		cmd.setDriverID(driverID),
	); err != nil {
		return AcceptOfferCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c AcceptOfferCommand) Validate() error {
	return c.guard.Validate(ErrAcceptOfferCommandIsNotConstructed)
}

// AssignmentID returns the offer being accepted.
func (c AcceptOfferCommand) AssignmentID() kernel.UUID {
	return c.assignmentID
}

// DriverID returns the accepting driver.
func (c AcceptOfferCommand) DriverID() kernel.UUID {
	return c.driverID
}

func (c *AcceptOfferCommand) setAssignmentID(assignmentID kernel.UUID) error {
	if err := assignmentID.Validate(); err != nil {
		return err
	}

	c.assignmentID = assignmentID
	return nil
}

func (c *AcceptOfferCommand) setDriverID(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	c.driverID = driverID
	return nil
}
