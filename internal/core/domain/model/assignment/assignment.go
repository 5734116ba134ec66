package assignment

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

// Domain errors for assignment operations.
var (
	// ErrAssignmentIsNotConstructed is returned when using an improperly initialized Assignment.
	ErrAssignmentIsNotConstructed = errors.New(
		"Assignment must be created via NewAssignment or RestoreAssignment constructor")
	// ErrOfferNotOpen is returned when responding to an offer that is no longer Offered.
	ErrOfferNotOpen = errors.New("offer is not open")
	// ErrOfferExpired is returned when accepting or rejecting an offer past its deadline.
	ErrOfferExpired = errors.New("offer deadline has passed")
	// ErrDeadlineNotReached is returned when expiring an offer whose deadline is still ahead.
	ErrDeadlineNotReached = errors.New("offer deadline has not been reached")
	// ErrNotAccepted is returned when completing an assignment that was never accepted.
	ErrNotAccepted = errors.New("assignment is not accepted")
)

// Assignment links one Order to one Driver for a single dispatch round.
// It is owned by the dispatch coordinator; an order accumulates multiple
// Assignment records over its lifetime when earlier offers expire or are
// rejected.
//
// Business rules:
//   - The offer is time-bounded: it carries a deadline, and expiry is driven
//     by a recurring sweep rather than a blocked wait
//   - Every accepted mutation increments the version counter exactly once;
//     repositories use it for conditional writes, which is how a
//     simultaneous accept and cancel resolve: whichever write lands first
//     wins, the other observes a conflict and must re-read
type Assignment struct {
	// id uniquely identifies the assignment record
	id kernel.UUID
	// orderID references the order being dispatched
	orderID kernel.UUID
	// driverID references the driver receiving the offer
	driverID kernel.UUID
	// state is the current outcome of the offer
	state State
	// offeredAt is when the offer was created
	offeredAt time.Time
	// deadline is when an unanswered offer expires
	deadline time.Time
	// respondedAt is when the driver accepted or rejected, or the sweep
	// expired/cancelled the offer (nil while Offered)
	respondedAt *time.Time
	// completedAt is when the delivery finished (nil until Completed)
	completedAt *time.Time
	// version increments exactly once per accepted mutation
	version int64
	// guard ensures the assignment was created via a constructor
	guard guard.ConstructorGuard
}

// NewAssignment creates an offer: a fresh Assignment in Offered state with
// version 1 and the given response deadline.
func NewAssignment(
	id kernel.UUID,
	orderID kernel.UUID,
	driverID kernel.UUID,
	offeredAt time.Time,
	deadline time.Time,
) (*Assignment, error) {
	a := &Assignment{
		state:     Offered,
		offeredAt: offeredAt,
		deadline:  deadline,
		version:   1,
		guard:     guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		a.setID(id),
		a.setOrderID(orderID),
		a.setDriverID(driverID),
		a.setDeadline(offeredAt, deadline),
	); err != nil {
		return nil, err
	}

	return a, nil
}

// RestoreAssignment reconstructs an Assignment aggregate from persistent storage.
// This constructor is intended for repository implementations only.
func RestoreAssignment(
	id kernel.UUID,
	orderID kernel.UUID,
	driverID kernel.UUID,
	state State,
	offeredAt time.Time,
	deadline time.Time,
	respondedAt *time.Time,
	completedAt *time.Time,
	version int64,
) (*Assignment, error) {
	a := &Assignment{
		offeredAt:   offeredAt,
		deadline:    deadline,
		respondedAt: respondedAt,
		completedAt: completedAt,
		guard:       guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		a.setID(id),
		a.setOrderID(orderID),
		a.setDriverID(driverID),
		a.setState(state),
		a.setVersion(version),
	); err != nil {
		return nil, err
	}

	return a, nil
}

// Validate ensures the Assignment was properly constructed through a factory method.
func (a *Assignment) Validate() error {
	if a == nil {
		return ErrAssignmentIsNotConstructed
	}

	return a.guard.Validate(ErrAssignmentIsNotConstructed)
}

// ID returns the assignment's unique identifier.
func (a *Assignment) ID() kernel.UUID {
	return a.id
}

// OrderID returns the order this assignment belongs to.
func (a *Assignment) OrderID() kernel.UUID {
	return a.orderID
}

// DriverID returns the driver this offer was made to.
func (a *Assignment) DriverID() kernel.UUID {
	return a.driverID
}

// State returns the current assignment state.
func (a *Assignment) State() State {
	return a.state
}

// OfferedAt returns when the offer was created.
func (a *Assignment) OfferedAt() time.Time {
	return a.offeredAt
}

// Deadline returns when an unanswered offer expires.
func (a *Assignment) Deadline() time.Time {
	return a.deadline
}

// RespondedAt returns when the offer left the Offered state, or nil while open.
func (a *Assignment) RespondedAt() *time.Time {
	return a.respondedAt
}

// CompletedAt returns when the delivery finished, or nil until Completed.
func (a *Assignment) CompletedAt() *time.Time {
	return a.completedAt
}

// Version returns the assignment's optimistic-concurrency counter.
func (a *Assignment) Version() int64 {
	return a.version
}

// IsTerminal reports whether the assignment reached a terminal state.
func (a *Assignment) IsTerminal() bool {
	return a.state.IsTerminal()
}

// Accept records the driver taking the offer.
//
// Business rules enforced:
//   - The offer must still be Offered
//   - The deadline must not have passed
//
// On success the version increments exactly once.
func (a *Assignment) Accept(now time.Time) error {
	if a.state != Offered {
		return fmt.Errorf("%w: state is %s", ErrOfferNotOpen, a.state)
	}
	if now.After(a.deadline) {
		return ErrOfferExpired
	}

	a.state = Accepted
	respondedAt := now
	a.respondedAt = &respondedAt

	a.bumpVersion()
	return nil
}

// Reject records the driver declining the offer. Terminal.
//
// On success the version increments exactly once.
func (a *Assignment) Reject(now time.Time) error {
	if a.state != Offered {
		return fmt.Errorf("%w: state is %s", ErrOfferNotOpen, a.state)
	}

	a.state = Rejected
	respondedAt := now
	a.respondedAt = &respondedAt

	a.bumpVersion()
	return nil
}

// Expire marks an unanswered offer as timed out. Called by the expiry sweep;
// the deadline must have passed. Terminal.
//
// On success the version increments exactly once.
func (a *Assignment) Expire(now time.Time) error {
	if a.state != Offered {
		return fmt.Errorf("%w: state is %s", ErrOfferNotOpen, a.state)
	}
	if now.Before(a.deadline) {
		return ErrDeadlineNotReached
	}

	a.state = Expired
	respondedAt := now
	a.respondedAt = &respondedAt

	a.bumpVersion()
	return nil
}

// Cancel withdraws an open offer or an accepted assignment, e.g. when the
// order is cancelled or the driver goes offline. Terminal.
//
// On success the version increments exactly once.
func (a *Assignment) Cancel(now time.Time) error {
	if a.state != Offered && a.state != Accepted {
		return fmt.Errorf("%w: state is %s", ErrOfferNotOpen, a.state)
	}

	a.state = Cancelled
	respondedAt := now
	a.respondedAt = &respondedAt

	a.bumpVersion()
	return nil
}

// Complete records the delivery finishing. Only an Accepted assignment can
// complete; the coupled order transition to Delivered happens in the same
// transaction at the application layer. Terminal.
//
// On success the version increments exactly once.
func (a *Assignment) Complete(now time.Time) error {
	if a.state != Accepted {
		return fmt.Errorf("%w: state is %s", ErrNotAccepted, a.state)
	}

	a.state = Completed
	completedAt := now
	a.completedAt = &completedAt

	a.bumpVersion()
	return nil
}

// bumpVersion advances the optimistic-concurrency counter.
// Called exactly once from every accepted mutation.
func (a *Assignment) bumpVersion() {
	a.version++
}

// setID validates and sets the assignment's unique identifier.
func (a *Assignment) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	a.id = id
	return nil
}

// setOrderID validates and sets the order reference.
func (a *Assignment) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}
	a.orderID = orderID
	return nil
}

// setDriverID validates and sets the driver reference.
func (a *Assignment) setDriverID(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}
	a.driverID = driverID
	return nil
}

// setDeadline validates the offer deadline lies after the offer time.
func (a *Assignment) setDeadline(offeredAt, deadline time.Time) error {
	if !deadline.After(offeredAt) {
		return errs.NewValueIsInvalidErrorWithCause("deadline",
			fmt.Errorf("deadline %s is not after offer time %s", deadline, offeredAt))
	}
	return nil
}

// setState validates and sets the persisted state during restoration.
func (a *Assignment) setState(state State) error {
	if err := state.Validate(); err != nil {
		return err
	}
	a.state = state
	return nil
}

// setVersion validates and sets the persisted version during restoration.
func (a *Assignment) setVersion(version int64) error {
	if version < 1 {
		return errs.NewValueIsInvalidErrorWithCause("version",
			fmt.Errorf("%d is not a positive version", version))
	}
	a.version = version
	return nil
}
