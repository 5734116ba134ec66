package commands

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"
)

// TransitionOrderCommandHandler applies order status transitions under the
// optimistic-concurrency contract. Cancellation withdraws the order's open
// offer and frees an already-assigned driver; delivery completes the
// accepted assignment and frees the driver. All coupled changes and their
// events commit in one transaction.
type TransitionOrderCommandHandler struct {
	uowFactory UoWFactory
	publisher  EventPublisher
	index      DriverIndex
}

// NewTransitionOrderCommandHandler creates a handler for order transitions.
func NewTransitionOrderCommandHandler(uowFactory UoWFactory, publisher EventPublisher, index DriverIndex) TransitionOrderCommandHandler {
	return TransitionOrderCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		index:      index,
	}
}

// Handle processes the transition command.
//
// Returns an error wrapping errs.ErrConcurrencyConflict when the caller's
// expected version is no longer current (retryable after a re-read) and one
// wrapping order.ErrInvalidTransition on a graph violation (not retryable).
func (h *TransitionOrderCommandHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	aggregate, err := uow.OrderRepository().Get(ctx, cmd.OrderID())
	if err != nil {
		return err
	}

	if aggregate.Version() != cmd.ExpectedVersion() {
		return errs.NewConcurrencyConflictError("order", cmd.ExpectedVersion(), aggregate.Version())
	}

	if err = aggregate.TransitionTo(cmd.NewStatus(), now); err != nil {
		return err
	}

	events := make([]event.Event, 0, 3)
	var freedDriver *driver.Driver

	switch cmd.NewStatus() {
	case order.Cancelled:
		freedDriver, err = h.withdrawAssignment(ctx, uow, cmd, now, &events)
	case order.Delivered:
		freedDriver, err = h.completeAssignment(ctx, uow, cmd, now, &events)
	}
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, aggregate, now)
	if err != nil {
		return err
	}
	events = append(events, orderEvent)

	committed, err := uow.EventRepository().Append(ctx, events...)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	if freedDriver != nil {
		h.index.SetAvailability(freedDriver.ID(), freedDriver.Availability())
	}
	metrics.OrderTransitions.WithLabelValues(cmd.NewStatus().String()).Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}

// withdrawAssignment cancels the order's open offer or accepted assignment
// on cancellation. A driver that had already accepted returns to the
// available pool.
func (h *TransitionOrderCommandHandler) withdrawAssignment(
	ctx context.Context,
	uow UoW,
	cmd TransitionOrderCommand,
	now time.Time,
	events *[]event.Event,
) (*driver.Driver, error) {
	open, err := uow.AssignmentRepository().GetOpenByOrder(ctx, cmd.OrderID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	wasAccepted := open.State() == assignment.Accepted
	if err = open.Cancel(now); err != nil {
		return nil, err
	}
	if err = uow.AssignmentRepository().Update(ctx, open); err != nil {
		return nil, err
	}

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, open, now)
	if err != nil {
		return nil, err
	}
	*events = append(*events, assignmentEvent)

	if !wasAccepted {
		return nil, nil
	}
	return h.freeDriver(ctx, uow, open.DriverID(), now, events)
}

// completeAssignment closes the accepted assignment when the order is
// delivered and frees the driver.
func (h *TransitionOrderCommandHandler) completeAssignment(
	ctx context.Context,
	uow UoW,
	cmd TransitionOrderCommand,
	now time.Time,
	events *[]event.Event,
) (*driver.Driver, error) {
	open, err := uow.AssignmentRepository().GetOpenByOrder(ctx, cmd.OrderID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err = open.Complete(now); err != nil {
		return nil, err
	}
	if err = uow.AssignmentRepository().Update(ctx, open); err != nil {
		return nil, err
	}

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, open, now)
	if err != nil {
		return nil, err
	}
	*events = append(*events, assignmentEvent)

	return h.freeDriver(ctx, uow, open.DriverID(), now, events)
}

// freeDriver returns the assignment's driver to the available pool.
func (h *TransitionOrderCommandHandler) freeDriver(
	ctx context.Context,
	uow UoW,
	driverID kernel.UUID,
	now time.Time,
	events *[]event.Event,
) (*driver.Driver, error) {
	aggregate, err := uow.DriverRepository().Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if err = aggregate.ClearAssignment(); err != nil {
		return nil, err
	}
	if err = uow.DriverRepository().Update(ctx, aggregate); err != nil {
		return nil, err
	}

	driverEvent, err := event.NewDriverEvent(event.TypeDriverUpdated, aggregate, now)
	if err != nil {
		return nil, err
	}
	*events = append(*events, driverEvent)

	return aggregate, nil
}
