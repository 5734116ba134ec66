package commands

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"
)

// SetDriverShiftCommandHandler processes shift changes. Going offline while
// holding an open offer or accepted assignment cancels it; an affected order
// keeps its dispatch history and immediately becomes eligible for the next
// sweep, which already excludes the departed driver.
type SetDriverShiftCommandHandler struct {
	uowFactory UoWFactory
	publisher  EventPublisher
	index      DriverIndex
}

// NewSetDriverShiftCommandHandler creates a handler for shift changes.
func NewSetDriverShiftCommandHandler(uowFactory UoWFactory, publisher EventPublisher, index DriverIndex) SetDriverShiftCommandHandler {
	return SetDriverShiftCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		index:      index,
	}
}

// Handle processes the shift change command.
//
// Going online while serving an assignment is already true and returns an
// error; repeating the current shift state is a no-op that writes nothing.
func (h *SetDriverShiftCommandHandler) Handle(ctx context.Context, cmd SetDriverShiftCommand) error {
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

	aggregate, err := uow.DriverRepository().Get(ctx, cmd.DriverID())
	if err != nil {
		return err
	}

	versionBefore := aggregate.Version()
	events := make([]event.Event, 0, 4)

	if cmd.Online() {
		if err = aggregate.GoOnline(); err != nil {
			return err
		}
	} else {
		aggregate.GoOffline()
		if aggregate.Version() != versionBefore {
			if err = h.withdrawOpenAssignment(ctx, uow, cmd, now, &events); err != nil {
				return err
			}
		}
	}

	// Repeating the current shift state bumps nothing; commit nothing.
	if aggregate.Version() == versionBefore {
		return nil
	}

	if err = uow.DriverRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	driverEvent, err := event.NewDriverEvent(event.TypeDriverUpdated, aggregate, now)
	if err != nil {
		return err
	}
	events = append(events, driverEvent)

	committed, err := uow.EventRepository().Append(ctx, events...)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	if cmd.Online() {
		if position := aggregate.Position(); !position.IsZero() {
			h.index.Upsert(cmd.DriverID(), position.Point(), position.RecordedAt(), aggregate.Availability())
		}
	} else {
		h.index.Remove(cmd.DriverID())
	}
	h.publisher.Publish(ctx, committed...)
	return nil
}

// withdrawOpenAssignment cancels the offline driver's open offer or accepted
// assignment. An order the driver had accepted loses its driver reference and
// returns to the dispatch pool; its past-due next attempt time makes it
// eligible on the next sweep without an extra backoff round.
func (h *SetDriverShiftCommandHandler) withdrawOpenAssignment(
	ctx context.Context,
	uow UoW,
	cmd SetDriverShiftCommand,
	now time.Time,
	events *[]event.Event,
) error {
	open, err := uow.AssignmentRepository().GetOpenByDriver(ctx, cmd.DriverID())
	if errors.Is(err, errs.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	wasAccepted := open.State() == assignment.Accepted
	if err = open.Cancel(now); err != nil {
		return err
	}
	if err = uow.AssignmentRepository().Update(ctx, open); err != nil {
		return err
	}

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, open, now)
	if err != nil {
		return err
	}
	*events = append(*events, assignmentEvent)
	metrics.OffersResolved.WithLabelValues("cancelled").Inc()

	if !wasAccepted {
		return nil
	}

	affected, err := uow.OrderRepository().Get(ctx, open.OrderID())
	if err != nil {
		return err
	}
	if err = affected.UnassignDriver(); err != nil {
		return err
	}
	if err = uow.OrderRepository().Update(ctx, affected); err != nil {
		return err
	}

	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, affected, now)
	if err != nil {
		return err
	}
	*events = append(*events, orderEvent)
	return nil
}
