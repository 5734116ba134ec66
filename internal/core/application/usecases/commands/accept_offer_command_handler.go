package commands

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/services"
	"dispatch/internal/metrics"
)

// ErrOfferNotAddressedToDriver is returned when a driver responds to an offer
// made to someone else.
var ErrOfferNotAddressedToDriver = errors.New("offer is not addressed to this driver")

// AcceptOfferCommandHandler confirms an open offer. Acceptance couples three
// aggregates in one transaction: the assignment moves to Accepted, the driver
// to Assigned, and the order records the driver and a delivery estimate.
// Racing resolutions (timeout sweep, order cancellation) are serialized by
// the assignment's version; whichever write commits first wins and the loser
// reports a concurrency conflict.
type AcceptOfferCommandHandler struct {
	uowFactory UoWFactory
	publisher  EventPublisher
	index      DriverIndex
	planner    services.DispatchPlanner
}

// NewAcceptOfferCommandHandler creates a handler for offer acceptances.
func NewAcceptOfferCommandHandler(
	uowFactory UoWFactory,
	publisher EventPublisher,
	index DriverIndex,
	planner services.DispatchPlanner,
) AcceptOfferCommandHandler {
	return AcceptOfferCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		index:      index,
		planner:    planner,
	}
}

// Handle processes the acceptance.
//
// Returns assignment.ErrOfferExpired when the deadline has passed and
// assignment.ErrOfferNotOpen when the offer was already resolved.
func (h *AcceptOfferCommandHandler) Handle(ctx context.Context, cmd AcceptOfferCommand) error {
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

	open, err := uow.AssignmentRepository().Get(ctx, cmd.AssignmentID())
	if err != nil {
		return err
	}
	if !open.DriverID().IsEqual(cmd.DriverID()) {
		return ErrOfferNotAddressedToDriver
	}

	if err = open.Accept(now); err != nil {
		return err
	}
	if err = uow.AssignmentRepository().Update(ctx, open); err != nil {
		return err
	}

	assignee, err := uow.DriverRepository().Get(ctx, cmd.DriverID())
	if err != nil {
		return err
	}
	if err = assignee.MarkAssigned(); err != nil {
		return err
	}
	if err = uow.DriverRepository().Update(ctx, assignee); err != nil {
		return err
	}

	accepted, err := uow.OrderRepository().Get(ctx, open.OrderID())
	if err != nil {
		return err
	}

	var distanceMeters float64
	if position := assignee.Position(); !position.IsZero() {
		distanceMeters, err = position.Point().DistanceMeters(accepted.Destination())
		if err != nil {
			return err
		}
	}
	eta := h.planner.EstimateDelivery(now, distanceMeters, assignee.Vehicle())

	if err = accepted.AssignDriver(cmd.DriverID(), eta); err != nil {
		return err
	}
	if err = uow.OrderRepository().Update(ctx, accepted); err != nil {
		return err
	}

	events := make([]event.Event, 0, 3)

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, open, now)
	if err != nil {
		return err
	}
	driverEvent, err := event.NewDriverEvent(event.TypeDriverUpdated, assignee, now)
	if err != nil {
		return err
	}
	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, accepted, now)
	if err != nil {
		return err
	}
	events = append(events, assignmentEvent, driverEvent, orderEvent)

	committed, err := uow.EventRepository().Append(ctx, events...)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	h.index.SetAvailability(assignee.ID(), assignee.Availability())
	metrics.OffersResolved.WithLabelValues("accepted").Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}
