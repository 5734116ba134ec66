package commands

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/metrics"
)

// RejectOfferCommandHandler resolves an open offer as declined. The order
// goes straight back into the dispatch pool; the next sweep already excludes
// every previously offered driver, so the decliner is not asked again.
type RejectOfferCommandHandler struct {
	uowFactory UoWFactory
	publisher  EventPublisher
}

// NewRejectOfferCommandHandler creates a handler for offer rejections.
func NewRejectOfferCommandHandler(uowFactory UoWFactory, publisher EventPublisher) RejectOfferCommandHandler {
	return RejectOfferCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle processes the rejection.
//
// Returns assignment.ErrOfferNotOpen when the offer was already resolved,
// e.g. by the timeout sweep racing this response.
func (h *RejectOfferCommandHandler) Handle(ctx context.Context, cmd RejectOfferCommand) error {
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

	if err = open.Reject(now); err != nil {
		return err
	}
	if err = uow.AssignmentRepository().Update(ctx, open); err != nil {
		return err
	}

	declined, err := uow.OrderRepository().Get(ctx, open.OrderID())
	if err != nil {
		return err
	}
	if err = declined.ScheduleDispatchRetry(now); err != nil {
		return err
	}
	if err = uow.OrderRepository().Update(ctx, declined); err != nil {
		return err
	}

	events := make([]event.Event, 0, 2)

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, open, now)
	if err != nil {
		return err
	}
	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, declined, now)
	if err != nil {
		return err
	}
	events = append(events, assignmentEvent, orderEvent)

	committed, err := uow.EventRepository().Append(ctx, events...)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	metrics.OffersResolved.WithLabelValues("rejected").Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}
