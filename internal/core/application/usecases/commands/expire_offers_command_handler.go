package commands

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"
)

// ExpireOffersCommandHandler runs the offer timeout sweep. Each overdue
// offer is resolved in its own transaction; an acceptance racing the sweep
// is decided by the assignment's version, and the sweep concedes on a
// conflict.
type ExpireOffersCommandHandler struct {
	uowFactory UoWFactory
	publisher  EventPublisher
	batchLimit int
}

// NewExpireOffersCommandHandler creates a handler for timeout rounds.
// batchLimit bounds the offers resolved per round.
func NewExpireOffersCommandHandler(uowFactory UoWFactory, publisher EventPublisher, batchLimit int) (ExpireOffersCommandHandler, error) {
	if batchLimit < 1 {
		return ExpireOffersCommandHandler{}, errs.NewValueIsInvalidError("batchLimit")
	}

	return ExpireOffersCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		batchLimit: batchLimit,
	}, nil
}

// Handle processes one timeout round. Per-offer failures do not stop the
// round; they are joined into the returned error.
func (h *ExpireOffersCommandHandler) Handle(ctx context.Context, cmd ExpireOffersCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	overdue, err := h.collectOverdue(ctx)
	if err != nil {
		return err
	}

	var errsJoined error
	for _, offer := range overdue {
		if err := h.expireOffer(ctx, offer.ID()); err != nil {
			errsJoined = errors.Join(errsJoined, err)
		}
	}
	return errsJoined
}

// collectOverdue reads the round's batch of overdue offers in a short
// transaction.
func (h *ExpireOffersCommandHandler) collectOverdue(ctx context.Context) ([]*assignment.Assignment, error) {
	now := time.Now().UTC()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	return uow.AssignmentRepository().GetExpiredOffers(ctx, now, h.batchLimit)
}

// expireOffer resolves one overdue offer in its own transaction. The offer
// is re-read first: the driver may have answered between the batch read and
// now, in which case there is nothing to expire.
func (h *ExpireOffersCommandHandler) expireOffer(ctx context.Context, assignmentID kernel.UUID) error {
	now := time.Now().UTC()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	offer, err := uow.AssignmentRepository().Get(ctx, assignmentID)
	if err != nil {
		return err
	}

	err = offer.Expire(now)
	if errors.Is(err, assignment.ErrOfferNotOpen) {
		return nil
	}
	if err != nil {
		return err
	}

	if err = uow.AssignmentRepository().Update(ctx, offer); err != nil {
		if errors.Is(err, errs.ErrConcurrencyConflict) {
			// The driver's answer landed first.
			return nil
		}
		return err
	}

	timedOut, err := uow.OrderRepository().Get(ctx, offer.OrderID())
	if err != nil {
		return err
	}
	if err = timedOut.ScheduleDispatchRetry(now); err != nil {
		return err
	}
	if err = uow.OrderRepository().Update(ctx, timedOut); err != nil {
		return err
	}

	events := make([]event.Event, 0, 2)

	assignmentEvent, err := event.NewAssignmentEvent(event.TypeAssignmentUpdated, offer, now)
	if err != nil {
		return err
	}
	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, timedOut, now)
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

	metrics.OffersResolved.WithLabelValues("expired").Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}
