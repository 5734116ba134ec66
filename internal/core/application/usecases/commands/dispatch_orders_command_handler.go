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
	"dispatch/internal/core/domain/services"
	"dispatch/internal/geoindex"
	"dispatch/internal/metrics"
	"dispatch/internal/pkg/errs"
)

// DispatchOrdersCommandHandler runs the dispatch sweep. Each due order is
// processed in its own transaction so one contended order cannot roll back a
// whole round: the nearest eligible driver that has not been offered this
// order before gets an open offer, and an empty round schedules a retry with
// exponential backoff and a widened search radius.
//
// Several sweep instances may run concurrently. The storage-level rule of at
// most one open assignment per order and per driver makes racing offers
// resolve as a conflict on Add, which the handler treats as another instance
// having won the order.
type DispatchOrdersCommandHandler struct {
	uowFactory     UoWFactory
	publisher      EventPublisher
	index          DriverIndex
	planner        services.DispatchPlanner
	batchLimit     int
	candidateLimit int
}

// NewDispatchOrdersCommandHandler creates a handler for dispatch rounds.
// batchLimit bounds the orders taken per round and candidateLimit the
// drivers considered per order.
func NewDispatchOrdersCommandHandler(
	uowFactory UoWFactory,
	publisher EventPublisher,
	index DriverIndex,
	planner services.DispatchPlanner,
	batchLimit int,
	candidateLimit int,
) (DispatchOrdersCommandHandler, error) {
	if batchLimit < 1 {
		return DispatchOrdersCommandHandler{}, errs.NewValueIsInvalidError("batchLimit")
	}
	if candidateLimit < 1 {
		return DispatchOrdersCommandHandler{}, errs.NewValueIsInvalidError("candidateLimit")
	}

	return DispatchOrdersCommandHandler{
		uowFactory:     uowFactory,
		publisher:      publisher,
		index:          index,
		planner:        planner,
		batchLimit:     batchLimit,
		candidateLimit: candidateLimit,
	}, nil
}

// Handle processes one dispatch round. Per-order failures do not stop the
// round; they are joined into the returned error after every due order has
// been attempted.
func (h *DispatchOrdersCommandHandler) Handle(ctx context.Context, cmd DispatchOrdersCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	due, err := h.collectDue(ctx)
	if err != nil {
		return err
	}

	var errsJoined error
	for _, dueOrder := range due {
		if err := h.dispatchOrder(ctx, dueOrder.ID()); err != nil {
			errsJoined = errors.Join(errsJoined, err)
		}
	}
	return errsJoined
}

// collectDue reads the round's batch of due orders in a short transaction.
func (h *DispatchOrdersCommandHandler) collectDue(ctx context.Context) ([]*order.Order, error) {
	now := time.Now().UTC()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	return uow.OrderRepository().GetDueForDispatch(ctx, now, h.batchLimit)
}

// dispatchOrder runs one order's round in its own transaction. The order is
// re-read inside the transaction: between the batch read and now it may have
// been cancelled, picked up by another sweep instance, or already offered.
func (h *DispatchOrdersCommandHandler) dispatchOrder(ctx context.Context, orderID kernel.UUID) error {
	now := time.Now().UTC()

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	dueOrder, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !h.stillDue(dueOrder, now) {
		return nil
	}

	if _, err = uow.AssignmentRepository().GetOpenByOrder(ctx, orderID); err == nil {
		return nil
	} else if !errors.Is(err, errs.ErrObjectNotFound) {
		return err
	}

	attempted, err := uow.AssignmentRepository().GetAttemptedDriverIDs(ctx, orderID)
	if err != nil {
		return err
	}

	candidate, found := h.nearestCandidate(dueOrder, attempted)
	if !found {
		return h.scheduleRetry(ctx, uow, dueOrder, now)
	}

	offer, err := assignment.NewAssignment(
		kernel.NewUUID(), orderID, candidate.DriverID, now, h.planner.OfferDeadline(now))
	if err != nil {
		return err
	}

	err = uow.AssignmentRepository().Add(ctx, offer)
	if errors.Is(err, errs.ErrConcurrencyConflict) {
		// Another sweep instance offered this order or driver first.
		return nil
	}
	if err != nil {
		return err
	}

	offerEvent, err := event.NewAssignmentEvent(event.TypeAssignmentOffered, offer, now)
	if err != nil {
		return err
	}

	committed, err := uow.EventRepository().Append(ctx, offerEvent)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	metrics.OffersCreated.Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}

// stillDue re-checks dispatch eligibility against the current order state.
func (h *DispatchOrdersCommandHandler) stillDue(dueOrder *order.Order, now time.Time) bool {
	if dueOrder.Status() != order.Pending && dueOrder.Status() != order.Preparing {
		return false
	}
	if dueOrder.AssignedDriver() != nil {
		return false
	}
	return !dueOrder.NextDispatchAt().After(now)
}

// nearestCandidate queries the geospatial index with the radius earned by
// the order's attempt count and drops drivers the order was offered to
// before.
func (h *DispatchOrdersCommandHandler) nearestCandidate(dueOrder *order.Order, attempted []kernel.UUID) (geoindex.Candidate, bool) {
	radius := h.planner.RadiusForAttempt(dueOrder.DispatchAttempts())
	candidates := h.index.QueryNearest(dueOrder.Destination(), radius, h.candidateLimit, driver.Available)

	for _, candidate := range candidates {
		if containsID(attempted, candidate.DriverID) {
			continue
		}
		return candidate, true
	}
	return geoindex.Candidate{}, false
}

// scheduleRetry records an empty round and backs the order off.
func (h *DispatchOrdersCommandHandler) scheduleRetry(ctx context.Context, uow UoW, dueOrder *order.Order, now time.Time) error {
	nextAttemptAt := h.planner.NextAttemptAt(now, dueOrder.DispatchAttempts())
	if err := dueOrder.ScheduleDispatchRetry(nextAttemptAt); err != nil {
		return err
	}
	if err := uow.OrderRepository().Update(ctx, dueOrder); err != nil {
		return err
	}

	orderEvent, err := event.NewOrderEvent(event.TypeOrderUpdated, dueOrder, now)
	if err != nil {
		return err
	}

	committed, err := uow.EventRepository().Append(ctx, orderEvent)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	metrics.DispatchRoundsEmpty.Inc()
	h.publisher.Publish(ctx, committed...)
	return nil
}

func containsID(ids []kernel.UUID, id kernel.UUID) bool {
	for _, candidate := range ids {
		if candidate.IsEqual(id) {
			return true
		}
	}
	return false
}
