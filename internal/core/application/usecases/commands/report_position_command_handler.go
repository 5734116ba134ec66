package commands

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/metrics"
)

// ReportPositionCommandHandler handles driver position reports, the highest
// volume write path in the system. Stale reports are detected against the
// stored snapshot and dropped without an error or a version bump, so racing
// reports never produce concurrency conflicts.
type ReportPositionCommandHandler struct {
	uowFactory DriverUoWFactory
	publisher  EventPublisher
	index      DriverIndex
}

// NewReportPositionCommandHandler creates a handler for position reports.
func NewReportPositionCommandHandler(uowFactory DriverUoWFactory, publisher EventPublisher, index DriverIndex) ReportPositionCommandHandler {
	return ReportPositionCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
		index:      index,
	}
}

// Handle processes a position report. A stale report (at or before the last
// stored one) is a successful no-op.
func (h *ReportPositionCommandHandler) Handle(ctx context.Context, cmd ReportPositionCommand) error {
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

	applied, err := aggregate.UpdatePosition(cmd.Position(), cmd.RecordedAt())
	if err != nil {
		return err
	}
	if !applied {
		metrics.StalePositionReports.Inc()
		return nil
	}

	persisted, err := uow.DriverRepository().UpdatePosition(ctx, aggregate)
	if err != nil {
		return err
	}
	if !persisted {
		// another report won the storage race after our read
		metrics.StalePositionReports.Inc()
		return nil
	}

	moved, err := event.NewDriverEvent(event.TypeDriverUpdated, aggregate, now)
	if err != nil {
		return err
	}

	committed, err := uow.EventRepository().Append(ctx, moved)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	h.index.Upsert(aggregate.ID(), cmd.Position(), cmd.RecordedAt(), aggregate.Availability())
	h.publisher.Publish(ctx, committed...)
	return nil
}
