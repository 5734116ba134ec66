package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/session"
)

// GormSnapshotSource builds scope snapshots for connecting observers. Each
// snapshot runs inside one read-only transaction: the event head is read
// first, then entity states, so the states are never older than the baseline
// sequence. The head is a safe baseline because the event repository assigns
// sequences under a lock held to commit, so no sequence at or below it can
// still be uncommitted. Events replayed after the baseline may carry state
// the snapshot already reflects, which is harmless because payloads are
// absolute.
type GormSnapshotSource struct {
	factory ports.UnitOfWorkFactory
}

// NewGormSnapshotSource creates a snapshot source on top of the unit of work
// factory.
func NewGormSnapshotSource(factory ports.UnitOfWorkFactory) *GormSnapshotSource {
	return &GormSnapshotSource{factory: factory}
}

// Snapshot returns the current state of every entity in the scope together
// with the baseline event sequence. A scope narrowed to an entity that does
// not exist yet yields an empty snapshot, not an error, so an observer can
// subscribe ahead of creation.
func (s *GormSnapshotSource) Snapshot(ctx context.Context, scope event.Scope) (session.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return session.Snapshot{}, err
	}

	uow := s.factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return session.Snapshot{}, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	head, err := uow.EventRepository().Head(ctx)
	if err != nil {
		return session.Snapshot{}, err
	}

	states, err := s.statesFor(ctx, uow, scope)
	if err != nil {
		return session.Snapshot{}, err
	}

	return session.Snapshot{Scope: scope, States: states, BaselineSeq: head}, nil
}

func (s *GormSnapshotSource) statesFor(ctx context.Context, uow ports.UnitOfWork, scope event.Scope) ([]json.RawMessage, error) {
	switch scope.Kind {
	case event.KindOrder:
		return s.orderStates(ctx, uow.OrderRepository(), scope)
	case event.KindDriver:
		return s.driverStates(ctx, uow.DriverRepository(), scope)
	case event.KindAssignment:
		return s.assignmentStates(ctx, uow.AssignmentRepository(), scope)
	default:
		return nil, errs.NewValueIsInvalidError("scope")
	}
}

func (s *GormSnapshotSource) orderStates(ctx context.Context, repo ports.OrderRepository, scope event.Scope) ([]json.RawMessage, error) {
	if !scope.IsKindWide() {
		aggregate, err := repo.Get(ctx, scope.ID)
		if err != nil {
			return emptyIfNotFound(err)
		}
		state, err := event.OrderState(aggregate)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{state}, nil
	}

	orders, err := repo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]json.RawMessage, 0, len(orders))
	for _, aggregate := range orders {
		state, stateErr := event.OrderState(aggregate)
		if stateErr != nil {
			return nil, stateErr
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *GormSnapshotSource) driverStates(ctx context.Context, repo ports.DriverRepository, scope event.Scope) ([]json.RawMessage, error) {
	if !scope.IsKindWide() {
		aggregate, err := repo.Get(ctx, scope.ID)
		if err != nil {
			return emptyIfNotFound(err)
		}
		state, err := event.DriverState(aggregate)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{state}, nil
	}

	drivers, err := repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]json.RawMessage, 0, len(drivers))
	for _, aggregate := range drivers {
		state, stateErr := event.DriverState(aggregate)
		if stateErr != nil {
			return nil, stateErr
		}
		states = append(states, state)
	}
	return states, nil
}

func (s *GormSnapshotSource) assignmentStates(ctx context.Context, repo ports.AssignmentRepository, scope event.Scope) ([]json.RawMessage, error) {
	if !scope.IsKindWide() {
		aggregate, err := repo.Get(ctx, scope.ID)
		if err != nil {
			return emptyIfNotFound(err)
		}
		state, err := event.AssignmentState(aggregate)
		if err != nil {
			return nil, err
		}
		return []json.RawMessage{state}, nil
	}

	assignments, err := repo.GetOpen(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]json.RawMessage, 0, len(assignments))
	for _, aggregate := range assignments {
		state, stateErr := event.AssignmentState(aggregate)
		if stateErr != nil {
			return nil, stateErr
		}
		states = append(states, state)
	}
	return states, nil
}

func emptyIfNotFound(err error) ([]json.RawMessage, error) {
	var notFound *errs.ObjectNotFoundError
	if errors.As(err, &notFound) {
		return []json.RawMessage{}, nil
	}
	return nil, err
}
