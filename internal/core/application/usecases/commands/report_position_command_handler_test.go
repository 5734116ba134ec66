package commands_test

import (
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReportPositionCommandHandler_Handle_Success(t *testing.T) {
	ctx := t.Context()
	recordedAt := time.Now().UTC()
	aggregate := newDriverWithPosition(t, driver.Available, recordedAt.Add(-time.Minute))
	cmd, err := commands.NewReportPositionCommand(aggregate.ID(), testGeoPoint(t, 52.53, 13.41), recordedAt)
	require.NoError(t, err)

	drivers := new(MockDriverRepository)
	events := new(MockEventRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	uow.On("EventRepository").Return(events)
	publisher := new(MockEventPublisher)
	index := new(MockDriverIndex)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Get", mock.Anything, aggregate.ID()).Return(aggregate, nil).Once(),
		drivers.On("UpdatePosition", mock.Anything, aggregate).Return(true, nil).Once(),
		events.On("Append", mock.Anything, mock.Anything).Return(nil, nil).Once(),
		uow.On("Commit", ctx).Return(nil).Once(),
		index.On("Upsert", aggregate.ID(), cmd.Position(), recordedAt, driver.Available).Return(true).Once(),
		publisher.On("Publish", ctx, mock.Anything).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewReportPositionCommandHandler(factory, publisher, index)
	require.NoError(t, h.Handle(ctx, cmd))
	drivers.AssertExpectations(t)
	uow.AssertExpectations(t)
	index.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestReportPositionCommandHandler_Handle_StaleReportIsNoOp(t *testing.T) {
	ctx := t.Context()
	snapshotAt := time.Now().UTC()
	aggregate := newDriverWithPosition(t, driver.Available, snapshotAt)
	cmd, err := commands.NewReportPositionCommand(aggregate.ID(), testGeoPoint(t, 52.53, 13.41), snapshotAt.Add(-time.Minute))
	require.NoError(t, err)

	drivers := new(MockDriverRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Get", mock.Anything, aggregate.ID()).Return(aggregate, nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewReportPositionCommandHandler(factory, new(MockEventPublisher), new(MockDriverIndex))
	require.NoError(t, h.Handle(ctx, cmd))
	drivers.AssertExpectations(t)
	uow.AssertExpectations(t)
}

func TestReportPositionCommandHandler_Handle_StorageRaceIsNoOp(t *testing.T) {
	ctx := t.Context()
	recordedAt := time.Now().UTC()
	aggregate := newDriverWithPosition(t, driver.Available, recordedAt.Add(-time.Minute))
	cmd, err := commands.NewReportPositionCommand(aggregate.ID(), testGeoPoint(t, 52.53, 13.41), recordedAt)
	require.NoError(t, err)

	drivers := new(MockDriverRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Get", mock.Anything, aggregate.ID()).Return(aggregate, nil).Once(),
		drivers.On("UpdatePosition", mock.Anything, aggregate).Return(false, nil).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewReportPositionCommandHandler(factory, new(MockEventPublisher), new(MockDriverIndex))
	require.NoError(t, h.Handle(ctx, cmd))
	drivers.AssertExpectations(t)
	uow.AssertExpectations(t)
}

func TestReportPositionCommandHandler_Handle_DriverNotFound(t *testing.T) {
	ctx := t.Context()
	recordedAt := time.Now().UTC()
	aggregate := newDriverWithPosition(t, driver.Available, recordedAt.Add(-time.Minute))
	cmd, err := commands.NewReportPositionCommand(aggregate.ID(), testGeoPoint(t, 52.53, 13.41), recordedAt)
	require.NoError(t, err)

	drivers := new(MockDriverRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Get", mock.Anything, aggregate.ID()).Return(nil, errs.NewObjectNotFoundError("driver", aggregate.ID())).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewReportPositionCommandHandler(factory, new(MockEventPublisher), new(MockDriverIndex))
	err = h.Handle(ctx, cmd)
	require.Error(t, err)
	require.ErrorIs(t, err, errs.ErrObjectNotFound)
}
