package commands_test

import (
	"errors"
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterDriverCommandHandler_Handle_Success(t *testing.T) {
	ctx := t.Context()
	cmd, _ := commands.NewRegisterDriverCommand(kernel.NewUUID(), "Nora", driver.Bicycle)

	drivers := new(MockDriverRepository)
	events := new(MockEventRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	uow.On("EventRepository").Return(events)
	publisher := new(MockEventPublisher)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Add", mock.Anything, mock.AnythingOfType("*driver.Driver")).Return(nil).Once(),
		events.On("Append", mock.Anything, mock.Anything).Return(nil, nil).Once(),
		uow.On("Commit", ctx).Return(nil).Once(),
		publisher.On("Publish", ctx, mock.Anything).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewRegisterDriverCommandHandler(factory, publisher)
	err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	drivers.AssertExpectations(t)
	events.AssertExpectations(t)
	uow.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRegisterDriverCommandHandler_Handle_ValidationError(t *testing.T) {
	ctx := t.Context()
	cmd := commands.RegisterDriverCommand{} // not constructed properly
	h := commands.NewRegisterDriverCommandHandler(new(MockDriverUoWFactory), new(MockEventPublisher))
	err := h.Handle(ctx, cmd)
	require.Error(t, err)
}

func TestRegisterDriverCommandHandler_Handle_AddError(t *testing.T) {
	ctx := t.Context()
	cmd, _ := commands.NewRegisterDriverCommand(kernel.NewUUID(), "Nora", driver.Bicycle)

	drivers := new(MockDriverRepository)
	uow := new(MockUoW)
	uow.On("DriverRepository").Return(drivers)
	mock.InOrder(
		uow.On("Begin", ctx).Return(nil).Once(),
		drivers.On("Add", mock.Anything, mock.AnythingOfType("*driver.Driver")).Return(errors.New("duplicate driver")).Once(),
		uow.On("Rollback", ctx).Return(nil).Once(),
	)

	factory := new(MockDriverUoWFactory)
	factory.On("Create").Return(uow).Once()

	h := commands.NewRegisterDriverCommandHandler(factory, new(MockEventPublisher))
	err := h.Handle(ctx, cmd)
	require.Error(t, err)
	drivers.AssertExpectations(t)
	uow.AssertExpectations(t)
}
