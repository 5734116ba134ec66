package commands

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/event"
)

// RegisterDriverCommandHandler handles driver registration.
type RegisterDriverCommandHandler struct {
	uowFactory DriverUoWFactory
	publisher  EventPublisher
}

// NewRegisterDriverCommandHandler creates a handler for driver registration.
func NewRegisterDriverCommandHandler(uowFactory DriverUoWFactory, publisher EventPublisher) RegisterDriverCommandHandler {
	return RegisterDriverCommandHandler{
		uowFactory: uowFactory,
		publisher:  publisher,
	}
}

// Handle processes the driver registration command.
func (h *RegisterDriverCommandHandler) Handle(ctx context.Context, cmd RegisterDriverCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	aggregate, err := driver.NewDriver(cmd.DriverID(), cmd.Name(), cmd.Vehicle())
	if err != nil {
		return err
	}

	registered, err := event.NewDriverEvent(event.TypeDriverRegistered, aggregate, now)
	if err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.DriverRepository().Add(ctx, aggregate); err != nil {
		return err
	}

	committed, err := uow.EventRepository().Append(ctx, registered)
	if err != nil {
		return err
	}

	if err = uow.Commit(ctx); err != nil {
		return err
	}

	h.publisher.Publish(ctx, committed...)
	return nil
}
