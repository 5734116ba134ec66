package commands

import (
	"errors"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/guard"
)

var (
	ErrCreateOrderCommandIsNotConstructed = errors.New(
		"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
	)
	ErrLineItemsAreRequired = errors.New("at least one line item is required")
)

// LineItemSpec carries one requested line item before domain validation.
type LineItemSpec struct {
	Name       string
	Quantity   int
	PriceCents int64
}

// CreateOrderCommand represents a request to create a new delivery order
// with a destination and its immutable line items.
//
// Example:
//
//	orderID := kernel.NewUUID()
//	cmd, err := NewCreateOrderCommand(orderID, destination, []LineItemSpec{
//	    {Name: "espresso", Quantity: 2, PriceCents: 350},
//	})
//	if err != nil {
//	    return fmt.Errorf("invalid order data: %w", err)
//	}
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID     kernel.UUID
	destination kernel.GeoPoint
	items       []order.LineItem

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand creates a command to register a new delivery order.
// Validates the order id, the destination coordinates and every line item.
func NewCreateOrderCommand(orderID kernel.UUID, destination kernel.GeoPoint, items []LineItemSpec) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setDestination(destination),
		cmd.setItems(items),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

// OrderID returns the unique identifier for the order.
func (c CreateOrderCommand) OrderID() kernel.UUID {
	return c.orderID
}

// Destination returns the delivery destination.
func (c CreateOrderCommand) Destination() kernel.GeoPoint {
	return c.destination
}

// Items returns the validated line items.
func (c CreateOrderCommand) Items() []order.LineItem {
	return c.items
}

func (c *CreateOrderCommand) setOrderID(orderID kernel.UUID) error {
	if err := orderID.Validate(); err != nil {
		return err
	}

	c.orderID = orderID
	return nil
}

func (c *CreateOrderCommand) setDestination(destination kernel.GeoPoint) error {
	if err := destination.Validate(); err != nil {
		return err
	}

	c.destination = destination
	return nil
}

func (c *CreateOrderCommand) setItems(specs []LineItemSpec) error {
	if len(specs) == 0 {
		return ErrLineItemsAreRequired
	}

	items := make([]order.LineItem, 0, len(specs))
	for _, spec := range specs {
		item, err := order.NewLineItem(spec.Name, spec.Quantity, spec.PriceCents)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	c.items = items
	return nil
}
