package order

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order instance was not created through
	// the NewOrder or RestoreOrder factory methods.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder constructor")

	// ErrItemsAreRequired is returned when attempting to create an order with no line items.
	ErrItemsAreRequired = errs.NewValueIsRequiredError("items")

	// ErrNoDriverAssigned is returned when a transition requires an assigned driver
	// but the order has none.
	ErrNoDriverAssigned = errors.New("order has no assigned driver")
)

// Order represents a delivery order in the system. It is the aggregate root that owns
// the order lifecycle from creation through dispatch to delivery or cancellation.
//
// Order follows these invariants:
//   - Must have a valid unique identifier and destination
//   - Must carry at least one line item; the item list is immutable after creation
//   - Status transitions follow the lifecycle graph (see Status)
//   - The version counter increments exactly once per accepted mutation,
//     which is the basis of the optimistic-concurrency contract: writers read
//     the current version, compute a change, and submit it guarded by that
//     version, so a concurrent winner invalidates the loser's attempt
//   - An order cannot go OutForDelivery without an assigned driver
//   - Can only be created through NewOrder or RestoreOrder
//
// The dispatch-retry bookkeeping (attempt count, next attempt time) is owned
// by the dispatch coordinator but stored on the aggregate so retry scheduling
// survives restarts together with the order itself.
type Order struct {
	// id is the unique identifier for the order
	id kernel.UUID

	// destination is the delivery destination
	destination kernel.GeoPoint

	// items is the ordered sequence of line items, fixed at creation
	items []LineItem

	// status represents the current state in the order lifecycle
	status Status

	// version increments exactly once per accepted mutation
	version int64

	// driverID is the assigned driver's ID (nil if unassigned).
	// This is a weak reference: relation only, not ownership.
	driverID *kernel.UUID

	// createdAt is the order creation timestamp
	createdAt time.Time

	// estimatedDeliveryAt is set when a driver accepts the offer
	estimatedDeliveryAt *time.Time

	// deliveredAt is stamped on the transition to Delivered
	deliveredAt *time.Time

	// dispatchAttempts counts completed dispatch rounds that found no driver
	dispatchAttempts int

	// nextDispatchAt is the earliest time the dispatch sweep may retry this order
	nextDispatchAt time.Time

	// guard ensures the order was created via a constructor
	guard guard.ConstructorGuard
}

// NewOrder creates a new Order in Pending status with version 1.
// This is the only way to create a fresh Order, ensuring all invariants hold.
//
// Parameters:
//   - id: Unique identifier for the order (must be valid UUID)
//   - destination: Delivery destination with validated coordinates
//   - items: Ordered line items (must be non-empty)
//   - createdAt: Creation timestamp from the caller's clock source
//
// Returns:
//   - *Order: The created order if all validations pass
//   - error: Validation error if any parameter is invalid
func NewOrder(id kernel.UUID, destination kernel.GeoPoint, items []LineItem, createdAt time.Time) (*Order, error) {
	order := &Order{
		status:         Pending,
		version:        1,
		createdAt:      createdAt,
		nextDispatchAt: createdAt,
		guard:          guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		order.setID(id),
		order.setDestination(destination),
		order.setItems(items),
	); err != nil {
		return nil, err
	}

	return order, nil
}

// RestoreOrder reconstructs an Order aggregate from persistent storage.
// Unlike NewOrder, it accepts the full persisted state including status,
// version, and dispatch bookkeeping, and validates their consistency.
//
// This constructor is intended for repository implementations only.
func RestoreOrder(
	id kernel.UUID,
	destination kernel.GeoPoint,
	items []LineItem,
	status Status,
	version int64,
	driverID *kernel.UUID,
	createdAt time.Time,
	estimatedDeliveryAt *time.Time,
	deliveredAt *time.Time,
	dispatchAttempts int,
	nextDispatchAt time.Time,
) (*Order, error) {
	order := &Order{
		createdAt:           createdAt,
		estimatedDeliveryAt: estimatedDeliveryAt,
		deliveredAt:         deliveredAt,
		dispatchAttempts:    dispatchAttempts,
		nextDispatchAt:      nextDispatchAt,
		guard:               guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		order.setID(id),
		order.setDestination(destination),
		order.setItems(items),
		order.setStatus(status),
		order.setVersion(version),
		order.setDriverID(driverID),
	); err != nil {
		return nil, err
	}

	return order, nil
}

// Validate ensures the Order instance was properly constructed through a factory method.
// This prevents bypassing validation by directly instantiating the struct.
func (o *Order) Validate() error {
	if o == nil {
		return ErrOrderIsNotConstructed
	}

	return o.guard.Validate(ErrOrderIsNotConstructed)
}

// IsEqual compares two orders by their unique identifiers.
func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

// ID returns the order's unique identifier.
func (o *Order) ID() kernel.UUID {
	return o.id
}

// Destination returns the delivery destination for the order.
func (o *Order) Destination() kernel.GeoPoint {
	return o.destination
}

// Items returns a copy of the order's line items.
// The returned slice may be modified freely without affecting the aggregate.
func (o *Order) Items() []LineItem {
	items := make([]LineItem, len(o.items))
	copy(items, o.items)
	return items
}

// Status returns the current status of the order.
func (o *Order) Status() Status {
	return o.status
}

// Version returns the current version of the order.
// The version increments exactly once per accepted mutation.
func (o *Order) Version() int64 {
	return o.version
}

// AssignedDriver returns the assigned driver's ID, or nil if no driver is assigned.
func (o *Order) AssignedDriver() *kernel.UUID {
	return o.driverID
}

// CreatedAt returns the order creation timestamp.
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// EstimatedDeliveryAt returns the estimated delivery time, or nil if no
// driver has accepted an offer yet.
func (o *Order) EstimatedDeliveryAt() *time.Time {
	return o.estimatedDeliveryAt
}

// DeliveredAt returns the actual delivery time, or nil while undelivered.
func (o *Order) DeliveredAt() *time.Time {
	return o.deliveredAt
}

// DispatchAttempts returns how many dispatch rounds have completed without
// securing a driver for this order.
func (o *Order) DispatchAttempts() int {
	return o.dispatchAttempts
}

// NextDispatchAt returns the earliest time the dispatch sweep may pick up
// this order again.
func (o *Order) NextDispatchAt() time.Time {
	return o.nextDispatchAt
}

// IsTerminal reports whether the order reached a terminal status.
func (o *Order) IsTerminal() bool {
	return o.status.IsTerminal()
}

// TransitionTo moves the order to the next lifecycle status.
//
// Business rules enforced:
//   - next must be a legal successor of the current status (see Status)
//   - OutForDelivery requires an assigned driver
//   - Delivered stamps the actual delivery timestamp
//
// On success the version increments exactly once. A graph violation returns
// an error wrapping ErrInvalidTransition and leaves the aggregate unchanged.
func (o *Order) TransitionTo(next Status, now time.Time) error {
	newStatus, err := o.status.TransitionTo(next)
	if err != nil {
		return err
	}

	if newStatus == OutForDelivery && o.driverID == nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, ErrNoDriverAssigned)
	}

	o.status = newStatus
	if newStatus == Delivered {
		deliveredAt := now
		o.deliveredAt = &deliveredAt
	}

	o.bumpVersion()
	return nil
}

// AssignDriver records the driver that accepted the offer for this order
// together with the estimated delivery time.
//
// Business rules enforced:
//   - The driver ID must be valid
//   - The order must not be in a terminal state
//   - The order must not be out for delivery already
//
// On success the version increments exactly once.
func (o *Order) AssignDriver(driverID kernel.UUID, estimatedDeliveryAt time.Time) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	if o.status.IsTerminal() || o.status == OutForDelivery {
		return fmt.Errorf("%w: cannot assign driver in status %s", ErrInvalidTransition, o.status)
	}

	o.driverID = &driverID
	eta := estimatedDeliveryAt
	o.estimatedDeliveryAt = &eta

	o.bumpVersion()
	return nil
}

// UnassignDriver releases the order's driver reference, e.g. when the driver
// goes offline before pickup. The order returns to the dispatch pool.
//
// On success the version increments exactly once.
func (o *Order) UnassignDriver() error {
	if o.status.IsTerminal() || o.status == OutForDelivery {
		return fmt.Errorf("%w: cannot unassign driver in status %s", ErrInvalidTransition, o.status)
	}

	o.driverID = nil
	o.estimatedDeliveryAt = nil

	o.bumpVersion()
	return nil
}

// ScheduleDispatchRetry records a failed dispatch round: no driver could be
// secured, the order keeps its status ("awaiting driver") and becomes
// eligible again at nextAttemptAt. The dispatch coordinator widens the
// search radius based on the accumulated attempt count.
//
// Allowed while Pending or Preparing, the statuses in which an order can be
// without a driver: a Preparing order loses its driver when the driver goes
// offline after accepting.
//
// On success the version increments exactly once.
func (o *Order) ScheduleDispatchRetry(nextAttemptAt time.Time) error {
	if o.status != Pending && o.status != Preparing {
		return fmt.Errorf("%w: cannot schedule dispatch retry in status %s", ErrInvalidTransition, o.status)
	}

	o.dispatchAttempts++
	o.nextDispatchAt = nextAttemptAt

	o.bumpVersion()
	return nil
}

// bumpVersion advances the optimistic-concurrency counter.
// Called exactly once from every accepted mutation.
func (o *Order) bumpVersion() {
	o.version++
}

// setID validates and sets the order's unique identifier.
func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

// setDestination validates and sets the order's delivery destination.
func (o *Order) setDestination(destination kernel.GeoPoint) error {
	if err := destination.Validate(); err != nil {
		return err
	}
	o.destination = destination
	return nil
}

// setItems validates and stores a defensive copy of the line items.
func (o *Order) setItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrItemsAreRequired
	}

	o.items = make([]LineItem, len(items))
	copy(o.items, items)
	return nil
}

// setStatus validates and sets the persisted status during restoration.
func (o *Order) setStatus(status Status) error {
	if err := status.Validate(); err != nil {
		return errs.NewValueIsInvalidErrorWithCause("status", err)
	}
	o.status = status
	return nil
}

// setVersion validates and sets the persisted version during restoration.
func (o *Order) setVersion(version int64) error {
	if version < 1 {
		return errs.NewValueIsInvalidErrorWithCause("version",
			fmt.Errorf("%d is not a positive version", version))
	}
	o.version = version
	return nil
}

// setDriverID validates and sets the persisted driver reference during restoration.
func (o *Order) setDriverID(driverID *kernel.UUID) error {
	if driverID == nil {
		return nil
	}
	if err := driverID.Validate(); err != nil {
		return err
	}
	o.driverID = driverID
	return nil
}
