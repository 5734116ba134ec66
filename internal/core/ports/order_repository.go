// Package ports defines the persistence contracts between the domain layer
// and infrastructure, enabling dependency inversion and testability.
package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// OrderRepository defines the persistence contract for order aggregates.
//
// Update is a conditional write: it succeeds only when the stored version is
// exactly one behind the aggregate's, and fails with
// errs.ConcurrencyConflictError otherwise. This is the optimistic-concurrency
// guard every order mutation relies on; callers never lock an order.
type OrderRepository interface {
	// Add persists a new order aggregate to storage.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists changes to an existing order aggregate with a
	// version check. Returns errs.ConcurrencyConflictError when a
	// concurrent writer got there first; the caller must re-read and
	// retry or surface the conflict.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get retrieves an order aggregate by its unique identifier.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetDueForDispatch retrieves up to limit driverless Pending or
	// Preparing orders whose next dispatch attempt is due at or before
	// now, oldest attempt first. Used by the dispatch sweep.
	GetDueForDispatch(ctx context.Context, now time.Time, limit int) ([]*order.Order, error)

	// GetAllActive retrieves every order not yet in a terminal status.
	GetAllActive(ctx context.Context) ([]*order.Order, error)
}
