package ports

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/kernel"
)

// AssignmentRepository defines the persistence contract for assignment
// aggregates, the offer records linking orders to drivers.
//
// Storage enforces at most one open (Offered or Accepted) assignment per
// order and per driver via partial unique indexes; Add surfaces a violation
// as errs.ConcurrencyConflictError, which is how two sweep instances racing
// to offer the same order or driver resolve.
type AssignmentRepository interface {
	// Add persists a new assignment. Fails with
	// errs.ConcurrencyConflictError when the order or the driver already
	// has an open assignment.
	Add(ctx context.Context, aggregate *assignment.Assignment) error

	// Update persists changes to an existing assignment with a version
	// check. A simultaneous accept and cancel resolve here: the first
	// write wins, the second gets errs.ConcurrencyConflictError.
	Update(ctx context.Context, aggregate *assignment.Assignment) error

	// Get retrieves an assignment by its unique identifier.
	Get(ctx context.Context, id kernel.UUID) (*assignment.Assignment, error)

	// GetOpenByOrder retrieves the order's open assignment, or
	// errs.ObjectNotFoundError when the order has no outstanding offer.
	GetOpenByOrder(ctx context.Context, orderID kernel.UUID) (*assignment.Assignment, error)

	// GetOpenByDriver retrieves the driver's open assignment, or
	// errs.ObjectNotFoundError when the driver has none.
	GetOpenByDriver(ctx context.Context, driverID kernel.UUID) (*assignment.Assignment, error)

	// GetOpen retrieves every open (Offered or Accepted) assignment.
	// Used to build the assignment snapshot for a connecting observer.
	GetOpen(ctx context.Context) ([]*assignment.Assignment, error)

	// GetExpiredOffers retrieves up to limit still-Offered assignments
	// whose deadline has passed. Used by the offer timeout sweep.
	GetExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*assignment.Assignment, error)

	// GetAttemptedDriverIDs returns the ids of every driver that has ever
	// held an assignment for the order, so the dispatch sweep does not
	// re-offer to a driver that already rejected or timed out.
	GetAttemptedDriverIDs(ctx context.Context, orderID kernel.UUID) ([]kernel.UUID, error)
}
