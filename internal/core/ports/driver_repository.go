package ports

import (
	"context"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
)

// DriverRepository defines the persistence contract for driver aggregates.
//
// Update is conditional on the aggregate's version counter, like every other
// repository here. Position reports do not bump the version, so two racing
// position updates never conflict; availability changes do.
type DriverRepository interface {
	// Add persists a new driver aggregate to storage.
	Add(ctx context.Context, aggregate *driver.Driver) error

	// Update persists changes to an existing driver aggregate with a
	// version check. Returns errs.ConcurrencyConflictError when a
	// concurrent writer won the race.
	Update(ctx context.Context, aggregate *driver.Driver) error

	// UpdatePosition persists a position report without touching the
	// version counter. The write is conditional on the stored report
	// being older; returns false when the report was stale and dropped.
	UpdatePosition(ctx context.Context, aggregate *driver.Driver) (bool, error)

	// Get retrieves a driver aggregate by its unique identifier.
	Get(ctx context.Context, id kernel.UUID) (*driver.Driver, error)

	// GetAll retrieves every driver. Used to rebuild the geospatial index
	// at startup and by the driver listing query.
	GetAll(ctx context.Context) ([]*driver.Driver, error)
}
