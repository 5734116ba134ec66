package queries

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/guard"
)

var (
	ErrGetAllDriversQueryIsNotConstructed = errors.New(
		"GetAllDriversQuery must be created via NewGetAllDriversQuery constructor",
	)
)

// GetAllDriversQuery retrieves information about all drivers in the system.
// Returns driver identities, availability and last-known positions for
// monitoring and fleet dashboards.
type GetAllDriversQuery struct {
	guard guard.ConstructorGuard
}

// NewGetAllDriversQuery creates a query to retrieve all drivers.
// This is a parameterless query that fetches the complete driver list.
func NewGetAllDriversQuery() GetAllDriversQuery {
	return GetAllDriversQuery{guard: guard.NewConstructorGuard()}
}

// Validate ensures the query was created through the constructor.
func (q GetAllDriversQuery) Validate() error {
	return q.guard.Validate(ErrGetAllDriversQueryIsNotConstructed)
}

// DriverPositionResponse is the last-known position in the driver read model.
type DriverPositionResponse struct {
	Point      kernel.GeoPoint
	RecordedAt time.Time
}

// GetAllDriversQueryResponse represents driver information in the read model.
// Position is nil until the driver's first report arrives.
type GetAllDriversQueryResponse struct {
	ID           kernel.UUID
	Name         string
	Vehicle      driver.VehicleClass
	Availability driver.Availability
	Position     *DriverPositionResponse
	Version      int64
}
