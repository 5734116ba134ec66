// Package driverrepo provides data transfer objects and mapping functions for
// driver persistence. It implements the repository pattern for the driver
// aggregate, handling the conversion between domain entities and database
// rows.
package driverrepo

import (
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// DriverDTO represents the database structure for persisting driver aggregates.
// The position columns are nullable because a fresh driver has no snapshot
// until its first report arrives.
type DriverDTO struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name               string
	Vehicle            int
	Availability       int `gorm:"index"`
	PositionLat        *float64
	PositionLon        *float64
	PositionRecordedAt *time.Time
	Version            int64
}

// TableName specifies the database table name for driver entities.
func (DriverDTO) TableName() string {
	return "drivers"
}

// fromDomain converts a driver domain aggregate to its database representation.
func fromDomain(aggregate *driver.Driver) DriverDTO {
	dto := DriverDTO{
		ID:           aggregate.ID().Bytes(),
		Name:         aggregate.Name(),
		Vehicle:      int(aggregate.Vehicle()),
		Availability: int(aggregate.Availability()),
		Version:      aggregate.Version(),
	}

	if position := aggregate.Position(); !position.IsZero() {
		lat := position.Point().Lat()
		lon := position.Point().Lon()
		recordedAt := position.RecordedAt()
		dto.PositionLat = &lat
		dto.PositionLon = &lon
		dto.PositionRecordedAt = &recordedAt
	}

	return dto
}

// toDomain converts a database DTO to a driver domain aggregate.
func toDomain(dto DriverDTO) (*driver.Driver, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	var position driver.Position
	if dto.PositionRecordedAt != nil {
		point, pointErr := kernel.NewGeoPoint(*dto.PositionLat, *dto.PositionLon)
		if pointErr != nil {
			return nil, pointErr
		}
		position, err = driver.NewPosition(point, *dto.PositionRecordedAt)
		if err != nil {
			return nil, err
		}
	}

	return driver.RestoreDriver(
		id,
		dto.Name,
		driver.VehicleClass(dto.Vehicle),
		driver.Availability(dto.Availability),
		position,
		dto.Version,
	)
}
