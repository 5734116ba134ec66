package queries

import (
	"context"
	"database/sql"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetAllDriversQueryHandler retrieves all driver information from the database.
// Uses direct SQL queries for optimal read performance in the CQRS pattern.
type GetAllDriversQueryHandler struct {
	db *gorm.DB
}

// NewGetAllDriversQueryHandler creates a handler for driver retrieval queries.
func NewGetAllDriversQueryHandler(db *gorm.DB) GetAllDriversQueryHandler {
	return GetAllDriversQueryHandler{db: db}
}

// Handle executes the query to retrieve all drivers.
// Returns a slice of driver read models sorted by name.
func (h GetAllDriversQueryHandler) Handle(
	ctx context.Context,
	query GetAllDriversQuery,
) ([]GetAllDriversQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	drivers := make([]GetAllDriversQueryResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			name,
			vehicle,
			availability,
			position_lat,
			position_lon,
			position_recorded_at,
			version
		FROM drivers
		ORDER BY name
	`).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			response           GetAllDriversQueryResponse
			id                 uuid.UUID
			vehicle            int
			availability       int
			positionLat        sql.NullFloat64
			positionLon        sql.NullFloat64
			positionRecordedAt sql.NullTime
		)

		err = rows.Scan(
			&id,
			&response.Name,
			&vehicle,
			&availability,
			&positionLat,
			&positionLon,
			&positionRecordedAt,
			&response.Version,
		)
		if err != nil {
			return nil, err
		}

		driverID, idErr := kernel.UUIDFromBytes(id[:])
		if idErr != nil {
			return nil, idErr
		}
		response.ID = driverID
		response.Vehicle = driver.VehicleClass(vehicle)
		response.Availability = driver.Availability(availability)

		if positionRecordedAt.Valid {
			point, pointErr := kernel.NewGeoPoint(positionLat.Float64, positionLon.Float64)
			if pointErr != nil {
				return nil, pointErr
			}
			response.Position = &DriverPositionResponse{
				Point:      point,
				RecordedAt: positionRecordedAt.Time,
			}
		}

		drivers = append(drivers, response)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return drivers, nil
}
