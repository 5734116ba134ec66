package queries

import (
	"context"
	"database/sql"
	"encoding/json"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOrderQueryHandler retrieves a single order read model from the database.
// Uses direct SQL for read performance in the CQRS pattern.
type GetOrderQueryHandler struct {
	db *gorm.DB
}

// NewGetOrderQueryHandler creates a handler for single-order queries.
func NewGetOrderQueryHandler(db *gorm.DB) GetOrderQueryHandler {
	return GetOrderQueryHandler{db: db}
}

// Handle executes the query. Returns errs.ObjectNotFoundError when no order
// with the requested identifier exists.
func (h GetOrderQueryHandler) Handle(
	ctx context.Context,
	query GetOrderQuery,
) (GetOrderQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetOrderQueryResponse{}, err
	}

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			status,
			destination_lat,
			destination_lon,
			items,
			driver_id,
			version,
			created_at,
			estimated_delivery_at,
			delivered_at,
			dispatch_attempts,
			next_dispatch_at
		FROM orders
		WHERE id = ?
	`, query.OrderID().Bytes()).Rows()
	if err != nil {
		return GetOrderQueryResponse{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return GetOrderQueryResponse{}, err
		}
		return GetOrderQueryResponse{}, errs.NewObjectNotFoundError("order", query.OrderID().String())
	}

	response, err := scanOrderRow(rows)
	if err != nil {
		return GetOrderQueryResponse{}, err
	}

	return response, rows.Err()
}

// scanOrderRow reads one order read model from the current result row. The
// column order must match the SELECT lists in the order query handlers.
func scanOrderRow(rows *sql.Rows) (GetOrderQueryResponse, error) {
	var (
		response            GetOrderQueryResponse
		id                  uuid.UUID
		status              int
		lat, lon            float64
		items               []byte
		driverID            uuid.NullUUID
		estimatedDeliveryAt sql.NullTime
		deliveredAt         sql.NullTime
	)

	err := rows.Scan(
		&id,
		&status,
		&lat,
		&lon,
		&items,
		&driverID,
		&response.Version,
		&response.CreatedAt,
		&estimatedDeliveryAt,
		&deliveredAt,
		&response.DispatchAttempts,
		&response.NextDispatchAt,
	)
	if err != nil {
		return GetOrderQueryResponse{}, err
	}

	orderID, err := kernel.UUIDFromBytes(id[:])
	if err != nil {
		return GetOrderQueryResponse{}, err
	}
	response.ID = orderID
	response.Status = order.Status(status)

	destination, err := kernel.NewGeoPoint(lat, lon)
	if err != nil {
		return GetOrderQueryResponse{}, err
	}
	response.Destination = destination

	if err = json.Unmarshal(items, &response.Items); err != nil {
		return GetOrderQueryResponse{}, err
	}

	if driverID.Valid {
		assignedID, idErr := kernel.UUIDFromBytes(driverID.UUID[:])
		if idErr != nil {
			return GetOrderQueryResponse{}, idErr
		}
		response.AssignedDriverID = &assignedID
	}
	if estimatedDeliveryAt.Valid {
		eta := estimatedDeliveryAt.Time
		response.EstimatedDeliveryAt = &eta
	}
	if deliveredAt.Valid {
		delivered := deliveredAt.Time
		response.DeliveredAt = &delivered
	}

	return response, nil
}
