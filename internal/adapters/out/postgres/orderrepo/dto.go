// Package orderrepo provides data transfer objects and mapping functions for
// order persistence. It implements the repository pattern for the order
// aggregate, handling the conversion between domain entities and database
// rows.
package orderrepo

import (
	"encoding/json"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/google/uuid"
)

// OrderDTO represents the database structure for persisting order aggregates.
// The composite index on (status, driver_id, next_dispatch_at) serves the
// dispatch sweep's due-order scan.
type OrderDTO struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primaryKey"`
	DriverID            *uuid.UUID  `gorm:"type:uuid;index;index:idx_orders_dispatch_due,priority:2"`
	Destination         GeoPointDTO `gorm:"embedded;embeddedPrefix:destination_"`
	Items               []byte      `gorm:"type:jsonb"`
	Status              int         `gorm:"index:idx_orders_dispatch_due,priority:1"`
	Version             int64
	CreatedAt           time.Time
	EstimatedDeliveryAt *time.Time
	DeliveredAt         *time.Time
	DispatchAttempts    int
	NextDispatchAt      time.Time `gorm:"index:idx_orders_dispatch_due,priority:3"`
}

// TableName specifies the database table name for order entities.
func (OrderDTO) TableName() string {
	return "orders"
}

// GeoPointDTO represents the embedded destination coordinates within the
// order table.
type GeoPointDTO struct {
	Lat float64
	Lon float64
}

// lineItemDTO is the JSON shape of one line item inside the items column.
type lineItemDTO struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// fromDomain converts an order domain aggregate to its database representation.
func fromDomain(aggregate *order.Order) (OrderDTO, error) {
	var driverID *uuid.UUID
	if id := aggregate.AssignedDriver(); id != nil {
		raw := id.Bytes()
		driverID = &raw
	}

	itemDTOs := make([]lineItemDTO, 0, len(aggregate.Items()))
	for _, item := range aggregate.Items() {
		itemDTOs = append(itemDTOs, lineItemDTO{
			Name:       item.Name(),
			Quantity:   item.Quantity(),
			PriceCents: item.PriceCents(),
		})
	}
	items, err := json.Marshal(itemDTOs)
	if err != nil {
		return OrderDTO{}, err
	}

	return OrderDTO{
		ID:       aggregate.ID().Bytes(),
		DriverID: driverID,
		Destination: GeoPointDTO{
			Lat: aggregate.Destination().Lat(),
			Lon: aggregate.Destination().Lon(),
		},
		Items:               items,
		Status:              int(aggregate.Status()),
		Version:             aggregate.Version(),
		CreatedAt:           aggregate.CreatedAt(),
		EstimatedDeliveryAt: aggregate.EstimatedDeliveryAt(),
		DeliveredAt:         aggregate.DeliveredAt(),
		DispatchAttempts:    aggregate.DispatchAttempts(),
		NextDispatchAt:      aggregate.NextDispatchAt(),
	}, nil
}

// toDomain converts a database DTO to an order domain aggregate.
func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}

	var driverID *kernel.UUID
	if dto.DriverID != nil {
		dID, driverErr := kernel.UUIDFromBytes((*dto.DriverID)[:])
		if driverErr != nil {
			return nil, driverErr
		}
		driverID = &dID
	}

	destination, err := kernel.NewGeoPoint(dto.Destination.Lat, dto.Destination.Lon)
	if err != nil {
		return nil, err
	}

	var itemDTOs []lineItemDTO
	if err = json.Unmarshal(dto.Items, &itemDTOs); err != nil {
		return nil, err
	}
	items := make([]order.LineItem, 0, len(itemDTOs))
	for _, itemDTO := range itemDTOs {
		item, itemErr := order.NewLineItem(itemDTO.Name, itemDTO.Quantity, itemDTO.PriceCents)
		if itemErr != nil {
			return nil, itemErr
		}
		items = append(items, item)
	}

	return order.RestoreOrder(
		id,
		destination,
		items,
		order.Status(dto.Status),
		dto.Version,
		driverID,
		dto.CreatedAt,
		dto.EstimatedDeliveryAt,
		dto.DeliveredAt,
		dto.DispatchAttempts,
		dto.NextDispatchAt,
	)
}
