package event

import (
	"encoding/json"
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

// GeoPointPayload is the JSON shape of a geographic point inside payloads.
type GeoPointPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// LineItemPayload is the JSON shape of one order line item.
type LineItemPayload struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderPayload is the full state of an order at the time of an event.
type OrderPayload struct {
	OrderID             kernel.UUID       `json:"order_id"`
	Status              string            `json:"status"`
	Version             int64             `json:"version"`
	Destination         GeoPointPayload   `json:"destination"`
	Items               []LineItemPayload `json:"items"`
	AssignedDriverID    *kernel.UUID      `json:"assigned_driver_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	EstimatedDeliveryAt *time.Time        `json:"estimated_delivery_at,omitempty"`
	DeliveredAt         *time.Time        `json:"delivered_at,omitempty"`
}

// DriverPositionPayload is a driver's last reported position.
type DriverPositionPayload struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DriverPayload is the full state of a driver at the time of an event.
type DriverPayload struct {
	DriverID     kernel.UUID            `json:"driver_id"`
	Name         string                 `json:"name"`
	Vehicle      string                 `json:"vehicle"`
	Availability string                 `json:"availability"`
	Version      int64                  `json:"version"`
	Position     *DriverPositionPayload `json:"position,omitempty"`
}

// AssignmentPayload is the full state of an assignment at the time of an event.
type AssignmentPayload struct {
	AssignmentID kernel.UUID `json:"assignment_id"`
	OrderID      kernel.UUID `json:"order_id"`
	DriverID     kernel.UUID `json:"driver_id"`
	State        string      `json:"state"`
	OfferedAt    time.Time   `json:"offered_at"`
	Deadline     time.Time   `json:"deadline"`
	RespondedAt  *time.Time  `json:"responded_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	Version      int64       `json:"version"`
}

// OrderState marshals the order's full current state in the payload shape
// order events carry. Snapshots use the same shape so a consumer applies
// snapshot states and event payloads with one code path.
func OrderState(aggregate *order.Order) (json.RawMessage, error) {
	if err := aggregate.Validate(); err != nil {
		return nil, err
	}

	items := make([]LineItemPayload, 0, len(aggregate.Items()))
	for _, item := range aggregate.Items() {
		items = append(items, LineItemPayload{
			Name:       item.Name(),
			Quantity:   item.Quantity(),
			PriceCents: item.PriceCents(),
		})
	}

	payload := OrderPayload{
		OrderID: aggregate.ID(),
		Status:  aggregate.Status().String(),
		Version: aggregate.Version(),
		Destination: GeoPointPayload{
			Lat: aggregate.Destination().Lat(),
			Lon: aggregate.Destination().Lon(),
		},
		Items:               items,
		AssignedDriverID:    aggregate.AssignedDriver(),
		CreatedAt:           aggregate.CreatedAt(),
		EstimatedDeliveryAt: aggregate.EstimatedDeliveryAt(),
		DeliveredAt:         aggregate.DeliveredAt(),
	}

	return json.Marshal(payload)
}

// DriverState marshals the driver's full current state in the payload shape
// driver events carry.
func DriverState(aggregate *driver.Driver) (json.RawMessage, error) {
	if err := aggregate.Validate(); err != nil {
		return nil, err
	}

	payload := DriverPayload{
		DriverID:     aggregate.ID(),
		Name:         aggregate.Name(),
		Vehicle:      aggregate.Vehicle().String(),
		Availability: aggregate.Availability().String(),
		Version:      aggregate.Version(),
	}
	if position := aggregate.Position(); !position.IsZero() {
		payload.Position = &DriverPositionPayload{
			Lat:        position.Point().Lat(),
			Lon:        position.Point().Lon(),
			RecordedAt: position.RecordedAt(),
		}
	}

	return json.Marshal(payload)
}

// AssignmentState marshals the assignment's full current state in the payload
// shape assignment events carry.
func AssignmentState(aggregate *assignment.Assignment) (json.RawMessage, error) {
	if err := aggregate.Validate(); err != nil {
		return nil, err
	}

	payload := AssignmentPayload{
		AssignmentID: aggregate.ID(),
		OrderID:      aggregate.OrderID(),
		DriverID:     aggregate.DriverID(),
		State:        aggregate.State().String(),
		OfferedAt:    aggregate.OfferedAt(),
		Deadline:     aggregate.Deadline(),
		RespondedAt:  aggregate.RespondedAt(),
		CompletedAt:  aggregate.CompletedAt(),
		Version:      aggregate.Version(),
	}

	return json.Marshal(payload)
}

// NewOrderEvent builds an Event carrying the order's full current state.
// Sequence is left 0 for the event repository to assign on append.
func NewOrderEvent(eventType string, aggregate *order.Order, at time.Time) (Event, error) {
	state, err := OrderState(aggregate)
	if err != nil {
		return Event{}, err
	}
	return newEvent(eventType, KindOrder, aggregate.ID(), state, at), nil
}

// NewDriverEvent builds an Event carrying the driver's full current state.
func NewDriverEvent(eventType string, aggregate *driver.Driver, at time.Time) (Event, error) {
	state, err := DriverState(aggregate)
	if err != nil {
		return Event{}, err
	}
	return newEvent(eventType, KindDriver, aggregate.ID(), state, at), nil
}

// NewAssignmentEvent builds an Event carrying the assignment's full current state.
func NewAssignmentEvent(eventType string, aggregate *assignment.Assignment, at time.Time) (Event, error) {
	state, err := AssignmentState(aggregate)
	if err != nil {
		return Event{}, err
	}
	return newEvent(eventType, KindAssignment, aggregate.ID(), state, at), nil
}

func newEvent(eventType string, kind Kind, entityID kernel.UUID, payload json.RawMessage, at time.Time) Event {
	return Event{
		EntityKind: kind,
		EntityID:   entityID,
		EventType:  eventType,
		Payload:    payload,
		Timestamp:  at,
	}
}
