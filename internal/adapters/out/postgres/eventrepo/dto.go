// Package eventrepo persists the append-only event log. Sequences are
// assigned at append time under an advisory lock held to commit, so they are
// globally strictly increasing, dense, and ordered the same way the
// transactions commit. The repository doubles as the eventbus.Log replay
// source for reconnecting sessions.
package eventrepo

import (
	"encoding/json"
	"time"

	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// EventDTO represents the database structure for persisting log events.
type EventDTO struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement:false"`
	EntityKind string    `gorm:"index:idx_events_entity,priority:1"`
	EntityID   uuid.UUID `gorm:"type:uuid;index:idx_events_entity,priority:2"`
	EventType  string
	Payload    []byte `gorm:"type:jsonb"`
	Timestamp  time.Time
}

// TableName specifies the database table name for event records.
func (EventDTO) TableName() string {
	return "events"
}

// fromDomain converts a log event to its database representation.
// The sequence is assigned by Append; any value already on the event is
// ignored.
func fromDomain(e event.Event) EventDTO {
	return EventDTO{
		EntityKind: string(e.EntityKind),
		EntityID:   e.EntityID.Bytes(),
		EventType:  e.EventType,
		Payload:    []byte(e.Payload),
		Timestamp:  e.Timestamp,
	}
}

// toDomain converts a database DTO to a log event.
func toDomain(dto EventDTO) (event.Event, error) {
	entityID, err := kernel.UUIDFromBytes(dto.EntityID[:])
	if err != nil {
		return event.Event{}, err
	}

	return event.Event{
		Sequence:   dto.Seq,
		EntityKind: event.Kind(dto.EntityKind),
		EntityID:   entityID,
		EventType:  dto.EventType,
		Payload:    json.RawMessage(dto.Payload),
		Timestamp:  dto.Timestamp,
	}, nil
}
