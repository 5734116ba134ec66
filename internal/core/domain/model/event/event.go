package event

import (
	"encoding/json"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
)

// Kind names the class of entity an event describes.
type Kind string

const (
	KindOrder      Kind = "order"
	KindDriver     Kind = "driver"
	KindAssignment Kind = "assignment"
)

// Validate ensures the kind is one of the defined entity classes.
func (k Kind) Validate() error {
	switch k {
	case KindOrder, KindDriver, KindAssignment:
		return nil
	default:
		return errs.NewValueIsInvalidError("entityKind")
	}
}

// Event type names, one namespace per entity kind. Payloads are always the
// entity's full state at the time of the event, never a delta, so replaying
// an event twice leaves a consumer in the same state as applying it once.
const (
	TypeOrderCreated      = "order.created"
	TypeOrderUpdated      = "order.updated"
	TypeDriverRegistered  = "driver.registered"
	TypeDriverUpdated     = "driver.updated"
	TypeAssignmentOffered = "assignment.offered"
	TypeAssignmentUpdated = "assignment.updated"
)

// Event is an immutable record of one accepted mutation. Sequence is assigned
// by the event repository when the record is appended inside the mutation's
// transaction; an Event built by a payload helper carries Sequence 0 until
// then. Sequences are globally strictly increasing, which also makes them
// monotone per entity.
type Event struct {
	Sequence   int64           `json:"sequence"`
	EntityKind Kind            `json:"entity_kind"`
	EntityID   kernel.UUID     `json:"entity_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Scope selects which events a subscription receives: all events of one
// entity kind, or just the events of a single entity.
type Scope struct {
	Kind Kind
	// ID narrows the scope to one entity. The zero UUID means every entity
	// of the kind.
	ID kernel.UUID
}

// ScopeKind selects all events of one entity kind.
func ScopeKind(kind Kind) Scope {
	return Scope{Kind: kind}
}

// ScopeEntity selects the events of a single entity.
func ScopeEntity(kind Kind, id kernel.UUID) Scope {
	return Scope{Kind: kind, ID: id}
}

// IsKindWide reports whether the scope covers every entity of its kind.
func (s Scope) IsKindWide() bool {
	return s.ID.Validate() != nil
}

// Matches reports whether the event falls inside the scope.
func (s Scope) Matches(e Event) bool {
	if e.EntityKind != s.Kind {
		return false
	}
	if s.IsKindWide() {
		return true
	}
	return s.ID.IsEqual(e.EntityID)
}

// Validate ensures the scope names a defined entity kind.
func (s Scope) Validate() error {
	return s.Kind.Validate()
}
