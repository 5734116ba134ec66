// Package assignmentrepo provides data transfer objects and mapping functions
// for assignment persistence. It implements the repository pattern for the
// assignment aggregate, handling the conversion between domain entities and
// database rows.
//
// Beyond the usual columns, the table carries two partial unique indexes
// (created by postgres.Migrate) that allow at most one open assignment per
// order and per driver. They are the storage-level arbiter when concurrent
// dispatch sweeps race to offer the same order or the same driver.
package assignmentrepo

import (
	"time"

	"dispatch/internal/core/domain/model/assignment"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/google/uuid"
)

// AssignmentDTO represents the database structure for persisting assignment
// aggregates.
type AssignmentDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;index"`
	DriverID    uuid.UUID `gorm:"type:uuid;index"`
	State       int       `gorm:"index:idx_assignments_expiry,priority:1"`
	OfferedAt   time.Time
	Deadline    time.Time `gorm:"index:idx_assignments_expiry,priority:2"`
	RespondedAt *time.Time
	CompletedAt *time.Time
	Version     int64
}

// TableName specifies the database table name for assignment entities.
func (AssignmentDTO) TableName() string {
	return "assignments"
}

// fromDomain converts an assignment domain aggregate to its database representation.
func fromDomain(aggregate *assignment.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          aggregate.ID().Bytes(),
		OrderID:     aggregate.OrderID().Bytes(),
		DriverID:    aggregate.DriverID().Bytes(),
		State:       int(aggregate.State()),
		OfferedAt:   aggregate.OfferedAt(),
		Deadline:    aggregate.Deadline(),
		RespondedAt: aggregate.RespondedAt(),
		CompletedAt: aggregate.CompletedAt(),
		Version:     aggregate.Version(),
	}
}

// toDomain converts a database DTO to an assignment domain aggregate.
func toDomain(dto AssignmentDTO) (*assignment.Assignment, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return nil, err
	}
	driverID, err := kernel.UUIDFromBytes(dto.DriverID[:])
	if err != nil {
		return nil, err
	}

	return assignment.RestoreAssignment(
		id,
		orderID,
		driverID,
		assignment.State(dto.State),
		dto.OfferedAt,
		dto.Deadline,
		dto.RespondedAt,
		dto.CompletedAt,
		dto.Version,
	)
}
