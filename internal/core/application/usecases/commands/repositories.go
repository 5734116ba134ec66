// Package commands contains business operations that modify system state.
// Implements the Command pattern for write operations in the CQRS architecture.
// All commands follow a consistent pattern: validation, transaction management,
// event append, and post-commit fan-out.
package commands

import (
	"context"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/event"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/ports"
	"dispatch/internal/geoindex"
)

// Unit of Work interfaces provide transaction management for command handlers.
// Every mutating handler appends its events through the same transaction as
// the aggregate write, so a version bump and its event are indivisible.
type (
	// TxManager handles database transaction lifecycle.
	// Ensures atomic operations across multiple repository calls.
	TxManager interface {
		Begin(ctx context.Context) error
		Commit(ctx context.Context) error
		Rollback(ctx context.Context) error
	}

	// OrderRepoFactory provides access to the order repository within a transaction.
	OrderRepoFactory interface {
		OrderRepository() ports.OrderRepository
	}

	// DriverRepoFactory provides access to the driver repository within a transaction.
	DriverRepoFactory interface {
		DriverRepository() ports.DriverRepository
	}

	// AssignmentRepoFactory provides access to the assignment repository within a transaction.
	AssignmentRepoFactory interface {
		AssignmentRepository() ports.AssignmentRepository
	}

	// EventRepoFactory provides access to the event log within a transaction.
	EventRepoFactory interface {
		EventRepository() ports.EventRepository
	}

	// OrderUoW manages transactions for order-only operations.
	OrderUoW interface {
		TxManager
		OrderRepoFactory
		EventRepoFactory
	}

	// OrderUoWFactory creates new order unit of work instances.
	OrderUoWFactory interface {
		Create() OrderUoW
	}

	// DriverUoW manages transactions for driver-only operations.
	DriverUoW interface {
		TxManager
		DriverRepoFactory
		EventRepoFactory
	}

	// DriverUoWFactory creates new driver unit of work instances.
	DriverUoWFactory interface {
		Create() DriverUoW
	}

	// UoW manages transactions across order, driver and assignment
	// aggregates. Used by the dispatch coordinator and the offer-response
	// commands, which couple changes to several aggregates.
	UoW interface {
		TxManager
		OrderRepoFactory
		DriverRepoFactory
		AssignmentRepoFactory
		EventRepoFactory
	}

	// UoWFactory creates new unit of work instances for cross-aggregate operations.
	UoWFactory interface {
		Create() UoW
	}
)

// EventPublisher receives committed events for fan-out. Handlers call it
// strictly after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.Event)
}

// DriverIndex is the in-process geospatial shadow of driver storage,
// refreshed by handlers after a successful commit and queried by the
// dispatch sweep.
type DriverIndex interface {
	Upsert(driverID kernel.UUID, point kernel.GeoPoint, recordedAt time.Time, availability driver.Availability) bool
	SetAvailability(driverID kernel.UUID, availability driver.Availability) bool
	Remove(driverID kernel.UUID) bool
	QueryNearest(origin kernel.GeoPoint, radiusMeters float64, limit int, filter driver.Availability) []geoindex.Candidate
}
