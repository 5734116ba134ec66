package postgres

import (
	"dispatch/internal/adapters/out/postgres/assignmentrepo"
	"dispatch/internal/adapters/out/postgres/driverrepo"
	"dispatch/internal/adapters/out/postgres/eventrepo"
	"dispatch/internal/adapters/out/postgres/orderrepo"

	"gorm.io/gorm"
)

// Migrate creates or updates the database schema for every repository.
//
// Beyond the GORM auto-migration it installs two partial unique indexes on
// assignments that allow at most one open (Offered or Accepted) record per
// order and per driver. These indexes are the storage-level arbiter for
// concurrent dispatch sweeps: the loser of a racing insert gets a
// duplicate-key error, surfaced by the repository as a concurrency conflict.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&orderrepo.OrderDTO{},
		&driverrepo.DriverDTO{},
		&assignmentrepo.AssignmentDTO{},
		&eventrepo.EventDTO{},
	); err != nil {
		return err
	}

	// State values 1 and 2 are assignment.Offered and assignment.Accepted.
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_open_order
			ON assignments (order_id) WHERE state IN (1, 2)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignments_open_driver
			ON assignments (driver_id) WHERE state IN (1, 2)`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}

	return nil
}
