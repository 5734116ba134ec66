package driver

import (
	"errors"
	"fmt"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

// Domain errors for driver operations.
var (
	// ErrNameIsRequired is returned when attempting to create a driver without a name.
	ErrNameIsRequired = errs.NewValueIsRequiredError("name")
	// ErrDriverIsNotConstructed is returned when using an improperly initialized Driver.
	ErrDriverIsNotConstructed = errors.New("Driver must be created via NewDriver or RestoreDriver constructor")
	// ErrDriverNotAvailable is returned when an operation requires an Available driver.
	ErrDriverNotAvailable = errors.New("driver is not available")
	// ErrDriverNotAssigned is returned when releasing a driver that holds no assignment.
	ErrDriverNotAssigned = errors.New("driver is not assigned")
)

// Position is a point-in-time snapshot of a driver's location.
// The timestamp orders concurrent reports: a snapshot only replaces an older
// one (last-writer-wins by report time, not arrival order).
type Position struct {
	point      kernel.GeoPoint
	recordedAt time.Time
}

// NewPosition creates a validated position snapshot.
func NewPosition(point kernel.GeoPoint, recordedAt time.Time) (Position, error) {
	if err := point.Validate(); err != nil {
		return Position{}, err
	}
	if recordedAt.IsZero() {
		return Position{}, errs.NewValueIsRequiredError("recordedAt")
	}

	return Position{point: point, recordedAt: recordedAt}, nil
}

// Point returns the geographic coordinate of the snapshot.
func (p Position) Point() kernel.GeoPoint {
	return p.point
}

// RecordedAt returns when the position was reported by the driver's device.
func (p Position) RecordedAt() time.Time {
	return p.recordedAt
}

// IsZero reports whether the snapshot is unset.
func (p Position) IsZero() bool {
	return p.recordedAt.IsZero()
}

// Driver represents a delivery driver in the system.
// It is an aggregate root that manages driver identity, availability, and
// the last-known position snapshot.
//
// Business rules:
//   - Driver must have a valid UUID, non-empty name, and valid vehicle class
//   - A driver holds at most one active assignment at a time, encoded by the
//     Assigned availability
//   - Position snapshots are replaced only by strictly newer report
//     timestamps; stale updates are silently ignored
//   - Every accepted availability mutation increments the version counter
//     exactly once, providing the conditional-write guard against racing
//     offer creation and offline transitions
type Driver struct {
	// id uniquely identifies the driver
	id kernel.UUID
	// name is the human-readable name of the driver
	name string
	// vehicle categorizes the driver's vehicle
	vehicle VehicleClass
	// availability is the driver's dispatch eligibility
	availability Availability
	// position is the last-known position snapshot (zero until first report)
	position Position
	// version increments exactly once per accepted availability mutation
	version int64
	// guard ensures the driver was created via a constructor
	guard guard.ConstructorGuard
}

// NewDriver creates a new Driver with the specified parameters.
// Fresh drivers register at the start of a shift and begin Available with
// version 1 and no position snapshot; they become dispatch candidates once
// their first position is reported.
//
// Parameters:
//   - id: Unique identifier for the driver (must be valid UUID)
//   - name: Human-readable name (must be non-empty)
//   - vehicle: Vehicle class (must be valid)
//
// Returns:
//   - *Driver: A fully initialized driver
//   - error: Validation error if any parameter is invalid (aggregated for multiple issues)
func NewDriver(id kernel.UUID, name string, vehicle VehicleClass) (*Driver, error) {
	driver := &Driver{
		availability: Available,
		version:      1,
		guard:        guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		driver.setID(id),
		driver.setName(name),
		driver.setVehicle(vehicle),
	); err != nil {
		return nil, err
	}

	return driver, nil
}

// RestoreDriver reconstructs a Driver aggregate from persistent storage.
// This constructor is intended for repository implementations only.
func RestoreDriver(
	id kernel.UUID,
	name string,
	vehicle VehicleClass,
	availability Availability,
	position Position,
	version int64,
) (*Driver, error) {
	driver := &Driver{
		position: position,
		guard:    guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		driver.setID(id),
		driver.setName(name),
		driver.setVehicle(vehicle),
		driver.setAvailability(availability),
		driver.setVersion(version),
	); err != nil {
		return nil, err
	}

	return driver, nil
}

// Validate ensures the Driver instance was properly constructed through a factory method.
func (d *Driver) Validate() error {
	if d == nil {
		return ErrDriverIsNotConstructed
	}

	return d.guard.Validate(ErrDriverIsNotConstructed)
}

// IsEqual compares two drivers by their unique identifiers.
func (d *Driver) IsEqual(other *Driver) bool {
	return other != nil && d.id.IsEqual(other.id)
}

// ID returns the driver's unique identifier.
func (d *Driver) ID() kernel.UUID {
	return d.id
}

// Name returns the driver's human-readable name.
func (d *Driver) Name() string {
	return d.name
}

// Vehicle returns the driver's vehicle class.
func (d *Driver) Vehicle() VehicleClass {
	return d.vehicle
}

// Availability returns the driver's current dispatch eligibility.
func (d *Driver) Availability() Availability {
	return d.availability
}

// Position returns the last-known position snapshot.
// The zero Position (IsZero true) means no report has arrived yet.
func (d *Driver) Position() Position {
	return d.position
}

// Version returns the driver's optimistic-concurrency counter.
func (d *Driver) Version() int64 {
	return d.version
}

// UpdatePosition applies a position report using last-writer-wins by report
// timestamp. A report at or before the stored snapshot's time is silently
// dropped and the method reports false; this is not an error.
//
// Position updates do not bump the version: they race only with each other
// and resolve through the timestamp, keeping the hot path conflict-free.
func (d *Driver) UpdatePosition(point kernel.GeoPoint, recordedAt time.Time) (bool, error) {
	snapshot, err := NewPosition(point, recordedAt)
	if err != nil {
		return false, err
	}

	if !d.position.IsZero() && !recordedAt.After(d.position.recordedAt) {
		return false, nil
	}

	d.position = snapshot
	return true, nil
}

// MarkAssigned transitions the driver to Assigned when it accepts an offer.
//
// Business rules enforced:
//   - Only an Available driver can be assigned (at most one active assignment)
//
// On success the version increments exactly once.
func (d *Driver) MarkAssigned() error {
	if d.availability != Available {
		return fmt.Errorf("%w: availability is %s", ErrDriverNotAvailable, d.availability)
	}

	d.availability = Assigned
	d.bumpVersion()
	return nil
}

// ClearAssignment returns an Assigned driver to the Available pool after
// the assignment completes or is cancelled.
//
// On success the version increments exactly once.
func (d *Driver) ClearAssignment() error {
	if d.availability != Assigned {
		return fmt.Errorf("%w: availability is %s", ErrDriverNotAssigned, d.availability)
	}

	d.availability = Available
	d.bumpVersion()
	return nil
}

// GoOnline marks the driver Available at the start of a shift.
// On success the version increments exactly once; calling it on an already
// Available driver is a no-op that still reports success without a bump.
func (d *Driver) GoOnline() error {
	if d.availability == Available {
		return nil
	}
	if d.availability == Assigned {
		return fmt.Errorf("%w: driver already serving an assignment", ErrDriverNotAvailable)
	}

	d.availability = Available
	d.bumpVersion()
	return nil
}

// GoOffline removes the driver from dispatch regardless of current state.
// Cancelling any in-flight offer or assignment is the dispatch coordinator's
// responsibility; the aggregate only records the availability change.
//
// On success the version increments exactly once; calling it on an already
// Offline driver is a no-op without a bump.
func (d *Driver) GoOffline() {
	if d.availability == Offline {
		return
	}

	d.availability = Offline
	d.bumpVersion()
}

// bumpVersion advances the optimistic-concurrency counter.
// Called exactly once from every accepted availability mutation.
func (d *Driver) bumpVersion() {
	d.version++
}

// setID validates and sets the driver's unique identifier.
func (d *Driver) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	d.id = id
	return nil
}

// setName validates and sets the driver's name.
func (d *Driver) setName(name string) error {
	if name == "" {
		return ErrNameIsRequired
	}
	d.name = name
	return nil
}

// setVehicle validates and sets the driver's vehicle class.
func (d *Driver) setVehicle(vehicle VehicleClass) error {
	if err := vehicle.Validate(); err != nil {
		return err
	}
	d.vehicle = vehicle
	return nil
}

// setAvailability validates and sets the persisted availability during restoration.
func (d *Driver) setAvailability(availability Availability) error {
	if err := availability.Validate(); err != nil {
		return err
	}
	d.availability = availability
	return nil
}

// setVersion validates and sets the persisted version during restoration.
func (d *Driver) setVersion(version int64) error {
	if version < 1 {
		return errs.NewValueIsInvalidErrorWithCause("version",
			fmt.Errorf("%d is not a positive version", version))
	}
	d.version = version
	return nil
}
