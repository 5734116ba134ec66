package commands

import (
	"errors"
	"time"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/pkg/errs"
	"dispatch/internal/pkg/guard"
)

var ErrReportPositionCommandIsNotConstructed = errors.New(
	"ReportPositionCommand must be created via NewReportPositionCommand constructor",
)

// ReportPositionCommand represents one driver position report. Reports are
// last-writer-wins by their recorded timestamp; a stale report is dropped
// silently rather than rejected, since a flaky connection delivering old
// fixes out of order is normal operation, not an error.
type ReportPositionCommand struct { //nolint:recvcheck //using for validation
	driverID   kernel.UUID
	position   kernel.GeoPoint
	recordedAt time.Time

	guard guard.ConstructorGuard
}

// NewReportPositionCommand creates a position report command.
// Validates the driver id, the coordinates and the report timestamp.
func NewReportPositionCommand(driverID kernel.UUID, position kernel.GeoPoint, recordedAt time.Time) (ReportPositionCommand, error) {
	cmd := ReportPositionCommand{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setDriverID(driverID),
		cmd.setPosition(position),
		cmd.setRecordedAt(recordedAt),
	); err != nil {
		return ReportPositionCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c ReportPositionCommand) Validate() error {
	return c.guard.Validate(ErrReportPositionCommandIsNotConstructed)
}

// DriverID returns the reporting driver.
func (c ReportPositionCommand) DriverID() kernel.UUID {
	return c.driverID
}

// Position returns the reported coordinates.
func (c ReportPositionCommand) Position() kernel.GeoPoint {
	return c.position
}

// RecordedAt returns when the position was measured.
func (c ReportPositionCommand) RecordedAt() time.Time {
	return c.recordedAt
}

func (c *ReportPositionCommand) setDriverID(driverID kernel.UUID) error {
	if err := driverID.Validate(); err != nil {
		return err
	}

	c.driverID = driverID
	return nil
}

func (c *ReportPositionCommand) setPosition(position kernel.GeoPoint) error {
	if err := position.Validate(); err != nil {
		return err
	}

	c.position = position
	return nil
}

func (c *ReportPositionCommand) setRecordedAt(recordedAt time.Time) error {
	if recordedAt.IsZero() {
		return errs.NewValueIsRequiredError("recordedAt")
	}

	c.recordedAt = recordedAt
	return nil
}
