package commands_test

import (
	"testing"
	"time"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReportPositionCommand_ValidInput(t *testing.T) {
	id := kernel.NewUUID()
	position := testGeoPoint(t, 52.52, 13.405)
	recordedAt := time.Now().UTC()

	cmd, err := commands.NewReportPositionCommand(id, position, recordedAt)
	require.NoError(t, err)
	assert.Equal(t, id, cmd.DriverID())
	assert.Equal(t, position, cmd.Position())
	assert.Equal(t, recordedAt, cmd.RecordedAt())
}

func TestNewReportPositionCommand_InvalidDriverID(t *testing.T) {
	_, err := commands.NewReportPositionCommand(kernel.UUID{}, testGeoPoint(t, 52.52, 13.405), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
}

func TestNewReportPositionCommand_InvalidPosition(t *testing.T) {
	_, err := commands.NewReportPositionCommand(kernel.NewUUID(), kernel.GeoPoint{}, time.Now())
	require.Error(t, err)
}

func TestNewReportPositionCommand_ZeroTimestamp(t *testing.T) {
	_, err := commands.NewReportPositionCommand(kernel.NewUUID(), testGeoPoint(t, 52.52, 13.405), time.Time{})
	require.Error(t, err)
}
