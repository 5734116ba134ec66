package driver_test

import (
	"testing"
	"time"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(kernel.NewUUID(), "Alice", driver.Bicycle)
	require.NoError(t, err)
	return d
}

func testPoint(t *testing.T, lat, lon float64) kernel.GeoPoint {
	t.Helper()
	point, err := kernel.NewGeoPoint(lat, lon)
	require.NoError(t, err)
	return point
}

func TestNewDriver(t *testing.T) {
	t.Run("should create available driver with version 1 and no position", func(t *testing.T) {
		id := kernel.NewUUID()

		d, err := driver.NewDriver(id, "Alice", driver.Car)

		require.NoError(t, err)
		assert.Equal(t, id, d.ID())
		assert.Equal(t, "Alice", d.Name())
		assert.Equal(t, driver.Car, d.Vehicle())
		assert.Equal(t, driver.Available, d.Availability())
		assert.Equal(t, int64(1), d.Version())
		assert.True(t, d.Position().IsZero())
		require.NoError(t, d.Validate())
	})

	t.Run("should reject missing name", func(t *testing.T) {
		_, err := driver.NewDriver(kernel.NewUUID(), "", driver.Car)

		require.Error(t, err)
		require.ErrorIs(t, err, driver.ErrNameIsRequired)
	})

	t.Run("should reject invalid vehicle class", func(t *testing.T) {
		_, err := driver.NewDriver(kernel.NewUUID(), "Alice", driver.VehicleUnknown)
		require.Error(t, err)
	})

	t.Run("should aggregate multiple validation errors", func(t *testing.T) {
		_, err := driver.NewDriver(kernel.UUID{}, "", driver.VehicleUnknown)
		require.Error(t, err)
	})
}

func TestDriver_Validate(t *testing.T) {
	t.Run("should reject struct literal", func(t *testing.T) {
		var d driver.Driver

		err := d.Validate()

		require.Error(t, err)
		assert.Equal(t, driver.ErrDriverIsNotConstructed, err)
	})
}

func TestDriver_UpdatePosition(t *testing.T) {
	t.Run("should apply first report", func(t *testing.T) {
		d := newTestDriver(t)
		at := time.Now()

		applied, err := d.UpdatePosition(testPoint(t, 10, 20), at)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.False(t, d.Position().IsZero())
		assert.Equal(t, at, d.Position().RecordedAt())
	})

	t.Run("should apply strictly newer report", func(t *testing.T) {
		d := newTestDriver(t)
		t1 := time.Now()
		t2 := t1.Add(time.Second)

		_, err := d.UpdatePosition(testPoint(t, 10, 20), t1)
		require.NoError(t, err)

		applied, err := d.UpdatePosition(testPoint(t, 11, 21), t2)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.InDelta(t, 11.0, d.Position().Point().Lat(), 1e-9)
	})

	t.Run("should drop stale report silently", func(t *testing.T) {
		d := newTestDriver(t)
		t1 := time.Now()
		t2 := t1.Add(time.Second)

		// T2 arrives first; the late T1 report must have no effect.
		_, err := d.UpdatePosition(testPoint(t, 11, 21), t2)
		require.NoError(t, err)

		applied, err := d.UpdatePosition(testPoint(t, 10, 20), t1)

		require.NoError(t, err)
		assert.False(t, applied)
		assert.InDelta(t, 11.0, d.Position().Point().Lat(), 1e-9)
		assert.Equal(t, t2, d.Position().RecordedAt())
	})

	t.Run("should drop equal-timestamp report", func(t *testing.T) {
		d := newTestDriver(t)
		at := time.Now()

		_, err := d.UpdatePosition(testPoint(t, 10, 20), at)
		require.NoError(t, err)

		applied, err := d.UpdatePosition(testPoint(t, 11, 21), at)

		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("should not bump version", func(t *testing.T) {
		d := newTestDriver(t)

		_, err := d.UpdatePosition(testPoint(t, 10, 20), time.Now())

		require.NoError(t, err)
		assert.Equal(t, int64(1), d.Version())
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		d := newTestDriver(t)

		_, err := d.UpdatePosition(kernel.GeoPoint{}, time.Now())
		require.Error(t, err)

		_, err = d.UpdatePosition(testPoint(t, 10, 20), time.Time{})
		require.Error(t, err)
	})
}

func TestDriver_AssignmentLifecycle(t *testing.T) {
	t.Run("should mark available driver assigned and bump version", func(t *testing.T) {
		d := newTestDriver(t)

		err := d.MarkAssigned()

		require.NoError(t, err)
		assert.Equal(t, driver.Assigned, d.Availability())
		assert.Equal(t, int64(2), d.Version())
	})

	t.Run("should enforce at most one active assignment", func(t *testing.T) {
		d := newTestDriver(t)
		require.NoError(t, d.MarkAssigned())

		err := d.MarkAssigned()

		require.Error(t, err)
		require.ErrorIs(t, err, driver.ErrDriverNotAvailable)
	})

	t.Run("should clear assignment back to available", func(t *testing.T) {
		d := newTestDriver(t)
		require.NoError(t, d.MarkAssigned())

		err := d.ClearAssignment()

		require.NoError(t, err)
		assert.Equal(t, driver.Available, d.Availability())
		assert.Equal(t, int64(3), d.Version())
	})

	t.Run("should reject clearing without assignment", func(t *testing.T) {
		d := newTestDriver(t)

		err := d.ClearAssignment()

		require.ErrorIs(t, err, driver.ErrDriverNotAssigned)
	})
}

func TestDriver_OnlineOffline(t *testing.T) {
	t.Run("should go offline from any state and bump version once", func(t *testing.T) {
		d := newTestDriver(t)

		d.GoOffline()

		assert.Equal(t, driver.Offline, d.Availability())
		assert.Equal(t, int64(2), d.Version())

		// Repeated calls are no-ops.
		d.GoOffline()
		assert.Equal(t, int64(2), d.Version())
	})

	t.Run("should come back online", func(t *testing.T) {
		d := newTestDriver(t)
		d.GoOffline()

		err := d.GoOnline()

		require.NoError(t, err)
		assert.Equal(t, driver.Available, d.Availability())
		assert.Equal(t, int64(3), d.Version())
	})

	t.Run("should treat online when already available as no-op", func(t *testing.T) {
		d := newTestDriver(t)

		require.NoError(t, d.GoOnline())

		assert.Equal(t, int64(1), d.Version())
	})

	t.Run("should reject online while assigned", func(t *testing.T) {
		d := newTestDriver(t)
		require.NoError(t, d.MarkAssigned())

		err := d.GoOnline()

		require.ErrorIs(t, err, driver.ErrDriverNotAvailable)
	})
}

func TestRestoreDriver(t *testing.T) {
	t.Run("should rebuild aggregate from persisted state", func(t *testing.T) {
		id := kernel.NewUUID()
		position, err := driver.NewPosition(testPoint(t, 10, 20), time.Now())
		require.NoError(t, err)

		d, err := driver.RestoreDriver(id, "Bob", driver.Motorcycle, driver.Assigned, position, 7)

		require.NoError(t, err)
		assert.Equal(t, driver.Assigned, d.Availability())
		assert.Equal(t, int64(7), d.Version())
		assert.False(t, d.Position().IsZero())
		require.NoError(t, d.Validate())
	})

	t.Run("should reject invalid persisted state", func(t *testing.T) {
		_, err := driver.RestoreDriver(
			kernel.NewUUID(), "Bob", driver.Motorcycle, driver.AvailabilityUnknown, driver.Position{}, 0)

		require.Error(t, err)
	})
}
