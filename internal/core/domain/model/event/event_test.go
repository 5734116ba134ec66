package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/core/domain/model/driver"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
)

func TestScopeMatches(t *testing.T) {
	orderID := kernel.NewUUID()
	otherID := kernel.NewUUID()
	e := Event{EntityKind: KindOrder, EntityID: orderID, EventType: TypeOrderUpdated}

	t.Run("should match kind-wide scope for the same kind", func(t *testing.T) {
		scope := ScopeKind(KindOrder)
		assert.True(t, scope.IsKindWide())
		assert.True(t, scope.Matches(e))
	})

	t.Run("should not match a different kind", func(t *testing.T) {
		assert.False(t, ScopeKind(KindDriver).Matches(e))
	})

	t.Run("should match entity scope for the same entity", func(t *testing.T) {
		scope := ScopeEntity(KindOrder, orderID)
		assert.False(t, scope.IsKindWide())
		assert.True(t, scope.Matches(e))
	})

	t.Run("should not match entity scope for another entity", func(t *testing.T) {
		assert.False(t, ScopeEntity(KindOrder, otherID).Matches(e))
	})
}

func TestScopeValidate(t *testing.T) {
	t.Run("should accept defined kinds", func(t *testing.T) {
		assert.NoError(t, ScopeKind(KindOrder).Validate())
		assert.NoError(t, ScopeKind(KindDriver).Validate())
		assert.NoError(t, ScopeKind(KindAssignment).Validate())
	})

	t.Run("should reject unknown kind", func(t *testing.T) {
		assert.Error(t, ScopeKind(Kind("warehouse")).Validate())
	})
}

func TestNewOrderEvent(t *testing.T) {
	t.Run("should snapshot full order state", func(t *testing.T) {
		destination, err := kernel.NewGeoPoint(48.8566, 2.3522)
		require.NoError(t, err)
		item, err := order.NewLineItem("espresso", 2, 350)
		require.NoError(t, err)
		createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		aggregate, err := order.NewOrder(kernel.NewUUID(), destination, []order.LineItem{item}, createdAt)
		require.NoError(t, err)

		e, err := NewOrderEvent(TypeOrderCreated, aggregate, createdAt)

		require.NoError(t, err)
		assert.Equal(t, int64(0), e.Sequence)
		assert.Equal(t, KindOrder, e.EntityKind)
		assert.Equal(t, aggregate.ID(), e.EntityID)
		assert.Equal(t, TypeOrderCreated, e.EventType)
		assert.Equal(t, createdAt, e.Timestamp)

		var payload OrderPayload
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		assert.Equal(t, aggregate.ID(), payload.OrderID)
		assert.Equal(t, "Pending", payload.Status)
		assert.Equal(t, int64(1), payload.Version)
		assert.InDelta(t, 48.8566, payload.Destination.Lat, 1e-9)
		require.Len(t, payload.Items, 1)
		assert.Equal(t, "espresso", payload.Items[0].Name)
		assert.Nil(t, payload.AssignedDriverID)
	})
}

func TestNewDriverEvent(t *testing.T) {
	t.Run("should omit position until first report", func(t *testing.T) {
		aggregate, err := driver.NewDriver(kernel.NewUUID(), "Sam", driver.Bicycle)
		require.NoError(t, err)

		e, err := NewDriverEvent(TypeDriverRegistered, aggregate, time.Now())

		require.NoError(t, err)
		var payload DriverPayload
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		assert.Nil(t, payload.Position)
		assert.Equal(t, "Available", payload.Availability)
	})

	t.Run("should include last reported position", func(t *testing.T) {
		aggregate, err := driver.NewDriver(kernel.NewUUID(), "Sam", driver.Bicycle)
		require.NoError(t, err)
		point, err := kernel.NewGeoPoint(10, 20)
		require.NoError(t, err)
		recordedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		applied, err := aggregate.UpdatePosition(point, recordedAt)
		require.NoError(t, err)
		require.True(t, applied)

		e, err := NewDriverEvent(TypeDriverUpdated, aggregate, recordedAt)

		require.NoError(t, err)
		var payload DriverPayload
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		require.NotNil(t, payload.Position)
		assert.InDelta(t, 10.0, payload.Position.Lat, 1e-9)
		assert.InDelta(t, 20.0, payload.Position.Lon, 1e-9)
		assert.True(t, payload.Position.RecordedAt.Equal(recordedAt))
	})
}
