package order_test

import (
	"fmt"
	"testing"

	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Constants(t *testing.T) {
	t.Run("should have correct enum values", func(t *testing.T) {
		assert.Equal(t, 0, int(order.Unknown))
		assert.Equal(t, 1, int(order.Pending))
		assert.Equal(t, 2, int(order.Preparing))
		assert.Equal(t, 3, int(order.OutForDelivery))
		assert.Equal(t, 4, int(order.Delivered))
		assert.Equal(t, 5, int(order.Cancelled))
	})
}

func TestStatus_Validate(t *testing.T) {
	t.Run("should validate valid statuses", func(t *testing.T) {
		validStatuses := []order.Status{
			order.Pending,
			order.Preparing,
			order.OutForDelivery,
			order.Delivered,
			order.Cancelled,
		}

		for _, status := range validStatuses {
			t.Run(fmt.Sprintf("should validate %s status", status.String()), func(t *testing.T) {
				require.NoError(t, status.Validate())
			})
		}
	})

	t.Run("should reject invalid status values", func(t *testing.T) {
		invalidStatuses := []order.Status{
			order.Unknown,
			order.Status(-1),
			order.Status(6),
			order.Status(100),
		}

		for _, status := range invalidStatuses {
			t.Run(fmt.Sprintf("should reject status value %d", int(status)), func(t *testing.T) {
				require.Error(t, status.Validate())
			})
		}
	})
}

func TestStatus_String(t *testing.T) {
	t.Run("should return correct string for valid statuses", func(t *testing.T) {
		testCases := []struct {
			status   order.Status
			expected string
		}{
			{order.Pending, "Pending"},
			{order.Preparing, "Preparing"},
			{order.OutForDelivery, "OutForDelivery"},
			{order.Delivered, "Delivered"},
			{order.Cancelled, "Cancelled"},
		}

		for _, tc := range testCases {
			assert.Equal(t, tc.expected, tc.status.String())
		}
	})

	t.Run("should return Unknown for invalid statuses", func(t *testing.T) {
		assert.Equal(t, "Unknown", order.Unknown.String())
		assert.Equal(t, "Unknown", order.Status(42).String())
	})
}

func TestStatusFromString(t *testing.T) {
	t.Run("should round-trip every valid status", func(t *testing.T) {
		for _, status := range []order.Status{
			order.Pending, order.Preparing, order.OutForDelivery, order.Delivered, order.Cancelled,
		} {
			parsed, err := order.StatusFromString(status.String())

			require.NoError(t, err)
			assert.Equal(t, status, parsed)
		}
	})

	t.Run("should reject unknown names", func(t *testing.T) {
		_, err := order.StatusFromString("Shipped")
		require.Error(t, err)

		_, err = order.StatusFromString("Unknown")
		require.Error(t, err)
	})
}

func TestStatus_Transitions(t *testing.T) {
	t.Run("should allow every edge of the lifecycle graph", func(t *testing.T) {
		legalEdges := []struct {
			from order.Status
			to   order.Status
		}{
			{order.Pending, order.Preparing},
			{order.Pending, order.Cancelled},
			{order.Preparing, order.OutForDelivery},
			{order.Preparing, order.Cancelled},
			{order.OutForDelivery, order.Delivered},
		}

		for _, edge := range legalEdges {
			t.Run(fmt.Sprintf("should allow %s to %s", edge.from, edge.to), func(t *testing.T) {
				next, err := edge.from.TransitionTo(edge.to)

				require.NoError(t, err)
				assert.Equal(t, edge.to, next)
			})
		}
	})

	t.Run("should reject every move outside the graph", func(t *testing.T) {
		all := []order.Status{
			order.Pending, order.Preparing, order.OutForDelivery, order.Delivered, order.Cancelled,
		}

		legal := map[order.Status]map[order.Status]bool{
			order.Pending:   {order.Preparing: true, order.Cancelled: true},
			order.Preparing: {order.OutForDelivery: true, order.Cancelled: true},
			order.OutForDelivery: {
				order.Delivered: true,
			},
		}

		for _, from := range all {
			for _, to := range all {
				if legal[from][to] {
					continue
				}
				t.Run(fmt.Sprintf("should reject %s to %s", from, to), func(t *testing.T) {
					_, err := from.TransitionTo(to)

					require.Error(t, err)
					require.ErrorIs(t, err, order.ErrInvalidTransition)
				})
			}
		}
	})

	t.Run("should reject transition to Unknown", func(t *testing.T) {
		_, err := order.Pending.TransitionTo(order.Unknown)

		require.Error(t, err)
		require.ErrorIs(t, err, order.ErrInvalidTransition)
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	t.Run("should mark Delivered and Cancelled terminal", func(t *testing.T) {
		assert.True(t, order.Delivered.IsTerminal())
		assert.True(t, order.Cancelled.IsTerminal())
	})

	t.Run("should not mark live statuses terminal", func(t *testing.T) {
		assert.False(t, order.Pending.IsTerminal())
		assert.False(t, order.Preparing.IsTerminal())
		assert.False(t, order.OutForDelivery.IsTerminal())
	})

	t.Run("should not mark invalid statuses terminal", func(t *testing.T) {
		assert.False(t, order.Unknown.IsTerminal())
	})
}
