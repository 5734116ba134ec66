package commands_test

import (
	"testing"

	"dispatch/internal/core/application/usecases/commands"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransitionOrderCommand_ValidInput(t *testing.T) {
	id := kernel.NewUUID()
	cmd, err := commands.NewTransitionOrderCommand(id, 3, order.Preparing)
	require.NoError(t, err)
	assert.Equal(t, id, cmd.OrderID())
	assert.Equal(t, int64(3), cmd.ExpectedVersion())
	assert.Equal(t, order.Preparing, cmd.NewStatus())
}

func TestNewTransitionOrderCommand_InvalidOrderID(t *testing.T) {
	_, err := commands.NewTransitionOrderCommand(kernel.UUID{}, 1, order.Preparing)
	require.Error(t, err)
	assert.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
}

func TestNewTransitionOrderCommand_InvalidExpectedVersion(t *testing.T) {
	_, err := commands.NewTransitionOrderCommand(kernel.NewUUID(), 0, order.Preparing)
	require.Error(t, err)
}

func TestNewTransitionOrderCommand_InvalidStatus(t *testing.T) {
	_, err := commands.NewTransitionOrderCommand(kernel.NewUUID(), 1, order.Unknown)
	require.Error(t, err)
}
