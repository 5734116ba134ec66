package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateValidate(t *testing.T) {
	t.Run("should accept all defined states", func(t *testing.T) {
		for _, s := range []State{Offered, Accepted, Rejected, Expired, Cancelled, Completed} {
			assert.NoError(t, s.Validate(), s.String())
		}
	})

	t.Run("should reject unknown state", func(t *testing.T) {
		assert.Error(t, StateUnknown.Validate())
		assert.Error(t, State(99).Validate())
	})
}

func TestStateFromString(t *testing.T) {
	t.Run("should parse all defined states", func(t *testing.T) {
		for _, s := range []State{Offered, Accepted, Rejected, Expired, Cancelled, Completed} {
			parsed, err := StateFromString(s.String())
			assert.NoError(t, err)
			assert.Equal(t, s, parsed)
		}
	})

	t.Run("should fail on unknown name", func(t *testing.T) {
		_, err := StateFromString("floating")
		assert.Error(t, err)
	})
}

func TestStateIsTerminal(t *testing.T) {
	t.Run("should report terminal states", func(t *testing.T) {
		assert.False(t, Offered.IsTerminal())
		assert.False(t, Accepted.IsTerminal())
		assert.True(t, Rejected.IsTerminal())
		assert.True(t, Expired.IsTerminal())
		assert.True(t, Cancelled.IsTerminal())
		assert.True(t, Completed.IsTerminal())
	})
}
