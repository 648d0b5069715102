package solve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

func TestStatusFromStored(t *testing.T) {
	tests := []struct {
		stored int
		want   ApprovalStatus
	}{
		{0, StatusPending},
		{1, StatusApproved},
		{2, StatusDeclined},
	}
	for _, tt := range tests {
		got, err := StatusFromStored(tt.stored)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	t.Run("unknown value is a corrupt record", func(t *testing.T) {
		_, err := StatusFromStored(7)
		assert.True(t, shared.IsCorruptRecord(err))

		_, err = StatusFromStored(-1)
		assert.True(t, shared.IsCorruptRecord(err))
	})
}

func TestApprovalStatus(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusDeclined.Terminal())

	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "approved", StatusApproved.String())
	assert.Equal(t, "declined", StatusDeclined.String())
}

func TestOutcomeTerminalStatus(t *testing.T) {
	assert.Equal(t, StatusApproved, OutcomeApprove.TerminalStatus())
	assert.Equal(t, StatusDeclined, OutcomeDecline.TerminalStatus())
}

func TestNew(t *testing.T) {
	t.Run("starts pending with deduplicated participants", func(t *testing.T) {
		s, err := New(3, 42, "flag{it-works}", []int64{10, 11, 10, 12, 11})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, s.Status)
		assert.Equal(t, []int64{10, 11, 12}, s.Participants)
		assert.Equal(t, int64(42), s.DecisionMessageRef)
	})

	t.Run("requires a flag", func(t *testing.T) {
		_, err := New(3, 42, "   ", []int64{10})
		assert.Error(t, err)
	})

	t.Run("requires at least one participant", func(t *testing.T) {
		_, err := New(3, 42, "flag{x}", nil)
		assert.Error(t, err)

		_, err = New(3, 42, "flag{x}", []int64{0, -5})
		assert.Error(t, err)
	})
}
