package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLadder(t *testing.T) {
	t.Run("parses ranks and converts awards to tenths", func(t *testing.T) {
		l, err := ParseLadder([]byte(`
rank_names:
  - script kiddie
  - hacker
  - operator
points_per_solve: 10
points_per_message: 0.1
`))
		require.NoError(t, err)
		assert.Equal(t, []string{"script kiddie", "hacker", "operator"}, l.RankNames)
		assert.Equal(t, int64(100), l.SolveAwardTenths)
		assert.Equal(t, int64(1), l.MessageAwardTenths)
		assert.Equal(t, 3, l.RankCount())
	})

	t.Run("rejects an empty ladder", func(t *testing.T) {
		_, err := ParseLadder([]byte(`points_per_solve: 10`))
		assert.Error(t, err)
	})

	t.Run("rejects a zero solve award", func(t *testing.T) {
		_, err := ParseLadder([]byte(`
rank_names: [hacker]
points_per_solve: 0
`))
		assert.Error(t, err)
	})

	t.Run("rejects a blank rank name", func(t *testing.T) {
		_, err := ParseLadder([]byte(`
rank_names: ["hacker", ""]
points_per_solve: 10
`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseLadder([]byte(`rank_names: [unterminated`))
		assert.Error(t, err)
	})
}
