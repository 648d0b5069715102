package verify

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctf-hub/ctf-community-hub/internal/domain/shared"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestTokenCipher(t *testing.T) {
	c, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	t.Run("round-trips user id and email", func(t *testing.T) {
		token, err := c.Seal(123456789012345678, "hacker@b01lers.com")
		require.NoError(t, err)

		userID, email, err := c.Open(token)
		require.NoError(t, err)
		assert.Equal(t, int64(123456789012345678), userID)
		assert.Equal(t, "hacker@b01lers.com", email)
	})

	t.Run("two seals of the same payload differ", func(t *testing.T) {
		a, err := c.Seal(1, "x@y.z")
		require.NoError(t, err)
		b, err := c.Seal(1, "x@y.z")
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "nonces must be fresh per token")
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		token, err := c.Seal(7, "x@y.z")
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0x01
		tampered := base64.RawURLEncoding.EncodeToString(raw)

		_, _, err = c.Open(tampered)
		assert.ErrorIs(t, err, shared.ErrTokenTampered)
	})

	t.Run("rejects tokens sealed under another key", func(t *testing.T) {
		other, err := NewTokenCipher(bytes.Repeat([]byte{0x43}, 32))
		require.NoError(t, err)
		token, err := other.Seal(7, "x@y.z")
		require.NoError(t, err)

		_, _, err = c.Open(token)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, _, err := c.Open("not base64 !!!")
		assert.Error(t, err)

		_, _, err = c.Open("dG9vc2hvcnQ")
		assert.Error(t, err)
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := NewTokenCipher([]byte("short"))
		assert.Error(t, err)
	})
}
