package socketio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	t.Run("passes through an error payload", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		require.ErrorIs(t, connectError([]any{cause}), cause)
	})

	t.Run("stringifies a non-error payload", func(t *testing.T) {
		err := connectError([]any{map[string]any{"reason": "handshake rejected"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handshake rejected")
	})

	t.Run("handles an empty payload", func(t *testing.T) {
		require.EqualError(t, connectError(nil), "connection failed")
	})
}
