package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureEntityID(t *testing.T) {
	t.Run("existing id is preserved untouched", func(t *testing.T) {
		in := json.RawMessage(`{"id":42,"title":"Buy milk"}`)

		out, err := ensureEntityID(in)
		require.NoError(t, err)
		assert.Equal(t, string(in), string(out))
	})

	t.Run("missing id gets minted", func(t *testing.T) {
		out, err := ensureEntityID(json.RawMessage(`{"title":"Buy milk"}`))
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(out, &payload))
		assert.Equal(t, "Buy milk", payload["title"])
		assert.NotEmpty(t, payload["id"])
	})

	t.Run("empty payload still gets an id", func(t *testing.T) {
		out, err := ensureEntityID(nil)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(out, &payload))
		assert.NotEmpty(t, payload["id"])
	})

	t.Run("non-object payload is an error", func(t *testing.T) {
		_, err := ensureEntityID(json.RawMessage(`[1,2,3]`))
		assert.Error(t, err)
	})
}
