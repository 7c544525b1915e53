package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientBuilder(t *testing.T) {
	identity := &fixedIdentity{device: "dev-1", user: "alice", account: "acct-1"}

	t.Run("successful build with required parameters", func(t *testing.T) {
		c, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithIdentity(identity).
			Build()

		require.NoError(t, err)
		assert.NotNil(t, c)
		assert.Equal(t, "ws://localhost:8080/ws", c.url)
		assert.Equal(t, StateDisconnected, c.State())
	})

	t.Run("defaults are applied", func(t *testing.T) {
		c, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithIdentity(identity).
			Build()

		require.NoError(t, err)
		assert.Equal(t, DefaultHeartbeatInterval, c.heartbeatInterval)
		assert.Equal(t, DefaultRequestTimeout, c.requestTimeout)
		assert.Equal(t, DefaultReconnectBaseDelay, c.reconnectBaseDelay)
		assert.Equal(t, DefaultMaxReconnectAttempts, c.maxReconnectAttempts)
		assert.Equal(t, DefaultWriteQueueSize, c.writeQueueSize)
	})

	t.Run("fluent interface returns same builder", func(t *testing.T) {
		b := NewClient()
		result1 := b.WithURL("ws://localhost:8080/ws")
		result2 := result1.WithIdentity(identity)

		assert.Same(t, b, result1)
		assert.Same(t, b, result2)
	})

	t.Run("page location derives the endpoint", func(t *testing.T) {
		c, err := NewClient().
			WithPageLocation("app.example.com", true).
			WithIdentity(identity).
			Build()

		require.NoError(t, err)
		assert.Equal(t, "wss://app.example.com:8080/ws", c.url)
	})

	t.Run("isValid requires url and identity", func(t *testing.T) {
		b := NewClient()
		err := b.IsValid()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "URL")

		b.WithURL("ws://localhost:8080/ws")
		err = b.IsValid()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "identity")

		b.WithIdentity(identity)
		assert.NoError(t, b.IsValid())
	})

	t.Run("build fails without identity", func(t *testing.T) {
		c, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			Build()

		assert.Error(t, err)
		assert.Nil(t, c)
	})

	t.Run("tuning overrides are honored", func(t *testing.T) {
		c, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithIdentity(identity).
			WithLogger(zap.NewNop()).
			WithHeartbeatInterval(5 * time.Second).
			WithRequestTimeout(10 * time.Second).
			WithReconnect(500*time.Millisecond, 3).
			WithWriteQueueSize(8).
			Build()

		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, c.heartbeatInterval)
		assert.Equal(t, 10*time.Second, c.requestTimeout)
		assert.Equal(t, 500*time.Millisecond, c.reconnectBaseDelay)
		assert.Equal(t, 3, c.maxReconnectAttempts)
		assert.Equal(t, 8, c.writeQueueSize)
	})

	t.Run("invalid tuning values are ignored", func(t *testing.T) {
		c, err := NewClient().
			WithURL("ws://localhost:8080/ws").
			WithIdentity(identity).
			WithHeartbeatInterval(0).
			WithReconnect(-1, 0).
			WithWriteQueueSize(-5).
			Build()

		require.NoError(t, err)
		assert.Equal(t, DefaultHeartbeatInterval, c.heartbeatInterval)
		assert.Equal(t, DefaultReconnectBaseDelay, c.reconnectBaseDelay)
		assert.Equal(t, DefaultMaxReconnectAttempts, c.maxReconnectAttempts)
		assert.Equal(t, DefaultWriteQueueSize, c.writeQueueSize)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "closed", StateClosed.String())
}
