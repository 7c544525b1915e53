package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

func hubTestConn(deviceID string) *Connection {
	return &Connection{
		id:       deviceID,
		device:   deviceID,
		logger:   zap.NewNop(),
		outbound: make(chan []byte, 4),
	}
}

func drainFrame(t *testing.T, conn *Connection) protocol.Envelope {
	t.Helper()
	select {
	case raw := <-conn.outbound:
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("expected a queued frame")
		return protocol.Envelope{}
	}
}

func TestHub(t *testing.T) {
	t.Run("broadcast reaches every other session on the account", func(t *testing.T) {
		hub := NewHub(zap.NewNop())
		origin := hubTestConn("dev-1")
		sibling := hubTestConn("dev-2")
		stranger := hubTestConn("dev-3")
		hub.Join("acct-1", origin)
		hub.Join("acct-1", sibling)
		hub.Join("acct-2", stranger)

		n := hub.Broadcast("acct-1", "dev-1", &protocol.Envelope{
			Type: "TODO_CREATE_BROADCAST",
			Data: json.RawMessage(`{"id":"t1"}`),
		})

		assert.Equal(t, 1, n)
		env := drainFrame(t, sibling)
		assert.Equal(t, "TODO_CREATE_BROADCAST", env.Type)
		assert.Empty(t, origin.outbound)
		assert.Empty(t, stranger.outbound)
	})

	t.Run("broadcast to an unknown account reaches nobody", func(t *testing.T) {
		hub := NewHub(zap.NewNop())
		assert.Zero(t, hub.Broadcast("acct-404", "dev-1", &protocol.Envelope{Type: "X_BROADCAST"}))
	})

	t.Run("leave removes the session", func(t *testing.T) {
		hub := NewHub(zap.NewNop())
		conn := hubTestConn("dev-1")
		hub.Join("acct-1", conn)
		require.Equal(t, 1, hub.Sessions("acct-1"))

		hub.Leave(conn)
		assert.Zero(t, hub.Sessions("acct-1"))
		assert.Zero(t, hub.Broadcast("acct-1", "other", &protocol.Envelope{Type: "X_BROADCAST"}))
	})

	t.Run("re-registering under a new account moves the session", func(t *testing.T) {
		hub := NewHub(zap.NewNop())
		conn := hubTestConn("dev-1")
		hub.Join("acct-1", conn)
		hub.Join("acct-2", conn)

		assert.Zero(t, hub.Sessions("acct-1"))
		assert.Equal(t, 1, hub.Sessions("acct-2"))
		assert.Equal(t, "acct-2", conn.account())
	})

	t.Run("full outbound queues drop without blocking the broadcast", func(t *testing.T) {
		hub := NewHub(zap.NewNop())
		slow := &Connection{
			id:       "dev-slow",
			device:   "dev-slow",
			logger:   zap.NewNop(),
			outbound: make(chan []byte), // unbuffered, nobody reading
		}
		hub.Join("acct-1", slow)

		// Must return promptly even though the frame cannot be queued.
		n := hub.Broadcast("acct-1", "dev-other", &protocol.Envelope{Type: "X_BROADCAST"})
		assert.Equal(t, 1, n)
	})
}
