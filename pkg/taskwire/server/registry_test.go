package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRegistry(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("register and count", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		r.Register("dev-1", "alice", "acct-1", "sess-1", base)
		r.Register("dev-2", "alice", "acct-1", "sess-2", base)
		r.Register("dev-3", "carol", "acct-2", "sess-3", base)

		assert.Equal(t, 3, r.Count())
		assert.Equal(t, 2, r.CountForAccount("acct-1"))
		assert.Equal(t, 1, r.CountForAccount("acct-2"))
		assert.Zero(t, r.CountForAccount("acct-404"))
	})

	t.Run("re-registering refreshes instead of duplicating", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		r.Register("dev-1", "alice", "acct-1", "sess-1", base)
		r.Register("dev-1", "alice", "acct-2", "sess-2", base.Add(time.Minute))

		assert.Equal(t, 1, r.Count())
		assert.Equal(t, 1, r.CountForAccount("acct-2"))
		assert.Zero(t, r.CountForAccount("acct-1"))
	})

	t.Run("touch keeps a device alive through a sweep", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		r.Register("dev-1", "alice", "acct-1", "sess-1", base)
		r.Register("dev-2", "bob", "acct-1", "sess-2", base)
		r.Touch("dev-1", base.Add(4*time.Minute))

		evicted := r.Sweep(5*time.Minute, base.Add(6*time.Minute))

		assert.Equal(t, 1, evicted)
		assert.Equal(t, 1, r.Count())
		assert.Equal(t, 1, r.CountForAccount("acct-1"))
	})

	t.Run("touching an unknown device is a no-op", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		r.Touch("dev-404", base)
		assert.Zero(t, r.Count())
	})

	t.Run("remove by the owning session", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		r.Register("dev-1", "alice", "acct-1", "sess-1", base)
		r.Remove("dev-1", "sess-1")
		r.Remove("dev-1", "sess-1")

		assert.Zero(t, r.Count())
	})

	t.Run("stale session cleanup cannot evict a re-registered device", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())

		// The device reconnects and re-registers before the old
		// connection's cleanup runs.
		r.Register("dev-1", "alice", "acct-1", "sess-old", base)
		r.Register("dev-1", "alice", "acct-1", "sess-new", base.Add(time.Second))

		r.Remove("dev-1", "sess-old")
		assert.Equal(t, 1, r.Count())

		r.Remove("dev-1", "sess-new")
		assert.Zero(t, r.Count())
	})

	t.Run("sweep of an empty registry", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		assert.Zero(t, r.Sweep(time.Minute, base))
	})
}
