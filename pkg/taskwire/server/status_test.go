package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTracker(t *testing.T) {
	at := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("unknown accounts report a zero status", func(t *testing.T) {
		tracker := NewStatusTracker()

		status := tracker.Snapshot("acct-404")
		assert.Zero(t, status.LastTodoUpdate)
		assert.Zero(t, status.LastNoteUpdate)
		assert.False(t, status.HasLinkedData)
	})

	t.Run("bumps advance only their own domain", func(t *testing.T) {
		tracker := NewStatusTracker()

		tracker.BumpTodos("acct-1", at)
		status := tracker.Snapshot("acct-1")
		assert.Equal(t, at.UnixMilli(), status.LastTodoUpdate)
		assert.Zero(t, status.LastNoteUpdate)

		tracker.BumpNotes("acct-1", at.Add(time.Second))
		status = tracker.Snapshot("acct-1")
		assert.Equal(t, at.UnixMilli(), status.LastTodoUpdate)
		assert.Equal(t, at.Add(time.Second).UnixMilli(), status.LastNoteUpdate)
	})

	t.Run("accounts are independent", func(t *testing.T) {
		tracker := NewStatusTracker()

		tracker.BumpTodos("acct-1", at)

		assert.Zero(t, tracker.Snapshot("acct-2").LastTodoUpdate)
	})

	t.Run("linked flag survives timestamp bumps", func(t *testing.T) {
		tracker := NewStatusTracker()

		tracker.SetLinked("acct-1", true)
		tracker.BumpTodos("acct-1", at)
		tracker.BumpNotes("acct-1", at)

		status := tracker.Snapshot("acct-1")
		assert.True(t, status.HasLinkedData)

		tracker.SetLinked("acct-1", false)
		assert.False(t, tracker.Snapshot("acct-1").HasLinkedData)
		assert.Equal(t, at.UnixMilli(), tracker.Snapshot("acct-1").LastTodoUpdate)
	})
}
