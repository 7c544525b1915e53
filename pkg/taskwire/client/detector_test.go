package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

func TestChangeDetector(t *testing.T) {
	t.Run("first observation is a baseline, not a change", func(t *testing.T) {
		d := NewChangeDetector()

		scopes := d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200})
		assert.Empty(t, scopes)
	})

	t.Run("todo timestamp change reloads todos only", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200})

		scopes := d.Observe(protocol.DataStatus{LastTodoUpdate: 150, LastNoteUpdate: 200})
		assert.Equal(t, []protocol.Scope{protocol.ScopeTodos}, scopes)
	})

	t.Run("note timestamp change reloads notes only", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200})

		scopes := d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 250})
		assert.Equal(t, []protocol.Scope{protocol.ScopeNotes}, scopes)
	})

	t.Run("both timestamps changing reload both scopes", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200})

		scopes := d.Observe(protocol.DataStatus{LastTodoUpdate: 150, LastNoteUpdate: 250})
		assert.Equal(t, []protocol.Scope{protocol.ScopeTodos, protocol.ScopeNotes}, scopes)
	})

	t.Run("linked data transition overrides to a single all-scope reload", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200})

		scopes := d.Observe(protocol.DataStatus{
			LastTodoUpdate: 150,
			LastNoteUpdate: 250,
			HasLinkedData:  true,
		})
		assert.Equal(t, []protocol.Scope{protocol.ScopeAll}, scopes)
	})

	t.Run("linked data turning off also triggers all", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{HasLinkedData: true})

		scopes := d.Observe(protocol.DataStatus{HasLinkedData: false})
		assert.Equal(t, []protocol.Scope{protocol.ScopeAll}, scopes)
	})

	t.Run("identical status is quiet", func(t *testing.T) {
		d := NewChangeDetector()
		status := protocol.DataStatus{LastTodoUpdate: 100, LastNoteUpdate: 200, HasLinkedData: true}
		d.Observe(status)

		assert.Empty(t, d.Observe(status))
		assert.Empty(t, d.Observe(status))
	})

	t.Run("snapshot advances even when all-scope fires", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100})
		d.Observe(protocol.DataStatus{LastTodoUpdate: 150, HasLinkedData: true})

		// Same timestamps again: nothing left to report.
		assert.Empty(t, d.Observe(protocol.DataStatus{LastTodoUpdate: 150, HasLinkedData: true}))
	})

	t.Run("snapshot outlives gaps between observations", func(t *testing.T) {
		d := NewChangeDetector()
		d.Observe(protocol.DataStatus{LastTodoUpdate: 100})

		// A mutation that happened while no heartbeats were arriving is
		// still an edge against the last snapshot.
		assert.Equal(t, []protocol.Scope{protocol.ScopeTodos}, d.Observe(protocol.DataStatus{LastTodoUpdate: 500}))
	})
}
