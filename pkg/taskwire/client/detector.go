package client

import (
	"sync"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// ChangeDetector performs edge-triggered change detection on the
// DataStatus metadata carried by heartbeat replies. It keeps the last
// observed snapshot and reports which data domains went stale since.
//
// The snapshot lives for the life of the client, not the connection: the
// first heartbeat after a reconnect compares against the pre-disconnect
// snapshot, so mutations made while the socket was down are caught up on
// right away. Only the very first heartbeat establishes a silent
// baseline.
type ChangeDetector struct {
	mu   sync.Mutex
	seen bool
	last protocol.DataStatus
}

// NewChangeDetector returns a detector with an empty snapshot.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{}
}

// Observe compares a heartbeat's DataStatus against the snapshot and
// returns the reload scopes that went stale. A change in HasLinkedData
// overrides everything to a single all-scope reload, since linking
// affects every data domain. The snapshot is updated unconditionally,
// even when nothing changed.
func (d *ChangeDetector) Observe(status protocol.DataStatus) []protocol.Scope {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.seen {
		d.seen = true
		d.last = status
		return nil
	}

	todosStale := status.LastTodoUpdate != d.last.LastTodoUpdate
	notesStale := status.LastNoteUpdate != d.last.LastNoteUpdate
	linkedChanged := status.HasLinkedData != d.last.HasLinkedData
	d.last = status

	if linkedChanged {
		return []protocol.Scope{protocol.ScopeAll}
	}

	var scopes []protocol.Scope
	if todosStale {
		scopes = append(scopes, protocol.ScopeTodos)
	}
	if notesStale {
		scopes = append(scopes, protocol.ScopeNotes)
	}
	return scopes
}
