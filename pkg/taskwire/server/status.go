package server

import (
	"sync"
	"time"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// StatusTracker maintains the per-account DataStatus that heartbeat
// replies and the polling endpoint report. Mutations bump the matching
// domain timestamp; connected clients edge-detect the change and reload.
type StatusTracker struct {
	mu       sync.Mutex
	accounts map[string]protocol.DataStatus
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		accounts: make(map[string]protocol.DataStatus),
	}
}

// BumpTodos records a todo mutation for the account.
func (t *StatusTracker) BumpTodos(appUserID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := t.accounts[appUserID]
	status.LastTodoUpdate = at.UnixMilli()
	t.accounts[appUserID] = status
}

// BumpNotes records a note mutation for the account.
func (t *StatusTracker) BumpNotes(appUserID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := t.accounts[appUserID]
	status.LastNoteUpdate = at.UnixMilli()
	t.accounts[appUserID] = status
}

// SetLinked records whether the account has linked data. Flipping this
// makes every connected client reload all domains.
func (t *StatusTracker) SetLinked(appUserID string, linked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	status := t.accounts[appUserID]
	status.HasLinkedData = linked
	t.accounts[appUserID] = status
}

// Snapshot returns the account's current DataStatus. Unknown accounts get
// a zero status.
func (t *StatusTracker) Snapshot(appUserID string) protocol.DataStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accounts[appUserID]
}
