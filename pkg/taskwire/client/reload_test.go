package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// fixedClock reports a constant wall time; timers and tickers fall back
// to the system clock.
type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time                   { return f.now }
func (f fixedClock) NewTimer(d time.Duration) Timer   { return SystemClock().NewTimer(d) }
func (f fixedClock) NewTicker(d time.Duration) Ticker { return SystemClock().NewTicker(d) }

type recordingTodos struct {
	cacheClears int
	loads       []string // "date/userID"
	loadErr     error
	broadcasts  []string
}

func (r *recordingTodos) ClearCache() {
	r.cacheClears++
}

func (r *recordingTodos) LoadForDateAndUser(ctx context.Context, date, userID string) error {
	r.loads = append(r.loads, date+"/"+userID)
	return r.loadErr
}

func (r *recordingTodos) OnBroadcast(ctx context.Context, event string, data json.RawMessage) {
	r.broadcasts = append(r.broadcasts, event)
}

type recordingNotes struct {
	loads      []string
	loadErr    error
	broadcasts []string
}

func (r *recordingNotes) LoadForUser(ctx context.Context, userID string) error {
	r.loads = append(r.loads, userID)
	return r.loadErr
}

func (r *recordingNotes) OnBroadcast(ctx context.Context, event string, data json.RawMessage) {
	r.broadcasts = append(r.broadcasts, event)
}

type fixedIdentity struct {
	device  string
	user    string
	account string
}

func (f *fixedIdentity) DeviceID() string      { return f.device }
func (f *fixedIdentity) CurrentUserID() string { return f.user }
func (f *fixedIdentity) AppUserID() string     { return f.account }

func TestReloadDispatcher(t *testing.T) {
	clock := fixedClock{now: time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)}
	identity := &fixedIdentity{device: "dev-1", user: "alice", account: "acct-1"}

	newDispatcher := func(todos *recordingTodos, notes *recordingNotes) *ReloadDispatcher {
		return NewReloadDispatcher(todos, notes, identity, clock, zap.NewNop(), nil)
	}

	t.Run("todos scope clears the cache and loads today for the current user", func(t *testing.T) {
		todos := &recordingTodos{}
		notes := &recordingNotes{}

		newDispatcher(todos, notes).Reload(context.Background(), protocol.ScopeTodos)

		assert.Equal(t, 1, todos.cacheClears)
		assert.Equal(t, []string{"2025-03-14/alice"}, todos.loads)
		assert.Empty(t, notes.loads)
	})

	t.Run("notes scope loads notes only", func(t *testing.T) {
		todos := &recordingTodos{}
		notes := &recordingNotes{}

		newDispatcher(todos, notes).Reload(context.Background(), protocol.ScopeNotes)

		assert.Zero(t, todos.cacheClears)
		assert.Empty(t, todos.loads)
		assert.Equal(t, []string{"alice"}, notes.loads)
	})

	t.Run("all scope reloads both domains", func(t *testing.T) {
		todos := &recordingTodos{}
		notes := &recordingNotes{}

		newDispatcher(todos, notes).Reload(context.Background(), protocol.ScopeAll)

		assert.Equal(t, 1, todos.cacheClears)
		assert.Equal(t, []string{"2025-03-14/alice"}, todos.loads)
		assert.Equal(t, []string{"alice"}, notes.loads)
	})

	t.Run("collaborator failures are absorbed", func(t *testing.T) {
		todos := &recordingTodos{loadErr: errors.New("backend down")}
		notes := &recordingNotes{loadErr: errors.New("backend down")}

		// Must not panic or short-circuit: notes still reloads after
		// the todo reload fails.
		newDispatcher(todos, notes).Reload(context.Background(), protocol.ScopeAll)

		assert.Equal(t, []string{"2025-03-14/alice"}, todos.loads)
		assert.Equal(t, []string{"alice"}, notes.loads)
	})

	t.Run("nil collaborators are skipped", func(t *testing.T) {
		d := NewReloadDispatcher(nil, nil, identity, clock, zap.NewNop(), nil)

		d.Reload(context.Background(), protocol.ScopeAll)
	})
}
