package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire"
	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// ReloadDispatcher asks the external collaborators to re-fetch data for a
// scope, independent of how the data got stale (broadcast, sync update or
// heartbeat change detection). Calls are idempotent: a redundant reload
// costs a network fetch, never corrupts state. Collaborator failures are
// absorbed and logged; a failed reload must not tear down the connection.
type ReloadDispatcher struct {
	todos    taskwire.TodoCollaborator
	notes    taskwire.NotesCollaborator
	identity taskwire.IdentityProvider
	clock    Clock
	logger   *zap.Logger
	metrics  *ClientMetrics
}

// NewReloadDispatcher wires a dispatcher. Either collaborator may be nil;
// reloads for that domain are then skipped with a debug log.
func NewReloadDispatcher(
	todos taskwire.TodoCollaborator,
	notes taskwire.NotesCollaborator,
	identity taskwire.IdentityProvider,
	clock Clock,
	logger *zap.Logger,
	metrics *ClientMetrics,
) *ReloadDispatcher {
	return &ReloadDispatcher{
		todos:    todos,
		notes:    notes,
		identity: identity,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Reload triggers targeted re-fetches for the given scope.
func (r *ReloadDispatcher) Reload(ctx context.Context, scope protocol.Scope) {
	r.metrics.RecordReload(ctx, string(scope))

	if scope == protocol.ScopeAll || scope == protocol.ScopeTodos {
		r.reloadTodos(ctx)
	}
	if scope == protocol.ScopeAll || scope == protocol.ScopeNotes {
		r.reloadNotes(ctx)
	}
}

func (r *ReloadDispatcher) reloadTodos(ctx context.Context) {
	if r.todos == nil {
		r.logger.Debug("No todo collaborator configured, skipping reload")
		return
	}

	r.todos.ClearCache()

	date := r.clock.Now().Format("2006-01-02")
	userID := r.identity.CurrentUserID()
	if err := r.todos.LoadForDateAndUser(ctx, date, userID); err != nil {
		r.logger.Warn("Todo reload failed",
			zap.String("date", date),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (r *ReloadDispatcher) reloadNotes(ctx context.Context) {
	if r.notes == nil {
		r.logger.Debug("No notes collaborator configured, skipping reload")
		return
	}

	userID := r.identity.CurrentUserID()
	if err := r.notes.LoadForUser(ctx, userID); err != nil {
		r.logger.Warn("Notes reload failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
