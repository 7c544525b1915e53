// Package taskwire defines the shared contracts of the taskwire
// real-time sync system: the collaborator interfaces the sync client
// dispatches into, and aliases for the observability abstractions.
package taskwire

import (
	"context"
	"encoding/json"

	"github.com/tidelock/taskwire/pkg/taskwire/o11y"
)

// TodoCollaborator is the external manager that owns todo state. The sync
// client never mutates todos itself; it only asks the collaborator to
// invalidate and re-fetch, or hands it raw broadcast payloads.
type TodoCollaborator interface {
	// ClearCache drops any locally cached todo state.
	ClearCache()

	// LoadForDateAndUser re-fetches todos for the given date (YYYY-MM-DD)
	// and user via whatever transport the collaborator uses (REST).
	LoadForDateAndUser(ctx context.Context, date string, userID string) error

	// OnBroadcast receives a TODO_*_BROADCAST payload from another device.
	OnBroadcast(ctx context.Context, event string, data json.RawMessage)
}

// NotesCollaborator is the external manager that owns note state.
type NotesCollaborator interface {
	// LoadForUser re-fetches the user's notes.
	LoadForUser(ctx context.Context, userID string) error

	// OnBroadcast receives a NOTES_*_BROADCAST payload from another device.
	OnBroadcast(ctx context.Context, event string, data json.RawMessage)
}

// IdentityProvider supplies the identity fields stamped onto every outbound
// message. Values are read at send time, so an identity change that lands
// before transmission is honored.
type IdentityProvider interface {
	// DeviceID is the stable per-installation identifier.
	DeviceID() string

	// CurrentUserID is the active profile, empty when none is selected.
	CurrentUserID() string

	// AppUserID is the account-level identity, empty before sign-in.
	AppUserID() string
}

// FallbackNotifier is told when the socket is given up on, so the hosting
// application can degrade to HTTP polling.
type FallbackNotifier interface {
	SwitchToPolling()
}

// UiNotifier surfaces user-visible sync notifications ("Alice updated a
// todo on another device").
type UiNotifier interface {
	ShowSyncMessage(text string)
}

// LinkNotifier receives account-linking notifications pushed by the server.
// All methods are optional in the sense that a client built without a
// LinkNotifier simply logs link frames and drops them.
type LinkNotifier interface {
	OnLinkRequestReceived(ctx context.Context, data json.RawMessage)
	OnInvitationAccepted(ctx context.Context, data json.RawMessage)
	OnInvitationRejected(ctx context.Context, data json.RawMessage)
	OnLinkCancelled(ctx context.Context, data json.RawMessage)
	OnLinkEstablished(ctx context.Context, data json.RawMessage)
	OnLinkSyncUpdate(ctx context.Context, data json.RawMessage)
}

// Re-export the observability abstractions so components can accept
// providers without importing o11y directly.
type (
	MetricsProvider = o11y.MetricsProvider
	TracingProvider = o11y.TracingProvider
	Counter         = o11y.Counter
	Histogram       = o11y.Histogram
	Gauge           = o11y.Gauge
	Label           = o11y.Label
)
