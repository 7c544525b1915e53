// Package protocol defines the taskwire wire protocol: a JSON text frame
// per message, UTF-8, with an uppercase verb-noun type tag. Requests are
// answered with `<TYPE>_RESPONSE` or `<TYPE>_ERROR`; server-initiated
// frames use the `_BROADCAST` suffix, the `LINK_` prefix, or one of the
// `*_SYNC_UPDATE` types.
package protocol

import (
	"encoding/json"
	"strings"
)

// Envelope is the JSON structure shared by every frame on the socket.
// Outbound frames carry Type, the identity fields, Data and Timestamp;
// inbound frames may additionally carry Error, Sync, Operation and
// DataStatus depending on their classification.
type Envelope struct {
	Type       string          `json:"type"`
	DeviceID   string          `json:"deviceId,omitempty"`
	UserID     string          `json:"userId,omitempty"`
	AppUserID  string          `json:"appUserId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Sync       *SyncInfo       `json:"sync,omitempty"`
	Operation  string          `json:"operation,omitempty"`
	DataStatus *DataStatus     `json:"dataStatus,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"` // unix milliseconds
}

// SyncInfo describes the origin of a server-pushed sync update, so the
// receiving device can tell the user who changed what.
type SyncInfo struct {
	FromUser string `json:"fromUser,omitempty"`
	FromName string `json:"fromName,omitempty"`
}

// DataStatus is the lightweight change-notification metadata piggybacked
// on heartbeat replies. Timestamps are unix milliseconds of the last
// mutation per data domain.
type DataStatus struct {
	LastTodoUpdate int64 `json:"lastTodoUpdate"`
	LastNoteUpdate int64 `json:"lastNoteUpdate"`
	HasLinkedData  bool  `json:"hasLinkedData"`
}

// Heartbeat and registration.
const (
	TypePing             = "PING"
	TypePong             = "PONG"
	TypePingResponse     = "PING_RESPONSE"
	TypeUserRegistration = "USER_REGISTRATION"
)

// Todo requests.
const (
	TypeTodoGetToday   = "TODO_GET_TODAY"
	TypeTodoGetByDate  = "TODO_GET_BY_DATE"
	TypeTodoCreate     = "TODO_CREATE"
	TypeTodoUpdate     = "TODO_UPDATE"
	TypeTodoDelete     = "TODO_DELETE"
	TypeTodoComplete   = "TODO_COMPLETE"
	TypeTodoUncomplete = "TODO_UNCOMPLETE"
)

// Notes requests.
const (
	TypeNotesGetByUser     = "NOTES_GET_BY_USER"
	TypeNotesCreate        = "NOTES_CREATE"
	TypeNotesUpdate        = "NOTES_UPDATE"
	TypeNotesDelete        = "NOTES_DELETE"
	TypeNotesAISuggestions = "NOTES_AI_SUGGESTIONS"
)

// Account linking requests.
const (
	TypeLinkCheckStatus        = "LINK_CHECK_STATUS"
	TypeLinkSendInvitation     = "LINK_SEND_INVITATION"
	TypeLinkAcceptInvitation   = "LINK_ACCEPT_INVITATION"
	TypeLinkRejectInvitation   = "LINK_REJECT_INVITATION"
	TypeLinkCancel             = "LINK_CANCEL"
	TypeLinkGetPendingRequests = "LINK_GET_PENDING_REQUESTS"
)

// Inbound-only link notifications.
const (
	TypeLinkRequestReceived    = "LINK_REQUEST_RECEIVED"
	TypeLinkInvitationAccepted = "LINK_INVITATION_ACCEPTED"
	TypeLinkInvitationRejected = "LINK_INVITATION_REJECTED"
	TypeLinkCancelled          = "LINK_CANCELLED"
	TypeLinkEstablished        = "LINK_ESTABLISHED"
	TypeLinkSyncUpdate         = "LINK_SYNC_UPDATE"
)

// Out-of-band sync updates, mapped to reload scopes.
const (
	TypeDataSyncUpdate  = "DATA_SYNC_UPDATE"
	TypeTodoSyncUpdate  = "TODO_SYNC_UPDATE"
	TypeNotesSyncUpdate = "NOTES_SYNC_UPDATE"
)

const (
	responseSuffix  = "_RESPONSE"
	errorSuffix     = "_ERROR"
	broadcastSuffix = "_BROADCAST"
	linkPrefix      = "LINK_"
	todoPrefix      = "TODO_"
	notesPrefix     = "NOTES_"
)

// ResponseType returns the success reply type for a request type.
func ResponseType(requestType string) string {
	return requestType + responseSuffix
}

// ErrorType returns the error reply type for a request type.
func ErrorType(requestType string) string {
	return requestType + errorSuffix
}

// BroadcastType returns the broadcast type announcing a completed mutation
// of the given request type to the account's other devices.
func BroadcastType(requestType string) string {
	return requestType + broadcastSuffix
}

// IsBroadcast reports whether the type is a server-pushed mutation
// broadcast (TODO_*_BROADCAST or NOTES_*_BROADCAST).
func IsBroadcast(msgType string) bool {
	return strings.HasSuffix(msgType, broadcastSuffix)
}

// IsLinkNotification reports whether the type is an account-linking
// notification. Link request replies (LINK_*_RESPONSE / LINK_*_ERROR) are
// matched by the correlator before classification reaches this point.
func IsLinkNotification(msgType string) bool {
	return strings.HasPrefix(msgType, linkPrefix)
}

// IsHeartbeatReply reports whether the type answers a PING.
func IsHeartbeatReply(msgType string) bool {
	return msgType == TypePong || msgType == TypePingResponse
}

// Scope identifies which data domains a reload covers.
type Scope string

const (
	ScopeAll   Scope = "all"
	ScopeTodos Scope = "todos"
	ScopeNotes Scope = "notes"
)

// SyncScope maps a *_SYNC_UPDATE type to its reload scope. The second
// return is false for any other type.
func SyncScope(msgType string) (Scope, bool) {
	switch msgType {
	case TypeDataSyncUpdate:
		return ScopeAll, true
	case TypeTodoSyncUpdate:
		return ScopeTodos, true
	case TypeNotesSyncUpdate:
		return ScopeNotes, true
	default:
		return "", false
	}
}

// BroadcastDomain classifies a broadcast type by the entity domain it
// mutates. The second return is false when the type belongs to neither
// domain.
func BroadcastDomain(msgType string) (Scope, bool) {
	switch {
	case strings.HasPrefix(msgType, todoPrefix):
		return ScopeTodos, true
	case strings.HasPrefix(msgType, notesPrefix):
		return ScopeNotes, true
	default:
		return "", false
	}
}

// SyncUpdateType returns the out-of-band sync update type for a scope.
func SyncUpdateType(scope Scope) string {
	switch scope {
	case ScopeTodos:
		return TypeTodoSyncUpdate
	case ScopeNotes:
		return TypeNotesSyncUpdate
	default:
		return TypeDataSyncUpdate
	}
}

// MutationVerb returns the human-readable past-tense verb for a mutation
// type, used in cross-device sync notifications.
func MutationVerb(requestType string) string {
	switch requestType {
	case TypeTodoCreate, TypeNotesCreate:
		return "created"
	case TypeTodoDelete, TypeNotesDelete:
		return "deleted"
	case TypeTodoComplete:
		return "completed"
	case TypeTodoUncomplete:
		return "reopened"
	default:
		return "updated"
	}
}

// IsMutation reports whether a request type represents a data mutation the
// relay should broadcast to the account's other devices.
func IsMutation(requestType string) bool {
	switch requestType {
	case TypeTodoCreate, TypeTodoUpdate, TypeTodoDelete, TypeTodoComplete, TypeTodoUncomplete,
		TypeNotesCreate, TypeNotesUpdate, TypeNotesDelete:
		return true
	default:
		return false
	}
}
