package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireFormat(t *testing.T) {
	t.Run("field names match the wire protocol", func(t *testing.T) {
		env := Envelope{
			Type:      TypeTodoCreate,
			DeviceID:  "device-1",
			UserID:    "alice",
			AppUserID: "acct-1",
			Data:      json.RawMessage(`{"title":"Buy milk"}`),
			Timestamp: 1700000000000,
		}

		raw, err := json.Marshal(env)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(raw, &fields))

		assert.Equal(t, "TODO_CREATE", fields["type"])
		assert.Equal(t, "device-1", fields["deviceId"])
		assert.Equal(t, "alice", fields["userId"])
		assert.Equal(t, "acct-1", fields["appUserId"])
		assert.Contains(t, fields, "data")
		assert.NotContains(t, fields, "error")
		assert.NotContains(t, fields, "sync")
		assert.NotContains(t, fields, "dataStatus")
	})

	t.Run("unknown fields are ignored on decode", func(t *testing.T) {
		raw := []byte(`{"type":"PONG","futureField":true,"dataStatus":{"lastTodoUpdate":5,"lastNoteUpdate":0,"hasLinkedData":true}}`)

		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))

		assert.Equal(t, TypePong, env.Type)
		require.NotNil(t, env.DataStatus)
		assert.Equal(t, int64(5), env.DataStatus.LastTodoUpdate)
		assert.True(t, env.DataStatus.HasLinkedData)
	})
}

func TestReplyTypeDerivation(t *testing.T) {
	assert.Equal(t, "TODO_CREATE_RESPONSE", ResponseType(TypeTodoCreate))
	assert.Equal(t, "TODO_CREATE_ERROR", ErrorType(TypeTodoCreate))
	assert.Equal(t, "TODO_CREATE_BROADCAST", BroadcastType(TypeTodoCreate))
	assert.Equal(t, "LINK_CHECK_STATUS_RESPONSE", ResponseType(TypeLinkCheckStatus))
}

func TestMessageClassification(t *testing.T) {
	t.Run("broadcasts", func(t *testing.T) {
		assert.True(t, IsBroadcast("TODO_UPDATE_BROADCAST"))
		assert.True(t, IsBroadcast("NOTES_CREATE_BROADCAST"))
		assert.False(t, IsBroadcast("TODO_UPDATE_RESPONSE"))
		assert.False(t, IsBroadcast(TypePong))
	})

	t.Run("link notifications", func(t *testing.T) {
		assert.True(t, IsLinkNotification(TypeLinkRequestReceived))
		assert.True(t, IsLinkNotification(TypeLinkEstablished))
		assert.False(t, IsLinkNotification(TypeTodoCreate))
	})

	t.Run("heartbeat replies", func(t *testing.T) {
		assert.True(t, IsHeartbeatReply(TypePong))
		assert.True(t, IsHeartbeatReply(TypePingResponse))
		assert.False(t, IsHeartbeatReply(TypePing))
	})

	t.Run("sync update scopes", func(t *testing.T) {
		scope, ok := SyncScope(TypeDataSyncUpdate)
		assert.True(t, ok)
		assert.Equal(t, ScopeAll, scope)

		scope, ok = SyncScope(TypeTodoSyncUpdate)
		assert.True(t, ok)
		assert.Equal(t, ScopeTodos, scope)

		scope, ok = SyncScope(TypeNotesSyncUpdate)
		assert.True(t, ok)
		assert.Equal(t, ScopeNotes, scope)

		_, ok = SyncScope(TypePong)
		assert.False(t, ok)
	})

	t.Run("broadcast domains", func(t *testing.T) {
		domain, ok := BroadcastDomain("TODO_DELETE_BROADCAST")
		assert.True(t, ok)
		assert.Equal(t, ScopeTodos, domain)

		domain, ok = BroadcastDomain("NOTES_UPDATE_BROADCAST")
		assert.True(t, ok)
		assert.Equal(t, ScopeNotes, domain)

		_, ok = BroadcastDomain("LINK_ESTABLISHED")
		assert.False(t, ok)
	})

	t.Run("mutations", func(t *testing.T) {
		assert.True(t, IsMutation(TypeTodoCreate))
		assert.True(t, IsMutation(TypeTodoComplete))
		assert.True(t, IsMutation(TypeNotesDelete))
		assert.False(t, IsMutation(TypeTodoGetToday))
		assert.False(t, IsMutation(TypeNotesGetByUser))
		assert.False(t, IsMutation(TypeLinkSendInvitation))
	})

	t.Run("sync update types", func(t *testing.T) {
		assert.Equal(t, TypeTodoSyncUpdate, SyncUpdateType(ScopeTodos))
		assert.Equal(t, TypeNotesSyncUpdate, SyncUpdateType(ScopeNotes))
		assert.Equal(t, TypeDataSyncUpdate, SyncUpdateType(ScopeAll))
	})

	t.Run("mutation verbs", func(t *testing.T) {
		assert.Equal(t, "created", MutationVerb(TypeNotesCreate))
		assert.Equal(t, "deleted", MutationVerb(TypeTodoDelete))
		assert.Equal(t, "completed", MutationVerb(TypeTodoComplete))
		assert.Equal(t, "updated", MutationVerb(TypeTodoUpdate))
	})
}
