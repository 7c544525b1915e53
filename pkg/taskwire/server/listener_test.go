package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	listener, err := NewListenerConfig().
		WithLogger(zap.NewNop()).
		Build()
	require.NoError(t, err)
	return listener
}

func TestSyncStatusEndpoint(t *testing.T) {
	t.Run("returns the account's data status", func(t *testing.T) {
		listener := newTestListener(t)
		at := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
		listener.Status().BumpTodos("acct-1", at)
		listener.Status().SetLinked("acct-1", true)

		router := httprouter.New()
		listener.Routes(router)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync/status?appUserId=acct-1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var status protocol.DataStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, at.UnixMilli(), status.LastTodoUpdate)
		assert.Zero(t, status.LastNoteUpdate)
		assert.True(t, status.HasLinkedData)
	})

	t.Run("unknown accounts get a zero status", func(t *testing.T) {
		listener := newTestListener(t)
		router := httprouter.New()
		listener.Routes(router)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync/status?appUserId=acct-404", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var status protocol.DataStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Zero(t, status.LastTodoUpdate)
		assert.False(t, status.HasLinkedData)
	})

	t.Run("missing account parameter is rejected", func(t *testing.T) {
		listener := newTestListener(t)
		router := httprouter.New()
		listener.Routes(router)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sync/status", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	listener := newTestListener(t)
	router := httprouter.New()
	listener.Routes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
}

func TestListenerShutdown(t *testing.T) {
	t.Run("shutdown with no connections returns immediately", func(t *testing.T) {
		listener := newTestListener(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, listener.Shutdown(ctx))
		assert.Zero(t, listener.ConnectionCount())
	})

	t.Run("new connections are rejected after shutdown", func(t *testing.T) {
		listener := newTestListener(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, listener.Shutdown(ctx))

		// The upgrade fails against a recorder, which is enough to
		// exercise the rejection path without a real socket.
		rec := httptest.NewRecorder()
		listener.ServeWebsocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Zero(t, listener.ConnectionCount())
	})
}
