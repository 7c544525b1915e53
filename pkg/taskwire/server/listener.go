package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Listener accepts WebSocket connections from devices and relays their
// mutations to every other session on the same account. It also serves
// an HTTP status endpoint for clients that have fallen back to polling.
type Listener struct {
	logger   *zap.Logger
	config   *ListenerConfig
	registry *Registry
	hub      *Hub
	status   *StatusTracker
	metrics  *ServerMetrics

	// Connection tracking for graceful shutdown
	connections  map[*Connection]struct{}
	connMutex    sync.RWMutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// newListener creates the relay listener from a validated configuration.
// Use NewListenerConfig().Build() instead of calling this directly.
func newListener(config *ListenerConfig) *Listener {
	return &Listener{
		logger:      config.logger,
		config:      config,
		registry:    NewRegistry(config.logger),
		hub:         NewHub(config.logger),
		status:      NewStatusTracker(),
		metrics:     NewServerMetrics(config.metricsProvider),
		connections: make(map[*Connection]struct{}),
		shutdown:    make(chan struct{}),
	}
}

// Registry exposes the device registry, for periodic sweeping.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// Status exposes the per-account change tracker. Out-of-band writers
// (link establishment, imports) use it to mark accounts dirty.
func (l *Listener) Status() *StatusTracker {
	return l.status
}

// Routes mounts the listener's endpoints on the given router.
func (l *Listener) Routes(router *httprouter.Router) {
	router.HandlerFunc(http.MethodGet, "/ws", l.ServeWebsocket)
	router.HandlerFunc(http.MethodGet, "/healthz", l.serveHealth)
	router.HandlerFunc(http.MethodGet, "/v1/sync/status", l.serveSyncStatus)
}

// ServeWebsocket upgrades the HTTP request and runs the device session.
// It blocks until the connection closes.
func (l *Listener) ServeWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		l.logger.Error("Failed to accept WebSocket connection",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	select {
	case <-l.shutdown:
		l.logger.Debug("Rejecting new connection due to shutdown")
		conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	default:
	}

	connection := newConnection(r.Context(), conn, l)

	l.connMutex.Lock()
	l.connections[connection] = struct{}{}
	connCount := len(l.connections)
	l.connMutex.Unlock()

	l.metrics.RecordConnectionOpened(r.Context(), connCount)
	l.logger.Debug("WebSocket connection established",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("active_connections", connCount),
	)

	connection.Start()

	l.connMutex.Lock()
	delete(l.connections, connection)
	connCount = len(l.connections)
	l.connMutex.Unlock()

	l.metrics.RecordConnectionClosed(r.Context(), connCount)
	l.logger.Debug("WebSocket connection closed",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("active_connections", connCount),
	)
}

func (l *Listener) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"connections": l.ConnectionCount(),
	})
}

// serveSyncStatus is the polling fallback: clients that could not keep
// a WebSocket open fetch the same DataStatus a PONG would carry.
func (l *Listener) serveSyncStatus(w http.ResponseWriter, r *http.Request) {
	appUserID := r.URL.Query().Get("appUserId")
	if appUserID == "" {
		http.Error(w, "appUserId query parameter is required", http.StatusBadRequest)
		return
	}

	snapshot := l.status.Snapshot(appUserID)
	l.metrics.RecordStatusPoll(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		l.logger.Warn("Failed to write sync status response", zap.Error(err))
	}
}

// Shutdown stops accepting connections, closes the active ones with
// StatusGoingAway, and waits for them to finish or the context to end.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		l.logger.Info("Starting graceful shutdown")
		close(l.shutdown)

		l.connMutex.RLock()
		connections := make([]*Connection, 0, len(l.connections))
		for conn := range l.connections {
			connections = append(connections, conn)
		}
		l.connMutex.RUnlock()

		if len(connections) == 0 {
			l.logger.Info("No active connections to close")
			return
		}

		l.logger.Info("Closing active connections",
			zap.Int("connection_count", len(connections)),
		)
		for _, conn := range connections {
			go conn.shutdownClose(websocket.StatusGoingAway, "server shutting down")
		}
	})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.connMutex.RLock()
			remaining := len(l.connections)
			l.connMutex.RUnlock()
			if remaining > 0 {
				l.logger.Warn("Shutdown deadline reached with active connections",
					zap.Int("remaining_connections", remaining),
				)
			}
			return ctx.Err()

		case <-ticker.C:
			l.connMutex.RLock()
			remaining := len(l.connections)
			l.connMutex.RUnlock()
			if remaining == 0 {
				l.logger.Info("All connections closed")
				return nil
			}
		}
	}
}

// ConnectionCount returns the number of active WebSocket sessions.
func (l *Listener) ConnectionCount() int {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()
	return len(l.connections)
}
