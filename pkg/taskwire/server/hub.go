package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// Hub fans frames out to the sessions of an account. The device that
// caused a mutation is excluded from its own broadcast; it already has
// the result from its response frame.
type Hub struct {
	mu       sync.Mutex
	accounts map[string]map[*Connection]struct{}
	logger   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		accounts: make(map[string]map[*Connection]struct{}),
		logger:   logger,
	}
}

// Join adds a connection to its account's session set. A connection that
// re-registers under a different account is moved.
func (h *Hub) Join(appUserID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := conn.account(); prev != "" && prev != appUserID {
		h.leaveLocked(prev, conn)
	}

	set, ok := h.accounts[appUserID]
	if !ok {
		set = make(map[*Connection]struct{})
		h.accounts[appUserID] = set
	}
	set[conn] = struct{}{}
	conn.setAccount(appUserID)
}

// Leave removes a connection from its account's session set.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn.account(), conn)
}

func (h *Hub) leaveLocked(appUserID string, conn *Connection) {
	set, ok := h.accounts[appUserID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.accounts, appUserID)
	}
}

// Broadcast delivers an envelope to every session of the account except
// the origin device. Returns the number of sessions it was queued for.
func (h *Hub) Broadcast(appUserID, originDeviceID string, env *protocol.Envelope) int {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast", zap.Error(err))
		return 0
	}

	h.mu.Lock()
	targets := make([]*Connection, 0, len(h.accounts[appUserID]))
	for conn := range h.accounts[appUserID] {
		if conn.deviceID() == originDeviceID {
			continue
		}
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	for _, conn := range targets {
		conn.enqueue(frame)
	}

	h.logger.Debug("Broadcast dispatched",
		zap.String("type", env.Type),
		zap.String("app_user_id", appUserID),
		zap.Int("sessions", len(targets)),
	)
	return len(targets)
}

// Sessions returns the number of live sessions for an account.
func (h *Hub) Sessions(appUserID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.accounts[appUserID])
}
