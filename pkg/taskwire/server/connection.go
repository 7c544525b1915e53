package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// maxFrameSize bounds inbound frames; todo and note payloads are small.
const maxFrameSize = 32 * 1024

// Connection handles one device session: it reads request frames,
// answers them, and receives fan-out frames from the Hub. All writes are
// serialized through a single sender goroutine.
type Connection struct {
	id       string
	ctx      context.Context
	conn     *websocket.Conn
	logger   *zap.Logger
	config   *ListenerConfig
	registry *Registry
	hub      *Hub
	status   *StatusTracker
	metrics  *ServerMetrics
	limiter  *rate.Limiter

	outbound chan []byte
	done     chan struct{}

	cleanupOnce sync.Once

	// Identity learned from the registration frame.
	mu      sync.Mutex
	device  string
	user    string
	appUser string
}

func newConnection(ctx context.Context, conn *websocket.Conn, l *Listener) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:       id,
		ctx:      ctx,
		conn:     conn,
		logger:   l.logger.With(zap.String("conn_id", id[:8])),
		config:   l.config,
		registry: l.registry,
		hub:      l.hub,
		status:   l.status,
		metrics:  l.metrics,
		limiter:  rate.NewLimiter(l.config.frameRate, l.config.frameBurst),
		outbound: make(chan []byte, l.config.queueSize),
		done:     make(chan struct{}),
	}
}

// Start runs the session. It blocks until the connection closes, running
// the reader in the calling goroutine and the sender in its own.
func (c *Connection) Start() {
	go c.messageSender()
	c.messageReader()
	c.cleanup()
}

func (c *Connection) messageSender() {
	for {
		select {
		case frame, ok := <-c.outbound:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, c.config.writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.logger.Debug("Failed to write frame, stopping sender", zap.Error(err))
				return
			}
			c.metrics.RecordMessageSent(c.ctx)

		case <-c.done:
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) messageReader() {
	c.conn.SetReadLimit(maxFrameSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, cancel := context.WithTimeout(c.ctx, c.config.readTimeout)
		_, data, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.logger.Debug("Connection closed by client", zap.Int("close_status", int(status)))
			} else {
				c.logger.Debug("Read failed", zap.Error(err))
			}
			return
		}

		if len(data) == 0 {
			continue
		}

		if !c.limiter.Allow() {
			c.metrics.RecordRateLimited(c.ctx)
			c.logger.Warn("Dropping frame, rate limit exceeded",
				zap.String("device_id", c.deviceID()),
			)
			continue
		}

		c.metrics.RecordMessageReceived(c.ctx)

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("Failed to parse frame",
				zap.Error(err),
				zap.Int("length", len(data)),
			)
			continue
		}

		c.handleFrame(&env)
	}
}

// handleFrame answers one request frame.
func (c *Connection) handleFrame(env *protocol.Envelope) {
	switch {
	case env.Type == protocol.TypeUserRegistration:
		c.handleRegistration(env)

	case env.Type == protocol.TypePing:
		c.handlePing(env)

	case protocol.IsMutation(env.Type):
		c.handleMutation(env)

	case env.Type == protocol.TypeLinkCheckStatus:
		c.handleLinkCheckStatus(env)

	default:
		c.logger.Info("Unsupported request type", zap.String("type", env.Type))
		c.sendEnvelope(&protocol.Envelope{
			Type:  protocol.ErrorType(env.Type),
			Error: "unsupported request type",
		})
	}
}

func (c *Connection) handleRegistration(env *protocol.Envelope) {
	if env.DeviceID == "" || env.AppUserID == "" {
		c.logger.Warn("Rejecting registration without identity",
			zap.Bool("have_device_id", env.DeviceID != ""),
			zap.Bool("have_app_user_id", env.AppUserID != ""),
		)
		return
	}

	c.mu.Lock()
	c.device = env.DeviceID
	c.user = env.UserID
	c.appUser = env.AppUserID
	c.mu.Unlock()

	now := time.Now()
	c.registry.Register(env.DeviceID, env.UserID, env.AppUserID, c.id, now)
	c.hub.Join(env.AppUserID, c)
	c.metrics.RecordRegistration(c.ctx)
}

func (c *Connection) handlePing(env *protocol.Envelope) {
	deviceID := env.DeviceID
	if deviceID == "" {
		deviceID = c.deviceID()
	}
	c.registry.Touch(deviceID, time.Now())

	account := env.AppUserID
	if account == "" {
		account = c.account()
	}
	dataStatus := c.status.Snapshot(account)

	c.sendEnvelope(&protocol.Envelope{
		Type:       protocol.TypePong,
		DataStatus: &dataStatus,
		Timestamp:  time.Now().UnixMilli(),
	})
}

// handleMutation acknowledges a mutation and fans it out to the
// account's other sessions. The relay is last-write-wins: whatever
// arrives is echoed and broadcast in arrival order, no merging.
func (c *Connection) handleMutation(env *protocol.Envelope) {
	account := env.AppUserID
	if account == "" {
		account = c.account()
	}
	if account == "" {
		c.sendEnvelope(&protocol.Envelope{
			Type:  protocol.ErrorType(env.Type),
			Error: "mutation before registration",
		})
		return
	}

	data, err := ensureEntityID(env.Data)
	if err != nil {
		c.sendEnvelope(&protocol.Envelope{
			Type:  protocol.ErrorType(env.Type),
			Error: "invalid mutation payload",
		})
		return
	}

	now := time.Now()
	domain, _ := protocol.BroadcastDomain(env.Type)
	switch domain {
	case protocol.ScopeTodos:
		c.status.BumpTodos(account, now)
	case protocol.ScopeNotes:
		c.status.BumpNotes(account, now)
	}

	c.sendEnvelope(&protocol.Envelope{
		Type:      protocol.ResponseType(env.Type),
		Data:      data,
		Timestamp: now.UnixMilli(),
	})

	broadcast := &protocol.Envelope{
		Type:      protocol.BroadcastType(env.Type),
		Data:      data,
		Sync:      &protocol.SyncInfo{FromUser: env.UserID},
		Timestamp: now.UnixMilli(),
	}
	n := c.hub.Broadcast(account, env.DeviceID, broadcast)
	c.metrics.RecordBroadcast(c.ctx, env.Type, n)

	syncType := protocol.SyncUpdateType(domain)
	c.hub.Broadcast(account, env.DeviceID, &protocol.Envelope{
		Type:      syncType,
		Sync:      &protocol.SyncInfo{FromUser: env.UserID},
		Operation: protocol.MutationVerb(env.Type),
		Timestamp: now.UnixMilli(),
	})
}

func (c *Connection) handleLinkCheckStatus(env *protocol.Envelope) {
	account := env.AppUserID
	if account == "" {
		account = c.account()
	}
	snapshot := c.status.Snapshot(account)

	data, err := json.Marshal(map[string]bool{"linked": snapshot.HasLinkedData})
	if err != nil {
		c.logger.Error("Failed to marshal link status", zap.Error(err))
		return
	}
	c.sendEnvelope(&protocol.Envelope{
		Type: protocol.ResponseType(env.Type),
		Data: data,
	})
}

// sendEnvelope queues one frame for the sender goroutine. Frames are
// dropped with a warning when the client cannot keep up.
func (c *Connection) sendEnvelope(env *protocol.Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}
	c.enqueue(frame)
}

func (c *Connection) enqueue(frame []byte) {
	select {
	case c.outbound <- frame:
	default:
		c.metrics.RecordDropped(c.ctx)
		c.logger.Warn("Outbound queue full, dropping frame",
			zap.String("device_id", c.deviceID()),
		)
	}
}

func (c *Connection) cleanup() {
	c.cleanupOnce.Do(func() {
		close(c.done)
		c.hub.Leave(c)
		if device := c.deviceID(); device != "" {
			c.registry.Remove(device, c.id)
		}
		if err := c.conn.Close(websocket.StatusNormalClosure, "connection closed"); err != nil {
			c.logger.Debug("Close error (may be expected)", zap.Error(err))
		}
	})
}

// shutdownClose closes the socket with a specific code during server
// shutdown; the reader exits with an error and cleanup runs normally.
func (c *Connection) shutdownClose(code websocket.StatusCode, reason string) {
	if err := c.conn.Close(code, reason); err != nil {
		c.logger.Debug("Error closing during shutdown", zap.Error(err))
	}
}

func (c *Connection) deviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *Connection) account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appUser
}

func (c *Connection) setAccount(appUserID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appUser = appUserID
}

// ensureEntityID guarantees the mutation payload carries an id, minting
// one for fresh entities.
func ensureEntityID(data json.RawMessage) (json.RawMessage, error) {
	if len(data) == 0 {
		return json.Marshal(map[string]any{"id": uuid.NewString()})
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if _, ok := payload["id"]; !ok {
		payload["id"] = uuid.NewString()
		return json.Marshal(payload)
	}
	return data, nil
}
