// Package client implements the taskwire sync client: a single WebSocket
// connection that registers the device, correlates typed requests with
// their replies, dispatches server-pushed broadcasts and notifications to
// collaborator managers, and drives heartbeat-based change detection.
//
// The client owns no data. Everything it learns from the socket is handed
// to the injected collaborators, which re-fetch through their own
// transport. When the socket cannot be re-established the client signals
// the fallback notifier and the application degrades to HTTP polling.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire"
	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Client is the sync client. Create one with NewClient().Build() and keep
// it for the life of the session; it is safe for concurrent use.
type Client struct {
	// Configuration
	url                  string
	logger               *zap.Logger
	identity             taskwire.IdentityProvider
	todos                taskwire.TodoCollaborator
	notes                taskwire.NotesCollaborator
	links                taskwire.LinkNotifier
	fallback             taskwire.FallbackNotifier
	ui                   taskwire.UiNotifier
	clock                Clock
	dialer               Dialer
	heartbeatInterval    time.Duration
	requestTimeout       time.Duration
	reconnectBaseDelay   time.Duration
	maxReconnectAttempts int
	writeQueueSize       int
	metrics              *ClientMetrics

	detector *ChangeDetector
	reloader *ReloadDispatcher

	// Connection state. The generation counter fences stale read/write
	// loops after a reconnect: a loop belonging to an old connection can
	// no longer touch shared state.
	mu                sync.Mutex
	state             State
	conn              Conn
	generation        uint64
	reconnectAttempts int
	writeCh           chan []byte
	loopCancel        context.CancelFunc
	reconnectTimer    Timer
	reconnectCancel   chan struct{}

	closed       chan struct{}
	closeOnce    sync.Once
	fallbackOnce sync.Once

	// Pending request registry, keyed by expected reply type.
	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns the consecutive reconnection attempt count.
// It resets to zero on every successful connect.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts
}

// Connect opens the socket and starts the read, write and heartbeat
// loops. It is a no-op when already connected. On success a registration
// frame is sent when the identity is complete.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateClosed:
		c.mu.Unlock()
		return ErrClientClosed
	case StateConnecting:
		c.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	c.state = StateConnecting
	c.cancelReconnectLocked()
	c.mu.Unlock()

	if err := c.dialAndStart(ctx); err != nil {
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// dialAndStart opens the socket, transitions to connected and launches
// the connection goroutines.
func (c *Client) dialAndStart(ctx context.Context) error {
	conn, err := c.dialer(ctx, c.url)
	if err != nil {
		return fmt.Errorf("failed to open sync socket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "client closed")
		return ErrClientClosed
	}
	c.generation++
	gen := c.generation
	c.conn = conn
	c.state = StateConnected
	c.reconnectAttempts = 0
	c.writeCh = make(chan []byte, c.writeQueueSize)
	writeCh := c.writeCh
	c.loopCancel = cancel
	c.mu.Unlock()

	c.metrics.RecordConnect(loopCtx)
	c.logger.Info("Sync socket connected", zap.String("url", c.url))

	go c.writeLoop(loopCtx, gen, conn, writeCh)
	go c.readLoop(loopCtx, gen, conn)
	go c.heartbeatLoop(loopCtx)

	c.sendRegistration()
	return nil
}

// sendRegistration announces the device to the server. Registration is
// fire-and-forget; no response is awaited. It is skipped with a warning
// when the identity is incomplete, since the server cannot route
// broadcasts for an anonymous socket.
func (c *Client) sendRegistration() {
	deviceID := c.identity.DeviceID()
	appUserID := c.identity.AppUserID()
	if deviceID == "" || appUserID == "" {
		c.logger.Warn("Skipping device registration, identity incomplete",
			zap.Bool("have_device_id", deviceID != ""),
			zap.Bool("have_app_user_id", appUserID != ""),
		)
		return
	}

	if err := c.send(c.newEnvelope(protocol.TypeUserRegistration)); err != nil {
		c.logger.Warn("Failed to send device registration", zap.Error(err))
	}
}

// Close shuts the client down permanently: heartbeat cancelled, pending
// requests failed with ErrClientClosed, socket closed with a normal
// closure code. A closed client never reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	wasConnected := c.state == StateConnected
	c.state = StateClosed
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.closed) })
	c.failPending(ErrClientClosed)

	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "client closed"); err != nil {
			c.logger.Debug("Error closing sync socket", zap.Error(err))
		}
	}
	if wasConnected {
		c.metrics.RecordDisconnect(context.Background())
	}

	c.logger.Info("Sync client closed")
	return nil
}

// newEnvelope builds an outbound envelope with identity fields read at
// send time, so identity changes landing before transmission are honored.
func (c *Client) newEnvelope(msgType string) *protocol.Envelope {
	return &protocol.Envelope{
		Type:      msgType,
		DeviceID:  c.identity.DeviceID(),
		UserID:    c.identity.CurrentUserID(),
		AppUserID: c.identity.AppUserID(),
		Timestamp: c.clock.Now().UnixMilli(),
	}
}

// readLoop processes inbound frames in strict arrival order.
func (c *Client) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.handleConnectionLoss(gen, err)
			}
			return
		}
		c.handleFrame(ctx, data)
	}
}

// writeLoop serializes all socket writes through one goroutine.
func (c *Client) writeLoop(ctx context.Context, gen uint64, conn Conn, writeCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-writeCh:
			if err := conn.Write(ctx, data); err != nil {
				if ctx.Err() == nil {
					c.logger.Error("Failed to write to sync socket", zap.Error(err))
					c.handleConnectionLoss(gen, err)
				}
				return
			}
			c.metrics.RecordFrameSent(ctx)
		}
	}
}

// heartbeatLoop sends a PING at the configured interval for as long as
// the connection lives. The loop context is cancelled on any disconnect,
// so heartbeat never runs while disconnected.
func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := c.send(c.newEnvelope(protocol.TypePing)); err != nil {
				c.logger.Warn("Failed to send heartbeat", zap.Error(err))
				continue
			}
			c.metrics.RecordHeartbeat(ctx)
		}
	}
}

// handleConnectionLoss transitions out of the connected state after a
// read or write failure and decides whether to reconnect. A normal
// closure (1000) means the far end shut down deliberately; anything else
// schedules a reconnect while attempts remain.
func (c *Client) handleConnectionLoss(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.generation || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	c.conn = nil
	c.state = StateDisconnected

	closeStatus := websocket.CloseStatus(err)
	c.logger.Warn("Sync socket lost",
		zap.Int("close_status", int(closeStatus)),
		zap.Error(err),
	)

	if closeStatus != websocket.StatusNormalClosure {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.metrics.RecordDisconnect(context.Background())
}

// scheduleReconnectLocked arms the next reconnection attempt, or signals
// the polling fallback once attempts are exhausted. Backoff is linear and
// uncapped within the attempt budget: attempt N waits N times the base
// delay. Caller must hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectAttempts >= c.maxReconnectAttempts {
		c.logger.Warn("Reconnect attempts exhausted, switching to polling fallback",
			zap.Int("attempts", c.reconnectAttempts),
		)
		go c.notifyFallback()
		return
	}

	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	delay := time.Duration(attempt) * c.reconnectBaseDelay
	c.state = StateReconnecting

	timer := c.clock.NewTimer(delay)
	cancel := make(chan struct{})
	c.reconnectTimer = timer
	c.reconnectCancel = cancel

	c.logger.Info("Scheduling reconnect",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
	c.metrics.RecordReconnectAttempt(context.Background(), attempt)

	go c.awaitReconnect(timer, cancel)
}

// cancelReconnectLocked stops a pending backoff timer and releases the
// goroutine parked on it. Caller must hold c.mu.
func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.reconnectCancel != nil {
		close(c.reconnectCancel)
		c.reconnectCancel = nil
	}
}

// awaitReconnect waits for the backoff timer, then redials. A failed
// redial schedules the next attempt. The wait ends early when the
// attempt is superseded by Connect or Close.
func (c *Client) awaitReconnect(timer Timer, cancel <-chan struct{}) {
	select {
	case <-timer.C():
	case <-cancel:
		return
	case <-c.closed:
		return
	}

	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.reconnectTimer = nil
	c.reconnectCancel = nil
	c.mu.Unlock()

	if err := c.dialAndStart(context.Background()); err != nil {
		c.logger.Warn("Reconnect attempt failed", zap.Error(err))
		c.mu.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
	}
}

// notifyFallback invokes the fallback hook exactly once for the life of
// the client. Exhausted reconnection is reported this way rather than as
// an error because no caller is waiting on it.
func (c *Client) notifyFallback() {
	c.fallbackOnce.Do(func() {
		c.metrics.RecordFallback(context.Background())
		if c.fallback == nil {
			c.logger.Warn("Reconnect exhausted but no fallback notifier configured")
			return
		}
		c.fallback.SwitchToPolling()
	})
}

// send marshals and enqueues one outbound envelope.
func (c *Client) send(env *protocol.Envelope) error {
	frame, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// enqueue hands a frame to the write loop without blocking.
func (c *Client) enqueue(frame []byte) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	writeCh := c.writeCh
	c.mu.Unlock()

	select {
	case writeCh <- frame:
		return nil
	default:
		return ErrWriteQueueFull
	}
}
