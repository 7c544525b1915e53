package client

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Conn is the minimal surface of a WebSocket connection the client uses.
// Tests substitute an in-memory implementation; production connections are
// created by WebsocketDialer.
type Conn interface {
	// Read returns the next text frame. It blocks until a frame arrives,
	// the context is cancelled, or the connection closes. A close frame
	// surfaces as an error whose status is recoverable via
	// websocket.CloseStatus.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one text frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection with the given status code.
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a connection to a WebSocket endpoint.
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer is the production Dialer, backed by coder/websocket.
func WebsocketDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *websocketConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *websocketConn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}
