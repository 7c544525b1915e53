package client

import (
	"errors"
	"fmt"
)

// Error definitions for the sync client.
var (
	// ErrNotConnected is returned by Request when the socket is not in the
	// connected state. The network is never touched in that case.
	ErrNotConnected = errors.New("client is not connected")

	// ErrRequestTimeout is returned by Request when no matching response or
	// error frame arrives within the request timeout.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrClientClosed is returned once Close has been called. A closed
	// client never reconnects.
	ErrClientClosed = errors.New("client is closed")

	// ErrWriteQueueFull is returned when the outbound queue cannot accept
	// another frame without blocking.
	ErrWriteQueueFull = errors.New("write queue is full")
)

// ServerRejectionError is returned by Request when the server answers with
// a `<TYPE>_ERROR` frame instead of a response.
type ServerRejectionError struct {
	Type    string // the error frame's type tag
	Message string // the server-supplied error message
}

func (e *ServerRejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (%s)", e.Type)
	}
	return fmt.Sprintf("server rejected request (%s): %s", e.Type, e.Message)
}
