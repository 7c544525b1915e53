package client

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// pendingRequest is one in-flight request awaiting its reply. It is
// registered under both its expected response type and its expected error
// type; whichever frame arrives first wins and both registrations are
// removed.
type pendingRequest struct {
	requestType string
	ch          chan requestResult
	timer       Timer
}

type requestResult struct {
	env *protocol.Envelope
	err error
}

// Request sends a typed request and blocks until the matching
// `<TYPE>_RESPONSE` or `<TYPE>_ERROR` frame arrives, the request timeout
// fires, or the context is cancelled. It fails immediately with
// ErrNotConnected when the socket is down, without touching the network.
//
// Only one in-flight request per exact type string is supported: a second
// call of the same type silently replaces the first registration, and the
// stranded caller resolves through its own timeout. This mirrors the
// historical protocol behavior; see DESIGN.md for the correlation-id
// alternative that was considered.
func (c *Client) Request(ctx context.Context, requestType string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.mu.Unlock()

	env := c.newEnvelope(requestType)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request data: %w", err)
		}
		env.Data = data
	}
	frame, err := marshalEnvelope(env)
	if err != nil {
		return nil, err
	}

	pr := &pendingRequest{
		requestType: requestType,
		ch:          make(chan requestResult, 1),
		timer:       c.clock.NewTimer(c.requestTimeout),
	}
	c.registerPending(pr)

	if err := c.enqueue(frame); err != nil {
		c.unregisterPending(pr)
		pr.timer.Stop()
		return nil, err
	}

	select {
	case res := <-pr.ch:
		pr.timer.Stop()
		if res.err != nil {
			return nil, res.err
		}
		return res.env.Data, nil

	case <-pr.timer.C():
		c.unregisterPending(pr)
		c.metrics.RecordRequestTimeout(ctx, requestType)
		c.logger.Warn("Request timed out", zap.String("type", requestType))
		return nil, ErrRequestTimeout

	case <-ctx.Done():
		c.unregisterPending(pr)
		pr.timer.Stop()
		return nil, ctx.Err()
	}
}

// registerPending indexes the request under both expected reply types.
func (c *Client) registerPending(pr *pendingRequest) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending[protocol.ResponseType(pr.requestType)] = pr
	c.pending[protocol.ErrorType(pr.requestType)] = pr
}

// unregisterPending removes the request's registrations, but only while
// they still point at this request: a same-type successor must not be
// evicted by its predecessor's timeout.
func (c *Client) unregisterPending(pr *pendingRequest) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	respKey := protocol.ResponseType(pr.requestType)
	errKey := protocol.ErrorType(pr.requestType)
	if c.pending[respKey] == pr {
		delete(c.pending, respKey)
	}
	if c.pending[errKey] == pr {
		delete(c.pending, errKey)
	}
}

// resolvePending delivers an inbound frame to the request registered for
// its type, if any. Returns true when the frame was consumed.
func (c *Client) resolvePending(env *protocol.Envelope) bool {
	c.pendingMu.Lock()
	pr, ok := c.pending[env.Type]
	if ok {
		delete(c.pending, protocol.ResponseType(pr.requestType))
		delete(c.pending, protocol.ErrorType(pr.requestType))
	}
	c.pendingMu.Unlock()

	if !ok {
		return false
	}

	res := requestResult{env: env}
	if env.Type == protocol.ErrorType(pr.requestType) {
		res = requestResult{err: &ServerRejectionError{Type: env.Type, Message: env.Error}}
	}

	select {
	case pr.ch <- res:
	default:
	}
	return true
}

// failPending resolves every in-flight request with err and clears the
// registry. Used by the explicit close path.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	delivered := make(map[*pendingRequest]struct{}, len(c.pending))
	for key, pr := range c.pending {
		delete(c.pending, key)
		if _, done := delivered[pr]; done {
			continue
		}
		delivered[pr] = struct{}{}
		pr.timer.Stop()
		select {
		case pr.ch <- requestResult{err: err}:
		default:
		}
	}
	c.pendingMu.Unlock()
}

func marshalEnvelope(env *protocol.Envelope) ([]byte, error) {
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return frame, nil
}
