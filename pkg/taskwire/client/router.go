package client

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/protocol"
)

// handleFrame classifies one inbound frame and dispatches it. Parse
// failures are isolated per frame: a malformed message is logged and
// dropped without affecting anything else. Unknown types are logged, not
// rejected, so the protocol stays forward-compatible.
//
// Classification priority, first match wins:
//  1. exact match against a pending request's expected reply type
//  2. mutation broadcasts (`*_BROADCAST`)
//  3. link notifications (`LINK_*`)
//  4. heartbeat replies (PONG / PING_RESPONSE)
//  5. out-of-band sync updates (`*_SYNC_UPDATE`)
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	c.metrics.RecordFrameReceived(ctx)

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.metrics.RecordProtocolError(ctx)
		c.logger.Warn("Dropping unparseable frame",
			zap.Error(err),
			zap.Int("length", len(data)),
		)
		return
	}
	if env.Type == "" {
		c.metrics.RecordProtocolError(ctx)
		c.logger.Warn("Dropping frame without a type")
		return
	}

	if c.resolvePending(&env) {
		return
	}

	switch {
	case protocol.IsBroadcast(env.Type):
		c.dispatchBroadcast(ctx, &env)
	case protocol.IsLinkNotification(env.Type):
		c.dispatchLinkNotification(ctx, &env)
	case protocol.IsHeartbeatReply(env.Type):
		c.handleHeartbeatReply(ctx, &env)
	default:
		if scope, ok := protocol.SyncScope(env.Type); ok {
			c.handleSyncUpdate(ctx, &env, scope)
			return
		}
		c.logger.Info("Unhandled message type", zap.String("type", env.Type))
	}
}

// dispatchBroadcast hands another device's completed mutation to the
// owning collaborator, raw payload and all.
func (c *Client) dispatchBroadcast(ctx context.Context, env *protocol.Envelope) {
	c.metrics.RecordBroadcast(ctx, env.Type)

	domain, ok := protocol.BroadcastDomain(env.Type)
	if !ok {
		c.logger.Warn("Broadcast for unknown entity domain", zap.String("type", env.Type))
		return
	}

	switch domain {
	case protocol.ScopeTodos:
		if c.todos == nil {
			c.logger.Debug("No todo collaborator for broadcast", zap.String("type", env.Type))
			return
		}
		c.todos.OnBroadcast(ctx, env.Type, env.Data)
	case protocol.ScopeNotes:
		if c.notes == nil {
			c.logger.Debug("No notes collaborator for broadcast", zap.String("type", env.Type))
			return
		}
		c.notes.OnBroadcast(ctx, env.Type, env.Data)
	}
}

// dispatchLinkNotification routes LINK_* notifications to the link
// notifier. A missing notifier or an unknown subtype is logged, never
// fatal.
func (c *Client) dispatchLinkNotification(ctx context.Context, env *protocol.Envelope) {
	if c.links == nil {
		c.logger.Info("Link notification with no notifier registered",
			zap.String("type", env.Type),
		)
		return
	}

	switch env.Type {
	case protocol.TypeLinkRequestReceived:
		c.links.OnLinkRequestReceived(ctx, env.Data)
	case protocol.TypeLinkInvitationAccepted:
		c.links.OnInvitationAccepted(ctx, env.Data)
	case protocol.TypeLinkInvitationRejected:
		c.links.OnInvitationRejected(ctx, env.Data)
	case protocol.TypeLinkCancelled:
		c.links.OnLinkCancelled(ctx, env.Data)
	case protocol.TypeLinkEstablished:
		c.links.OnLinkEstablished(ctx, env.Data)
	case protocol.TypeLinkSyncUpdate:
		c.links.OnLinkSyncUpdate(ctx, env.Data)
	default:
		c.logger.Info("Unhandled link notification", zap.String("type", env.Type))
	}
}

// handleHeartbeatReply feeds the heartbeat's piggybacked DataStatus to
// the change detector and reloads whatever went stale.
func (c *Client) handleHeartbeatReply(ctx context.Context, env *protocol.Envelope) {
	if env.DataStatus == nil {
		return
	}

	for _, scope := range c.detector.Observe(*env.DataStatus) {
		c.logger.Debug("Heartbeat change detected", zap.String("scope", string(scope)))
		c.reloader.Reload(ctx, scope)
	}
}

// handleSyncUpdate reloads the scope named by an out-of-band sync update
// and, when the frame identifies its origin user, tells the user about it.
func (c *Client) handleSyncUpdate(ctx context.Context, env *protocol.Envelope, scope protocol.Scope) {
	c.reloader.Reload(ctx, scope)

	if env.Sync == nil || env.Sync.FromUser == "" {
		return
	}
	if c.ui == nil {
		c.logger.Debug("Sync update from user with no UI notifier",
			zap.String("from_user", env.Sync.FromUser),
		)
		return
	}
	c.ui.ShowSyncMessage(syncMessage(env, scope))
}

// syncMessage renders a user-visible description of a remote mutation:
// who did what to which kind of data.
func syncMessage(env *protocol.Envelope, scope protocol.Scope) string {
	actor := env.Sync.FromName
	if actor == "" {
		actor = env.Sync.FromUser
	}

	operation := env.Operation
	if operation == "" {
		operation = "updated"
	}

	kind := "data"
	switch scope {
	case protocol.ScopeTodos:
		kind = "todos"
	case protocol.ScopeNotes:
		kind = "notes"
	}

	return fmt.Sprintf("%s %s %s on another device", actor, operation, kind)
}
