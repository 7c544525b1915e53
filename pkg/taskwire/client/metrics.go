package client

import (
	"context"

	"github.com/tidelock/taskwire/pkg/taskwire"
)

// ClientMetrics holds the metric instruments for the sync client. A nil
// *ClientMetrics is valid and records nothing, so callers never have to
// guard instrumentation sites.
type ClientMetrics struct {
	// Connection lifecycle
	connects          taskwire.Counter // successful socket opens
	disconnects       taskwire.Counter // socket losses, normal and abnormal
	reconnectAttempts taskwire.Counter // scheduled reconnection attempts
	fallbacks         taskwire.Counter // times reconnection was exhausted
	connected         taskwire.Gauge   // 1 while connected, 0 otherwise

	// Frames
	framesReceived taskwire.Counter // inbound frames, before classification
	framesSent     taskwire.Counter // outbound frames actually written
	protocolErrors taskwire.Counter // unparseable inbound frames

	// Protocol activity
	heartbeatsSent  taskwire.Counter // PING frames sent
	requestTimeouts taskwire.Counter // requests that expired unanswered
	broadcasts      taskwire.Counter // mutation broadcasts received
	reloads         taskwire.Counter // reloads dispatched, labeled by scope
}

// NewClientMetrics creates the client metric set from a provider, or nil
// when no provider is configured.
func NewClientMetrics(provider taskwire.MetricsProvider) *ClientMetrics {
	if provider == nil {
		return nil
	}

	return &ClientMetrics{
		connects:          provider.Counter("sync_client_connects_total"),
		disconnects:       provider.Counter("sync_client_disconnects_total"),
		reconnectAttempts: provider.Counter("sync_client_reconnect_attempts_total"),
		fallbacks:         provider.Counter("sync_client_polling_fallbacks_total"),
		connected:         provider.Gauge("sync_client_connected"),

		framesReceived: provider.Counter("sync_client_frames_received_total"),
		framesSent:     provider.Counter("sync_client_frames_sent_total"),
		protocolErrors: provider.Counter("sync_client_protocol_errors_total"),

		heartbeatsSent:  provider.Counter("sync_client_heartbeats_sent_total"),
		requestTimeouts: provider.Counter("sync_client_request_timeouts_total"),
		broadcasts:      provider.Counter("sync_client_broadcasts_received_total"),
		reloads:         provider.Counter("sync_client_reloads_total"),
	}
}

func (m *ClientMetrics) RecordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.connects.Add(ctx, 1)
	m.connected.Set(ctx, 1)
}

func (m *ClientMetrics) RecordDisconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.disconnects.Add(ctx, 1)
	m.connected.Set(ctx, 0)
}

func (m *ClientMetrics) RecordReconnectAttempt(ctx context.Context, attempt int) {
	if m == nil {
		return
	}
	m.reconnectAttempts.Add(ctx, 1)
}

func (m *ClientMetrics) RecordFallback(ctx context.Context) {
	if m == nil {
		return
	}
	m.fallbacks.Add(ctx, 1)
}

func (m *ClientMetrics) RecordFrameReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1)
}

func (m *ClientMetrics) RecordFrameSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1)
}

func (m *ClientMetrics) RecordProtocolError(ctx context.Context) {
	if m == nil {
		return
	}
	m.protocolErrors.Add(ctx, 1)
}

func (m *ClientMetrics) RecordHeartbeat(ctx context.Context) {
	if m == nil {
		return
	}
	m.heartbeatsSent.Add(ctx, 1)
}

func (m *ClientMetrics) RecordRequestTimeout(ctx context.Context, requestType string) {
	if m == nil {
		return
	}
	m.requestTimeouts.Add(ctx, 1, taskwire.Label{Key: "type", Value: requestType})
}

func (m *ClientMetrics) RecordBroadcast(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.broadcasts.Add(ctx, 1, taskwire.Label{Key: "type", Value: msgType})
}

func (m *ClientMetrics) RecordReload(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.reloads.Add(ctx, 1, taskwire.Label{Key: "scope", Value: scope})
}
