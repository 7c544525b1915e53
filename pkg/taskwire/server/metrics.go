package server

import (
	"context"

	"github.com/tidelock/taskwire/pkg/taskwire"
)

// ServerMetrics holds the metric instruments for the relay. A nil
// *ServerMetrics is valid and records nothing.
type ServerMetrics struct {
	// Connections
	connectionsOpened taskwire.Counter // accepted WebSocket sessions
	connectionsClosed taskwire.Counter // finished WebSocket sessions
	activeConnections taskwire.Gauge   // sessions currently running
	registrations     taskwire.Counter // USER_REGISTRATION frames accepted

	// Traffic
	messagesReceived taskwire.Counter // inbound frames after rate limiting
	messagesSent     taskwire.Counter // outbound frames actually written
	rateLimited      taskwire.Counter // inbound frames dropped by the limiter
	droppedFrames    taskwire.Counter // outbound frames dropped, queue full

	// Protocol activity
	broadcasts  taskwire.Counter // fanned-out mutation broadcasts
	statusPolls taskwire.Counter // HTTP sync-status fallback requests
}

// NewServerMetrics creates the relay metric set from a provider, or nil
// when no provider is configured.
func NewServerMetrics(provider taskwire.MetricsProvider) *ServerMetrics {
	if provider == nil {
		return nil
	}

	return &ServerMetrics{
		connectionsOpened: provider.Counter("sync_server_connections_opened_total"),
		connectionsClosed: provider.Counter("sync_server_connections_closed_total"),
		activeConnections: provider.Gauge("sync_server_active_connections"),
		registrations:     provider.Counter("sync_server_registrations_total"),

		messagesReceived: provider.Counter("sync_server_messages_received_total"),
		messagesSent:     provider.Counter("sync_server_messages_sent_total"),
		rateLimited:      provider.Counter("sync_server_rate_limited_total"),
		droppedFrames:    provider.Counter("sync_server_dropped_frames_total"),

		broadcasts:  provider.Counter("sync_server_broadcasts_total"),
		statusPolls: provider.Counter("sync_server_status_polls_total"),
	}
}

func (m *ServerMetrics) RecordConnectionOpened(ctx context.Context, active int) {
	if m == nil {
		return
	}
	m.connectionsOpened.Add(ctx, 1)
	m.activeConnections.Set(ctx, float64(active))
}

func (m *ServerMetrics) RecordConnectionClosed(ctx context.Context, active int) {
	if m == nil {
		return
	}
	m.connectionsClosed.Add(ctx, 1)
	m.activeConnections.Set(ctx, float64(active))
}

func (m *ServerMetrics) RecordRegistration(ctx context.Context) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1)
}

func (m *ServerMetrics) RecordMessageReceived(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(ctx, 1)
}

func (m *ServerMetrics) RecordMessageSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1)
}

func (m *ServerMetrics) RecordRateLimited(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1)
}

func (m *ServerMetrics) RecordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.droppedFrames.Add(ctx, 1)
}

func (m *ServerMetrics) RecordBroadcast(ctx context.Context, messageType string, recipients int) {
	if m == nil {
		return
	}
	m.broadcasts.Add(ctx, int64(recipients), taskwire.Label{Key: "type", Value: messageType})
}

func (m *ServerMetrics) RecordStatusPoll(ctx context.Context) {
	if m == nil {
		return
	}
	m.statusPolls.Add(ctx, 1)
}
