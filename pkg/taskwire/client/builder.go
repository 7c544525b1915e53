package client

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire"
)

const (
	// DefaultHeartbeatInterval is how often a PING frame is sent while
	// connected.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultRequestTimeout is how long a request waits for its matching
	// response or error frame before failing with ErrRequestTimeout.
	DefaultRequestTimeout = 60 * time.Second

	// DefaultReconnectBaseDelay is the unit of the linear reconnection
	// backoff: attempt N is scheduled after N times this delay.
	DefaultReconnectBaseDelay = 1 * time.Second

	// DefaultMaxReconnectAttempts is how many consecutive reconnection
	// attempts are made before the client gives up and signals the
	// polling fallback.
	DefaultMaxReconnectAttempts = 5

	// DefaultWriteQueueSize is the buffer size of the outbound frame queue.
	DefaultWriteQueueSize = 64
)

// ClientBuilder provides a fluent interface for building sync clients.
type ClientBuilder struct {
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
	metricsProvider      taskwire.MetricsProvider
}

// NewClient creates a new sync client builder with production defaults.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		logger:               zap.NewNop(),
		clock:                SystemClock(),
		dialer:               WebsocketDialer,
		heartbeatInterval:    DefaultHeartbeatInterval,
		requestTimeout:       DefaultRequestTimeout,
		reconnectBaseDelay:   DefaultReconnectBaseDelay,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		writeQueueSize:       DefaultWriteQueueSize,
	}
}

// WithURL sets the WebSocket URL to connect to.
func (b *ClientBuilder) WithURL(url string) *ClientBuilder {
	b.url = url
	return b
}

// WithPageLocation derives the endpoint URL from the hosting page's host
// and security, per the deployment rules in Endpoint.
func (b *ClientBuilder) WithPageLocation(host string, secure bool) *ClientBuilder {
	b.url = Endpoint(host, secure)
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithIdentity sets the identity provider whose fields are stamped onto
// every outbound message. Required.
func (b *ClientBuilder) WithIdentity(identity taskwire.IdentityProvider) *ClientBuilder {
	b.identity = identity
	return b
}

// WithTodoCollaborator sets the external todo manager that receives
// broadcasts and reload requests.
func (b *ClientBuilder) WithTodoCollaborator(todos taskwire.TodoCollaborator) *ClientBuilder {
	b.todos = todos
	return b
}

// WithNotesCollaborator sets the external notes manager that receives
// broadcasts and reload requests.
func (b *ClientBuilder) WithNotesCollaborator(notes taskwire.NotesCollaborator) *ClientBuilder {
	b.notes = notes
	return b
}

// WithLinkNotifier sets the handler for account-linking notifications.
func (b *ClientBuilder) WithLinkNotifier(links taskwire.LinkNotifier) *ClientBuilder {
	b.links = links
	return b
}

// WithFallbackNotifier sets the hook invoked once when reconnection is
// exhausted and the application should switch to HTTP polling.
func (b *ClientBuilder) WithFallbackNotifier(fallback taskwire.FallbackNotifier) *ClientBuilder {
	b.fallback = fallback
	return b
}

// WithUiNotifier sets the sink for user-visible sync messages.
func (b *ClientBuilder) WithUiNotifier(ui taskwire.UiNotifier) *ClientBuilder {
	b.ui = ui
	return b
}

// WithClock sets the time source. Tests inject a clocktest.FakeClock to
// drive heartbeats, timeouts and backoff deterministically.
func (b *ClientBuilder) WithClock(clock Clock) *ClientBuilder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// WithDialer sets the transport dialer. Tests inject an in-memory dialer.
func (b *ClientBuilder) WithDialer(dialer Dialer) *ClientBuilder {
	if dialer != nil {
		b.dialer = dialer
	}
	return b
}

// WithHeartbeatInterval sets the PING interval.
func (b *ClientBuilder) WithHeartbeatInterval(interval time.Duration) *ClientBuilder {
	if interval > 0 {
		b.heartbeatInterval = interval
	}
	return b
}

// WithRequestTimeout sets how long requests wait for a reply.
func (b *ClientBuilder) WithRequestTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.requestTimeout = timeout
	}
	return b
}

// WithReconnect sets the linear backoff base delay and the maximum number
// of consecutive reconnection attempts.
func (b *ClientBuilder) WithReconnect(baseDelay time.Duration, maxAttempts int) *ClientBuilder {
	if baseDelay > 0 {
		b.reconnectBaseDelay = baseDelay
	}
	if maxAttempts > 0 {
		b.maxReconnectAttempts = maxAttempts
	}
	return b
}

// WithWriteQueueSize sets the buffer size for the outbound frame queue.
func (b *ClientBuilder) WithWriteQueueSize(size int) *ClientBuilder {
	if size > 0 {
		b.writeQueueSize = size
	}
	return b
}

// WithMetrics sets the metrics provider for client instrumentation.
func (b *ClientBuilder) WithMetrics(provider taskwire.MetricsProvider) *ClientBuilder {
	b.metricsProvider = provider
	return b
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}
	if b.identity == nil {
		return fmt.Errorf("identity provider is required")
	}
	return nil
}

// Build creates and returns a new sync client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	metrics := NewClientMetrics(b.metricsProvider)
	c := &Client{
		url:                  b.url,
		logger:               b.logger,
		identity:             b.identity,
		todos:                b.todos,
		notes:                b.notes,
		links:                b.links,
		fallback:             b.fallback,
		ui:                   b.ui,
		clock:                b.clock,
		dialer:               b.dialer,
		heartbeatInterval:    b.heartbeatInterval,
		requestTimeout:       b.requestTimeout,
		reconnectBaseDelay:   b.reconnectBaseDelay,
		maxReconnectAttempts: b.maxReconnectAttempts,
		writeQueueSize:       b.writeQueueSize,
		metrics:              metrics,
		detector:             NewChangeDetector(),
		closed:               make(chan struct{}),
		pending:              make(map[string]*pendingRequest),
	}
	c.reloader = NewReloadDispatcher(b.todos, b.notes, b.identity, b.clock, b.logger, metrics)
	return c, nil
}
