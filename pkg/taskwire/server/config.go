package server

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tidelock/taskwire/pkg/taskwire"
)

const (
	// DefaultQueueSize is the per-connection outbound message buffer.
	DefaultQueueSize = 256

	// DefaultReadTimeout bounds how long a connection may stay silent.
	// Clients heartbeat every 30 seconds, so anything past this is dead.
	DefaultReadTimeout = 90 * time.Second

	// DefaultWriteTimeout bounds each write so slow clients are detected
	// quickly.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultFrameRate is the sustained inbound frames-per-second budget
	// per connection.
	DefaultFrameRate = 20

	// DefaultFrameBurst is the per-connection inbound burst allowance.
	DefaultFrameBurst = 40
)

// ListenerConfig holds the configuration for creating a relay Listener.
// Use NewListenerConfig() and the fluent methods, then Build().
type ListenerConfig struct {
	logger          *zap.Logger
	queueSize       int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	frameRate       rate.Limit
	frameBurst      int
	metricsProvider taskwire.MetricsProvider
}

// NewListenerConfig creates a relay listener configuration with defaults.
//
// Example:
//
//	listener, err := server.NewListenerConfig().
//	    WithLogger(logger).
//	    WithQueueSize(512).
//	    WithFrameRate(50, 100).
//	    Build()
func NewListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		queueSize:    DefaultQueueSize,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		frameRate:    DefaultFrameRate,
		frameBurst:   DefaultFrameBurst,
	}
}

// WithLogger sets the logger for the listener and its connections.
func (c *ListenerConfig) WithLogger(logger *zap.Logger) *ListenerConfig {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithQueueSize sets the per-connection outbound buffer size.
func (c *ListenerConfig) WithQueueSize(size int) *ListenerConfig {
	if size > 0 {
		c.queueSize = size
	}
	return c
}

// WithReadTimeout sets the inbound silence bound per connection.
func (c *ListenerConfig) WithReadTimeout(timeout time.Duration) *ListenerConfig {
	if timeout > 0 {
		c.readTimeout = timeout
	}
	return c
}

// WithWriteTimeout sets the per-write deadline.
func (c *ListenerConfig) WithWriteTimeout(timeout time.Duration) *ListenerConfig {
	if timeout > 0 {
		c.writeTimeout = timeout
	}
	return c
}

// WithFrameRate sets the per-connection inbound rate limit: frames per
// second sustained, and burst allowance.
func (c *ListenerConfig) WithFrameRate(perSecond float64, burst int) *ListenerConfig {
	if perSecond > 0 {
		c.frameRate = rate.Limit(perSecond)
	}
	if burst > 0 {
		c.frameBurst = burst
	}
	return c
}

// WithMetrics sets the metrics provider for server instrumentation.
func (c *ListenerConfig) WithMetrics(provider taskwire.MetricsProvider) *ListenerConfig {
	c.metricsProvider = provider
	return c
}

// IsValid checks that all required configuration is present.
func (c *ListenerConfig) IsValid() error {
	if c.logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// Build creates the relay Listener from the configuration.
func (c *ListenerConfig) Build() (*Listener, error) {
	if err := c.IsValid(); err != nil {
		return nil, err
	}
	return newListener(c), nil
}
