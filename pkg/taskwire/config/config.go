// Package config loads relay server configuration from HCL files.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// ServerConfig is the on-disk relay configuration. Durations are written
// as Go duration strings and parsed after decode.
//
// Example:
//
//	listen_addr = ":8080"
//
//	sweep_interval   = "1m"
//	registration_ttl = "5m"
//	shutdown_timeout = "10s"
//
//	limits {
//	  queue_size  = 256
//	  frame_rate  = 20
//	  frame_burst = 40
//	}
type ServerConfig struct {
	ListenAddr string `hcl:"listen_addr,optional"`

	SweepInterval   string `hcl:"sweep_interval,optional"`
	RegistrationTTL string `hcl:"registration_ttl,optional"`
	ShutdownTimeout string `hcl:"shutdown_timeout,optional"`

	Limits *LimitsConfig `hcl:"limits,block"`

	sweepEvery     time.Duration
	keepRegistered time.Duration
	drainFor       time.Duration
}

// LimitsConfig bounds per-connection resource usage.
type LimitsConfig struct {
	QueueSize  int     `hcl:"queue_size,optional"`
	FrameRate  float64 `hcl:"frame_rate,optional"`
	FrameBurst int     `hcl:"frame_burst,optional"`
}

// SweepEvery is how often stale device registrations are swept.
func (c *ServerConfig) SweepEvery() time.Duration { return c.sweepEvery }

// KeepRegistered is how long a silent device stays registered.
func (c *ServerConfig) KeepRegistered() time.Duration { return c.keepRegistered }

// DrainFor bounds graceful shutdown.
func (c *ServerConfig) DrainFor() time.Duration { return c.drainFor }

// Default returns the configuration used when no file is given.
func Default() *ServerConfig {
	return &ServerConfig{
		ListenAddr:     ":8080",
		sweepEvery:     time.Minute,
		keepRegistered: 5 * time.Minute,
		drainFor:       10 * time.Second,
	}
}

// Load reads and validates a server configuration file. HCL decode
// errors and bad duration strings are reported with the field name.
func Load(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// finish fills defaults and parses the duration fields.
func (c *ServerConfig) finish() error {
	defaults := Default()

	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}

	var err error
	if c.sweepEvery, err = parseDuration("sweep_interval", c.SweepInterval, defaults.sweepEvery); err != nil {
		return err
	}
	if c.keepRegistered, err = parseDuration("registration_ttl", c.RegistrationTTL, defaults.keepRegistered); err != nil {
		return err
	}
	if c.drainFor, err = parseDuration("shutdown_timeout", c.ShutdownTimeout, defaults.drainFor); err != nil {
		return err
	}

	if c.Limits != nil {
		if c.Limits.QueueSize < 0 {
			return fmt.Errorf("limits.queue_size must not be negative")
		}
		if c.Limits.FrameRate < 0 {
			return fmt.Errorf("limits.frame_rate must not be negative")
		}
	}
	return nil
}

func parseDuration(name, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
