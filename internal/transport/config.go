package transport

import "time"

// BackoffConfig defines dial retry behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

// Config defines per-connection limits and keepalive timing.
type Config struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	OutboxSize   int
	Backoff      BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:    4096,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 54 * time.Second,
		OutboxSize:   64,
		Backoff:      DefaultBackoffConfig(),
	}
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
		MaxAttempts:  8,
	}
}

// WithDefaults fills zero fields. A ping interval that would not beat the
// pong deadline is pulled back to nine tenths of it.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
