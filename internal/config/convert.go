package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dicerace/internal/game"
	"github.com/danmuck/dicerace/internal/server"
	"github.com/danmuck/dicerace/internal/transport"
)

// ServerFileFrom renders cfg in file form.
func ServerFileFrom(cfg server.ServiceConfig) ServerFile {
	return ServerFile{
		Name:          cfg.Name,
		Addr:          cfg.Addr,
		CorsOrigins:   append([]string(nil), cfg.CORSOrigins...),
		AdminToken:    cfg.AdminToken,
		ShutdownGrace: cfg.ShutdownGrace.String(),
		Rules: RulesFile{
			TrustClientDice:      cfg.Rules.TrustClientDice,
			LockFinishedSessions: cfg.Rules.LockFinishedSessions,
		},
		Transport: TransportFile{
			ReadLimitBytes: cfg.Transport.ReadLimit,
			WriteTimeout:   cfg.Transport.WriteTimeout.String(),
			PongWait:       cfg.Transport.PongWait.String(),
			PingInterval:   cfg.Transport.PingInterval.String(),
			OutboxSize:     cfg.Transport.OutboxSize,
		},
		Coordinator: CoordinatorFile{IntentQueue: cfg.IntentQueue},
	}
}

// ServiceConfig converts f, treating empty fields as defaults.
func (f ServerFile) ServiceConfig() (server.ServiceConfig, error) {
	cfg := server.DefaultServiceConfig()
	if v := strings.TrimSpace(f.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(f.Addr); v != "" {
		cfg.Addr = v
	}
	if len(f.CorsOrigins) > 0 {
		cfg.CORSOrigins = NormalizeList(f.CorsOrigins)
	}
	cfg.AdminToken = strings.TrimSpace(f.AdminToken)
	cfg.Rules = game.Rules{
		TrustClientDice:      f.Rules.TrustClientDice,
		LockFinishedSessions: f.Rules.LockFinishedSessions,
	}

	var err error
	if cfg.ShutdownGrace, err = durationOr("shutdown_grace", f.ShutdownGrace, cfg.ShutdownGrace); err != nil {
		return server.ServiceConfig{}, err
	}
	t := &cfg.Transport
	if f.Transport.ReadLimitBytes > 0 {
		t.ReadLimit = f.Transport.ReadLimitBytes
	}
	if t.WriteTimeout, err = durationOr("transport.write_timeout", f.Transport.WriteTimeout, t.WriteTimeout); err != nil {
		return server.ServiceConfig{}, err
	}
	if t.PongWait, err = durationOr("transport.pong_wait", f.Transport.PongWait, t.PongWait); err != nil {
		return server.ServiceConfig{}, err
	}
	if t.PingInterval, err = durationOr("transport.ping_interval", f.Transport.PingInterval, t.PingInterval); err != nil {
		return server.ServiceConfig{}, err
	}
	if f.Transport.OutboxSize > 0 {
		t.OutboxSize = f.Transport.OutboxSize
	}
	if f.Coordinator.IntentQueue > 0 {
		cfg.IntentQueue = f.Coordinator.IntentQueue
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return server.ServiceConfig{}, err
	}
	return cfg, nil
}

// BackoffConfig converts b, treating empty fields as defaults.
func (b BackoffFile) BackoffConfig() (transport.BackoffConfig, error) {
	cfg := transport.DefaultBackoffConfig()
	var err error
	if cfg.InitialDelay, err = durationOr("backoff.initial", b.Initial, cfg.InitialDelay); err != nil {
		return transport.BackoffConfig{}, err
	}
	if cfg.MaxDelay, err = durationOr("backoff.max", b.Max, cfg.MaxDelay); err != nil {
		return transport.BackoffConfig{}, err
	}
	if b.Multiplier != 0 {
		if b.Multiplier < 1 {
			return transport.BackoffConfig{}, fmt.Errorf("backoff.multiplier must be >= 1, got %v", b.Multiplier)
		}
		cfg.Multiplier = b.Multiplier
	}
	if b.MaxAttempts < 0 {
		return transport.BackoffConfig{}, fmt.Errorf("backoff.max_attempts must be >= 0, got %d", b.MaxAttempts)
	}
	if b.MaxAttempts > 0 {
		cfg.MaxAttempts = b.MaxAttempts
	}
	cfg.Jitter = b.Jitter
	return cfg, nil
}

// NormalizeList trims entries and drops blanks.
func NormalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func durationOr(key, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative: %s", key, raw)
	}
	return d, nil
}
