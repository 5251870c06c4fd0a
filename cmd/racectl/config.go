package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/dicerace/internal/config"
	"github.com/danmuck/dicerace/internal/server"
)

// envConfig holds process environment overrides. PORT matches the usual
// platform convention and loses to DICERACE_ADDR when both are set.
type envConfig struct {
	Port            string   `env:"PORT"`
	Addr            string   `env:"DICERACE_ADDR"`
	CORSOrigins     []string `env:"DICERACE_CORS_ORIGINS" envSeparator:","`
	TrustClientDice string   `env:"DICERACE_TRUST_CLIENT_DICE"`
	AdminToken      string   `env:"DICERACE_ADMIN_TOKEN"`
}

// racectl loader: defaults, then keys present in the TOML file, then env.
func loadServiceConfig(path string, environ []string) (server.ServiceConfig, error) {
	cfg := server.DefaultServiceConfig()

	if strings.TrimSpace(path) != "" {
		var err error
		if cfg, err = overlayFile(cfg, path); err != nil {
			return server.ServiceConfig{}, err
		}
	}

	cfg, err := overlayEnv(cfg, environ)
	if err != nil {
		return server.ServiceConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return server.ServiceConfig{}, err
	}
	return cfg, nil
}

func overlayFile(cfg server.ServiceConfig, path string) (server.ServiceConfig, error) {
	var raw config.ServerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.ServiceConfig{}, fmt.Errorf("load racectl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return server.ServiceConfig{}, fmt.Errorf("load racectl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = config.NormalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("shutdown_grace") {
		if cfg.ShutdownGrace, err = parseDuration("shutdown_grace", raw.ShutdownGrace); err != nil {
			return server.ServiceConfig{}, err
		}
	}

	if meta.IsDefined("rules", "trust_client_dice") {
		cfg.Rules.TrustClientDice = raw.Rules.TrustClientDice
	}
	if meta.IsDefined("rules", "lock_finished_sessions") {
		cfg.Rules.LockFinishedSessions = raw.Rules.LockFinishedSessions
	}

	if meta.IsDefined("transport", "read_limit_bytes") {
		cfg.Transport.ReadLimit = raw.Transport.ReadLimitBytes
	}
	if meta.IsDefined("transport", "write_timeout") {
		if cfg.Transport.WriteTimeout, err = parseDuration("transport.write_timeout", raw.Transport.WriteTimeout); err != nil {
			return server.ServiceConfig{}, err
		}
	}
	if meta.IsDefined("transport", "pong_wait") {
		if cfg.Transport.PongWait, err = parseDuration("transport.pong_wait", raw.Transport.PongWait); err != nil {
			return server.ServiceConfig{}, err
		}
	}
	if meta.IsDefined("transport", "ping_interval") {
		if cfg.Transport.PingInterval, err = parseDuration("transport.ping_interval", raw.Transport.PingInterval); err != nil {
			return server.ServiceConfig{}, err
		}
	}
	if meta.IsDefined("transport", "outbox_size") {
		cfg.Transport.OutboxSize = raw.Transport.OutboxSize
	}

	if meta.IsDefined("coordinator", "intent_queue") {
		cfg.IntentQueue = raw.Coordinator.IntentQueue
	}
	return cfg, nil
}

func overlayEnv(cfg server.ServiceConfig, environ []string) (server.ServiceConfig, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, env.Options{Environment: envMap(environ)}); err != nil {
		return server.ServiceConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if port := strings.TrimSpace(raw.Port); port != "" {
		cfg.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if addr := strings.TrimSpace(raw.Addr); addr != "" {
		cfg.Addr = addr
	}
	if origins := config.NormalizeList(raw.CORSOrigins); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if token := strings.TrimSpace(raw.AdminToken); token != "" {
		cfg.AdminToken = token
	}
	if v := strings.TrimSpace(raw.TrustClientDice); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return server.ServiceConfig{}, fmt.Errorf("parse DICERACE_TRUST_CLIENT_DICE: %w", err)
		}
		cfg.Rules.TrustClientDice = trust
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
