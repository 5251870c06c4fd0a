package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var ErrUnknownKind = errors.New("config: unknown kind")

// Kinds understood by Template and Validate.
const (
	KindServer = "server"
	KindClient = "client"
)

// ServerFile is the on-disk shape of a race server config. Durations are Go
// duration strings ("10s", "250ms").
type ServerFile struct {
	Name          string          `toml:"name"`
	Addr          string          `toml:"addr"`
	CorsOrigins   []string        `toml:"cors_origins"`
	AdminToken    string          `toml:"admin_token"`
	ShutdownGrace string          `toml:"shutdown_grace"`
	Rules         RulesFile       `toml:"rules"`
	Transport     TransportFile   `toml:"transport"`
	Coordinator   CoordinatorFile `toml:"coordinator"`
}

type RulesFile struct {
	TrustClientDice      bool `toml:"trust_client_dice"`
	LockFinishedSessions bool `toml:"lock_finished_sessions"`
}

type TransportFile struct {
	ReadLimitBytes int64  `toml:"read_limit_bytes"`
	WriteTimeout   string `toml:"write_timeout"`
	PongWait       string `toml:"pong_wait"`
	PingInterval   string `toml:"ping_interval"`
	OutboxSize     int    `toml:"outbox_size"`
}

type CoordinatorFile struct {
	IntentQueue int `toml:"intent_queue"`
}

// ClientFile is the on-disk shape of a terminal client config.
type ClientFile struct {
	URL     string      `toml:"url"`
	Backoff BackoffFile `toml:"backoff"`
}

type BackoffFile struct {
	Initial     string  `toml:"initial"`
	Multiplier  float64 `toml:"multiplier"`
	Max         string  `toml:"max"`
	Jitter      bool    `toml:"jitter"`
	MaxAttempts int     `toml:"max_attempts"`
}

// LoadServerFile strictly decodes path over DefaultServerFile; unknown keys
// are an error and absent keys keep their defaults.
func LoadServerFile(path string) (ServerFile, error) {
	f := DefaultServerFile()
	if err := loadStrict(path, &f); err != nil {
		return ServerFile{}, err
	}
	if _, err := f.ServiceConfig(); err != nil {
		return ServerFile{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return f, nil
}

func LoadClientFile(path string) (ClientFile, error) {
	f := DefaultClientFile()
	if err := loadStrict(path, &f); err != nil {
		return ClientFile{}, err
	}
	if _, err := f.Backoff.BackoffConfig(); err != nil {
		return ClientFile{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	if strings.TrimSpace(f.URL) == "" {
		return ClientFile{}, fmt.Errorf("config invalid (%s): url is required", path)
	}
	return f, nil
}

// Validate loads path as kind and reports the first problem.
func Validate(path, kind string) error {
	switch normalizeKind(kind) {
	case KindServer:
		_, err := LoadServerFile(path)
		return err
	case KindClient:
		_, err := LoadClientFile(path)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}

func loadStrict(path string, out any) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer fh.Close()

	dec := toml.NewDecoder(fh)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
