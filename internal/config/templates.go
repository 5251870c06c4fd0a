package config

import (
	"fmt"
	"os"

	"github.com/danmuck/dicerace/internal/server"
	"github.com/danmuck/dicerace/internal/transport"
	"github.com/pelletier/go-toml/v2"
)

// DefaultClientURL is where raceclient dials when nothing else is set.
const DefaultClientURL = "ws://localhost:3001/ws"

func DefaultServerFile() ServerFile {
	return ServerFileFrom(server.DefaultServiceConfig())
}

func DefaultClientFile() ClientFile {
	b := transport.DefaultBackoffConfig()
	return ClientFile{
		URL: DefaultClientURL,
		Backoff: BackoffFile{
			Initial:     b.InitialDelay.String(),
			Multiplier:  b.Multiplier,
			Max:         b.MaxDelay.String(),
			Jitter:      b.Jitter,
			MaxAttempts: b.MaxAttempts,
		},
	}
}

// Template renders the default config for kind.
func Template(kind string) (string, error) {
	var doc any
	switch normalizeKind(kind) {
	case KindServer:
		doc = DefaultServerFile()
	case KindClient:
		doc = DefaultClientFile()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(out), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
