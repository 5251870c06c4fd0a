package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dicerace/internal/game"
	"github.com/danmuck/dicerace/internal/transport"
)

var (
	ErrInvalidAddr          = errors.New("server: invalid listen addr")
	ErrInvalidShutdownGrace = errors.New("server: invalid shutdown grace")
)

// ServiceConfig configures one race server process.
type ServiceConfig struct {
	Name          string
	Addr          string
	CORSOrigins   []string
	AdminToken    string
	Rules         game.Rules
	Transport     transport.Config
	IntentQueue   int
	ShutdownGrace time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:          "dicerace",
		Addr:          ":3001",
		CORSOrigins:   []string{"*"},
		Rules:         game.DefaultRules(),
		Transport:     transport.DefaultConfig(),
		IntentQueue:   256,
		ShutdownGrace: 5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultServiceConfig. Rules are left
// alone since false is a meaningful setting.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	d := DefaultServiceConfig()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = d.Name
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = d.Addr
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = d.CORSOrigins
	}
	c.Transport = c.Transport.WithDefaults()
	if c.IntentQueue <= 0 {
		c.IntentQueue = d.IntentQueue
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = d.ShutdownGrace
	}
	return c
}

func (c ServiceConfig) Validate() error {
	if !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidAddr, c.Addr)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidShutdownGrace, c.ShutdownGrace)
	}
	return nil
}

// allowAllOrigins reports whether origins contains the wildcard.
func allowAllOrigins(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
