package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/dicerace/internal/config"
	"github.com/danmuck/dicerace/internal/logging"
	"github.com/danmuck/dicerace/internal/transport"
)

func main() {
	addr := flag.String("addr", "", "server websocket url (overrides config url)")
	configPath := flag.String("config", "", "path to raceclient TOML config")
	flag.Parse()

	logging.ConfigureRuntime()

	url, backoff, err := loadClientConfig(*configPath, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raceclient: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := NewApp(os.Stdin, os.Stdout, url, backoff)
	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "raceclient: %v\n", err)
		os.Exit(1)
	}
}

// loadClientConfig overlays the optional file on client defaults; addr wins
// over the file's url.
func loadClientConfig(path, addr string) (string, transport.BackoffConfig, error) {
	file := config.DefaultClientFile()
	if strings.TrimSpace(path) != "" {
		meta, err := toml.DecodeFile(path, &file)
		if err != nil {
			return "", transport.BackoffConfig{}, fmt.Errorf("load raceclient config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return "", transport.BackoffConfig{}, fmt.Errorf("load raceclient config: unknown key %q", undecoded[0].String())
		}
	}
	backoff, err := file.Backoff.BackoffConfig()
	if err != nil {
		return "", transport.BackoffConfig{}, err
	}
	url := strings.TrimSpace(file.URL)
	if v := strings.TrimSpace(addr); v != "" {
		url = v
	}
	if url == "" {
		return "", transport.BackoffConfig{}, fmt.Errorf("no server url configured")
	}
	return url, backoff, nil
}
