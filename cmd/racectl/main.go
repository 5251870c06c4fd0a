package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/dicerace/internal/logging"
	"github.com/danmuck/dicerace/internal/observability"
	"github.com/danmuck/dicerace/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to racectl TOML config (defaults used when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("racectl")

	cfg, err := loadServiceConfig(*configPath, os.Environ())
	if err != nil {
		fmt.Fprintf(os.Stderr, "racectl: %v\n", err)
		os.Exit(1)
	}

	svc := server.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "racectl: %v\n", err)
		os.Exit(1)
	}
}
