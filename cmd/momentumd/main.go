// Package main is the entry point for the momentum trading daemon.
package main

import (
	"flag"
	"fmt"
	"os"

	"momentum-trade/internal/app"
	"momentum-trade/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := app.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "momentumd: %v\n", err)
		os.Exit(1)
	}
}
