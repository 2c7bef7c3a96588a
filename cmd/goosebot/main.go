// Package main is the goose bot entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/garyellow/goose-bot/internal/app"
	"github.com/garyellow/goose-bot/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if errors.Is(err, app.ErrLockHeld) {
		// Another replica holds the lease.
		_, _ = fmt.Fprintf(os.Stderr, "goose-bot standing by: %v\n", err)
		os.Exit(0)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "goose-bot stopped: %v\n", err)
		os.Exit(1)
	}
}
