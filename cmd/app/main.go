// app is the operator console: a one-shot command when arguments are given, otherwise the
// interactive till.
//
// Usage:
//
//	go run ./cmd/app stock
//	go run ./cmd/app sale < cart.json
//	go run ./cmd/app
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"flower-pos/internal/adapters/cli"
	"flower-pos/internal/adapters/repl"
	"flower-pos/internal/app"
	"flower-pos/internal/config"
	"flower-pos/internal/core"
	"flower-pos/internal/events"
	"flower-pos/internal/logging"
	"flower-pos/internal/metrics"
	"flower-pos/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Console output belongs to the operator; service logs go to stderr.
	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "flower-pos-console",
		Environment: cfg.Environment,
		Output:      os.Stderr,
	})

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Unable to open store: %v", err)
	}
	defer backend.Close()

	inventory := core.NewInventoryService(backend, logger)
	svc := app.NewAppService(
		core.NewLedger(backend, inventory, logger),
		core.NewPaymentService(backend, logger),
		inventory,
		metrics.New("flower_pos_console"),
		events.NopPublisher{},
		logger,
	)

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, os.Args[1:], os.Stdin, os.Stdout); err != nil {
			if !errors.Is(err, cli.ErrUsage) {
				le := core.AsLedgerError(err)
				fmt.Fprintf(os.Stderr, "%s: %s\n", le.Code, le.Message)
			}
			backend.Close()
			os.Exit(1)
		}
		return
	}

	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout)
}
