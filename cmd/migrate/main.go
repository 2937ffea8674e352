// migrate applies pending PostgreSQL migrations from the embedded migrations directory.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"log"
	"time"

	"flower-pos/internal/config"
	"flower-pos/internal/db"
	"flower-pos/internal/logging"
	"flower-pos/migrations"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "flower-pos-migrate",
		Environment: cfg.Environment,
	})

	connCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := db.NewPool(connCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool, migrations.FS, logger); err != nil {
		log.Fatalf("[MIGRATE] %v", err)
	}
	logger.Info("all migrations processed")
}
