package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "flower-pos/internal/adapters/web"
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

	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "flower-pos",
		Environment: cfg.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing ledger events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer publisher.Close()

	m := metrics.New("flower_pos")
	inventory := core.NewInventoryService(backend, logger)
	ledger := core.NewLedger(backend, inventory, logger)
	payments := core.NewPaymentService(backend, logger)
	svc := app.NewAppService(ledger, payments, inventory, m, publisher, logger)

	handler := webAdapter.NewHandler(svc, m, logger, webAdapter.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		RequestBodyLimit: cfg.RequestBodyLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
