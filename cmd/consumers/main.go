package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"shoreline/internal/backend"
	"shoreline/internal/config"
	"shoreline/internal/consumers"
	"shoreline/internal/logger"
	"shoreline/internal/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.NATS.ClientID = "shoreline-consumers"
	cfg.Tracing.ServiceName = "shoreline-consumers"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracing", "error", err)
	}

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open backends", "error", err)
	}

	consumerService := consumers.NewConsumerService(b)
	if err := consumerService.Start(ctx); err != nil {
		b.Close()
		logger.Fatal("Failed to start consumers", "error", err)
	}

	slog.Info("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	slog.Info("Shutting down consumers service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("Error flushing traces", "error", err)
	}

	slog.Info("Consumers service stopped")
}
