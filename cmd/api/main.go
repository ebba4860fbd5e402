package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shoreline/internal/api"
	"shoreline/internal/backend"
	"shoreline/internal/config"
	"shoreline/internal/logger"
	"shoreline/internal/tracing"
	"shoreline/internal/validation"
)

func main() {
	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		logger.Init("info", "text")
		if err := validation.RunValidation(context.Background()); err != nil {
			logger.Fatal("Validation failed", "error", err)
		}
		return
	}

	// Загружаем конфигурацию
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

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

	server := api.NewServer(cfg, b)
	if err := server.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	// Закрываем соединения
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		slog.Error("Error flushing traces", "error", err)
	}
	if err := b.Close(); err != nil {
		slog.Error("Error during cleanup", "error", err)
	}

	slog.Info("Server stopped")
}
