// Command govgateway is the LLM governance gateway.
//
// It reads configuration from environment variables (or a config.yaml in
// the working directory) and starts the chat-completions proxy described
// in §6: authentication, admission control, routing and fallback across
// OpenAI/DeepSeek/HuggingFace, and per-request cost accounting.
//
// Quick-start:
//
//	OPENAI_API_KEY=sk-... DATABASE_URL=clickhouse://localhost:9000/default SECRET_KEY=... ./govgateway
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulpointcorp/govgateway/internal/app"
	"github.com/nulpointcorp/govgateway/internal/config"
)

// version is overridden at build time via -ldflags="-X main.version=x.y.z".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := buildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// No external tenant store is wired in the open build: given a nil
	// store, app.New builds an empty auth.MemoryStore, so no bearer token
	// authenticates until an auth.Store holding tenants is passed here
	// instead.
	a, err := app.New(ctx, cfg, nil, logger, version)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildLogger constructs a JSON slog.Logger for the given level string.
// Unknown level strings default to INFO.
func buildLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}))
}
