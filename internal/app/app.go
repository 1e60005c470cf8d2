// Package app wires up every subsystem and owns the application lifecycle
// (C10). Startup order: initInfra (ClickHouse, optional Redis) ->
// initProviders (OpenAI/DeepSeek/HuggingFace adapters) -> initServices
// (admission controller, metrics registry, accounting sink) ->
// initServer (Orchestrator + HTTP routes). Shutdown runs in reverse order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/govgateway/internal/accounting"
	"github.com/nulpointcorp/govgateway/internal/admission"
	"github.com/nulpointcorp/govgateway/internal/auth"
	"github.com/nulpointcorp/govgateway/internal/config"
	"github.com/nulpointcorp/govgateway/internal/httpapi"
	"github.com/nulpointcorp/govgateway/internal/metrics"
	"github.com/nulpointcorp/govgateway/internal/providers"
	deepseekprov "github.com/nulpointcorp/govgateway/internal/providers/deepseek"
	huggingfaceprov "github.com/nulpointcorp/govgateway/internal/providers/huggingface"
	openaiprov "github.com/nulpointcorp/govgateway/internal/providers/openai"
)

// App owns all long-lived resources and exposes Run / Close.
type App struct {
	version string
	cfg     *config.Config
	baseCtx context.Context
	log     *slog.Logger

	rdb *redis.Client
	db  *accounting.ClickHouseDB

	sink  *accounting.Sink
	prom  *metrics.Registry
	provs map[string]providers.Provider

	validator *auth.Validator
	ctrl      *admission.Controller
	srv       *httpapi.Server
}

// New initialises every subsystem and returns a ready-to-run App. All
// resources allocated here are released by Close.
func New(ctx context.Context, cfg *config.Config, store auth.Store, log *slog.Logger, version string) (*App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("app: context must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	a := &App{cfg: cfg, version: version, baseCtx: ctx, log: log}

	steps := []struct {
		name string
		fn   func(context.Context, auth.Store) error
	}{
		{"infra", a.initInfra},
		{"providers", a.initProviders},
		{"services", func(ctx context.Context, _ auth.Store) error { return a.initServices(ctx, store) }},
		{"server", func(ctx context.Context, _ auth.Store) error { return a.initServer(ctx) }},
	}

	for _, s := range steps {
		if err := s.fn(ctx, store); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	return a, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or an error
// occurs. It closes the app gracefully when returning.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.cfg.Port)

	a.log.Info("starting gateway",
		slog.String("version", a.version),
		slog.String("addr", addr),
		slog.Int("providers", len(a.provs)),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.srv.ListenAndServe(addr)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Close()
		return nil
	})

	return g.Wait()
}

// Close releases all resources in reverse-init order. Safe to call
// multiple times.
func (a *App) Close() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Error("accounting sink close error", slog.String("error", err.Error()))
		}
		a.sink = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("clickhouse close error", slog.String("error", err.Error()))
		}
		a.db = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
}

// connectRedis parses the URL and verifies connectivity with a PING.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return rdb, nil
}

// buildProviders creates a provider map for the closed set
// {openai, deepseek, huggingface} from whichever API keys are configured.
func buildProviders(cfg *config.Config) map[string]providers.Provider {
	provs := make(map[string]providers.Provider)

	if cfg.OpenAI.APIKey != "" {
		var opts []openaiprov.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openaiprov.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		provs["openai"] = openaiprov.New(cfg.OpenAI.APIKey, opts...)
	}
	if cfg.DeepSeek.APIKey != "" {
		var opts []deepseekprov.Option
		if cfg.DeepSeek.BaseURL != "" {
			opts = append(opts, deepseekprov.WithBaseURL(cfg.DeepSeek.BaseURL))
		}
		provs["deepseek"] = deepseekprov.New(cfg.DeepSeek.APIKey, opts...)
	}
	if cfg.HuggingFace.APIKey != "" {
		var opts []huggingfaceprov.Option
		if cfg.HuggingFace.BaseURL != "" {
			opts = append(opts, huggingfaceprov.WithBaseURL(cfg.HuggingFace.BaseURL))
		}
		provs["huggingface"] = huggingfaceprov.New(cfg.HuggingFace.APIKey, opts...)
	}

	return provs
}

// fallbackOrderFor returns providers.DefaultFallbackOrder restricted to
// names actually configured, preserving canonical order.
func fallbackOrderFor(provs map[string]providers.Provider) []string {
	order := make([]string, 0, len(providers.DefaultFallbackOrder))
	for _, name := range providers.DefaultFallbackOrder {
		if _, ok := provs[name]; ok {
			order = append(order, name)
		}
	}
	return order
}
