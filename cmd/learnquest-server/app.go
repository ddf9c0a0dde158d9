package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"learnquest/adapters/jsonfile"
	mem "learnquest/adapters/memory"
	redisAdapter "learnquest/adapters/redis"
	sqlxAdapter "learnquest/adapters/sqlx"
	"learnquest/analytics"
	"learnquest/api/httpapi"
	"learnquest/config"
	"learnquest/core"
	"learnquest/engine"
	"learnquest/gamify"
	"learnquest/integrations/webhook"
	"learnquest/leaderboard"
	"learnquest/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Store     engine.Store
	Board     leaderboard.Board
	Tracker   *analytics.Tracker
	Webhooks  *webhook.Sink
	Evaluator *engine.Evaluator
	Handler   http.Handler
	Server    *http.Server
}

func provideConfig(_ context.Context) (*config.Config, error) {
	if path := os.Getenv("LEARNQUEST_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	return setupStorage(ctx, cfg)
}

func provideBoard() leaderboard.Board {
	return leaderboard.NewSkipList()
}

func provideEvaluator(cfg *config.Config, hub *realtime.Hub, store engine.Store, board leaderboard.Board) *engine.Evaluator {
	return gamify.New(
		gamify.WithRealtime(hub),
		gamify.WithStore(store),
		gamify.WithLeaderboard(board),
		gamify.WithDispatchMode(engine.DispatchAsync),
		gamify.WithRetry(engine.RetryPolicy{
			Attempts: cfg.Engine.MaxAttempts,
			Backoff:  cfg.Engine.RetryBackoff,
		}),
	)
}

func provideTracker(eval *engine.Evaluator) *analytics.Tracker {
	tracker := analytics.NewTracker()
	tracker.Attach(eval)
	return tracker
}

func provideIntegrations(cfg *config.Config, eval *engine.Evaluator) *webhook.Sink {
	if len(cfg.Integrations.WebhookEndpoints) == 0 {
		return nil
	}
	sink := webhook.New(cfg.Integrations.WebhookEndpoints)
	sink.Attach(eval)
	return sink
}

func provideHandler(eval *engine.Evaluator, store engine.Store, board leaderboard.Board, hub *realtime.Hub, cfg *config.Config) http.Handler {
	return httpapi.NewMux(eval, store, board, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis, core.DefaultCatalog())
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL, core.DefaultCatalog())
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "file":
		return jsonfile.New(cfg.Storage.File.Path, core.DefaultCatalog())
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
