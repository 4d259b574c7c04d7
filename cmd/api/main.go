package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"imagehost/internal/config"
	"imagehost/internal/http/server"
	"imagehost/internal/logging"
	"imagehost/internal/otel"
	"imagehost/internal/ratelimit"
	"imagehost/internal/service"
	"imagehost/internal/storage"
)

// @title Image Host API
// @version 1.0
// @description Upload, look up and download images stored on local disk.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, logger, cfg.AppName)
	if err != nil {
		fatal(logger, "tracing_init_failed", err)
	}

	store, err := storage.NewLocal(cfg.Storage)
	if err != nil {
		fatal(logger, "storage_init_failed", err, slog.String("dir", cfg.Storage.Dir))
	}
	imageSvc := service.NewImageService(store)

	// Limiter counters live in Redis when configured, in memory otherwise.
	var limiterStore fiber.Storage
	redisStore, err := ratelimit.NewRedisStorage(ctx, cfg.RateLimit)
	if err != nil {
		fatal(logger, "ratelimit_storage_init_failed", err)
	}
	if redisStore != nil {
		limiterStore = redisStore
	}
	uploadLimiter := ratelimit.New(cfg.RateLimit, limiterStore)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := server.New(server.Deps{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Images:        imageSvc,
		UploadLimiter: uploadLimiter,
		Registry:      reg,
	})
	if err != nil {
		fatal(logger, "server_init_failed", err)
	}

	addr := ":" + cfg.Port
	go func() {
		if err := app.Listen(addr); err != nil {
			fatal(logger, "server_listen_failed", err, slog.String("addr", addr))
		}
	}()

	logger.Info("server_started",
		slog.String("addr", addr),
		slog.String("storage_dir", cfg.Storage.Dir),
		slog.String("max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes))),
		slog.Int("rate_limit_max", cfg.RateLimit.Max),
		slog.Duration("rate_limit_window", cfg.RateLimit.Window),
		slog.Bool("rate_limit_shared", redisStore != nil),
	)

	ops := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logger.Info("shutdown_initiated")
			return app.ShutdownWithContext(ctx)
		},
		"tracing": func(ctx context.Context) error {
			return shutdownTracing(ctx)
		},
		"image-storage": func(context.Context) error {
			return store.Close()
		},
	}
	if redisStore != nil {
		ops["ratelimit-redis"] = func(context.Context) error {
			return redisStore.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, ops)

	exitCode := <-wait
	logger.Info("server_stopped", slog.Int("exit_code", exitCode))
	os.Exit(exitCode)
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	os.Exit(1)
}
