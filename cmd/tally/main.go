package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tally/internal/amqp"
	"tally/internal/auth"
	"tally/internal/backend"
	"tally/internal/cache"
	"tally/internal/cli"
	apphttp "tally/internal/http"
	"tally/internal/ledger"
	"tally/internal/log"
	"tally/internal/storage"
)

const sessionSweepInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	boot := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(boot, cli.RoleServer)
	logger := cli.SetupLogger(cfg.LogLevel)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.OpenBackend(startCtx, logger, cfg)
	cancelStart()

	// change events are optional for the API server
	var notifier ledger.Notifier
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			amqpClient, notifier = c, c
		}
	}

	ledgers := ledger.NewManager(res.Tables, cfg.MaxSessions, cfg.SessionTTL, logger, ledger.WithNotifier(notifier))
	caches := cache.NewManager()
	caches.Register(ledgers)
	caches.StartCleanup(sessionSweepInterval)

	authSvc := auth.NewService(res.Store, res.Tables.Categories, auth.Config{
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
		Seed:     res.Seed,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledgers:            ledgers,
		Auth:               authSvc,
		Pinger:             res.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		cleanups := []backend.CleanupFunc{res.Cleanup}
		if amqpClient != nil {
			cleanups = append(cleanups, amqpClient.Close)
		}
		if err := backend.Cleanup(cleanups...); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	})

	logger.Info("Starting tally server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", amqpClient != nil,
		"storage_dialect", dialectOf(res))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		caches.Stop()
		_ = backend.Cleanup(res.Cleanup)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

func dialectOf(res *backend.BackendResult) string {
	if repo, ok := res.Store.(*storage.Repository); ok {
		return string(repo.Dialect())
	}
	return "memory"
}
