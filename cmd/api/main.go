// Copyright (c) 2026 Keygate. All rights reserved.
// Author: td.vu.dev@gmail.com

// Command api is the entry point for the Keygate HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the configured credential store backend (file, postgres, or redis).
//  4. Run database migrations for the postgres backend (idempotent).
//  5. Bootstrap the default administrator when configured.
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tdvu/keygate/internal/api"
	"github.com/tdvu/keygate/internal/identity/account"
	"github.com/tdvu/keygate/internal/identity/auth"
	"github.com/tdvu/keygate/internal/platform/config"
	"github.com/tdvu/keygate/internal/platform/constants"
	"github.com/tdvu/keygate/internal/platform/middleware"
	"github.com/tdvu/keygate/internal/platform/migration"
	pgstore "github.com/tdvu/keygate/internal/platform/postgres"
	redisstore "github.com/tdvu/keygate/internal/platform/redis"
	"github.com/tdvu/keygate/internal/platform/sec"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Keygate] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("auth_scheme", cfg.AuthScheme),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("hash_scheme", cfg.HashScheme),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Credential Store ───────────────────────────────────────────────
	var store auth.Store

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
		store = auth.NewPostgresStore(pool, log)

	case config.BackendRedis:
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		store = auth.NewRedisStore(rdb, log)

	default:
		store = auth.NewFileStore(cfg.StorePath, log)
	}

	// ── 4. Hashing & Tokens ───────────────────────────────────────────────
	var hasher sec.Hasher
	if cfg.HashScheme == config.HashBcrypt {
		hasher = sec.NewBcryptHasher()
	} else {
		hasher = sec.NewSaltedHasher(cfg.HashSalt)
	}

	var tokenProvider auth.TokenProvider
	if cfg.AuthScheme == config.SchemeBearer {
		tokenProvider = sec.NewTokenService(cfg.TokenSecret, constants.AuthIssuer)
	}

	// ── 5. Auth Service & Bootstrap ───────────────────────────────────────
	authService := auth.NewService(store, hasher, tokenProvider, auth.Policy{
		MinUsernameLength: cfg.MinUsernameLength,
		MinPasswordLength: cfg.MinPasswordLength,
		RoleAware:         cfg.RoleAware,
		TokenTTL:          cfg.TokenTTL,
	})

	if cfg.RoleAware && cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		must(log, authService.EnsureAdmin(startupCtx, cfg.AdminUsername, cfg.AdminPassword), "bootstrap admin account")
	}

	// ── 6. Health Handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		StoreName: cfg.StoreBackend,
		CheckStore: func() error {
			return store.Ping(context.Background())
		},
	}, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	accountService := account.NewService(store)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, cfg.AuthScheme, cfg.RoleAware),
		Account:   account.NewHandler(accountService),
	}

	authenticator := middleware.NewAuthenticator(cfg.AuthScheme, authService, authService, authService)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, authenticator, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
