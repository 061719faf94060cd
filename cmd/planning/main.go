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

	"github.com/hibiken/asynq"

	"github.com/cothk/planning/internal/app"
	"github.com/cothk/planning/internal/auth"
	"github.com/cothk/planning/internal/notes"
	"github.com/cothk/planning/internal/observability"
	"github.com/cothk/planning/internal/platform/cache"
	"github.com/cothk/planning/internal/platform/db"
	"github.com/cothk/planning/internal/provision"
	"github.com/cothk/planning/internal/roster"
	"github.com/cothk/planning/internal/shared"
	"github.com/cothk/planning/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "planning_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	bootstrapAdmins, err := cfg.BootstrapAdminIDs()
	if err != nil {
		logger.Error("parse bootstrap admins", slog.Any("error", err))
		os.Exit(1)
	}

	rosterRepo := roster.NewRepository(pool)
	rosterEngine := roster.NewEngine(rosterRepo, logger)
	rosterService := roster.NewService(rosterRepo, redisClient, cfg.CodesCacheTTL, logger)
	rosterHandler := roster.NewHandler(logger, rosterEngine, rosterService, cfg.PlanningYear)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, roster.NewAuthDirectory(rosterRepo), bootstrapAdmins, logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	provisionService := provision.NewService(rosterRepo, authService, cfg.AccountDomain, cfg.DefaultPassword, logger)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	provisionHandler := provision.NewHandler(logger, provisionService, jobsClient.EnqueueProvision())

	notesRepo := notes.NewRepository(pool)
	notesHandler := notes.NewHandler(logger, notesRepo)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		RosterHandler:    rosterHandler,
		ProvisionHandler: provisionHandler,
		NotesHandler:     notesHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
