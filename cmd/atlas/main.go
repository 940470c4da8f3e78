package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-hq/atlas-console/internal/app"
	"github.com/atlas-hq/atlas-console/internal/audit"
	audithttp "github.com/atlas-hq/atlas-console/internal/audit/http"
	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/directory"
	"github.com/atlas-hq/atlas-console/internal/directory/cache"
	"github.com/atlas-hq/atlas-console/internal/directory/mutation"
	"github.com/atlas-hq/atlas-console/internal/impersonation"
	"github.com/atlas-hq/atlas-console/internal/notify"
	"github.com/atlas-hq/atlas-console/internal/observability"
	platformcache "github.com/atlas-hq/atlas-console/internal/platform/cache"
	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
	"github.com/atlas-hq/atlas-console/internal/platform/db"
	"github.com/atlas-hq/atlas-console/internal/shared"
	"github.com/atlas-hq/atlas-console/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := platformcache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "atlas_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	apiClient := coreapi.NewClient(cfg.CoreAPIURL, cfg.CoreAPIToken)
	if err := apiClient.Ping(ctx); err != nil {
		logger.Warn("core api ping", slog.Any("error", err))
	}

	clk := clock.Real{}
	notifyCenter := notify.NewCenter()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	store := cache.NewStore(clk, cfg.CacheQuiescence)
	coordinator := mutation.NewCoordinator(logger, store, notifyCenter, idempotencyStore, metrics)
	directoryService := directory.NewService(logger, apiClient, store, coordinator, notifyCenter, clk)
	directoryHandler := directory.NewHandler(logger, directoryService)

	locker := shared.NewRedisLocker(redisClient)
	manager := impersonation.NewManager(logger, apiClient, clk, cfg.ImpersonationTTL, locker, metrics)
	impersonationHandler := impersonation.NewHandler(logger, manager)

	auditService := audit.NewService(apiClient)
	auditHandler := audithttp.NewHandler(logger, auditService)

	notifyHandler := notify.NewHandler(notifyCenter)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		DirectoryHandler:     directoryHandler,
		ImpersonationHandler: impersonationHandler,
		AuditHandler:         auditHandler,
		NotifyHandler:        notifyHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}

	// Drain in-flight mutations and stop session countdowns before exit.
	directoryService.Wait()
	coordinator.Wait()
	manager.Close()
}
