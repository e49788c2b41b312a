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
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/daftar-erp/daftar-erp/internal/app"
	"github.com/daftar-erp/daftar-erp/internal/auth"
	"github.com/daftar-erp/daftar-erp/internal/coa"
	"github.com/daftar-erp/daftar-erp/internal/fiscal"
	"github.com/daftar-erp/daftar-erp/internal/ledger"
	"github.com/daftar-erp/daftar-erp/internal/observability"
	"github.com/daftar-erp/daftar-erp/internal/platform/cache"
	"github.com/daftar-erp/daftar-erp/internal/platform/db"
	"github.com/daftar-erp/daftar-erp/internal/reports"
	"github.com/daftar-erp/daftar-erp/internal/settings"
	"github.com/daftar-erp/daftar-erp/internal/shared"
	"github.com/daftar-erp/daftar-erp/internal/treasury"
	"github.com/daftar-erp/daftar-erp/internal/treasury/posting"
	"github.com/daftar-erp/daftar-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(cfg.PGDSN, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.NewMiddleware(authService, cfg.ServiceTokenHash)

	settingsService := settings.NewService(settings.NewRepository(pool), redisClient)
	settingsHandler := settings.NewHandler(logger, settingsService)

	catalogService := coa.NewService(coa.NewRepository(pool))
	catalogHandler := coa.NewHandler(logger, catalogService)

	fiscalService := fiscal.NewService(fiscal.NewRepository(pool), auditLogger)
	fiscalHandler := fiscal.NewHandler(logger, fiscalService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool), auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	treasuryService := treasury.NewService(treasury.NewRepository(pool), settingsService, auditLogger)
	treasuryHandler := treasury.NewHandler(logger, treasuryService)

	postingEngine := posting.NewEngine(pool, auditLogger)
	postingHandler := posting.NewHandler(logger, postingEngine, idempotencyStore)

	var renderer *reports.Renderer
	if cfg.GotenbergURL != "" {
		renderer, err = reports.NewRenderer(cfg.GotenbergURL)
		if err != nil {
			logger.Error("report renderer", slog.Any("error", err))
			os.Exit(1)
		}
	}
	reportsHandler := reports.NewHandler(logger, reports.NewRepository(pool), renderer)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		CatalogHandler:  catalogHandler,
		FiscalHandler:   fiscalHandler,
		LedgerHandler:   ledgerHandler,
		TreasuryHandler: treasuryHandler,
		PostingHandler:  postingHandler,
		SettingsHandler: settingsHandler,
		ReportsHandler:  reportsHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
