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

	"github.com/tallyard/tallyard/internal/app"
	"github.com/tallyard/tallyard/internal/billing"
	"github.com/tallyard/tallyard/internal/ledger"
	"github.com/tallyard/tallyard/internal/ledger/journals"
	"github.com/tallyard/tallyard/internal/ledger/reports"
	"github.com/tallyard/tallyard/internal/observability"
	"github.com/tallyard/tallyard/internal/platform/cache"
	"github.com/tallyard/tallyard/internal/platform/db"
	"github.com/tallyard/tallyard/internal/procurement"
	"github.com/tallyard/tallyard/internal/sequence"
	"github.com/tallyard/tallyard/internal/shared"
	"github.com/tallyard/tallyard/jobs"
)

func main() {
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

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	seq := sequence.NewPGGenerator(dbpool, cfg.SequenceMaxRetries)

	ledgerRepo := ledger.NewRepository(dbpool)
	reportsService := reports.NewService(ledgerRepo, redisClient, cfg.ReportCacheTTL, cfg.ReportScanCap)

	dispatcher := jobs.NewDispatcher(jobClient, reportsService, logger)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, seq, auditLogger, dispatcher)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, seq, auditLogger, dispatcher)

	journalsRepo := journals.NewRepository(dbpool)
	journalsService := journals.NewService(journalsRepo, seq, auditLogger, dispatcher)

	metrics := observability.NewMetrics()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		BillingHandler:     billing.NewHandler(logger, billingService),
		LedgerHandler:      ledger.NewHandler(logger, ledgerRepo),
		JournalsHandler:    journals.NewHandler(logger, journalsService),
		ReportsHandler:     reports.NewHandler(logger, reportsService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
