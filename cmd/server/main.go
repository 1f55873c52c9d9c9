package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lodgepole/rentroll/internal"
	"github.com/lodgepole/rentroll/internal/credentials"
	"github.com/lodgepole/rentroll/internal/cron"
	"github.com/lodgepole/rentroll/internal/crypto"
	"github.com/lodgepole/rentroll/internal/events"
	"github.com/lodgepole/rentroll/internal/handler"
	"github.com/lodgepole/rentroll/internal/ledger"
	"github.com/lodgepole/rentroll/internal/middleware"
	"github.com/lodgepole/rentroll/internal/postgres"
	"github.com/lodgepole/rentroll/internal/router"
	"github.com/lodgepole/rentroll/internal/scheduler"
	"github.com/lodgepole/rentroll/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// Credential encryption
	key, err := crypto.DecodeKeyBase64(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	encryptor, err := crypto.NewAESEncryptor(key)
	if err != nil {
		return fmt.Errorf("failed to initialize encryptor: %w", err)
	}
	resolver := credentials.NewPostgresResolver(pool, encryptor)

	// Event publishing (optional)
	var publisher events.Publisher = events.Noop{}
	if cfg.NATSUrl != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATSUrl)
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSUrl, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	// Metrics
	billingMetrics := telemetry.NewBillingMetrics(prometheus.DefaultRegisterer)
	httpMetrics := middleware.NewMetrics("rentroll", prometheus.DefaultRegisterer)

	// Billing pipeline
	writer := scheduler.NewWriter(
		resolver,
		ledger.DefaultPrimaryFactory(),
		ledger.DefaultSecondaryFactory(),
		store,
		publisher,
		logger,
	)
	runner := scheduler.NewRunner(store, store, writer, publisher, billingMetrics, scheduler.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		RepairGrace:    time.Duration(cfg.RepairGraceHours) * time.Hour,
	}, logger)

	// In-process schedule (optional; external cron hits the trigger otherwise)
	if cfg.CronEnabled {
		crn := cron.NewScheduler(runner, logger)
		crn.Start()
		defer func() { <-crn.Stop().Done() }()
	}

	// Routes
	billingHandler := handler.NewBillingHandler(runner, logger)

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		httpMetrics.Middleware,
	)
	r.Get("/healthz", billingHandler.HandleHealth)
	r.Handle(http.MethodGet, "/metrics", httpMetrics.Handler())

	trigger := r.Group(middleware.RequireCronToken(cfg.CronToken))
	trigger.Post("/internal/billing/run", billingHandler.HandleRun)
	trigger.Post("/internal/billing/repair", billingHandler.HandleRepair)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // batch runs can be slow on big portfolios
	}

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
