package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ostrem/kasse/internal"
	"github.com/ostrem/kasse/internal/auth"
	"github.com/ostrem/kasse/internal/cache"
	"github.com/ostrem/kasse/internal/domain"
	"github.com/ostrem/kasse/internal/events"
	"github.com/ostrem/kasse/internal/handler"
	"github.com/ostrem/kasse/internal/postgres"
	"github.com/ostrem/kasse/internal/service"
	"github.com/ostrem/kasse/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over database/sql, then open the application pool.
	logger.Info().Msg("connecting to database")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info().Msg("running database migrations")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// Listing cache invalidator
	invalidator, err := cache.NewInvalidator(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to configure redis: %w", err)
	}
	defer invalidator.Close()
	if err := invalidator.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	// Order event stream; disabled when no URL is configured.
	var notifier domain.Notifier
	if cfg.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer publisher.Close()
		notifier = publisher
	} else {
		logger.Warn().Msg("NATS_URL not set; order events disabled")
	}

	// Business metrics
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry, cfg.MetricsNamespace)

	// Services
	catalogService := service.NewCatalogService(store, invalidator, metrics, logger)
	specialService := service.NewSpecialService(store, invalidator, metrics, logger)
	cartService := service.NewCartService(store, metrics, logger)
	orderService := service.NewOrderService(store, notifier, metrics, logger)
	historyService := service.NewHistoryService(store)

	// HTTP surface
	storefrontHandler := handler.NewStorefrontHandler(catalogService, specialService, cartService, orderService, logger)
	adminHandler := handler.NewAdminHandler(orderService, catalogService, specialService, historyService, auth.NewStaticAuthorizer(cfg.AdminToken), logger)

	e := handler.NewRouter(storefrontHandler, adminHandler, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
