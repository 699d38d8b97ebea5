package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/accredit/compliance/internal/app"
	"github.com/accredit/compliance/internal/cache"
	"github.com/accredit/compliance/internal/gate"
	"github.com/accredit/compliance/internal/guard"
	"github.com/accredit/compliance/internal/handler"
	"github.com/accredit/compliance/internal/infra"
	"github.com/accredit/compliance/internal/metrics"
	"github.com/accredit/compliance/internal/policy"
	"github.com/accredit/compliance/internal/relay"
	"github.com/accredit/compliance/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tables, err := policy.LoadTables(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("load policy tables: %w", err)
	}
	logger.Info("policy tables loaded",
		"file", cfg.PolicyFile,
		"basic", tables.Tiers.Basic,
		"standard", tables.Tiers.Standard,
		"enhanced", tables.Tiers.Enhanced,
		"fixed_jurisdiction_rule", tables.EnforceFixedJurisdictionRule)

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Connect to Postgres
	pool, err := infra.NewPostgresPool(ctx, cfg, "compliance-api")
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	probes := map[string]handler.Probe{
		"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool.Ping) },
	}

	// Repositories
	registryRepo := repository.NewRegistryRepository()
	entryRepo := repository.NewEntryRepository()
	transferRepo := repository.NewTransferRepository()
	outboxRepo := repository.NewOutboxRepository()

	var engineOpts []gate.Option
	rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		engineOpts = append(engineOpts, gate.WithRegistryCache(cache.NewRegistryCache(rdb, cfg.RegistryCacheTTL, m, logger)))
		probes["redis"] = func(ctx context.Context) error { return infra.HealthCheck(ctx, rdb.Health) }
		logger.Info("registry cache enabled", "ttl", cfg.RegistryCacheTTL)
	}

	engine := gate.NewEngine(registryRepo, entryRepo, transferRepo, outboxRepo, tables, engineOpts...)
	svc := gate.NewService(pool, engine, m, logger)

	r := app.NewRouter(app.RouterDeps{
		Service:            svc,
		Probes:             probes,
		Metrics:            m.Handler(),
		Requests:           m,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if cfg.RelayInProcess {
		producer := infra.NewKafkaProducer(cfg, logger)
		defer producer.Close()
		poller := relay.NewPoller(pool, outboxRepo, producer,
			guard.NewCircuitBreaker(cfg.BreakerFailThreshold, cfg.BreakerResetTimeout),
			relay.Options{
				Interval:    cfg.OutboxPollInterval,
				BatchSize:   cfg.OutboxBatchSize,
				TopicPrefix: cfg.KafkaTopicPrefix,
			}, m, logger)
		g.Go(func() error { return poller.Run(gctx) })
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
