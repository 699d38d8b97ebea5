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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/accredit/compliance/internal/guard"
	"github.com/accredit/compliance/internal/handler"
	"github.com/accredit/compliance/internal/infra"
	"github.com/accredit/compliance/internal/metrics"
	"github.com/accredit/compliance/internal/relay"
	"github.com/accredit/compliance/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox relay failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !cfg.KafkaEnabled {
		logger.Warn("KAFKA_ENABLED=false: events will be drained from the outbox without leaving the process")
	}

	pool, err := infra.NewPostgresPool(ctx, cfg, "outbox-relay")
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("outbox-relay connected to postgres")

	producer := infra.NewKafkaProducer(cfg, logger)
	defer producer.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	poller := relay.NewPoller(pool, repository.NewOutboxRepository(), producer,
		guard.NewCircuitBreaker(cfg.BreakerFailThreshold, cfg.BreakerResetTimeout),
		relay.Options{
			Interval:    cfg.OutboxPollInterval,
			BatchSize:   cfg.OutboxBatchSize,
			TopicPrefix: cfg.KafkaTopicPrefix,
		}, m, logger)

	r := chi.NewRouter()
	r.Use(handler.Recovery(logger))
	r.Handle("/metrics", m.Handler())
	r.With(handler.JSONContentType).Get("/health", handler.HealthHandler(map[string]handler.Probe{
		"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool.Ping) },
	}))

	addr := fmt.Sprintf(":%d", cfg.RelayMetricsPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error {
		logger.Info("relay metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("outbox-relay stopped")
	return nil
}
