package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool creates the pgx pool shared by the gate and the outbox relay.
// Sessions carry a lock_timeout so an apply blocked on a contended entry row
// fails instead of holding its connection indefinitely.
func NewPostgresPool(ctx context.Context, cfg *Config, appName string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	params := poolCfg.ConnConfig.RuntimeParams
	if appName != "" {
		params["application_name"] = appName
	}
	if cfg.DBLockTimeout > 0 {
		params["lock_timeout"] = strconv.FormatInt(cfg.DBLockTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// HealthCheck runs a dependency probe such as pool.Ping with a short timeout.
func HealthCheck(ctx context.Context, probe func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return probe(ctx)
}
