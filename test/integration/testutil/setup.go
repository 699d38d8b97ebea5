//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/accredit/compliance/internal/app"
	"github.com/accredit/compliance/internal/gate"
	"github.com/accredit/compliance/internal/handler"
	"github.com/accredit/compliance/internal/infra"
	"github.com/accredit/compliance/internal/metrics"
	"github.com/accredit/compliance/internal/policy"
	"github.com/accredit/compliance/internal/repository"
)

const (
	TestDBHost = "localhost"
	TestDBPort = 5435
	TestDBUser = "compliance"
	TestDBPass = "compliance"
	TestDBName = "compliance_test"

	// StartTime is the clock value every TestEnv starts at.
	StartTime int64 = 1_700_000_000
)

// Clock is a settable engine clock.
type Clock struct {
	unix atomic.Int64
}

// Now returns the current clock value.
func (c *Clock) Now() time.Time { return time.Unix(c.unix.Load(), 0) }

// Set moves the clock to unix seconds.
func (c *Clock) Set(unix int64) { c.unix.Store(unix) }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.unix.Add(int64(d / time.Second)) }

// Unix returns the current clock value in seconds.
func (c *Clock) Unix() int64 { return c.unix.Load() }

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server  *httptest.Server
	Pool    *pgxpool.Pool
	Service *gate.Service
	Clock   *Clock
	Metrics *metrics.Metrics

	Registries repository.RegistryRepository
	Entries    repository.EntryRepository
	Transfers  repository.TransferRepository
	Outbox     repository.OutboxRepository

	t *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "compliance")
}

func ensureTestDB() error {
	if os.Getenv("TEST_DATABASE_URL") != "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to the main database to create the test database
	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		_, err = bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName))
		if err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}

	return nil
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		if err := infra.RunMigrations(testDSN(), infra.FindMigrationDir(), logger); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 25
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment with an httptest.Server backed by the
// real router, gate service and test DB. Tables are truncated before and after.
func NewTestEnv(t *testing.T) *TestEnv {
	return NewTestEnvWithTables(t, policy.DefaultTables())
}

// NewTestEnvWithTables is NewTestEnv with custom policy tables.
func NewTestEnvWithTables(t *testing.T, tables policy.Tables) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m := metrics.New(prometheus.NewRegistry())

	clock := &Clock{}
	clock.Set(StartTime)

	env := &TestEnv{
		Pool:       pool,
		Clock:      clock,
		Metrics:    m,
		Registries: repository.NewRegistryRepository(),
		Entries:    repository.NewEntryRepository(),
		Transfers:  repository.NewTransferRepository(),
		Outbox:     repository.NewOutboxRepository(),
		t:          t,
	}

	engine := gate.NewEngine(env.Registries, env.Entries, env.Transfers, env.Outbox, tables,
		gate.WithClock(clock.Now))
	env.Service = gate.NewService(pool, engine, m, logger)

	router := app.NewRouter(app.RouterDeps{
		Service: env.Service,
		Probes: map[string]handler.Probe{
			"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool.Ping) },
		},
		Metrics:  m.Handler(),
		Requests: m,
		Logger:   logger,
	})
	env.Server = httptest.NewServer(router)

	t.Cleanup(func() {
		env.Server.Close()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
