package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL   string `env:"DATABASE_URL"`
	PGHost        string `env:"PGHOST" envDefault:"localhost"`
	PGPort        int    `env:"PGPORT" envDefault:"5432"`
	PGUser        string `env:"PGUSER" envDefault:"compliance"`
	PGPassword    string `env:"PGPASSWORD" envDefault:"compliance"`
	PGDatabase    string `env:"PGDATABASE" envDefault:"compliance"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// Pool sizing. Every apply holds one connection for the whole row-locked
	// transaction, so DBMaxConns bounds concurrent applies.
	DBMaxConns    int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns    int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBLockTimeout time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"5s"`

	// Redis registry cache; empty URL disables it.
	RedisURL         string        `env:"REDIS_URL"`
	RegistryCacheTTL time.Duration `env:"REGISTRY_CACHE_TTL" envDefault:"30s"`

	// Server
	APIPort            int `env:"API_PORT" envDefault:"3100"`
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`

	// Policy tables; empty path uses built-in defaults.
	PolicyFile string `env:"POLICY_FILE"`

	// Kafka
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaEnabled     bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:""`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// RelayInProcess runs the outbox poller inside the API process as well.
	RelayInProcess       bool          `env:"RELAY_IN_PROCESS" envDefault:"false"`
	RelayMetricsPort     int           `env:"RELAY_METRICS_PORT" envDefault:"3101"`
	BreakerFailThreshold int           `env:"BREAKER_FAIL_THRESHOLD" envDefault:"5"`
	BreakerResetTimeout  time.Duration `env:"BREAKER_RESET_TIMEOUT" envDefault:"30s"`
}

// LoadConfig reads an optional .env file, then parses environment variables
// into a Config struct.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges that env parsing cannot express.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS invalid: %d/%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.DBLockTimeout < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT must not be negative")
	}
	if c.RelayMetricsPort <= 0 || c.RelayMetricsPort > 65535 {
		return fmt.Errorf("RELAY_METRICS_PORT out of range: %d", c.RelayMetricsPort)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.RegistryCacheTTL < 0 {
		return fmt.Errorf("REGISTRY_CACHE_TTL must not be negative")
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.OutboxBatchSize <= 0 || c.OutboxBatchSize > 1000 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be in 1..1000, got %d", c.OutboxBatchSize)
	}
	if c.BreakerFailThreshold <= 0 {
		return fmt.Errorf("BREAKER_FAIL_THRESHOLD must be positive, got %d", c.BreakerFailThreshold)
	}
	if c.BreakerResetTimeout <= 0 {
		return fmt.Errorf("BREAKER_RESET_TIMEOUT must be positive")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
