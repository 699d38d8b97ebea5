package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/metrics"
)

const registryKeyPrefix = "compliance:registry:"

// Store is the subset of *redis.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoadFunc reads a registry from the source of truth. It returns nil, nil when
// the registry does not exist.
type LoadFunc func(ctx context.Context, key domain.Key) (*domain.KycRegistry, error)

// RegistryCache is a read-through cache of registry snapshots for dry-run
// checks. Redis failures degrade to the loader; missing registries are not cached.
type RegistryCache struct {
	store   Store
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistryCache creates a cache with the given TTL.
func NewRegistryCache(store Store, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *RegistryCache {
	return &RegistryCache{store: store, ttl: ttl, metrics: m, logger: logger}
}

// Get returns the cached registry or loads and stores it.
func (c *RegistryCache) Get(ctx context.Context, key domain.Key, load LoadFunc) (*domain.KycRegistry, error) {
	raw, err := c.store.Get(ctx, registryKeyPrefix+string(key)).Bytes()
	switch {
	case err == nil:
		var reg domain.KycRegistry
		if jerr := json.Unmarshal(raw, &reg); jerr == nil {
			c.metrics.IncrementCacheLookup("hit")
			return &reg, nil
		}
		c.logger.Warn("discarding corrupt registry cache entry", "registry", key)
		c.metrics.IncrementCacheLookup("error")
	case errors.Is(err, redis.Nil):
		c.metrics.IncrementCacheLookup("miss")
	default:
		c.logger.Warn("registry cache read failed", "registry", key, "error", err)
		c.metrics.IncrementCacheLookup("error")
	}

	reg, err := load(ctx, key)
	if err != nil || reg == nil {
		return reg, err
	}

	body, err := json.Marshal(reg)
	if err == nil {
		err = c.store.Set(ctx, registryKeyPrefix+string(key), body, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("registry cache write failed", "registry", key, "error", err)
	}
	return reg, nil
}

// Invalidate drops the cached snapshot of key.
func (c *RegistryCache) Invalidate(ctx context.Context, key domain.Key) error {
	return c.store.Del(ctx, registryKeyPrefix+string(key)).Err()
}
