package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/metrics"
)

type memStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	readErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	if s.readErr != nil {
		return redis.NewStringResult("", s.readErr)
	}
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	}
	s.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (s *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newTestCache(store Store) (*RegistryCache, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewRegistryCache(store, time.Minute, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func TestRegistryCache_MissThenHit(t *testing.T) {
	store := newMemStore()
	c, m := newTestCache(store)
	ctx := context.Background()

	loads := 0
	load := func(_ context.Context, key domain.Key) (*domain.KycRegistry, error) {
		loads++
		return &domain.KycRegistry{Key: key, IsActive: true, RequireKyc: true, JurisdictionMask: 0b11}, nil
	}

	first, err := c.Get(ctx, "reg-1", load)
	require.NoError(t, err)
	second, err := c.Get(ctx, "reg-1", load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, store.ttls[registryKeyPrefix+"reg-1"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}

func TestRegistryCache_MissingRegistryNotCached(t *testing.T) {
	store := newMemStore()
	c, _ := newTestCache(store)

	reg, err := c.Get(context.Background(), "nope", func(context.Context, domain.Key) (*domain.KycRegistry, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, reg)
	assert.Empty(t, store.data)
}

func TestRegistryCache_LoaderErrorPropagates(t *testing.T) {
	c, _ := newTestCache(newMemStore())
	boom := errors.New("db down")

	_, err := c.Get(context.Background(), "reg-1", func(context.Context, domain.Key) (*domain.KycRegistry, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRegistryCache_RedisErrorFallsBackToLoader(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("connection refused")
	c, m := newTestCache(store)

	reg, err := c.Get(context.Background(), "reg-1", func(_ context.Context, key domain.Key) (*domain.KycRegistry, error) {
		return &domain.KycRegistry{Key: key}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Key("reg-1"), reg.Key)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("error")))
}

func TestRegistryCache_CorruptEntryReloaded(t *testing.T) {
	store := newMemStore()
	store.data[registryKeyPrefix+"reg-1"] = "{not json"
	c, _ := newTestCache(store)

	reg, err := c.Get(context.Background(), "reg-1", func(_ context.Context, key domain.Key) (*domain.KycRegistry, error) {
		return &domain.KycRegistry{Key: key, VerifiedOnly: true}, nil
	})
	require.NoError(t, err)
	assert.True(t, reg.VerifiedOnly)

	var stored domain.KycRegistry
	require.NoError(t, json.Unmarshal([]byte(store.data[registryKeyPrefix+"reg-1"]), &stored))
	assert.True(t, stored.VerifiedOnly)
}

func TestRegistryCache_Invalidate(t *testing.T) {
	store := newMemStore()
	store.data[registryKeyPrefix+"reg-1"] = "{}"
	c, _ := newTestCache(store)

	require.NoError(t, c.Invalidate(context.Background(), "reg-1"))
	assert.Empty(t, store.data)
}
