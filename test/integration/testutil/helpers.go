//go:build integration

package testutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"time"

	"github.com/accredit/compliance/internal/domain"
)

// RegistryOption adjusts a seeded registry.
type RegistryOption func(*domain.KycRegistry)

// WithVerifiedOnly requires both parties to hold entries.
func WithVerifiedOnly() RegistryOption {
	return func(r *domain.KycRegistry) { r.VerifiedOnly = true }
}

// WithoutKyc disables entry checks.
func WithoutKyc() RegistryOption {
	return func(r *domain.KycRegistry) { r.RequireKyc = false }
}

// WithInactiveRegistry pauses the registry.
func WithInactiveRegistry() RegistryOption {
	return func(r *domain.KycRegistry) { r.IsActive = false }
}

// WithRegistryMask sets the registry's jurisdiction mask.
func WithRegistryMask(mask uint8) RegistryOption {
	return func(r *domain.KycRegistry) { r.JurisdictionMask = mask }
}

// SeedRegistry inserts an active, KYC-requiring registry keyed by key.
func (env *TestEnv) SeedRegistry(key domain.Key, opts ...RegistryOption) *domain.KycRegistry {
	env.t.Helper()
	reg := &domain.KycRegistry{
		Key:        key,
		Authority:  domain.Key("authority-" + key),
		Mint:       domain.Key("mint-" + key),
		IsActive:   true,
		RequireKyc: true,
		CreatedAt:  env.Clock.Unix(),
		UpdatedAt:  env.Clock.Unix(),
	}
	for _, opt := range opts {
		opt(reg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Registries.Create(ctx, env.Pool, reg); err != nil {
		env.t.Fatalf("SeedRegistry %s: %v", key, err)
	}
	return reg
}

// EntryOption adjusts a seeded entry.
type EntryOption func(*domain.WhitelistEntry)

// WithDailyLimit overrides the tier default.
func WithDailyLimit(limit uint64) EntryOption {
	return func(e *domain.WhitelistEntry) { e.DailyLimit = limit }
}

// WithExpiry sets the entry's expiry timestamp.
func WithExpiry(unix int64) EntryOption {
	return func(e *domain.WhitelistEntry) { e.ExpiryTimestamp = unix }
}

// WithInactiveEntry deactivates the entry.
func WithInactiveEntry() EntryOption {
	return func(e *domain.WhitelistEntry) { e.IsActive = false }
}

// SeedEntry inserts an active entry for wallet in registry.
func (env *TestEnv) SeedEntry(registry, wallet domain.Key, level domain.KycLevel, j domain.Jurisdiction, opts ...EntryOption) *domain.WhitelistEntry {
	env.t.Helper()
	hash := domain.KycHash(sha256.Sum256([]byte(wallet)))
	e := domain.NewWhitelistEntry(registry, wallet, level, j, hash, env.Clock.Unix())
	for _, opt := range opts {
		opt(e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.Entries.Create(ctx, env.Pool, e); err != nil {
		env.t.Fatalf("SeedEntry %s/%s: %v", registry, wallet, err)
	}
	return e
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		env.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs a JSON POST request.
func (env *TestEnv) POST(path string, body interface{}) *http.Response {
	env.t.Helper()
	resp, err := env.Post(path, body)
	if err != nil {
		env.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// Post is POST without failing the test, for use from worker goroutines.
func (env *TestEnv) Post(path string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(http.MethodPost, env.Server.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

// Entry reads an entry straight from the database.
func (env *TestEnv) Entry(registry, wallet domain.Key) *domain.WhitelistEntry {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := env.Entries.Find(ctx, env.Pool, registry, wallet)
	if err != nil {
		env.t.Fatalf("Entry %s/%s: %v", registry, wallet, err)
	}
	if e == nil {
		env.t.Fatalf("Entry %s/%s: not found", registry, wallet)
	}
	return e
}
