//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates all tables. CASCADE covers the registry foreign keys.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables := []string{
		"event_outbox",
		"transfer_records",
		"whitelist_entries",
		"kyc_registries",
	}

	for _, table := range tables {
		if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			env.t.Fatalf("CleanAll: truncate %s: %v", table, err)
		}
	}
}
