package repository

import (
	"context"

	"github.com/accredit/compliance/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// RegistryRepository provides access to kyc_registries.
type RegistryRepository interface {
	// FindByKey returns a registry by key, or nil if none exists.
	FindByKey(ctx context.Context, db DBTX, key domain.Key) (*domain.KycRegistry, error)

	// FindByMint returns the registry governing a mint, or nil.
	FindByMint(ctx context.Context, db DBTX, mint domain.Key) (*domain.KycRegistry, error)

	// Create inserts a new registry.
	Create(ctx context.Context, db DBTX, reg *domain.KycRegistry) error
}

// EntryRepository provides access to whitelist_entries.
type EntryRepository interface {
	// Find returns the entry for (registry, wallet), or nil.
	Find(ctx context.Context, db DBTX, registry, wallet domain.Key) (*domain.WhitelistEntry, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the entry, or nil.
	LockForUpdate(ctx context.Context, tx pgx.Tx, registry, wallet domain.Key) (*domain.WhitelistEntry, error)

	// Create inserts a new entry and bumps the registry's whitelist_count.
	Create(ctx context.Context, db DBTX, entry *domain.WhitelistEntry) error

	// UpdateUsage writes back the rolling-window state of one entry.
	UpdateUsage(ctx context.Context, tx pgx.Tx, registry, wallet domain.Key, usage domain.Usage) error

	// ListByRegistry returns entries of a registry ordered by wallet, after the
	// given wallet cursor when non-empty.
	ListByRegistry(ctx context.Context, db DBTX, registry domain.Key, after domain.Key, limit int) ([]domain.WhitelistEntry, error)
}

// TransferRepository provides access to transfer_records.
type TransferRepository interface {
	// FindByTransferID checks the idempotency index for an applied transfer.
	FindByTransferID(ctx context.Context, db DBTX, registry domain.Key, transferID string) (*domain.TransferRecord, error)

	// Insert writes an applied transfer and returns the stored row.
	Insert(ctx context.Context, db DBTX, rec *domain.TransferRecord) (*domain.TransferRecord, error)

	// ListByWallet returns the most recent transfers sent by a wallet, newest first.
	ListByWallet(ctx context.Context, db DBTX, registry, wallet domain.Key, limit int) ([]domain.TransferRecord, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the usage update).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox poller.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished deletes events once they reach the broker.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error

	// TryLockRelay takes the relay's transaction-scoped advisory lock and
	// reports whether it was free. db must be a transaction; the lock is
	// released when it commits or rolls back.
	TryLockRelay(ctx context.Context, db DBTX) (bool, error)

	// Backlog counts queued events and reports the oldest occurred_at.
	Backlog(ctx context.Context, db DBTX) (domain.OutboxBacklog, error)
}
