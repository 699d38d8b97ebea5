package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/infra"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type entryRepo struct{}

// NewEntryRepository returns a pgx-backed EntryRepository.
func NewEntryRepository() EntryRepository {
	return &entryRepo{}
}

const entryColumns = `registry_key, wallet, kyc_level, jurisdiction, kyc_hash, is_active,
		       verified_at, expiry_timestamp, created_at, last_activity,
		       daily_limit, daily_volume, volume_reset_time`

func (r *entryRepo) Find(ctx context.Context, db DBTX, registry, wallet domain.Key) (*domain.WhitelistEntry, error) {
	row := db.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM whitelist_entries WHERE registry_key = $1 AND wallet = $2`,
		string(registry), string(wallet))
	return scanEntry(row)
}

func (r *entryRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, registry, wallet domain.Key) (*domain.WhitelistEntry, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM whitelist_entries WHERE registry_key = $1 AND wallet = $2 FOR UPDATE`,
		string(registry), string(wallet))
	return scanEntry(row)
}

func (r *entryRepo) Create(ctx context.Context, db DBTX, e *domain.WhitelistEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO whitelist_entries
		  (registry_key, wallet, kyc_level, jurisdiction, kyc_hash, is_active,
		   verified_at, expiry_timestamp, created_at, last_activity,
		   daily_limit, daily_volume, volume_reset_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(e.Registry),
		string(e.Wallet),
		int16(e.KycLevel),
		int16(e.Jurisdiction),
		e.KycHash[:],
		e.IsActive,
		e.VerifiedAt,
		e.ExpiryTimestamp,
		e.CreatedAt,
		e.LastActivity,
		infra.Uint64ToNumeric(e.DailyLimit),
		infra.Uint64ToNumeric(e.DailyVolume),
		e.VolumeResetTime,
	)
	if err != nil {
		return fmt.Errorf("insert whitelist entry: %w", err)
	}

	_, err = db.Exec(ctx, `
		UPDATE kyc_registries SET whitelist_count = whitelist_count + 1
		WHERE registry_key = $1`, string(e.Registry))
	if err != nil {
		return fmt.Errorf("bump whitelist count: %w", err)
	}
	return nil
}

func (r *entryRepo) UpdateUsage(ctx context.Context, tx pgx.Tx, registry, wallet domain.Key, usage domain.Usage) error {
	tag, err := tx.Exec(ctx, `
		UPDATE whitelist_entries
		SET daily_volume = $3, volume_reset_time = $4, last_activity = $5
		WHERE registry_key = $1 AND wallet = $2`,
		string(registry), string(wallet),
		infra.Uint64ToNumeric(usage.DailyVolume),
		usage.VolumeResetTime,
		usage.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update usage: entry %s/%s not found", registry, wallet)
	}
	return nil
}

func (r *entryRepo) ListByRegistry(ctx context.Context, db DBTX, registry domain.Key, after domain.Key, limit int) ([]domain.WhitelistEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM whitelist_entries
		WHERE registry_key = $1 AND wallet > $2
		ORDER BY wallet ASC
		LIMIT $3`,
		string(registry), string(after), limit)
	if err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.WhitelistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*domain.WhitelistEntry, error) {
	var e domain.WhitelistEntry
	var registry, wallet string
	var level, jurisdiction int16
	var hash []byte
	var limitNum, volumeNum pgtype.Numeric
	err := row.Scan(&registry, &wallet, &level, &jurisdiction, &hash, &e.IsActive,
		&e.VerifiedAt, &e.ExpiryTimestamp, &e.CreatedAt, &e.LastActivity,
		&limitNum, &volumeNum, &e.VolumeResetTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan whitelist entry: %w", err)
	}

	e.Registry, e.Wallet = domain.Key(registry), domain.Key(wallet)
	e.KycLevel = domain.KycLevel(level)
	e.Jurisdiction = domain.Jurisdiction(jurisdiction)
	if len(hash) != domain.KycHashSize {
		return nil, fmt.Errorf("kyc_hash has %d bytes", len(hash))
	}
	copy(e.KycHash[:], hash)

	if e.DailyLimit, err = infra.NumericToUint64(limitNum); err != nil {
		return nil, fmt.Errorf("convert daily_limit: %w", err)
	}
	if e.DailyVolume, err = infra.NumericToUint64(volumeNum); err != nil {
		return nil, fmt.Errorf("convert daily_volume: %w", err)
	}
	return &e, nil
}
