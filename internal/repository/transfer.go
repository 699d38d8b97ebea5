package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/accredit/compliance/internal/domain"
	"github.com/accredit/compliance/internal/infra"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type transferRepo struct{}

// NewTransferRepository returns a pgx-backed TransferRepository.
func NewTransferRepository() TransferRepository {
	return &transferRepo{}
}

const transferColumns = `id, transfer_id, registry_key, sender, receiver, amount, kyc_checked,
		       effective_limit, daily_volume_after, executed_at, created_at`

const uniqueViolation = "23505"

func (r *transferRepo) FindByTransferID(ctx context.Context, db DBTX, registry domain.Key, transferID string) (*domain.TransferRecord, error) {
	row := db.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfer_records WHERE registry_key = $1 AND transfer_id = $2`,
		string(registry), transferID)
	return scanTransfer(row)
}

func (r *transferRepo) Insert(ctx context.Context, db DBTX, rec *domain.TransferRecord) (*domain.TransferRecord, error) {
	var receiver *string
	if rec.Receiver != nil {
		s := string(*rec.Receiver)
		receiver = &s
	}

	row := db.QueryRow(ctx, `
		INSERT INTO transfer_records
		  (transfer_id, registry_key, sender, receiver, amount, kyc_checked,
		   effective_limit, daily_volume_after, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+transferColumns,
		rec.TransferID,
		string(rec.Registry),
		string(rec.Sender),
		receiver,
		infra.Uint64ToNumeric(rec.Amount),
		rec.KycChecked,
		infra.Uint64ToNumeric(rec.EffectiveLimit),
		infra.Uint64ToNumeric(rec.DailyVolumeAfter),
		rec.ExecutedAt,
	)
	stored, err := scanTransfer(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrConflict("transfer_id already applied")
		}
		return nil, fmt.Errorf("insert transfer record: %w", err)
	}
	return stored, nil
}

func (r *transferRepo) ListByWallet(ctx context.Context, db DBTX, registry, wallet domain.Key, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfer_records
		WHERE registry_key = $1 AND sender = $2
		ORDER BY executed_at DESC, created_at DESC
		LIMIT $3`,
		string(registry), string(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("list transfer records: %w", err)
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		rec, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanTransfer(row pgx.Row) (*domain.TransferRecord, error) {
	var rec domain.TransferRecord
	var registry, sender string
	var receiver *string
	var amount, limit, volume pgtype.Numeric
	err := row.Scan(&rec.ID, &rec.TransferID, &registry, &sender, &receiver, &amount,
		&rec.KycChecked, &limit, &volume, &rec.ExecutedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transfer record: %w", err)
	}

	rec.Registry, rec.Sender = domain.Key(registry), domain.Key(sender)
	if receiver != nil {
		k := domain.Key(*receiver)
		rec.Receiver = &k
	}
	if rec.Amount, err = infra.NumericToUint64(amount); err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	if rec.EffectiveLimit, err = infra.NumericToUint64(limit); err != nil {
		return nil, fmt.Errorf("convert effective_limit: %w", err)
	}
	if rec.DailyVolumeAfter, err = infra.NumericToUint64(volume); err != nil {
		return nil, fmt.Errorf("convert daily_volume_after: %w", err)
	}
	return &rec, nil
}
