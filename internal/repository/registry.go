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

type registryRepo struct{}

// NewRegistryRepository returns a pgx-backed RegistryRepository.
func NewRegistryRepository() RegistryRepository {
	return &registryRepo{}
}

const registryColumns = `registry_key, authority, mint, whitelist_count, is_active, require_kyc,
		       verified_only, jurisdiction_mask, created_at, updated_at`

func (r *registryRepo) FindByKey(ctx context.Context, db DBTX, key domain.Key) (*domain.KycRegistry, error) {
	row := db.QueryRow(ctx, `SELECT `+registryColumns+` FROM kyc_registries WHERE registry_key = $1`, string(key))
	return scanRegistry(row)
}

func (r *registryRepo) FindByMint(ctx context.Context, db DBTX, mint domain.Key) (*domain.KycRegistry, error) {
	row := db.QueryRow(ctx, `SELECT `+registryColumns+` FROM kyc_registries WHERE mint = $1`, string(mint))
	return scanRegistry(row)
}

func (r *registryRepo) Create(ctx context.Context, db DBTX, reg *domain.KycRegistry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO kyc_registries
		  (registry_key, authority, mint, whitelist_count, is_active, require_kyc,
		   verified_only, jurisdiction_mask, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(reg.Key),
		string(reg.Authority),
		string(reg.Mint),
		infra.Uint64ToNumeric(reg.WhitelistCount),
		reg.IsActive,
		reg.RequireKyc,
		reg.VerifiedOnly,
		int16(reg.JurisdictionMask),
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	return nil
}

func scanRegistry(row pgx.Row) (*domain.KycRegistry, error) {
	var reg domain.KycRegistry
	var key, authority, mint string
	var count pgtype.Numeric
	var mask int16
	err := row.Scan(&key, &authority, &mint, &count, &reg.IsActive, &reg.RequireKyc,
		&reg.VerifiedOnly, &mask, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan registry: %w", err)
	}

	reg.Key, reg.Authority, reg.Mint = domain.Key(key), domain.Key(authority), domain.Key(mint)
	reg.JurisdictionMask = uint8(mask)
	if reg.WhitelistCount, err = infra.NumericToUint64(count); err != nil {
		return nil, fmt.Errorf("convert whitelist_count: %w", err)
	}
	return &reg, nil
}
