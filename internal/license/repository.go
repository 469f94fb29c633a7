package license

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/platform/db"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// Repository persists license activations.
type Repository interface {
	// ActiveLicense returns the active row with the latest expiration or
	// shared.ErrNotFound.
	ActiveLicense(ctx context.Context) (*License, error)
	// Activate deactivates every active row and upserts key as the only
	// active license.
	Activate(ctx context.Context, key, company string, expiresAt, activatedAt time.Time) (*License, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const licenseColumns = `id, license_key, company, activated_at, expires_at, is_active`

// ActiveLicense implements Repository.
func (r *PGRepository) ActiveLicense(ctx context.Context) (*License, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+licenseColumns+` FROM licenses WHERE is_active = TRUE ORDER BY expires_at DESC LIMIT 1`)
	return scanLicense(row)
}

// Activate implements Repository. Both steps share one transaction so no
// observer sees zero active rows in between.
func (r *PGRepository) Activate(ctx context.Context, key, company string, expiresAt, activatedAt time.Time) (*License, error) {
	var result *License
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE licenses SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `UPDATE licenses SET company = $2, expires_at = $3, activated_at = $4, is_active = TRUE
WHERE id = (SELECT id FROM licenses WHERE license_key = $1 ORDER BY id LIMIT 1)
RETURNING `+licenseColumns, key, company, expiresAt, activatedAt)
		lic, err := scanLicense(row)
		if err == nil {
			result = lic
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		row = tx.QueryRow(ctx, `INSERT INTO licenses (license_key, company, activated_at, expires_at, is_active)
VALUES ($1, $2, $3, $4, TRUE)
RETURNING `+licenseColumns, key, company, activatedAt, expiresAt)
		result, err = scanLicense(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanLicense(row pgx.Row) (*License, error) {
	var lic License
	if err := row.Scan(&lic.ID, &lic.Key, &lic.Company, &lic.ActivatedAt, &lic.ExpiresAt, &lic.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &lic, nil
}

var _ Repository = (*PGRepository)(nil)
