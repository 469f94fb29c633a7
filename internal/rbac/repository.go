package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/platform/db"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// Repository persists module permissions.
type Repository interface {
	PrincipalRole(ctx context.Context, principalID int64) (shared.Role, error)
	Capabilities(ctx context.Context, principalID int64, module string) (Capabilities, bool, error)
	Permissions(ctx context.Context, principalID int64) (PermissionSet, error)
	Replace(ctx context.Context, principalID int64, set PermissionSet) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// PrincipalRole returns the role of an active principal.
func (r *PGRepository) PrincipalRole(ctx context.Context, principalID int64) (shared.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, principalID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return shared.Role(role), nil
}

// Capabilities loads one row; the boolean is false when no row exists.
func (r *PGRepository) Capabilities(ctx context.Context, principalID int64, module string) (Capabilities, bool, error) {
	var c Capabilities
	err := r.pool.QueryRow(ctx, `SELECT can_view, can_create, can_edit, can_delete
FROM module_permissions WHERE user_id = $1 AND module = $2`, principalID, module).
		Scan(&c.View, &c.Create, &c.Edit, &c.Delete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Capabilities{}, false, nil
		}
		return Capabilities{}, false, err
	}
	return c, true, nil
}

// Permissions loads every row for a principal.
func (r *PGRepository) Permissions(ctx context.Context, principalID int64) (PermissionSet, error) {
	rows, err := r.pool.Query(ctx, `SELECT module, can_view, can_create, can_edit, can_delete
FROM module_permissions WHERE user_id = $1 ORDER BY module`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := PermissionSet{}
	for rows.Next() {
		var (
			module string
			c      Capabilities
		)
		if err := rows.Scan(&module, &c.View, &c.Create, &c.Edit, &c.Delete); err != nil {
			return nil, err
		}
		set[module] = c
	}
	return set, rows.Err()
}

// Replace deletes all rows for the principal and inserts set in one
// transaction, so readers never observe the empty intermediate state.
func (r *PGRepository) Replace(ctx context.Context, principalID int64, set PermissionSet) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM module_permissions WHERE user_id = $1`, principalID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for module, c := range set {
			batch.Queue(`INSERT INTO module_permissions (user_id, module, can_view, can_create, can_edit, can_delete)
VALUES ($1, $2, $3, $4, $5, $6)`, principalID, module, c.View, c.Create, c.Edit, c.Delete)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

var _ Repository = (*PGRepository)(nil)
