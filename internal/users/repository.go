package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/auth"
	"github.com/assetdesk/assetdesk/internal/platform/db"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u NewUser) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
	SetRole(ctx context.Context, id int64, role shared.Role) (User, error)
	SetSectors(ctx context.Context, id int64, sectorIDs []int64) error
}

// Repository implements RepositoryPort using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `u.id, u.name, u.email, u.role, u.is_active, u.created_at, u.updated_at,
    COALESCE(ARRAY(SELECT ts.sector_id FROM technician_sectors ts WHERE ts.user_id = u.id ORDER BY ts.sector_id), '{}')`

// ListUsers returns users ordered by name.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, fmt.Sprintf("u.role = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "u.is_active")
	}
	query := `SELECT ` + userColumns + ` FROM users u`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY u.name, u.id"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUser loads one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
}

// CreateUser inserts an active user.
func (r *Repository) CreateUser(ctx context.Context, nu NewUser) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, role, is_active)
VALUES ($1, $2, $3, $4, TRUE) RETURNING id`, nu.Name, nu.Email, nu.PasswordHash, string(nu.Role)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, auth.ErrEmailTaken
		}
		return User{}, err
	}
	return r.GetUser(ctx, id)
}

// SetActive toggles the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, shared.ErrNotFound
	}
	return r.GetUser(ctx, id)
}

// SetRole changes the coarse role.
func (r *Repository) SetRole(ctx context.Context, id int64, role shared.Role) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, shared.ErrNotFound
	}
	return r.GetUser(ctx, id)
}

// SetSectors replaces the technician sector bindings in one transaction.
func (r *Repository) SetSectors(ctx context.Context, id int64, sectorIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM technician_sectors WHERE user_id = $1`, id); err != nil {
			return err
		}
		if len(sectorIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO technician_sectors (user_id, sector_id)
SELECT $1, s FROM unnest($2::bigint[]) AS s ON CONFLICT DO NOTHING`, id, sectorIDs)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: unknown sector", shared.ErrValidation)
		}
		return err
	})
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.SectorIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	u.Role = shared.Role(role)
	return u, nil
}

var _ RepositoryPort = (*Repository)(nil)
