package notify

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves fan-out recipients.
type Directory interface {
	SectorTechnicians(ctx context.Context, sectorID int64) ([]int64, error)
	ActiveAdmins(ctx context.Context) ([]int64, error)
}

const (
	sectorTechniciansQuery = `SELECT u.id FROM users u
JOIN technician_sectors ts ON ts.user_id = u.id
WHERE ts.sector_id = $1 AND u.is_active AND u.role = 'technician'
ORDER BY u.id`
	activeAdminsQuery = `SELECT id FROM users WHERE is_active AND role = 'admin' ORDER BY id`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGDirectory implements Directory using PostgreSQL.
type PGDirectory struct {
	db querier
}

// NewDirectory constructs a PostgreSQL directory.
func NewDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{db: pool}
}

// SectorTechnicians lists active technicians bound to sectorID.
func (d *PGDirectory) SectorTechnicians(ctx context.Context, sectorID int64) ([]int64, error) {
	return d.ids(ctx, sectorTechniciansQuery, sectorID)
}

// ActiveAdmins lists every active admin.
func (d *PGDirectory) ActiveAdmins(ctx context.Context) ([]int64, error) {
	return d.ids(ctx, activeAdminsQuery)
}

func (d *PGDirectory) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var _ Directory = (*PGDirectory)(nil)
