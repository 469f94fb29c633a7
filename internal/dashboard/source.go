package dashboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSource computes Stats with a single round trip.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource constructs a PostgreSQL backed Source.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// Load implements Source.
func (s *PGSource) Load(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `SELECT
    (SELECT COUNT(*) FROM assets),
    (SELECT COUNT(*) FROM assets WHERE status = 'in_use'),
    (SELECT COUNT(*) FROM tickets WHERE status <> 'closed'),
    (SELECT COUNT(*) FROM tickets WHERE status <> 'closed' AND priority = 'urgent'),
    (SELECT COUNT(*) FROM tickets WHERE created_at >= date_trunc('day', NOW())),
    (SELECT COUNT(*) FROM users WHERE is_active),
    (SELECT COUNT(*) FROM users WHERE is_active AND role = 'technician')`).
		Scan(&st.TotalAssets, &st.AssetsInUse, &st.OpenTickets, &st.UrgentTickets, &st.TicketsCreatedDay, &st.ActiveUsers, &st.Technicians)
	if err != nil {
		return Stats{}, fmt.Errorf("dashboard: load stats: %w", err)
	}
	return st, nil
}

var _ Source = (*PGSource)(nil)
