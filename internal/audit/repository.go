package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists and queries audit entries. There is deliberately no
// update or delete operation.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filters Filters) ([]Record, error)
	Summary(ctx context.Context, filters SummaryFilters) ([]SummaryRow, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends an entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	detail := entry.Detail
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("audit: encode detail: %w", err)
	}
	var target *string
	if entry.TargetID != "" {
		target = &entry.TargetID
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, module, target_id, detail, source_addr, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ActorID, entry.Action, entry.Module, target, detailJSON, entry.SourceAddr, entry.At)
	return err
}

// List returns entries matching filters, newest first.
func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filters.ActorID > 0 {
		add("actor_id = $%d", filters.ActorID)
	}
	if filters.Module != "" {
		add("module = $%d", filters.Module)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	if !filters.From.IsZero() {
		add("occurred_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("occurred_at <= $%d", filters.To)
	}
	query := `SELECT id, actor_id, action, module, COALESCE(target_id, ''), detail, source_addr, occurred_at FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var (
			rec    Record
			detail []byte
		)
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.Action, &rec.Module, &rec.TargetID, &detail, &rec.SourceAddr, &rec.At); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("audit: decode detail: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Summary counts entries per (bucket, module, action).
func (r *PGRepository) Summary(ctx context.Context, filters SummaryFilters) ([]SummaryRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT date_trunc($1, occurred_at) AS bucket, module, action, COUNT(*)
FROM audit_logs
WHERE occurred_at >= $2 AND occurred_at <= $3
GROUP BY bucket, module, action
ORDER BY bucket, module, action`, string(filters.Window), filters.From, filters.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SummaryRow
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.Bucket, &row.Module, &row.Action, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var _ Repository = (*PGRepository)(nil)
