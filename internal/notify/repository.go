package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Repository persists notifications.
type Repository interface {
	Insert(ctx context.Context, recipient int64, msg Message) (Notification, error)
	List(ctx context.Context, recipient int64, filter ListFilter) ([]Notification, error)
	MarkRead(ctx context.Context, recipient, id int64) error
	MarkAllRead(ctx context.Context, recipient int64) (int64, error)
	UnreadCount(ctx context.Context, recipient int64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const notificationColumns = `id, user_id, kind, title, body, COALESCE(link, ''), is_read, created_at`

// Insert stores an unread notification.
func (r *PGRepository) Insert(ctx context.Context, recipient int64, msg Message) (Notification, error) {
	var link *string
	if msg.Link != "" {
		link = &msg.Link
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO notifications (user_id, kind, title, body, link, is_read)
VALUES ($1, $2, $3, $4, $5, FALSE)
RETURNING `+notificationColumns, recipient, string(msg.Kind), msg.Title, msg.Body, link)
	n, err := scanNotification(row)
	if err != nil {
		return Notification{}, insertError(err)
	}
	return n, nil
}

// insertError maps a foreign key violation on user_id to a validation error.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return fmt.Errorf("%w: unknown recipient", shared.ErrValidation)
	}
	return err
}

// List returns the newest notifications of recipient first.
func (r *PGRepository) List(ctx context.Context, recipient int64, filter ListFilter) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+`
FROM notifications
WHERE user_id = $1 AND ($2::boolean IS NULL OR is_read = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, recipient, filter.Read, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notification owned by recipient.
func (r *PGRepository) MarkRead(ctx context.Context, recipient, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, recipient)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification of recipient.
func (r *PGRepository) MarkAllRead(ctx context.Context, recipient int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, recipient)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnreadCount counts unread notifications of recipient.
func (r *PGRepository) UnreadCount(ctx context.Context, recipient int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, recipient).Scan(&count)
	return count, err
}

func scanNotification(row pgx.Row) (Notification, error) {
	var (
		n    Notification
		kind string
	)
	if err := row.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, shared.ErrNotFound
		}
		return Notification{}, err
	}
	n.Kind = Kind(kind)
	return n, nil
}

var _ Repository = (*PGRepository)(nil)
