// Package tickets holds the ticket intake path. It is the reference for how
// a business handler drives the cross-cutting pieces: audit after commit,
// sector fan-out, and stats invalidation.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/notify"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// Ticket is a helpdesk request.
type Ticket struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	SectorID    int64     `json:"sectorId"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateInput is the intake payload.
type CreateInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SectorID    int64  `json:"sectorId" validate:"required,gt=0"`
}

// Repository persists tickets.
type Repository interface {
	Insert(ctx context.Context, createdBy int64, in CreateInput) (Ticket, error)
	List(ctx context.Context, limit int) ([]Ticket, error)
}

// AuditRecorder receives best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// SectorNotifier fans a message out to a sector's technicians.
type SectorNotifier interface {
	NotifySector(ctx context.Context, sectorID int64, msg notify.Message) (int, error)
}

// StatsInvalidator drops the dashboard snapshot.
type StatsInvalidator interface {
	Invalidate()
}

// Service creates and lists tickets.
type Service struct {
	repo     Repository
	audit    AuditRecorder
	notifier SectorNotifier
	stats    StatsInvalidator
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, recorder AuditRecorder, notifier SectorNotifier, stats StatsInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, notifier: notifier, stats: stats, logger: logger}
}

// Create stores a ticket. Side effects run only after the insert succeeded
// and never fail the request.
func (s *Service) Create(ctx context.Context, actor shared.Actor, in CreateInput, sourceAddr string) (Ticket, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Priority == "" {
		in.Priority = "normal"
	}
	t, err := s.repo.Insert(ctx, actor.ID, in)
	if err != nil {
		return Ticket{}, fmt.Errorf("tickets: insert: %w", err)
	}
	if s.audit != nil {
		s.audit.Record(ctx, audit.Entry{
			ActorID:    actor.ID,
			Action:     "create",
			Module:     "tickets",
			TargetID:   strconv.FormatInt(t.ID, 10),
			Detail:     map[string]any{"title": t.Title, "priority": t.Priority, "sectorId": t.SectorID},
			SourceAddr: sourceAddr,
		})
	}
	if s.stats != nil {
		s.stats.Invalidate()
	}
	if s.notifier != nil {
		kind := notify.KindInfo
		if t.Priority == "urgent" || t.Priority == "high" {
			kind = notify.KindWarning
		}
		_, err := s.notifier.NotifySector(ctx, t.SectorID, notify.Message{
			Kind:  kind,
			Title: "New ticket: " + t.Title,
			Body:  "Priority " + t.Priority,
			Link:  "/tickets/" + strconv.FormatInt(t.ID, 10),
		})
		if err != nil {
			s.logger.Warn("ticket sector notification failed", slog.Int64("ticket_id", t.ID), slog.Any("error", err))
		}
	}
	return t, nil
}

// List returns the newest tickets.
func (s *Service) List(ctx context.Context, limit int) ([]Ticket, error) {
	items, err := s.repo.List(ctx, shared.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("tickets: list: %w", err)
	}
	if items == nil {
		items = []Ticket{}
	}
	return items, nil
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const ticketColumns = `id, title, description, priority, status, sector_id, created_by, created_at`

// Insert stores an open ticket.
func (r *PGRepository) Insert(ctx context.Context, createdBy int64, in CreateInput) (Ticket, error) {
	var t Ticket
	err := r.pool.QueryRow(ctx, `INSERT INTO tickets (title, description, priority, sector_id, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+ticketColumns, in.Title, in.Description, in.Priority, in.SectorID, createdBy).
		Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.SectorID, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Ticket{}, fmt.Errorf("%w: unknown sector", shared.ErrValidation)
		}
		return Ticket{}, err
	}
	return t, nil
}

// List returns tickets newest first.
func (r *PGRepository) List(ctx context.Context, limit int) ([]Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.SectorID, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
