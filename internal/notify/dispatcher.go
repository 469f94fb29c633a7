package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/platform/effects"
	"github.com/assetdesk/assetdesk/internal/platform/httpx"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// PushMetrics counts live push outcomes.
type PushMetrics interface {
	NotificationPushed(result string)
}

// Dispatcher stores notifications and pushes them to live subscribers.
type Dispatcher struct {
	repo      Repository
	directory Directory
	broker    Broker
	runner    *effects.Runner
	logger    *slog.Logger
	metrics   PushMetrics
	validator *validator.Validate
}

// NewDispatcher constructs a Dispatcher. A nil broker disables live push.
func NewDispatcher(repo Repository, directory Directory, broker Broker, runner *effects.Runner, logger *slog.Logger, metrics PushMetrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		repo:      repo,
		directory: directory,
		broker:    broker,
		runner:    runner,
		logger:    logger,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// Create stores a notification for recipient and schedules its live push.
// The row is durable once Create returns; the push may still fail.
func (d *Dispatcher) Create(ctx context.Context, recipient int64, msg Message) (Notification, error) {
	if recipient <= 0 {
		return Notification{}, fmt.Errorf("%w: recipient required", shared.ErrValidation)
	}
	msg, err := d.normalize(msg)
	if err != nil {
		return Notification{}, err
	}
	n, err := d.repo.Insert(ctx, recipient, msg)
	if err != nil {
		return Notification{}, fmt.Errorf("notify: insert: %w", err)
	}
	d.push(ctx, n)
	return n, nil
}

// List returns the recipient's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, recipient int64, filter ListFilter) ([]Notification, error) {
	filter.Limit = shared.ClampLimit(filter.Limit)
	items, err := d.repo.List(ctx, recipient, filter)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	if items == nil {
		items = []Notification{}
	}
	return items, nil
}

// MarkRead flags a notification owned by recipient as read.
func (d *Dispatcher) MarkRead(ctx context.Context, recipient, id int64) error {
	if err := d.repo.MarkRead(ctx, recipient, id); err != nil {
		return fmt.Errorf("notify: mark read: %w", err)
	}
	return nil
}

// MarkAllRead flags every notification of recipient as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, recipient int64) (int64, error) {
	n, err := d.repo.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("notify: mark all read: %w", err)
	}
	return n, nil
}

// UnreadCount counts unread notifications of recipient.
func (d *Dispatcher) UnreadCount(ctx context.Context, recipient int64) (int64, error) {
	n, err := d.repo.UnreadCount(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("notify: unread count: %w", err)
	}
	return n, nil
}

// NotifySector notifies every active technician bound to sectorID and
// returns how many notifications were stored.
func (d *Dispatcher) NotifySector(ctx context.Context, sectorID int64, msg Message) (int, error) {
	recipients, err := d.directory.SectorTechnicians(ctx, sectorID)
	if err != nil {
		return 0, fmt.Errorf("notify: resolve sector %d: %w", sectorID, err)
	}
	return d.fanOut(ctx, recipients, msg, slog.Int64("sector_id", sectorID))
}

// NotifyAdmins notifies every active admin.
func (d *Dispatcher) NotifyAdmins(ctx context.Context, msg Message) (int, error) {
	recipients, err := d.directory.ActiveAdmins(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: resolve admins: %w", err)
	}
	return d.fanOut(ctx, recipients, msg, slog.String("audience", "admins"))
}

func (d *Dispatcher) fanOut(ctx context.Context, recipients []int64, msg Message, scope slog.Attr) (int, error) {
	msg, err := d.normalize(msg)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, recipient := range recipients {
		if _, err := d.Create(ctx, recipient, msg); err != nil {
			d.logger.Warn("notification fan-out skipped recipient", scope, slog.Int64("recipient", recipient), slog.Any("error", err))
			continue
		}
		created++
	}
	return created, nil
}

func (d *Dispatcher) normalize(msg Message) (Message, error) {
	kind, err := ParseKind(string(msg.Kind))
	if err != nil {
		return Message{}, err
	}
	msg.Kind = kind
	msg.Title = strings.TrimSpace(msg.Title)
	msg.Body = strings.TrimSpace(msg.Body)
	msg.Link = strings.TrimSpace(msg.Link)
	if err := httpx.Validate(d.validator, msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (d *Dispatcher) push(ctx context.Context, n Notification) {
	if d.broker == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Warn("encode notification", slog.Int64("id", n.ID), slog.Any("error", err))
		return
	}
	topic := Topic(n.UserID)
	publish := func(taskCtx context.Context) error {
		err := d.broker.Publish(taskCtx, topic, payload)
		if d.metrics != nil {
			if err != nil {
				d.metrics.NotificationPushed("failed")
			} else {
				d.metrics.NotificationPushed("ok")
			}
		}
		return err
	}
	if d.runner == nil {
		if err := publish(ctx); err != nil {
			d.logger.Warn("notification push failed", slog.Int64("id", n.ID), slog.Any("error", err))
		}
		return
	}
	d.runner.Go(ctx, "notify:push", publish)
}
