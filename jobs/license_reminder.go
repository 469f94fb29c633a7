package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/assetdesk/assetdesk/internal/jobs"
	"github.com/assetdesk/assetdesk/internal/license"
	"github.com/assetdesk/assetdesk/internal/notify"
)

// LicenseStatusReader reports the current license state.
type LicenseStatusReader interface {
	Status(ctx context.Context) (license.Status, error)
}

// AdminNotifier fans a message out to every active admin.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, msg notify.Message) (int, error)
}

// LicenseReminderJob warns admins when the license is about to lapse.
type LicenseReminderJob struct {
	Licenses LicenseStatusReader
	Notifier AdminNotifier
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Support  string
}

// NewLicenseReminderJob wires dependencies for the reminder handler.
func NewLicenseReminderJob(licenses LicenseStatusReader, notifier AdminNotifier, support string, logger *slog.Logger, metrics *jobmetrics.Metrics) *LicenseReminderJob {
	return &LicenseReminderJob{Licenses: licenses, Notifier: notifier, Support: support, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLicenseExpiryReminder tasks.
func (j *LicenseReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Licenses == nil || j.Notifier == nil {
		return errors.New("license reminder: handler not configured")
	}
	var payload LicenseReminderPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskLicenseExpiryReminder)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	status, err := j.Licenses.Status(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("load license status", slog.Any("error", err))
		return resultErr
	}
	msg, state, due := j.message(status, payload.Force)
	if !due {
		j.logger().Info("license reminder not due", slog.Int("days_remaining", status.DaysRemaining))
		return resultErr
	}
	created, err := j.Notifier.NotifyAdmins(ctx, msg)
	if err != nil {
		resultErr = err
		j.logger().Error("notify admins", slog.Any("error", err))
		return resultErr
	}
	j.Metrics.AddReminders(state, created)
	j.logger().Info("license reminder sent", slog.String("state", state), slog.Int("recipients", created))
	return resultErr
}

func (j *LicenseReminderJob) message(status license.Status, force bool) (notify.Message, string, bool) {
	support := ""
	if j.Support != "" {
		support = " Contact " + j.Support + "."
	}
	switch {
	case status.Expired || !status.Valid:
		return notify.Message{
			Kind:  notify.KindWarning,
			Title: "License expired",
			Body:  "The software license is missing or expired; users are blocked until a new key is activated." + support,
			Link:  "/license",
		}, "expired", true
	case status.NearExpiry || force:
		return notify.Message{
			Kind:  notify.KindWarning,
			Title: fmt.Sprintf("License expires in %d days", status.DaysRemaining),
			Body:  "Renew the license for " + status.Company + " before it lapses." + support,
			Link:  "/license",
		}, "near_expiry", true
	}
	return notify.Message{}, "", false
}

func (j *LicenseReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
