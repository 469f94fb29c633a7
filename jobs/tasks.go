package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLicenseExpiryReminder warns admins about a license close to or past expiry.
	TaskLicenseExpiryReminder = "license:expiry_reminder"
	// LicenseReminderCron runs the reminder every morning, UTC.
	LicenseReminderCron = "0 8 * * *"
)

// LicenseReminderPayload carries optional overrides for a reminder run.
type LicenseReminderPayload struct {
	// Force sends the reminder even when the license is far from expiry.
	Force bool `json:"force,omitempty"`
}

// NewLicenseReminderTask constructs an Asynq task.
func NewLicenseReminderTask(payload LicenseReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLicenseExpiryReminder, data), nil
}
