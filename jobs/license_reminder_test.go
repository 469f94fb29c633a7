package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/assetdesk/assetdesk/internal/jobs"
	"github.com/assetdesk/assetdesk/internal/license"
	"github.com/assetdesk/assetdesk/internal/notify"
)

type stubLicenses struct {
	status license.Status
	err    error
}

func (s stubLicenses) Status(context.Context) (license.Status, error) {
	return s.status, s.err
}

type recordingNotifier struct {
	messages []notify.Message
	admins   int
	err      error
}

func (n *recordingNotifier) NotifyAdmins(_ context.Context, msg notify.Message) (int, error) {
	if n.err != nil {
		return 0, n.err
	}
	n.messages = append(n.messages, msg)
	return n.admins, nil
}

func newReminderTask(t *testing.T, payload LicenseReminderPayload) *asynq.Task {
	t.Helper()
	task, err := NewLicenseReminderTask(payload)
	require.NoError(t, err)
	return task
}

func TestLicenseReminderNearExpiry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	notifier := &recordingNotifier{admins: 2}
	job := NewLicenseReminderJob(stubLicenses{status: license.Status{
		Valid: true, Company: "Acme", DaysRemaining: 12, NearExpiry: true,
	}}, notifier, "support@example.com", nil, metrics)

	require.NoError(t, job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{})))

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Equal(t, notify.KindWarning, msg.Kind)
	assert.Contains(t, msg.Title, "12 days")
	assert.Contains(t, msg.Body, "Acme")
	assert.Contains(t, msg.Body, "support@example.com")

	assert.Equal(t, float64(2), sumCounter(t, reg, "assetdesk_license_reminders_total"))
}

func TestLicenseReminderExpired(t *testing.T) {
	notifier := &recordingNotifier{admins: 1}
	job := NewLicenseReminderJob(stubLicenses{status: license.Status{Expired: true}}, notifier, "", nil, nil)

	require.NoError(t, job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{})))

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, notify.KindWarning, notifier.messages[0].Kind)
	assert.Equal(t, "License expired", notifier.messages[0].Title)
}

func TestLicenseReminderSkipsHealthyLicense(t *testing.T) {
	notifier := &recordingNotifier{admins: 3}
	job := NewLicenseReminderJob(stubLicenses{status: license.Status{
		Valid: true, Company: "Acme", DaysRemaining: 200,
	}}, notifier, "", nil, nil)

	require.NoError(t, job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{})))
	assert.Empty(t, notifier.messages)

	require.NoError(t, job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{Force: true})))
	assert.Len(t, notifier.messages, 1)
}

func TestLicenseReminderPropagatesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	statusErr := errors.New("db down")

	job := NewLicenseReminderJob(stubLicenses{err: statusErr}, &recordingNotifier{}, "", nil, metrics)
	err := job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{}))
	assert.ErrorIs(t, err, statusErr)

	notifyErr := errors.New("broker down")
	job = NewLicenseReminderJob(stubLicenses{status: license.Status{Expired: true}}, &recordingNotifier{err: notifyErr}, "", nil, metrics)
	err = job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{}))
	assert.ErrorIs(t, err, notifyErr)

	assert.Equal(t, float64(2), sumCounter(t, reg, "assetdesk_jobs_failures_total"))
}

func TestLicenseReminderRejectsBadPayload(t *testing.T) {
	job := NewLicenseReminderJob(stubLicenses{}, &recordingNotifier{}, "", nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLicenseExpiryReminder, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLicenseReminderNotConfigured(t *testing.T) {
	var job *LicenseReminderJob
	assert.Error(t, job.Handle(context.Background(), newReminderTask(t, LicenseReminderPayload{})))
}

func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
