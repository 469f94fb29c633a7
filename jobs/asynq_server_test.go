package jobs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLifecycle(t *testing.T) {
	client, err := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestHealthWithoutInspectorReportsDefaultQueue(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}

func TestWorkerSkipsIncompleteRegistrations(t *testing.T) {
	task, err := NewLicenseReminderTask(LicenseReminderPayload{})
	require.NoError(t, err)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: ""}, {Type: TaskLicenseExpiryReminder, Handler: (&LicenseReminderJob{}).Handle}},
		Cron:      []CronRegistration{{Spec: LicenseReminderCron, Task: task}, {Spec: "", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, w.scheduler)
}
