package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo/repotest"
	"github.com/shaiso/Regwatch/internal/scheduler"
	"github.com/shaiso/Regwatch/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testAPI struct {
	server    *httptest.Server
	schedules *repotest.ScheduleStore
	jobs      *repotest.JobStore
	clock     atomic.Int64
}

func (e *testAPI) setNow(t time.Time) { e.clock.Store(t.UnixNano()) }

func (e *testAPI) now() time.Time { return time.Unix(0, e.clock.Load()).UTC() }

func newTestAPI(t *testing.T, ratePerMin int) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testAPI{
		schedules: repotest.NewScheduleStore(),
		jobs:      repotest.NewJobStore(),
	}
	env.setNow(testNow)
	clock := env.now

	h := NewHandler(Config{
		Schedules:          scheduler.NewService(scheduler.ServiceConfig{Store: env.schedules, Logger: logger, Now: clock}),
		Jobs:               env.jobs,
		Guard:              scheduler.NewDuplicateGuard(env.jobs, logger),
		Dispatcher:         scheduler.NewDispatcher(worker.NewQueueExecutor(env.jobs, nil, logger), time.Second, logger),
		DispatchRatePerMin: ratePerMin,
		Logger:             logger,
		Now:                clock,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	env.server = httptest.NewServer(mux)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testAPI) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope), string(body))
	return envelope.Data
}

func decodeError(t *testing.T, body []byte) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp.Error
}

func (e *testAPI) createSchedule(t *testing.T, req CreateScheduleRequest) ScheduleResponse {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/v1/schedules", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decodeData[ScheduleResponse](t, body)
}

// --- Schedules ---

func TestCreateSchedule(t *testing.T) {
	api := newTestAPI(t, 0)

	created := api.createSchedule(t, CreateScheduleRequest{
		Name:      "texas morning",
		CronExpr:  "0 9 * * *",
		States:    []string{"tx"},
		DataTypes: []domain.DataType{"rules", "emissions"},
	})

	assert.Equal(t, "texas morning", created.Name)
	assert.Equal(t, []string{"TX"}, created.States)
	assert.Equal(t, []string{"emissions", "rules"}, created.DataTypes)
	assert.Equal(t, "summary", created.Depth)
	assert.True(t, created.IsActive)
	assert.True(t, created.NextRunAt.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.Nil(t, created.LastRunAt)
}

func TestCreateSchedule_Invalid(t *testing.T) {
	api := newTestAPI(t, 0)

	tests := []struct {
		name string
		body any
	}{
		{"bad cron", CreateScheduleRequest{Name: "x", CronExpr: "not a cron", States: []string{"TX"}, DataTypes: []domain.DataType{"rules"}}},
		{"missing states", CreateScheduleRequest{Name: "x", CronExpr: "0 9 * * *", DataTypes: []domain.DataType{"rules"}}},
		{"malformed json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := api.do(t, http.MethodPost, "/api/v1/schedules", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, ErrCodeBadRequest, decodeError(t, body).Code)
		})
	}
	assert.Zero(t, api.schedules.Len())
}

func TestGetUpdateDeleteSchedule(t *testing.T) {
	api := newTestAPI(t, 0)
	created := api.createSchedule(t, CreateScheduleRequest{
		Name: "s", CronExpr: "0 9 * * *", States: []string{"CA"}, DataTypes: []domain.DataType{"forms"},
	})
	path := "/api/v1/schedules/" + created.ID.String()

	resp, body := api.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decodeData[ScheduleResponse](t, body).ID)

	api.setNow(testNow.Add(10 * time.Hour))
	expr := "*/15 * * * *"
	resp, body = api.do(t, http.MethodPut, path, UpdateScheduleRequest{CronExpr: &expr})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decodeData[ScheduleResponse](t, body)
	assert.Equal(t, expr, updated.CronExpr)
	assert.True(t, updated.NextRunAt.Equal(testNow.Add(10*time.Hour+15*time.Minute)))

	bad := "99 * * * *"
	resp, _ = api.do(t, http.MethodPut, path, UpdateScheduleRequest{CronExpr: &bad})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, body).Code)
}

func TestGetSchedule_InvalidID(t *testing.T) {
	api := newTestAPI(t, 0)
	resp, _ := api.do(t, http.MethodGet, "/api/v1/schedules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetScheduleActive(t *testing.T) {
	api := newTestAPI(t, 0)
	created := api.createSchedule(t, CreateScheduleRequest{
		Name: "s", CronExpr: "0 9 * * *", States: []string{"CA"}, DataTypes: []domain.DataType{"forms"},
	})
	path := "/api/v1/schedules/" + created.ID.String() + "/active"

	resp, body := api.do(t, http.MethodPut, path, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeData[ScheduleResponse](t, body).IsActive)

	resp, _ = api.do(t, http.MethodPut, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPut, "/api/v1/schedules/"+uuid.NewString()+"/active", map[string]bool{"active": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSchedules_DueActiveUpcoming(t *testing.T) {
	api := newTestAPI(t, 0)
	early := api.createSchedule(t, CreateScheduleRequest{
		Name: "early", CronExpr: "0 2 * * *", States: []string{"TX"}, DataTypes: []domain.DataType{"rules"},
	})
	late := api.createSchedule(t, CreateScheduleRequest{
		Name: "late", CronExpr: "0 20 * * *", States: []string{"CA"}, DataTypes: []domain.DataType{"rules"},
	})
	inactive := false
	api.createSchedule(t, CreateScheduleRequest{
		Name: "paused", CronExpr: "0 1 * * *", States: []string{"NY"}, DataTypes: []domain.DataType{"rules"}, IsActive: &inactive,
	})

	resp, body := api.do(t, http.MethodGet, "/api/v1/schedules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeData[[]ScheduleResponse](t, body), 3)

	resp, body = api.do(t, http.MethodGet, "/api/v1/schedules?active=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeData[[]ScheduleResponse](t, body), 1)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/schedules?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, "/api/v1/schedules/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeData[[]ScheduleResponse](t, body)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID)

	resp, body = api.do(t, http.MethodGet, "/api/v1/schedules/due?at=2025-01-01T03:00:00Z", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	due := decodeData[[]ScheduleResponse](t, body)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/schedules/due?at=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, "/api/v1/schedules/upcoming?hours=24", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	upcoming := decodeData[[]UpcomingResponse](t, body)
	require.Len(t, upcoming, 2)
	assert.Equal(t, early.ID, upcoming[0].Schedule.ID)
	assert.Equal(t, int64(2*60*60), upcoming[0].TimeUntilSeconds)
	assert.Equal(t, late.ID, upcoming[1].Schedule.ID)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/schedules/upcoming?hours=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- Cron ---

func TestPreviewCron(t *testing.T) {
	api := newTestAPI(t, 0)

	resp, body := api.do(t, http.MethodGet, "/api/v1/cron/preview?expr=0+*/4+*+*+*&count=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	preview := decodeData[CronPreviewResponse](t, body)
	require.Len(t, preview.FireTimes, 3)
	assert.True(t, preview.FireTimes[0].Equal(testNow.Add(4*time.Hour)))
	assert.True(t, preview.FireTimes[2].Equal(testNow.Add(12*time.Hour)))

	resp, _ = api.do(t, http.MethodGet, "/api/v1/cron/preview?expr=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/cron/preview", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// --- Jobs ---

func TestDispatchJob(t *testing.T) {
	api := newTestAPI(t, 0)
	req := DispatchRequest{States: []string{"tx", "ca"}, DataTypes: []domain.DataType{"rules"}, Depth: domain.DepthFull}

	resp, body := api.do(t, http.MethodPost, "/api/v1/jobs", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	dispatched := decodeData[DispatchResponse](t, body)
	require.Len(t, dispatched.JobIDs, 1)

	job, err := api.jobs.GetByID(context.Background(), dispatched.JobIDs[0])
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, []string{"CA", "TX"}, job.States)

	// Та же работа в другом порядке — дубликат
	resp, body = api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{
		States: []string{"CA", "TX"}, DataTypes: []domain.DataType{"rules"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	conflict := decodeError(t, body)
	assert.Equal(t, ErrCodeConflict, conflict.Code)
	assert.Equal(t, job.ID.String(), conflict.Details["job_id"])
	assert.Equal(t, 1, api.jobs.Len())

	// Подмножество — не дубликат
	resp, _ = api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{
		States: []string{"TX"}, DataTypes: []domain.DataType{"rules"},
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDispatchJob_Validation(t *testing.T) {
	api := newTestAPI(t, 0)

	resp, _ := api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{DataTypes: []domain.DataType{"rules"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{States: []string{"TX"}, DataTypes: []domain.DataType{"weather"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, api.jobs.Len())
}

func TestDispatchJob_RateLimited(t *testing.T) {
	api := newTestAPI(t, 1)

	resp, _ := api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{States: []string{"TX"}, DataTypes: []domain.DataType{"rules"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, body := api.do(t, http.MethodPost, "/api/v1/jobs", DispatchRequest{States: []string{"CA"}, DataTypes: []domain.DataType{"rules"}})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, ErrCodeRateLimited, decodeError(t, body).Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestListAndGetJobs(t *testing.T) {
	api := newTestAPI(t, 0)

	finished := domain.NewJob(domain.WorkSignature{States: []string{"TX"}, DataTypes: []domain.DataType{"rules"}}, domain.DepthSummary, nil, testNow)
	require.NoError(t, finished.MarkRunning())
	finished.AppendLog("fetched 3 documents")
	require.NoError(t, finished.MarkSucceeded(domain.JobStats{Artifacts: 3}, testNow.Add(time.Minute)))
	api.jobs.Put(*finished)

	queued := domain.NewJob(domain.WorkSignature{States: []string{"CA"}, DataTypes: []domain.DataType{"forms"}}, domain.DepthSummary, nil, testNow.Add(time.Hour))
	api.jobs.Put(*queued)

	resp, body := api.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decodeData[[]JobResponse](t, body)
	require.Len(t, all, 2)
	assert.Equal(t, queued.ID, all[0].ID)
	assert.Empty(t, all[1].Logs)

	resp, body = api.do(t, http.MethodGet, "/api/v1/jobs?status=success", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeData[[]JobResponse](t, body), 1)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/jobs?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = api.do(t, http.MethodGet, "/api/v1/jobs/"+finished.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeData[JobResponse](t, body)
	assert.Equal(t, domain.JobStatusSuccess, got.Status)
	assert.Equal(t, []string{"fetched 3 documents"}, got.Logs)
	assert.Equal(t, int64(60000), got.DurationMs)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 3, got.Stats.Artifacts)

	resp, _ = api.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(Recovery(logger), Logging(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ErrCodeInternalError, decodeError(t, rec.Body.Bytes()).Code)
}
