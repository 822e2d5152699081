package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   []byte
}

func newTestServer(t *testing.T, status int, payload string) (*Client, *recorded) {
	t.Helper()

	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL + "/"), rec
}

const scheduleJSON = `{"id":"s-1","name":"west","cron_expr":"0 9 * * *","states":["CA","NY"],
"data_types":["rules"],"depth":"summary","is_active":true,"next_run_at":"2025-01-01T09:00:00Z",
"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`

func TestClient_ListSchedules(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK, `{"data":[`+scheduleJSON+`],"total":1}`)

	schedules, err := client.ListSchedules("true")
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/v1/schedules", rec.path)
	assert.Equal(t, "active=true", rec.query)
	require.Len(t, schedules, 1)
	assert.Equal(t, "s-1", schedules[0].ID)
	assert.Equal(t, []string{"CA", "NY"}, schedules[0].States)
}

func TestClient_CreateSchedule(t *testing.T) {
	client, rec := newTestServer(t, http.StatusCreated, `{"data":`+scheduleJSON+`}`)

	active := false
	schedule, err := client.CreateSchedule(CreateScheduleRequest{
		Name:      "west",
		CronExpr:  "0 9 * * *",
		States:    []string{"CA", "NY"},
		DataTypes: []string{"rules"},
		IsActive:  &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T09:00:00Z", schedule.NextRunAt)

	assert.Equal(t, http.MethodPost, rec.method)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, "0 9 * * *", sent["cron_expr"])
	assert.Equal(t, false, sent["is_active"])
	assert.NotContains(t, sent, "depth")
}

func TestClient_UpdateSchedule_SendsOnlySetFields(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK, `{"data":`+scheduleJSON+`}`)

	cron := "0 */4 * * *"
	_, err := client.UpdateSchedule("s-1", UpdateScheduleRequest{CronExpr: &cron})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/api/v1/schedules/s-1", rec.path)
	assert.JSONEq(t, `{"cron_expr":"0 */4 * * *"}`, string(rec.body))
}

func TestClient_SetScheduleActive(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK, `{"data":`+scheduleJSON+`}`)

	_, err := client.SetScheduleActive("s-1", false)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/schedules/s-1/active", rec.path)
	assert.JSONEq(t, `{"active":false}`, string(rec.body))
}

func TestClient_DeleteSchedule(t *testing.T) {
	client, rec := newTestServer(t, http.StatusNoContent, "")

	require.NoError(t, client.DeleteSchedule("s-1"))
	assert.Equal(t, http.MethodDelete, rec.method)
}

func TestClient_ListUpcoming(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK,
		`{"data":[{"schedule":`+scheduleJSON+`,"next_fire_time":"2025-01-01T09:00:00Z","time_until_seconds":3600}],"total":1}`)

	runs, err := client.ListUpcoming(12)
	require.NoError(t, err)

	assert.Equal(t, "hours=12", rec.query)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(3600), runs[0].TimeUntilSeconds)
}

func TestClient_PreviewCron(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK,
		`{"data":{"cron_expr":"0 9 * * *","fire_times":["2025-01-01T09:00:00Z","2025-01-02T09:00:00Z"]}}`)

	preview, err := client.PreviewCron("0 9 * * *", 2)
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/cron/preview", rec.path)
	assert.Equal(t, "count=2&expr=0+9+%2A+%2A+%2A", rec.query)
	assert.Len(t, preview.FireTimes, 2)
}

func TestClient_DispatchJob(t *testing.T) {
	client, rec := newTestServer(t, http.StatusAccepted, `{"data":{"job_ids":["j-1"]}}`)

	resp, err := client.DispatchJob(DispatchRequest{States: []string{"CA"}, DataTypes: []string{"bulletins"}})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/jobs", rec.path)
	assert.Equal(t, []string{"j-1"}, resp.JobIDs)
}

func TestClient_ListJobs(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK, `{"data":[],"total":0}`)

	jobs, err := client.ListJobs(ListJobsOpts{Status: "failed", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "limit=10&status=failed", rec.query)
	assert.Empty(t, jobs)
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestServer(t, http.StatusConflict,
		`{"error":{"code":"CONFLICT","message":"equivalent job already running","details":{"job_id":"j-9"}}}`)

	_, err := client.DispatchJob(DispatchRequest{States: []string{"CA"}, DataTypes: []string{"bulletins"}})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "CONFLICT: equivalent job already running (job j-9)", err.Error())
}

func TestClient_APIError_NoBody(t *testing.T) {
	client, _ := newTestServer(t, http.StatusBadGateway, "")

	_, err := client.GetJob("j-1")
	assert.EqualError(t, err, "API error: HTTP 502")
}

func TestScheduleCmd_ListTable(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"data":[`+scheduleJSON+`],"total":1}`)

	var stdout, stderr bytes.Buffer
	cmd := NewScheduleCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(false, &stdout, &stderr) },
	)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "NEXT_RUN")
	assert.Contains(t, stdout.String(), "CA,NY")
	assert.Contains(t, stdout.String(), "2025-01-01T09:00:00Z")
}

func TestScheduleCmd_ListRejectsBadActiveFlag(t *testing.T) {
	cmd := NewScheduleCmd(
		func() *Client { return NewClient("http://127.0.0.1:0") },
		func() *Output { return NewOutputTo(false, io.Discard, io.Discard) },
	)
	cmd.SetArgs([]string{"list", "--active", "maybe"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	assert.Error(t, cmd.Execute())
}

func TestScheduleCmd_UpdateSendsChangedFlags(t *testing.T) {
	client, rec := newTestServer(t, http.StatusOK, `{"data":`+scheduleJSON+`}`)

	var stderr bytes.Buffer
	cmd := NewScheduleCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(false, io.Discard, &stderr) },
	)
	cmd.SetArgs([]string{"update", "s-1", "--states", "tx,ca"})
	require.NoError(t, cmd.Execute())

	assert.JSONEq(t, `{"states":["tx","ca"]}`, string(rec.body))
	assert.Equal(t, "Schedule updated\n", stderr.String())
}

func TestJobCmd_DispatchJSON(t *testing.T) {
	client, rec := newTestServer(t, http.StatusAccepted, `{"data":{"job_ids":["j-1"]}}`)

	var stdout bytes.Buffer
	cmd := NewJobCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(true, &stdout, io.Discard) },
	)
	cmd.SetArgs([]string{"dispatch", "--states", "CA", "--data-types", "rules", "--depth", "full"})
	require.NoError(t, cmd.Execute())

	assert.JSONEq(t, `{"states":["CA"],"data_types":["rules"],"depth":"full"}`, string(rec.body))
	assert.JSONEq(t, `{"job_ids":["j-1"]}`, stdout.String())
}
