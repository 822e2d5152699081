package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ScheduleResponse — расписание из API.
type ScheduleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CronExpr    string   `json:"cron_expr"`
	States      []string `json:"states"`
	DataTypes   []string `json:"data_types"`
	Depth       string   `json:"depth"`
	IsActive    bool     `json:"is_active"`
	LastRunAt   string   `json:"last_run_at,omitempty"`
	NextRunAt   string   `json:"next_run_at"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// UpcomingResponse — ближайший запуск.
type UpcomingResponse struct {
	Schedule         ScheduleResponse `json:"schedule"`
	NextFireTime     string           `json:"next_fire_time"`
	TimeUntilSeconds int64            `json:"time_until_seconds"`
}

// CronPreviewResponse — ближайшие срабатывания cron-выражения.
type CronPreviewResponse struct {
	CronExpr  string   `json:"cron_expr"`
	FireTimes []string `json:"fire_times"`
}

// JobStats — статистика job.
type JobStats struct {
	Artifacts int `json:"artifacts"`
	Programs  int `json:"programs"`
}

// JobResponse — job из API.
type JobResponse struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	States     []string  `json:"states"`
	DataTypes  []string  `json:"data_types"`
	Depth      string    `json:"depth"`
	Since      string    `json:"since,omitempty"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Stats      *JobStats `json:"stats,omitempty"`
	ErrorText  string    `json:"error_text,omitempty"`
	Logs       []string  `json:"logs,omitempty"`
}

// DispatchResponse — ID созданных jobs.
type DispatchResponse struct {
	JobIDs []string `json:"job_ids"`
}

// --- Request types ---

// CreateScheduleRequest — создание расписания.
type CreateScheduleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CronExpr    string   `json:"cron_expr"`
	States      []string `json:"states"`
	DataTypes   []string `json:"data_types"`
	Depth       string   `json:"depth,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// UpdateScheduleRequest — частичное обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	CronExpr    *string   `json:"cron_expr,omitempty"`
	States      *[]string `json:"states,omitempty"`
	DataTypes   *[]string `json:"data_types,omitempty"`
	Depth       *string   `json:"depth,omitempty"`
}

// DispatchRequest — ручной запуск исследования.
type DispatchRequest struct {
	States    []string `json:"states"`
	DataTypes []string `json:"data_types"`
	Depth     string   `json:"depth,omitempty"`
	Since     string   `json:"since,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if id, ok := e.Details["job_id"]; ok {
		msg += fmt.Sprintf(" (job %v)", id)
	}
	return msg
}

// --- Client ---

// Client — HTTP-клиент для Regwatch API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Schedules ---

// ListSchedules возвращает расписания. active: "", "true" или "false".
func (c *Client) ListSchedules(active string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if active != "" {
		params.Set("active", active)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт расписание.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает расписание по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет расписание.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет расписание.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// SetScheduleActive включает или выключает расписание.
func (c *Client) SetScheduleActive(id string, active bool) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id+"/active", map[string]bool{"active": active}, &schedule)
	return &schedule, err
}

// ListDue возвращает расписания, готовые к запуску на момент at (пусто — сейчас).
func (c *Client) ListDue(at string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if at != "" {
		params.Set("at", at)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules/due", params, &schedules)
	return schedules, err
}

// ListUpcoming возвращает запуски в ближайшие hours часов.
func (c *Client) ListUpcoming(hours int) ([]UpcomingResponse, error) {
	params := url.Values{}
	params.Set("hours", strconv.Itoa(hours))

	var runs []UpcomingResponse
	err := c.list("/api/v1/schedules/upcoming", params, &runs)
	return runs, err
}

// --- Cron ---

// PreviewCron возвращает count ближайших срабатываний.
func (c *Client) PreviewCron(expr string, count int) (*CronPreviewResponse, error) {
	params := url.Values{}
	params.Set("expr", expr)
	params.Set("count", strconv.Itoa(count))

	var preview CronPreviewResponse
	err := c.get("/api/v1/cron/preview?"+params.Encode(), &preview)
	return &preview, err
}

// --- Jobs ---

// ListJobs возвращает jobs с фильтрацией.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// DispatchJob запускает исследование вручную.
func (c *Client) DispatchJob(req DispatchRequest) (*DispatchResponse, error) {
	var resp DispatchResponse
	err := c.post("/api/v1/jobs", req, &resp)
	return &resp, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
		apiErr.Details = er.Error.Details
	}
	return apiErr
}
