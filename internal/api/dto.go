package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/scheduler"
)

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания.
type CreateScheduleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CronExpr    string            `json:"cron_expr"`
	States      []string          `json:"states"`
	DataTypes   []domain.DataType `json:"data_types"`
	Depth       domain.Depth      `json:"depth,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
}

// Input конвертирует запрос в domain.ScheduleInput.
func (r CreateScheduleRequest) Input() domain.ScheduleInput {
	return domain.ScheduleInput{
		Name:        r.Name,
		Description: r.Description,
		CronExpr:    r.CronExpr,
		States:      r.States,
		DataTypes:   r.DataTypes,
		Depth:       r.Depth,
		IsActive:    r.IsActive,
	}
}

// UpdateScheduleRequest — частичное обновление расписания.
type UpdateScheduleRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	CronExpr    *string            `json:"cron_expr,omitempty"`
	States      *[]string          `json:"states,omitempty"`
	DataTypes   *[]domain.DataType `json:"data_types,omitempty"`
	Depth       *domain.Depth      `json:"depth,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
}

// Patch конвертирует запрос в domain.SchedulePatch.
func (r UpdateScheduleRequest) Patch() domain.SchedulePatch {
	return domain.SchedulePatch{
		Name:        r.Name,
		Description: r.Description,
		CronExpr:    r.CronExpr,
		States:      r.States,
		DataTypes:   r.DataTypes,
		Depth:       r.Depth,
		IsActive:    r.IsActive,
	}
}

// SetActiveRequest — включение/выключение расписания.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CronExpr    string     `json:"cron_expr"`
	States      []string   `json:"states"`
	DataTypes   []string   `json:"data_types"`
	Depth       string     `json:"depth"`
	IsActive    bool       `json:"is_active"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		CronExpr:    s.CronExpr,
		States:      s.States,
		DataTypes:   domain.DataTypeStrings(s.DataTypes),
		Depth:       string(s.Depth),
		IsActive:    s.IsActive,
		LastRunAt:   s.LastRunAt,
		NextRunAt:   s.NextRunAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func schedulesFromDomain(list []domain.Schedule) []ScheduleResponse {
	out := make([]ScheduleResponse, len(list))
	for i := range list {
		out[i] = ScheduleFromDomain(&list[i])
	}
	return out
}

// UpcomingResponse — ближайший запуск расписания.
type UpcomingResponse struct {
	Schedule         ScheduleResponse `json:"schedule"`
	NextFireTime     time.Time        `json:"next_fire_time"`
	TimeUntilSeconds int64            `json:"time_until_seconds"`
}

// UpcomingFromDomain конвертирует scheduler.UpcomingRun.
func UpcomingFromDomain(u scheduler.UpcomingRun) UpcomingResponse {
	return UpcomingResponse{
		Schedule:         ScheduleFromDomain(&u.Schedule),
		NextFireTime:     u.NextFireTime,
		TimeUntilSeconds: int64(u.TimeUntil / time.Second),
	}
}

// CronPreviewResponse — ближайшие срабатывания выражения.
type CronPreviewResponse struct {
	CronExpr  string      `json:"cron_expr"`
	FireTimes []time.Time `json:"fire_times"`
}

// Job DTOs

// DispatchRequest — ручной запуск исследования.
type DispatchRequest struct {
	States    []string          `json:"states"`
	DataTypes []domain.DataType `json:"data_types"`
	Depth     domain.Depth      `json:"depth,omitempty"`
	Since     *time.Time        `json:"since,omitempty"`
}

// DispatchResponse — ID созданных jobs.
type DispatchResponse struct {
	JobIDs []uuid.UUID `json:"job_ids"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID         uuid.UUID        `json:"id"`
	Status     domain.JobStatus `json:"status"`
	States     []string         `json:"states"`
	DataTypes  []string         `json:"data_types"`
	Depth      string           `json:"depth"`
	Since      *time.Time       `json:"since,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
	Stats      *domain.JobStats `json:"stats,omitempty"`
	ErrorText  string           `json:"error_text,omitempty"`
	Logs       []string         `json:"logs,omitempty"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
// Логи включаются только если withLogs.
func JobFromDomain(j *domain.Job, withLogs bool) JobResponse {
	resp := JobResponse{
		ID:         j.ID,
		Status:     j.Status,
		States:     j.States,
		DataTypes:  domain.DataTypeStrings(j.DataTypes),
		Depth:      string(j.Depth),
		Since:      j.Since,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		DurationMs: j.Duration().Milliseconds(),
		Stats:      j.Stats,
		ErrorText:  j.ErrorText,
	}
	if withLogs {
		resp.Logs = j.Logs
	}
	return resp
}
