package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/repo"
)

const (
	defaultUpcomingHours = 24
	maxUpcomingHours     = 24 * 31
)

// ListSchedules возвращает список расписаний.
// GET /api/v1/schedules?active=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := repo.ScheduleFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if activeStr := r.URL.Query().Get("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			BadRequest(w, "invalid active flag")
			return
		}
		filter.IsActive = &active
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	List(w, schedulesFromDomain(schedules), len(schedules))
}

// CreateSchedule создаёт расписание.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.schedules.Create(r.Context(), req.Input())
	if HandleError(w, h.logger, err, "") {
		return
	}

	Created(w, ScheduleFromDomain(schedule))
}

// GetSchedule возвращает расписание по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	schedule, err := h.schedules.Get(r.Context(), id)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// UpdateSchedule частично обновляет расписание.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	schedule, err := h.schedules.Update(r.Context(), id, req.Patch())
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// DeleteSchedule удаляет расписание.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	if HandleError(w, h.logger, h.schedules.Delete(r.Context(), id), "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleActive включает или выключает расписание.
// PUT /api/v1/schedules/{id}/active
func (h *Handler) SetScheduleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid schedule id")
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		BadRequest(w, "body must be {\"active\": true|false}")
		return
	}

	schedule, err := h.schedules.SetActive(r.Context(), id, *req.Active)
	if HandleError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(schedule))
}

// ListDueSchedules возвращает активные расписания с next_run_at <= at.
// GET /api/v1/schedules/due?at=2025-01-01T09:00:00Z
func (h *Handler) ListDueSchedules(w http.ResponseWriter, r *http.Request) {
	at := h.now()
	if atStr := r.URL.Query().Get("at"); atStr != "" {
		parsed, err := time.Parse(time.RFC3339, atStr)
		if err != nil {
			BadRequest(w, "at must be RFC3339")
			return
		}
		at = parsed
	}

	schedules, err := h.schedules.ListDue(r.Context(), at.UTC())
	if HandleError(w, h.logger, err, "") {
		return
	}

	List(w, schedulesFromDomain(schedules), len(schedules))
}

// ListActiveSchedules возвращает все активные расписания.
// GET /api/v1/schedules/active
func (h *Handler) ListActiveSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.ListActive(r.Context())
	if HandleError(w, h.logger, err, "") {
		return
	}

	List(w, schedulesFromDomain(schedules), len(schedules))
}

// ListUpcoming возвращает запуски в пределах горизонта.
// GET /api/v1/schedules/upcoming?hours=24
func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultUpcomingHours)
	if hours <= 0 || hours > maxUpcomingHours {
		BadRequest(w, "hours must be between 1 and "+strconv.Itoa(maxUpcomingHours))
		return
	}

	runs, err := h.schedules.Upcoming(r.Context(), time.Duration(hours)*time.Hour)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]UpcomingResponse, len(runs))
	for i, run := range runs {
		result[i] = UpcomingFromDomain(run)
	}
	List(w, result, len(result))
}

// pathID разбирает {id} из пути, отвечая 400 при ошибке.
func pathID(w http.ResponseWriter, r *http.Request, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, msg)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt читает целый query-параметр; некорректное значение — default.
func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
