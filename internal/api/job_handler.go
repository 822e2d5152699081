package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
	"github.com/shaiso/Regwatch/internal/scheduler"
)

// ListJobs возвращает jobs, новые первыми.
// GET /api/v1/jobs?status=running&limit=...&offset=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.JobStatus(statusStr)
		if !status.IsValid() {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if HandleError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i := range jobs {
		result[i] = JobFromDomain(&jobs[i], false)
	}
	List(w, result, len(result))
}

// GetJob возвращает job с логами.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid job id")
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(job, true))
}

// DispatchJob запускает исследование вручную.
// POST /api/v1/jobs
//
// Если эквивалентный job уже queued/running — 409 с его ID.
func (h *Handler) DispatchJob(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	states, err := domain.NormalizeStates(req.States)
	if HandleError(w, h.logger, err, "") {
		return
	}
	dataTypes, err := domain.NormalizeDataTypes(req.DataTypes)
	if HandleError(w, h.logger, err, "") {
		return
	}

	sig := domain.WorkSignature{States: states, DataTypes: dataTypes}
	if existing, found := h.guard.FindEquivalentActiveJob(r.Context(), sig); found {
		JSON(w, http.StatusConflict, ErrorResponse{Error: ErrorDetail{
			Code:    ErrCodeConflict,
			Message: "equivalent job is already " + string(existing.Status),
			Details: map[string]any{"job_id": existing.ID},
		}})
		return
	}

	ids, err := h.dispatcher.Dispatch(r.Context(), scheduler.WorkRequest{
		States:    states,
		DataTypes: dataTypes,
		Depth:     req.Depth,
		Since:     req.Since,
	})
	if HandleError(w, h.logger, err, "") {
		return
	}

	Accepted(w, DispatchResponse{JobIDs: ids})
}
