package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	throttled := Chain(chain, RateLimit(h.limiter))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/due", chain(http.HandlerFunc(h.ListDueSchedules)))
	mux.Handle("GET /api/v1/schedules/active", chain(http.HandlerFunc(h.ListActiveSchedules)))
	mux.Handle("GET /api/v1/schedules/upcoming", chain(http.HandlerFunc(h.ListUpcoming)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/active", chain(http.HandlerFunc(h.SetScheduleActive)))

	// Cron
	mux.Handle("GET /api/v1/cron/preview", chain(http.HandlerFunc(h.PreviewCron)))

	// Jobs
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /api/v1/jobs", throttled(http.HandlerFunc(h.DispatchJob)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
}
