package api

import (
	"net/http"

	"github.com/shaiso/Regwatch/internal/scheduler"
)

// PreviewCron возвращает ближайшие срабатывания выражения.
// GET /api/v1/cron/preview?expr=0+9+*+*+*&count=5
func (h *Handler) PreviewCron(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if expr == "" {
		BadRequest(w, "expr is required")
		return
	}

	times, err := scheduler.NextFireTimes(expr, h.now(), queryInt(r, "count", 5))
	if HandleError(w, h.logger, err, "") {
		return
	}

	Success(w, CronPreviewResponse{CronExpr: expr, FireTimes: times})
}
