package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обработки расписания в тике (label "result").
const (
	ResultDispatched = "dispatched"
	ResultDuplicate  = "duplicate"
	ResultFailed     = "dispatch_failed"
	ResultParseError = "parse_error"
	ResultStoreError = "store_error"
)

var (
	// SchedulerTicks — количество выполненных тиков.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regwatch_scheduler_ticks_total",
		Help: "Total scheduler ticks",
	})

	// SchedulerTickErrors — тики, завершившиеся ошибкой целиком (например, БД недоступна).
	SchedulerTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regwatch_scheduler_tick_errors_total",
		Help: "Scheduler ticks that failed as a whole",
	})

	// SchedulerDispatches — обработанные due-расписания по результату.
	SchedulerDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regwatch_scheduler_dispatches_total",
		Help: "Due schedules processed by the scheduler, by result",
	}, []string{"result"})

	// SchedulerTickDuration — длительность тика.
	SchedulerTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "regwatch_scheduler_tick_duration_seconds",
		Help:    "Duration of a scheduler tick",
		Buckets: prometheus.DefBuckets,
	})

	// JobsFinished — завершённые jobs по статусу (success/error).
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regwatch_jobs_finished_total",
		Help: "Research jobs that reached a terminal status",
	}, []string{"status"})

	// HTTPRequests — HTTP-запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regwatch_api_http_requests_total",
		Help: "Total HTTP requests handled by regwatch-api",
	}, []string{"method", "status"})
)
