package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
	"github.com/shaiso/Regwatch/internal/scheduler"
	"golang.org/x/time/rate"
)

// JobReader — чтение jobs для API. Реализации: repo.JobRepo, repotest.JobStore.
type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	schedules  *scheduler.Service
	jobs       JobReader
	guard      *scheduler.DuplicateGuard
	dispatcher *scheduler.Dispatcher
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Schedules  *scheduler.Service
	Jobs       JobReader
	Guard      *scheduler.DuplicateGuard
	Dispatcher *scheduler.Dispatcher

	// DispatchRatePerMin ограничивает POST /jobs. 0 — без ограничения.
	DispatchRatePerMin int

	Logger *slog.Logger
	Now    func() time.Time
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.DispatchRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.DispatchRatePerMin)), cfg.DispatchRatePerMin)
	}

	return &Handler{
		schedules:  cfg.Schedules,
		jobs:       cfg.Jobs,
		guard:      cfg.Guard,
		dispatcher: cfg.Dispatcher,
		limiter:    limiter,
		logger:     logger,
		now:        now,
	}
}
