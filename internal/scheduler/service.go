package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
)

// Service — операции над расписаниями: создание, обновление,
// удаление и выборки. Все вычисления NextRunAt идут через NextFireTime.
type Service struct {
	store  ScheduleStore
	logger *slog.Logger
	now    func() time.Time
}

// ServiceConfig — конфигурация Service.
type ServiceConfig struct {
	Store  ScheduleStore
	Logger *slog.Logger
	// Now — источник времени (по умолчанию time.Now).
	Now func() time.Time
}

// NewService создаёт новый Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, logger: logger, now: now}
}

// Create валидирует вход, вычисляет первый NextRunAt и сохраняет расписание.
//
// Некорректное cron-выражение — ошибка, оборачивающая и
// domain.ErrValidation, и ErrParse. Запись при этом не создаётся.
func (s *Service) Create(ctx context.Context, in domain.ScheduleInput) (*domain.Schedule, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next, err := NextFireTime(in.CronExpr, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	sched := &domain.Schedule{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		CronExpr:    in.CronExpr,
		States:      in.States,
		DataTypes:   in.DataTypes,
		Depth:       in.Depth,
		IsActive:    in.Active(),
		NextRunAt:   next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, sched); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	s.logger.Info("schedule created",
		"schedule_id", sched.ID,
		"name", sched.Name,
		"cron_expr", sched.CronExpr,
		"next_run_at", sched.NextRunAt,
	)
	return sched, nil
}

// Get возвращает расписание по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	return s.store.GetByID(ctx, id)
}

// List возвращает расписания, новые первыми.
func (s *Service) List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error) {
	return s.store.List(ctx, filter)
}

// ListActive возвращает активные расписания.
func (s *Service) ListActive(ctx context.Context) ([]domain.Schedule, error) {
	return s.store.ListActive(ctx)
}

// ListDue возвращает все активные расписания с NextRunAt <= at, ближайшие первыми.
func (s *Service) ListDue(ctx context.Context, at time.Time) ([]domain.Schedule, error) {
	return s.store.ListDue(ctx, at, 0)
}

// Update применяет частичное обновление.
//
// Если изменилось cron-выражение, NextRunAt пересчитывается от момента
// обновления. Ошибка разбора прерывает обновление — запись не меняется.
// Без смены cron next_run_at в хранилище не трогается: его двигает только
// планировщик через RecordRun.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch domain.SchedulePatch) (*domain.Schedule, error) {
	sched, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	cronChanged, err := patch.Apply(sched)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if cronChanged {
		next, err := NextFireTime(sched.CronExpr, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		sched.NextRunAt = next
	}
	sched.UpdatedAt = now

	if err := s.store.Update(ctx, sched, cronChanged); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Info("schedule updated",
		"schedule_id", sched.ID,
		"cron_changed", cronChanged,
		"next_run_at", sched.NextRunAt,
	)
	return sched, nil
}

// SetActive включает или выключает расписание.
// Выключение не отменяет уже отправленные jobs.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.Schedule, error) {
	return s.Update(ctx, id, domain.SchedulePatch{IsActive: &active})
}

// Delete удаляет расписание. Jobs не затрагиваются.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// UpcomingRun — проекция ближайшего запуска.
type UpcomingRun struct {
	Schedule     domain.Schedule
	NextFireTime time.Time
	TimeUntil    time.Duration
}

// Upcoming возвращает активные расписания, чей NextRunAt попадает
// в горизонт [now, now+horizon], по возрастанию времени.
// Просроченные расписания тоже включаются, TimeUntil для них равен 0.
func (s *Service) Upcoming(ctx context.Context, horizon time.Duration) ([]UpcomingRun, error) {
	schedules, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	limit := now.Add(horizon)

	runs := make([]UpcomingRun, 0, len(schedules))
	for _, sched := range schedules {
		if sched.NextRunAt.After(limit) {
			continue
		}
		runs = append(runs, UpcomingRun{
			Schedule:     sched,
			NextFireTime: sched.NextRunAt,
			TimeUntil:    max(sched.NextRunAt.Sub(now), 0),
		})
	}

	slices.SortStableFunc(runs, func(a, b UpcomingRun) int {
		return a.NextFireTime.Compare(b.NextFireTime)
	})
	return runs, nil
}
