package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/telemetry"
)

// Default configuration values.
const (
	defaultInterval  = 60 * time.Second
	defaultBatchSize = 100
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules  ScheduleStore
	guard      *DuplicateGuard
	dispatcher *Dispatcher
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	now        func() time.Time

	// tickMu гарантирует, что тики не перекрываются.
	tickMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules  ScheduleStore
	Guard      *DuplicateGuard
	Dispatcher *Dispatcher
	Logger     *slog.Logger
	Interval   time.Duration    // интервал тика (default: 60s)
	BatchSize  int              // количество schedules за один тик (default: 100)
	Now        func() time.Time // источник времени (default: time.Now)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		schedules:  cfg.Schedules,
		guard:      cfg.Guard,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
		now:        now,
	}
}

// Start запускает цикл тиков в отдельной горутине.
// Первый тик выполняется сразу — просроченные schedules срабатывают после рестарта.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()

	s.logger.Info("scheduler started", "interval", s.interval, "batch_size", s.batchSize)
}

// Stop останавливает цикл и ждёт завершения текущего тика.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run выполняет тики до отмены ctx. Блокирующий.
//
// Ошибка тика не останавливает цикл: следующая попытка — на следующем тике.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.SchedulerTickErrors.Inc()
		s.logger.Error("scheduler tick failed", "error", err)
	}
}

// Tick выполняет один тик планировщика.
//
//  1. Находит due schedules (is_active=true, next_run_at <= now), ближайшие первыми
//  2. Для каждого: проверка дубликата → dispatch (если дубликата нет)
//  3. Обновляет last_run_at/next_run_at независимо от исхода dispatch
//
// За тик обрабатывается не больше batchSize schedules. Schedules с
// повреждённым cron не сдвигаются и не занимают место в пачке: выборка
// повторяется с большим лимитом, уже просмотренные строки пропускаются.
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := time.Now()
	defer func() {
		telemetry.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()
	telemetry.SchedulerTicks.Inc()

	now := s.now().UTC()

	seen := make(map[uuid.UUID]struct{})
	counts := make(map[string]int)
	budget := s.batchSize

	for budget > 0 {
		// 1. Находим due schedules
		limit := len(seen) + budget
		schedules, err := s.schedules.ListDue(ctx, now, limit)
		if err != nil {
			return fmt.Errorf("list due schedules: %w", err)
		}

		fresh := 0
		for i := range schedules {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if budget == 0 {
				break
			}

			sched := &schedules[i]
			if _, ok := seen[sched.ID]; ok {
				continue
			}
			seen[sched.ID] = struct{}{}
			fresh++

			// 2. Обрабатываем schedule
			result, err := s.safeProcess(ctx, sched, now)
			counts[result]++
			telemetry.SchedulerDispatches.WithLabelValues(result).Inc()
			if result != telemetry.ResultParseError {
				budget--
			}

			if err != nil {
				s.logger.Error("failed to process schedule",
					"schedule_id", sched.ID,
					"schedule_name", sched.Name,
					"result", result,
					"error", err,
				)
				// Продолжаем обработку остальных
			}
		}

		// Все due строки уже в выборке
		if fresh == 0 || len(schedules) < limit {
			break
		}
	}

	if len(seen) == 0 {
		return nil
	}

	s.logger.Info("scheduler tick completed",
		"due", len(seen),
		"dispatched", counts[telemetry.ResultDispatched],
		"duplicates", counts[telemetry.ResultDuplicate],
		"dispatch_failed", counts[telemetry.ResultFailed],
		"parse_errors", counts[telemetry.ResultParseError],
		"store_errors", counts[telemetry.ResultStoreError],
	)

	return nil
}

// safeProcess изолирует панику при обработке одного schedule.
func (s *Scheduler) safeProcess(ctx context.Context, sched *domain.Schedule, now time.Time) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = telemetry.ResultFailed
			err = fmt.Errorf("panic while processing schedule: %v", r)
		}
	}()
	return s.processSchedule(ctx, sched, now)
}

// processSchedule обрабатывает один schedule и возвращает результат для метрик.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (string, error) {
	logger := telemetry.WithScheduleID(s.logger, sched.ID.String())

	// 1. Вычисляем следующее время заранее: повреждённое выражение не должно
	// ни запускать работу, ни сдвигать next_run_at
	nextRun, err := NextFireTime(sched.CronExpr, now)
	if err != nil {
		return telemetry.ResultParseError, fmt.Errorf("calculate next run: %w", err)
	}

	// 2-3. Проверка дубликата и dispatch
	result := s.attempt(ctx, sched, logger)

	// 4. Bookkeeping — строго после попытки dispatch, при любом её исходе
	if err := s.schedules.RecordRun(ctx, sched.ID, now, nextRun); err != nil {
		if errors.Is(err, context.Canceled) {
			return result, err
		}
		return telemetry.ResultStoreError, fmt.Errorf("record run: %w", err)
	}

	logger.Debug("schedule advanced", "last_run_at", now, "next_run_at", nextRun)
	return result, nil
}

// attempt проверяет дубликат и отправляет работу.
// Паника внутри считается неудачным dispatch.
func (s *Scheduler) attempt(ctx context.Context, sched *domain.Schedule, logger *slog.Logger) (result string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while dispatching schedule", "panic", r)
			result = telemetry.ResultFailed
		}
	}()

	if s.guard != nil && s.guard.HasEquivalentActiveJob(ctx, sched.States, sched.DataTypes) {
		logger.Info("equivalent job is active, skipping dispatch",
			"states", sched.States,
			"data_types", sched.DataTypes,
		)
		return telemetry.ResultDuplicate
	}

	// since — время предыдущего запуска
	ids, err := s.dispatcher.Dispatch(ctx, WorkRequest{
		States:    sched.States,
		DataTypes: sched.DataTypes,
		Depth:     sched.Depth,
		Since:     sched.LastRunAt,
	})
	if err != nil {
		// next_run_at всё равно сдвигается, следующая попытка —
		// в следующее штатное время
		logger.Error("dispatch failed", "error", err)
		return telemetry.ResultFailed
	}

	logger.Info("dispatched scheduled research",
		"schedule_name", sched.Name,
		"job_ids", ids,
	)
	return telemetry.ResultDispatched
}
