package scheduler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo/repotest"
	"github.com/stretchr/testify/require"
)

// discardLogger — логгер для тестов без вывода.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock — управляемый источник времени.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// fakeExecutor записывает вызовы и создаёт queued jobs в JobStore.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []WorkRequest

	jobs *repotest.JobStore
	now  func() time.Time

	// failStates — ключ strings.Join(states, ",") → ошибка
	failStates map[string]error
	// panicStates — ключ, на котором executor паникует
	panicStates string
	// block — если не nil, StartWork ждёт закрытия канала
	block chan struct{}
}

func (f *fakeExecutor) StartWork(ctx context.Context, req WorkRequest) ([]uuid.UUID, error) {
	key := strings.Join(req.States, ",")

	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if key == f.panicStates {
		panic("executor exploded")
	}
	if err := f.failStates[key]; err != nil {
		return nil, err
	}

	job := domain.NewJob(req.Signature(), req.Depth, req.Since, f.now())
	if f.jobs != nil {
		if err := f.jobs.Create(ctx, job); err != nil {
			return nil, err
		}
	}
	return []uuid.UUID{job.ID}, nil
}

func (f *fakeExecutor) Calls() []WorkRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WorkRequest(nil), f.calls...)
}

// testEnv — собранный планировщик на in-memory хранилищах.
type testEnv struct {
	clock     *fakeClock
	schedules *repotest.ScheduleStore
	jobs      *repotest.JobStore
	executor  *fakeExecutor
	service   *Service
	scheduler *Scheduler
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()

	clock := newClock(start)
	schedules := repotest.NewScheduleStore()
	jobs := repotest.NewJobStore()
	executor := &fakeExecutor{jobs: jobs, now: clock.Now, failStates: map[string]error{}}
	logger := discardLogger()

	return &testEnv{
		clock:     clock,
		schedules: schedules,
		jobs:      jobs,
		executor:  executor,
		service:   NewService(ServiceConfig{Store: schedules, Logger: logger, Now: clock.Now}),
		scheduler: New(Config{
			Schedules:  schedules,
			Guard:      NewDuplicateGuard(jobs, logger),
			Dispatcher: NewDispatcher(executor, time.Second, logger),
			Logger:     logger,
			Interval:   time.Hour,
			Now:        clock.Now,
		}),
	}
}

// withScheduler пересобирает планировщик поверх тех же хранилищ.
// Незаданные поля cfg берутся из окружения.
func (e *testEnv) withScheduler(cfg Config) {
	logger := discardLogger()
	if cfg.Schedules == nil {
		cfg.Schedules = e.schedules
	}
	if cfg.Guard == nil {
		cfg.Guard = NewDuplicateGuard(e.jobs, logger)
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(e.executor, time.Second, logger)
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	cfg.Logger = logger
	cfg.Now = e.clock.Now
	e.scheduler = New(cfg)
}

func (e *testEnv) createSchedule(t *testing.T, name, cronExpr string, states []string, dataTypes ...domain.DataType) *domain.Schedule {
	t.Helper()
	sched, err := e.service.Create(context.Background(), domain.ScheduleInput{
		Name:      name,
		CronExpr:  cronExpr,
		States:    states,
		DataTypes: dataTypes,
		Depth:     domain.DepthFull,
	})
	require.NoError(t, err)
	return sched
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *domain.Schedule {
	t.Helper()
	sched, err := e.schedules.GetByID(context.Background(), id)
	require.NoError(t, err)
	return sched
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}
