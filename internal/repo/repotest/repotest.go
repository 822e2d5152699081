// Package repotest содержит in-memory реализации репозиториев
// с той же семантикой, что и PostgreSQL-версии (сортировки, ErrNotFound,
// ErrInvalidState). Используется в тестах пакетов scheduler, api, worker.
package repotest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
)

// ScheduleStore — in-memory аналог repo.ScheduleRepo.
type ScheduleStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]domain.Schedule

	// ListDueErr, если задан, возвращается из ListDue.
	ListDueErr error
	// RecordRunErr, если задан, возвращается из RecordRun.
	RecordRunErr error
}

// NewScheduleStore создаёт пустое хранилище.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[uuid.UUID]domain.Schedule)}
}

func (s *ScheduleStore) Create(_ context.Context, sched *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[sched.ID]; ok {
		return fmt.Errorf("%w: duplicate id %s", repo.ErrStore, sched.ID)
	}
	s.schedules[sched.ID] = cloneSchedule(*sched)
	return nil
}

func (s *ScheduleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := cloneSchedule(sched)
	return &out, nil
}

func (s *ScheduleStore) List(_ context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error) {
	all := s.filter(func(sched domain.Schedule) bool {
		return filter.IsActive == nil || sched.IsActive == *filter.IsActive
	})
	slices.SortStableFunc(all, func(a, b domain.Schedule) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (s *ScheduleStore) ListActive(_ context.Context) ([]domain.Schedule, error) {
	all := s.filter(func(sched domain.Schedule) bool { return sched.IsActive })
	sortByNextRun(all)
	return all, nil
}

func (s *ScheduleStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	if s.ListDueErr != nil {
		return nil, s.ListDueErr
	}
	due := s.filter(func(sched domain.Schedule) bool { return sched.IsDue(now) })
	sortByNextRun(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *ScheduleStore) Update(_ context.Context, sched *domain.Schedule, reschedule bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.schedules[sched.ID]
	if !ok {
		return repo.ErrNotFound
	}
	next := cloneSchedule(*sched)
	// last_run_at меняется только через RecordRun, next_run_at — ещё и при смене cron.
	next.LastRunAt = cur.LastRunAt
	next.CreatedAt = cur.CreatedAt
	if !reschedule {
		next.NextRunAt = cur.NextRunAt
	}
	s.schedules[sched.ID] = next

	sched.LastRunAt = cloneTime(next.LastRunAt)
	sched.NextRunAt = next.NextRunAt
	return nil
}

func (s *ScheduleStore) RecordRun(_ context.Context, id uuid.UUID, ranAt, nextRun time.Time) error {
	if s.RecordRunErr != nil {
		return s.RecordRunErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return repo.ErrNotFound
	}
	sched.RecordRun(ranAt, nextRun)
	s.schedules[id] = sched
	return nil
}

func (s *ScheduleStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// Len возвращает количество schedules.
func (s *ScheduleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules)
}

func (s *ScheduleStore) filter(keep func(domain.Schedule) bool) []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Schedule
	for _, sched := range s.schedules {
		if keep(sched) {
			out = append(out, cloneSchedule(sched))
		}
	}
	return out
}

func sortByNextRun(list []domain.Schedule) {
	slices.SortStableFunc(list, func(a, b domain.Schedule) int {
		if c := a.NextRunAt.Compare(b.NextRunAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func cloneSchedule(s domain.Schedule) domain.Schedule {
	s.States = slices.Clone(s.States)
	s.DataTypes = slices.Clone(s.DataTypes)
	s.LastRunAt = cloneTime(s.LastRunAt)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// JobStore — in-memory аналог repo.JobRepo.
type JobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.Job

	// FindErr, если задан, возвращается из FindActiveBySignature.
	FindErr error
	// CreateErr, если задан, возвращается из Create.
	CreateErr error
}

// NewJobStore создаёт пустое хранилище.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]domain.Job)}
}

func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *JobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := cloneJob(job)
	return &out, nil
}

func (s *JobStore) List(_ context.Context, filter repo.JobFilter) ([]domain.Job, error) {
	all := s.filter(func(j domain.Job) bool {
		return filter.Status == "" || j.Status == filter.Status
	})
	slices.SortStableFunc(all, func(a, b domain.Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (s *JobStore) ListQueued(_ context.Context, limit int) ([]domain.Job, error) {
	queued := s.filter(func(j domain.Job) bool { return j.Status == domain.JobStatusQueued })
	slices.SortStableFunc(queued, func(a, b domain.Job) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	if limit > 0 && len(queued) > limit {
		queued = queued[:limit]
	}
	return queued, nil
}

func (s *JobStore) FindActiveBySignature(_ context.Context, sig domain.WorkSignature) (*domain.Job, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	matches := s.filter(func(j domain.Job) bool {
		return j.Status.IsActive() && j.Signature().Equivalent(sig)
	})
	if len(matches) == 0 {
		return nil, repo.ErrNotFound
	}
	slices.SortStableFunc(matches, func(a, b domain.Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return &matches[0], nil
}

func (s *JobStore) Transition(_ context.Context, job *domain.Job, from domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok || cur.Status != from {
		return fmt.Errorf("%w: job %s is not %s", repo.ErrInvalidState, job.ID, from)
	}
	cur.Status = job.Status
	cur.FinishedAt = job.FinishedAt
	cur.Stats = job.Stats
	cur.ErrorText = job.ErrorText
	s.jobs[job.ID] = cur
	return nil
}

func (s *JobStore) AppendLog(_ context.Context, id uuid.UUID, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	job.Logs = append(job.Logs, line)
	s.jobs[id] = job
	return nil
}

// Put кладёт job как есть (для подготовки данных в тестах).
func (s *JobStore) Put(job domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
}

// Len возвращает количество jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *JobStore) filter(keep func(domain.Job) bool) []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, cloneJob(j))
		}
	}
	return out
}

func cloneJob(j domain.Job) domain.Job {
	j.States = slices.Clone(j.States)
	j.DataTypes = slices.Clone(j.DataTypes)
	j.Logs = slices.Clone(j.Logs)
	if j.Stats != nil {
		st := *j.Stats
		j.Stats = &st
	}
	return j
}
