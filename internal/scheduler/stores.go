package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
)

// ScheduleStore — хранилище расписаний.
// Реализации: repo.ScheduleRepo (PostgreSQL), repotest.ScheduleStore.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	ListActive(ctx context.Context) ([]domain.Schedule, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	// Update сохраняет редактируемые поля. next_run_at пишется только при
	// reschedule=true; в s возвращаются актуальные last_run_at и next_run_at.
	Update(ctx context.Context, s *domain.Schedule, reschedule bool) error
	RecordRun(ctx context.Context, id uuid.UUID, ranAt, nextRun time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobFinder — поиск активного job по сигнатуре (для DuplicateGuard).
type JobFinder interface {
	FindActiveBySignature(ctx context.Context, sig domain.WorkSignature) (*domain.Job, error)
}

// WorkRequest — запрос на исследование.
type WorkRequest struct {
	States    []string
	DataTypes []domain.DataType
	Depth     domain.Depth
	// Since — нижняя граница для инкрементального сбора, опционально.
	Since *time.Time
}

// Signature возвращает сигнатуру работы запроса.
func (r WorkRequest) Signature() domain.WorkSignature {
	return domain.WorkSignature{States: r.States, DataTypes: r.DataTypes}
}

// Executor — внешний исполнитель исследований.
//
// StartWork сохраняет jobs в статусе queued и возвращает их ID.
// Дальнейшие переходы статуса — ответственность executor'а.
type Executor interface {
	StartWork(ctx context.Context, req WorkRequest) ([]uuid.UUID, error)
}
