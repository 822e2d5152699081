package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
)

// JobStore — операции над jobs, нужные worker'у и QueueExecutor.
// Реализации: repo.JobRepo, repotest.JobStore.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListQueued(ctx context.Context, limit int) ([]domain.Job, error)
	Transition(ctx context.Context, job *domain.Job, from domain.JobStatus) error
	AppendLog(ctx context.Context, id uuid.UUID, line string) error
}

// Notifier будит worker'ов после создания job. Реализация: mq.Publisher.
type Notifier interface {
	PublishResearchRequested(ctx context.Context, jobID uuid.UUID) error
}
