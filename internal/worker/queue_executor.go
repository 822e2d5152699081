package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/scheduler"
)

// QueueExecutor принимает работу от dispatcher'а: сохраняет job в статусе
// queued и публикует research.requested.
//
// Ошибка публикации не считается ошибкой dispatch: job уже в БД,
// и worker подберёт его при очередном опросе.
type QueueExecutor struct {
	jobs     JobStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

var _ scheduler.Executor = (*QueueExecutor)(nil)

// NewQueueExecutor создаёт QueueExecutor. notifier может быть nil.
func NewQueueExecutor(jobs JobStore, notifier Notifier, logger *slog.Logger) *QueueExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueExecutor{jobs: jobs, notifier: notifier, logger: logger, now: time.Now}
}

// StartWork создаёт один job на запрос.
func (e *QueueExecutor) StartWork(ctx context.Context, req scheduler.WorkRequest) ([]uuid.UUID, error) {
	job := domain.NewJob(req.Signature(), req.Depth, req.Since, e.now().UTC())
	if err := e.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if e.notifier != nil {
		if err := e.notifier.PublishResearchRequested(ctx, job.ID); err != nil {
			e.logger.Warn("failed to publish research.requested, job left for polling",
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	return []uuid.UUID{job.ID}, nil
}
