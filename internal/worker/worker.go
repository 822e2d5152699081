package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/mq"
	"github.com/shaiso/Regwatch/internal/repo"
	"github.com/shaiso/Regwatch/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 20
)

// Worker исполняет queued jobs.
//
// Jobs приходят двумя путями:
//   - сообщение research.requested из RabbitMQ (event-driven)
//   - периодический опрос queued jobs в БД (fallback)
//
// Несколько worker'ов могут работать одновременно: переход
// queued → running выполняется условным UPDATE, и проигравший
// получает ErrJobNotQueued.
type Worker struct {
	jobs       JobStore
	researcher Researcher
	conn       *mq.Connection

	pollInterval time.Duration
	batchSize    int

	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	Jobs       JobStore
	Researcher Researcher

	// Conn — соединение с RabbitMQ. nil — только опрос БД.
	Conn *mq.Connection

	PollInterval time.Duration // default: 10s
	BatchSize    int           // default: 20

	Logger *slog.Logger
	Now    func() time.Time
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
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

	return &Worker{
		jobs:         cfg.Jobs,
		researcher:   cfg.Researcher,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		now:          now,
	}
}

// Start запускает consumer (если есть соединение) и цикл опроса.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if w.conn != nil {
		consumer := mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:   mq.QueueResearchRequested,
			Handler: w.handleResearchRequested,
		})
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("research consumer stopped", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
		"consumer", w.conn != nil,
	)
}

// Stop останавливает worker и ждёт завершения текущих jobs.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый опрос сразу: подхватываем jobs, созданные пока worker был выключен
	w.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll исполняет queued jobs из БД, старые первыми.
func (w *Worker) Poll(ctx context.Context) {
	jobs, err := w.jobs.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued jobs", "error", err)
		return
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		err := w.ProcessJob(ctx, jobs[i].ID)
		if err != nil && !errors.Is(err, ErrJobNotQueued) {
			w.logger.Error("failed to process job", "job_id", jobs[i].ID, "error", err)
		}
	}
}

func (w *Worker) handleResearchRequested(ctx context.Context, env *mq.Envelope) error {
	if env.Type != mq.MessageTypeResearchRequested {
		return fmt.Errorf("%w: unexpected message type %q", mq.ErrReject, env.Type)
	}

	var payload mq.ResearchRequested
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("%w: %w", mq.ErrReject, err)
	}

	err := w.ProcessJob(ctx, payload.JobID)
	switch {
	case err == nil, errors.Is(err, ErrJobNotQueued):
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %w", mq.ErrReject, err)
	default:
		return err
	}
}

// ProcessJob захватывает job и выполняет исследование.
//
// Возвращает ErrJobNotQueued, если job уже взят или завершён.
// Ошибка самого исследования не возвращается: она записывается в job.
func (w *Worker) ProcessJob(ctx context.Context, id uuid.UUID) error {
	job, err := w.jobs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job.Status != domain.JobStatusQueued {
		return ErrJobNotQueued
	}

	if err := job.MarkRunning(); err != nil {
		return fmt.Errorf("%w: %w", ErrJobNotQueued, err)
	}
	if err := w.jobs.Transition(ctx, job, domain.JobStatusQueued); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrJobNotQueued
		}
		return fmt.Errorf("mark job running: %w", err)
	}

	logger := telemetry.WithJobID(w.logger, job.ID.String())
	logger.Info("job started",
		"states", job.States,
		"data_types", job.DataTypes,
		"depth", job.Depth,
	)

	progress := func(line string) {
		if err := w.jobs.AppendLog(ctx, job.ID, line); err != nil {
			logger.Warn("failed to append job log", "error", err)
		}
	}

	stats, researchErr := w.research(ctx, job, progress)

	// Финальный переход выполняем даже при остановке worker'а
	finishCtx := context.WithoutCancel(ctx)
	now := w.now().UTC()

	if researchErr != nil {
		if err := job.MarkFailed(researchErr.Error(), now); err != nil {
			return err
		}
	} else if err := job.MarkSucceeded(stats, now); err != nil {
		return err
	}

	if err := w.jobs.Transition(finishCtx, job, domain.JobStatusRunning); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	telemetry.JobsFinished.WithLabelValues(string(job.Status)).Inc()

	if researchErr != nil {
		logger.Warn("job failed", "error", researchErr, "duration", job.Duration())
	} else {
		logger.Info("job succeeded",
			"artifacts", stats.Artifacts,
			"programs", stats.Programs,
			"duration", job.Duration(),
		)
	}
	return nil
}

// research изолирует панику исследователя.
func (w *Worker) research(ctx context.Context, job *domain.Job, progress ProgressFunc) (stats domain.JobStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("research panicked: %v", r)
		}
	}()
	return w.researcher.Research(ctx, job, progress)
}
