package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Regwatch/internal/domain"
)

const jobColumns = `
	id, status, states, data_types, depth, since, started_at, finished_at,
	stats, error_text, logs`

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, status, states, data_types, depth, since, started_at, logs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.States,
		domain.DataTypeStrings(job.DataTypes),
		job.Depth,
		job.Since,
		job.StartedAt,
		logs,
	)
	if err != nil {
		return storeErr("insert job", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get job", err)
	}
	return job, nil
}

// List возвращает jobs, новые первыми.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.query(ctx, "list jobs", query, nullString(string(filter.Status)), filter.limit(), filter.Offset)
}

// ListQueued возвращает jobs в статусе queued, старые первыми.
func (r *JobRepo) ListQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'queued'
		ORDER BY started_at ASC
		LIMIT $1
	`
	return r.query(ctx, "list queued jobs", query, limit)
}

// FindActiveBySignature возвращает queued/running job с эквивалентной
// сигнатурой или ErrNotFound.
//
// Равенство множеств проверяется взаимным вхождением массивов (@> и <@):
// порядок и повторы не важны, подмножество не совпадает.
func (r *JobRepo) FindActiveBySignature(ctx context.Context, sig domain.WorkSignature) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('queued', 'running')
		  AND states @> $1 AND states <@ $1
		  AND data_types @> $2 AND data_types <@ $2
		ORDER BY started_at DESC
		LIMIT 1
	`
	job, err := scanJob(r.pool.QueryRow(ctx, query, sig.States, domain.DataTypeStrings(sig.DataTypes)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("find active job", err)
	}
	return job, nil
}

// Transition сохраняет новый статус job, если в БД он всё ещё from.
// Если статус уже изменён (другой worker), возвращает ErrInvalidState.
func (r *JobRepo) Transition(ctx context.Context, job *domain.Job, from domain.JobStatus) error {
	var statsJSON []byte
	if job.Stats != nil {
		var err error
		statsJSON, err = json.Marshal(job.Stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $3, finished_at = $4, stats = $5, error_text = $6
		WHERE id = $1 AND status = $2
	`,
		job.ID,
		from,
		job.Status,
		job.FinishedAt,
		statsJSON,
		nullString(job.ErrorText),
	)
	if err != nil {
		return storeErr("update job status", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not %s", ErrInvalidState, job.ID, from)
	}
	return nil
}

// AppendLog добавляет строку в logs.
func (r *JobRepo) AppendLog(ctx context.Context, id uuid.UUID, line string) error {
	result, err := r.pool.Exec(ctx, `UPDATE jobs SET logs = array_append(logs, $2) WHERE id = $1`, id, line)
	if err != nil {
		return storeErr("append job log", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	Status domain.JobStatus
	Limit  int
	Offset int
}

func (f JobFilter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

func (r *JobRepo) query(ctx context.Context, op, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return jobs, nil
}

// scanJob сканирует строку в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var dataTypes []string
	var statsJSON []byte
	var errorText *string

	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.States,
		&dataTypes,
		&job.Depth,
		&job.Since,
		&job.StartedAt,
		&job.FinishedAt,
		&statsJSON,
		&errorText,
		&job.Logs,
	)
	if err != nil {
		return nil, err
	}

	job.DataTypes = domain.ParseDataTypes(dataTypes)
	if statsJSON != nil {
		var stats domain.JobStats
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
		job.Stats = &stats
	}
	if errorText != nil {
		job.ErrorText = *errorText
	}

	return &job, nil
}
