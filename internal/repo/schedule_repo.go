package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Regwatch/internal/domain"
)

const scheduleColumns = `
	id, name, description, cron_expr, states, data_types, depth, is_active,
	last_run_at, next_run_at, created_at, updated_at`

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, name, description, cron_expr, states, data_types, depth,
		                       is_active, last_run_at, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		nullString(s.Description),
		s.CronExpr,
		s.States,
		domain.DataTypeStrings(s.DataTypes),
		s.Depth,
		s.IsActive,
		s.LastRunAt,
		s.NextRunAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return storeErr("insert schedule", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	s, err := scanSchedule(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get schedule", err)
	}
	return s, nil
}

// List возвращает schedules, новые первыми.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE ($1::boolean IS NULL OR is_active = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.query(ctx, "list schedules", query, filter.IsActive, filter.limit(), filter.Offset)
}

// ListActive возвращает все активные schedules, ближайшие первыми.
func (r *ScheduleRepo) ListActive(ctx context.Context) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE is_active = true
		ORDER BY next_run_at ASC
	`
	return r.query(ctx, "list active schedules", query)
}

// ListDue возвращает активные schedules с next_run_at <= now,
// отсортированные по next_run_at (ближайшие первыми). limit <= 0 — без ограничения.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE is_active = true
		  AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`
	return r.query(ctx, "list due schedules", query, now, lim)
}

// Update обновляет редактируемые поля schedule.
//
// next_run_at перезаписывается только при reschedule (сменился cron),
// иначе остаётся значение, записанное RecordRun. Актуальные
// last_run_at/next_run_at возвращаются в s.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule, reschedule bool) error {
	query := `
		UPDATE schedules
		SET name = $2, description = $3, cron_expr = $4, states = $5, data_types = $6,
		    depth = $7, is_active = $8,
		    next_run_at = CASE WHEN $11::boolean THEN $9 ELSE next_run_at END,
		    updated_at = $10
		WHERE id = $1
		RETURNING last_run_at, next_run_at
	`
	err := r.pool.QueryRow(ctx, query,
		s.ID,
		s.Name,
		nullString(s.Description),
		s.CronExpr,
		s.States,
		domain.DataTypeStrings(s.DataTypes),
		s.Depth,
		s.IsActive,
		s.NextRunAt,
		s.UpdatedAt,
		reschedule,
	).Scan(&s.LastRunAt, &s.NextRunAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storeErr("update schedule", err)
	}
	return nil
}

// RecordRun обновляет last_run_at и next_run_at после тика.
func (r *ScheduleRepo) RecordRun(ctx context.Context, id uuid.UUID, ranAt, nextRun time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET last_run_at = $2, next_run_at = $3, updated_at = $2
		WHERE id = $1
	`, id, ranAt, nextRun)
	if err != nil {
		return storeErr("record schedule run", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule. Jobs не затрагиваются.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete schedule", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// ScheduleFilter — параметры фильтрации schedules.
type ScheduleFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

func (f ScheduleFilter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

func (r *ScheduleRepo) query(ctx context.Context, op, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return schedules, nil
}

// scanSchedule сканирует строку (pgx.Row или pgx.Rows) в Schedule.
func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var description *string
	var dataTypes []string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&description,
		&s.CronExpr,
		&s.States,
		&dataTypes,
		&s.Depth,
		&s.IsActive,
		&s.LastRunAt,
		&s.NextRunAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		s.Description = *description
	}
	s.DataTypes = domain.ParseDataTypes(dataTypes)

	return &s, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
