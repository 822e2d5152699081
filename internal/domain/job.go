package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job — одно выполнение исследования (ручное или по расписанию).
//
// Job создаётся dispatcher'ом в статусе queued. Дальнейшие переходы
// выполняет только executor (worker). Jobs никогда не удаляются.
type Job struct {
	ID uuid.UUID `json:"id"`

	Status JobStatus `json:"status"`

	// Сигнатура работы, скопированная из запроса или расписания.
	States    []string   `json:"states"`
	DataTypes []DataType `json:"data_types"`
	Depth     Depth      `json:"depth"`

	// Since — нижняя граница для инкрементального сбора (опционально).
	Since *time.Time `json:"since,omitempty"`

	// StartedAt — время создания job.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время перехода в финальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Stats заполняется только при success.
	Stats *JobStats `json:"stats,omitempty"`

	// ErrorText заполняется только при error.
	ErrorText string `json:"error_text,omitempty"`

	// Logs — строки прогресса, только добавление.
	Logs []string `json:"logs,omitempty"`
}

// JobStats — счётчики результата исследования.
type JobStats struct {
	Artifacts int `json:"artifacts"`
	Programs  int `json:"programs"`
}

// NewJob создаёт job в статусе queued.
func NewJob(sig WorkSignature, depth Depth, since *time.Time, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		Status:    JobStatusQueued,
		States:    sig.States,
		DataTypes: sig.DataTypes,
		Depth:     depth,
		Since:     since,
		StartedAt: now,
	}
}

// Signature возвращает сигнатуру работы job.
func (j *Job) Signature() WorkSignature {
	return WorkSignature{States: j.States, DataTypes: j.DataTypes}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если job ещё не завершён.
func (j *Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// MarkRunning переводит job в статус running.
func (j *Job) MarkRunning() error {
	return j.transition(JobStatusRunning)
}

// MarkSucceeded переводит job в success со статистикой.
func (j *Job) MarkSucceeded(stats JobStats, now time.Time) error {
	if err := j.transition(JobStatusSuccess); err != nil {
		return err
	}
	j.Stats = &stats
	j.FinishedAt = &now
	return nil
}

// MarkFailed переводит job в error с текстом ошибки.
func (j *Job) MarkFailed(errText string, now time.Time) error {
	if err := j.transition(JobStatusError); err != nil {
		return err
	}
	j.ErrorText = errText
	j.FinishedAt = &now
	return nil
}

// AppendLog добавляет строку прогресса.
func (j *Job) AppendLog(line string) {
	j.Logs = append(j.Logs, line)
}

func (j *Job) transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}
