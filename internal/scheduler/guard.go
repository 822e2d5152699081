package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/Regwatch/internal/domain"
	"github.com/shaiso/Regwatch/internal/repo"
)

// DuplicateGuard проверяет, нет ли уже queued/running job с
// эквивалентной сигнатурой работы.
//
// Сбой хранилища трактуется как «дубликата нет» (fail open):
// лучше отправить лишнюю работу, чем навсегда заблокировать dispatch.
type DuplicateGuard struct {
	jobs   JobFinder
	logger *slog.Logger
}

// NewDuplicateGuard создаёт новый DuplicateGuard.
func NewDuplicateGuard(jobs JobFinder, logger *slog.Logger) *DuplicateGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &DuplicateGuard{jobs: jobs, logger: logger}
}

// HasEquivalentActiveJob возвращает true, если активный job с теми же
// множествами states и dataTypes существует.
func (g *DuplicateGuard) HasEquivalentActiveJob(ctx context.Context, states []string, dataTypes []domain.DataType) bool {
	_, found := g.FindEquivalentActiveJob(ctx, domain.WorkSignature{States: states, DataTypes: dataTypes})
	return found
}

// FindEquivalentActiveJob возвращает найденный активный job.
func (g *DuplicateGuard) FindEquivalentActiveJob(ctx context.Context, sig domain.WorkSignature) (*domain.Job, bool) {
	job, err := g.jobs.FindActiveBySignature(ctx, sig)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		g.logger.Warn("duplicate check failed, assuming no duplicate",
			"states", sig.States,
			"data_types", sig.DataTypes,
			"error", err,
		)
		return nil, false
	}

	// Хранилище уже фильтрует, но сравнение множеств здесь страхует от ложных совпадений
	if job == nil || !job.Status.IsActive() || !job.Signature().Equivalent(sig) {
		return nil, false
	}
	return job, true
}
