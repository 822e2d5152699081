package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Regwatch/internal/domain"
)

// defaultDispatchTimeout — таймаут вызова executor'а.
const defaultDispatchTimeout = 30 * time.Second

// Dispatcher валидирует запрос и передаёт его в Executor.
//
// Dispatch не ждёт завершения работы — только того, что executor
// принял её и сохранил jobs в статусе queued.
type Dispatcher struct {
	executor Executor
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher создаёт новый Dispatcher. timeout <= 0 означает 30s.
func NewDispatcher(executor Executor, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{executor: executor, timeout: timeout, logger: logger}
}

// Dispatch запускает исследование и возвращает ID созданных jobs.
//
// Пустые states/dataTypes — domain.ErrValidation.
// Ошибка или таймаут executor'а — ErrDispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, req WorkRequest) ([]uuid.UUID, error) {
	states, err := domain.NormalizeStates(req.States)
	if err != nil {
		return nil, err
	}
	dataTypes, err := domain.NormalizeDataTypes(req.DataTypes)
	if err != nil {
		return nil, err
	}
	if req.Depth == "" {
		req.Depth = domain.DepthSummary
	}
	if !req.Depth.IsValid() {
		return nil, fmt.Errorf("%w: invalid depth %q", domain.ErrValidation, req.Depth)
	}
	req.States = states
	req.DataTypes = dataTypes

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Executor может не уважать ctx — ждём результат не дольше таймаута
	type result struct {
		ids []uuid.UUID
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		ids, err := d.executor.StartWork(callCtx, req)
		done <- result{ids: ids, err: err}
	}()

	var ids []uuid.UUID
	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDispatch, r.err)
		}
		ids = r.ids
	case <-callCtx.Done():
		return nil, fmt.Errorf("%w: executor did not respond: %w", ErrDispatch, callCtx.Err())
	}

	d.logger.Info("work dispatched",
		"states", req.States,
		"data_types", req.DataTypes,
		"depth", req.Depth,
		"job_ids", ids,
	)
	return ids, nil
}
