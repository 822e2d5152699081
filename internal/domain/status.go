package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	queued → running → success
//	                 ↘ error
//
// Из финальных статусов переходов нет.
type JobStatus string

const (
	// JobStatusQueued — job создан dispatcher'ом, ожидает executor.
	JobStatusQueued JobStatus = "queued"

	// JobStatusRunning — executor выполняет исследование.
	JobStatusRunning JobStatus = "running"

	// JobStatusSuccess — исследование завершено успешно.
	JobStatusSuccess JobStatus = "success"

	// JobStatusError — исследование завершилось ошибкой.
	JobStatusError JobStatus = "error"
)

// ActiveJobStatuses — статусы, при которых job считается «в работе».
var ActiveJobStatuses = []JobStatus{JobStatusQueued, JobStatusRunning}

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusError:
		return true
	default:
		return false
	}
}

// IsActive возвращает true для queued и running.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// IsValid проверяет, что статус известен.
func (s JobStatus) IsValid() bool {
	return s.IsActive() || s.IsTerminal()
}

// CanTransitionTo проверяет допустимость перехода.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusSuccess || next == JobStatusError
	default:
		return false
	}
}
