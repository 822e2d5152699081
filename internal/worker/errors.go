package worker

import "errors"

// Ошибки worker'а.
var (
	// ErrJobNotQueued — job уже взят другим worker'ом или завершён.
	ErrJobNotQueued = errors.New("job is not queued")

	// ErrResearchRequest — не удалось выполнить запрос к сервису исследований.
	ErrResearchRequest = errors.New("research request failed")
)
