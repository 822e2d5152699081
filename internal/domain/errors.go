package domain

import "errors"

// Ошибки доменного уровня.
var (
	// ErrValidation — входные данные не прошли валидацию.
	// Оборачивается с деталями: fmt.Errorf("%w: states is required", ErrValidation).
	ErrValidation = errors.New("validation error")

	// ErrInvalidTransition — недопустимый переход статуса job.
	ErrInvalidTransition = errors.New("invalid job status transition")
)
