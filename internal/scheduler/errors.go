package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrParse — cron-выражение не удалось разобрать или оно никогда не срабатывает.
	ErrParse = errors.New("cron parse error")

	// ErrDispatch — executor не принял работу.
	ErrDispatch = errors.New("dispatch failed")
)
