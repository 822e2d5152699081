// Package scheduler реализует планирование регулярных исследований.
//
// Scheduler периодически проверяет schedules с истекшим next_run_at
// и отправляет работу во внешний executor.
//
// Структура:
//   - cron.go       — cron-выражения: NextFireTime, NextFireTimes, ValidateCronExpr
//   - service.go    — CRUD расписаний с пересчётом next_run_at, проекция Upcoming
//   - guard.go      — DuplicateGuard: поиск активного job с той же сигнатурой
//   - dispatcher.go — Dispatcher: валидация и вызов Executor с таймаутом
//   - scheduler.go  — Scheduler: цикл тиков (Tick, processSchedule)
//   - stores.go     — интерфейсы хранилищ и Executor
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules:  scheduleRepo,
//	    Guard:      scheduler.NewDuplicateGuard(jobRepo, logger),
//	    Dispatcher: scheduler.NewDispatcher(executor, 30*time.Second, logger),
//	    Logger:     logger,
//	})
//
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Семантика at-least-once: после рестарта просроченные schedules
// срабатывают на первом тике. Тики никогда не перекрываются.
package scheduler
