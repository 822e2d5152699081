// Package worker — исполнитель исследований.
//
// QueueExecutor реализует scheduler.Executor: создаёт job в статусе
// queued и будит worker'ов сообщением research.requested.
//
// Worker забирает queued jobs (из очереди или опросом БД), переводит их
// queued → running → success|error и пишет строки прогресса в job.Logs.
// Само исследование выполняет Researcher; HTTPResearcher вызывает
// внешний сервис.
package worker
