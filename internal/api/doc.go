// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис расписаний, jobs, dispatcher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, rate limit)
//   - response.go         — JSON-конверты и отображение ошибок на HTTP-коды
//   - dto.go              — Data Transfer Objects (request/response)
//   - schedule_handler.go — /schedules, включая due, active и upcoming
//   - cron_handler.go     — /cron/preview
//   - job_handler.go      — /jobs и ручной запуск
package api
