// Package cli реализует инструмент командной строки Regwatch.
//
// CLI работает с Regwatch API по HTTP и не импортирует внутренние
// пакеты системы: DTO продублированы в client.go.
//
// Команды сгруппированы по ресурсам:
//   - schedule: list, create, show, update, delete, enable, disable, due, upcoming
//   - job: list, show, dispatch
//   - cron: preview
//
// Каждая группа создаётся фабрикой (NewScheduleCmd и т.д.), которая
// принимает clientFn и outputFn: Client и Output создаются лениво,
// после разбора persistent-флагов --api-url и --json.
//
// Данные печатаются в stdout (таблица или JSON), сообщения — в stderr:
//
//	regwatch schedule list --json | jq '.[].next_run_at'
package cli
