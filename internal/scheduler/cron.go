package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без дескрипторов вида @daily).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// cronFields — количество полей в выражении.
const cronFields = 5

// maxPreview — максимум значений в NextFireTimes.
const maxPreview = 20

// NextFireTime возвращает ближайшее время срабатывания строго после asOf.
//
// Вычисление ведётся в UTC. Если asOf совпадает с моментом срабатывания,
// возвращается следующий момент, а не тот же самый.
// Ошибки разбора оборачивают ErrParse.
func NextFireTime(cronExpr string, asOf time.Time) (time.Time, error) {
	schedule, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	next := schedule.Next(asOf.UTC())
	if next.IsZero() {
		// robfig/cron ищет на 5 лет вперёд, например "0 0 30 2 *" не сработает никогда
		return time.Time{}, fmt.Errorf("%w: %q never fires", ErrParse, cronExpr)
	}
	return next.UTC(), nil
}

// NextFireTimes возвращает n ближайших срабатываний после from.
// n ограничено сверху maxPreview.
func NextFireTimes(cronExpr string, from time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		n = 1
	}
	n = min(n, maxPreview)

	times := make([]time.Time, 0, n)
	at := from
	for range n {
		next, err := NextFireTime(cronExpr, at)
		if err != nil {
			return nil, err
		}
		times = append(times, next)
		at = next
	}
	return times, nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := parseCron(cronExpr)
	return err
}

func parseCron(cronExpr string) (cron.Schedule, error) {
	// Префиксы TZ=/CRON_TZ= и дескрипторы не поддерживаются — только 5 полей
	if n := len(strings.Fields(cronExpr)); n != cronFields {
		return nil, fmt.Errorf("%w: %q: expected %d fields, got %d", ErrParse, cronExpr, cronFields, n)
	}

	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrParse, cronExpr, err)
	}
	return schedule, nil
}
