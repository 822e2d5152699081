package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание регулярного исследования.
//
// Schedule описывает, что исследовать (States, DataTypes, Depth)
// и когда (CronExpr, 5 полей):
//
//	"0 9 * * *"    — каждый день в 9:00 UTC
//	"0 */4 * * *"  — каждые 4 часа
//	"30 6 * * 1-5" — по будням в 6:30
//
// Scheduler проверяет NextRunAt и отправляет работу в executor,
// когда время подошло. Jobs расписанию не принадлежат — связь только
// по сигнатуре работы и времени.
type Schedule struct {
	// ID — уникальный идентификатор, неизменяем.
	ID uuid.UUID `json:"id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CronExpr — cron-выражение: "минуты часы дни месяцы дни_недели".
	CronExpr string `json:"cron_expr"`

	// States — коды регионов (нормализованы, отсортированы).
	States []string `json:"states"`

	// DataTypes — категории данных (нормализованы, отсортированы).
	DataTypes []DataType `json:"data_types"`

	Depth Depth `json:"depth"`

	// IsActive — только активные расписания попадают в выборку due.
	IsActive bool `json:"is_active"`

	// LastRunAt — время последнего тика, обработавшего расписание.
	// Nil до первого запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// NextRunAt — ближайшее время срабатывания строго после момента,
	// на который оно было вычислено. Никогда не пустое после создания.
	NextRunAt time.Time `json:"next_run_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Signature возвращает сигнатуру работы расписания.
func (s *Schedule) Signature() WorkSignature {
	return WorkSignature{States: s.States, DataTypes: s.DataTypes}
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return !s.NextRunAt.After(now)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(ranAt, nextRun time.Time) {
	s.LastRunAt = &ranAt
	s.NextRunAt = nextRun
	s.UpdatedAt = ranAt
}

// ScheduleInput — входные данные для создания расписания.
//
// Validate вызывается один раз на границе (API/CLI), после чего
// данные нормализованы и гарантированно корректны.
type ScheduleInput struct {
	Name        string
	Description string
	CronExpr    string
	States      []string
	DataTypes   []DataType
	Depth       Depth
	// IsActive — nil означает true.
	IsActive *bool
}

// Validate проверяет и нормализует входные данные.
// Корректность самого cron-выражения проверяет scheduler.
func (in *ScheduleInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}

	in.CronExpr = strings.TrimSpace(in.CronExpr)
	if in.CronExpr == "" {
		return fmt.Errorf("%w: cron_expr is required", ErrValidation)
	}

	states, err := NormalizeStates(in.States)
	if err != nil {
		return err
	}
	in.States = states

	dataTypes, err := NormalizeDataTypes(in.DataTypes)
	if err != nil {
		return err
	}
	in.DataTypes = dataTypes

	if in.Depth == "" {
		in.Depth = DepthSummary
	}
	if !in.Depth.IsValid() {
		return fmt.Errorf("%w: invalid depth %q", ErrValidation, in.Depth)
	}

	return nil
}

// Active возвращает значение IsActive с учётом умолчания.
func (in *ScheduleInput) Active() bool {
	return in.IsActive == nil || *in.IsActive
}

// SchedulePatch — частичное обновление расписания.
// Nil-поля не меняются.
type SchedulePatch struct {
	Name        *string
	Description *string
	CronExpr    *string
	States      *[]string
	DataTypes   *[]DataType
	Depth       *Depth
	IsActive    *bool
}

// Apply валидирует patch и применяет его к копии расписания.
// Возвращает true, если изменилось cron-выражение.
func (p *SchedulePatch) Apply(s *Schedule) (cronChanged bool, err error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return false, fmt.Errorf("%w: name must not be empty", ErrValidation)
		}
		s.Name = name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.CronExpr != nil {
		expr := strings.TrimSpace(*p.CronExpr)
		if expr == "" {
			return false, fmt.Errorf("%w: cron_expr must not be empty", ErrValidation)
		}
		cronChanged = expr != s.CronExpr
		s.CronExpr = expr
	}
	if p.States != nil {
		states, err := NormalizeStates(*p.States)
		if err != nil {
			return false, err
		}
		s.States = states
	}
	if p.DataTypes != nil {
		dataTypes, err := NormalizeDataTypes(*p.DataTypes)
		if err != nil {
			return false, err
		}
		s.DataTypes = dataTypes
	}
	if p.Depth != nil {
		if !p.Depth.IsValid() {
			return false, fmt.Errorf("%w: invalid depth %q", ErrValidation, *p.Depth)
		}
		s.Depth = *p.Depth
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	return cronChanged, nil
}
