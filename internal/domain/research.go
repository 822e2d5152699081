package domain

import (
	"fmt"
	"slices"
	"strings"
)

// DataType — категория собираемых данных.
type DataType string

const (
	DataTypeRules       DataType = "rules"
	DataTypeEmissions   DataType = "emissions"
	DataTypeInspections DataType = "inspections"
	DataTypeBulletins   DataType = "bulletins"
	DataTypeForms       DataType = "forms"
)

// AllDataTypes — закрытый список допустимых категорий.
var AllDataTypes = []DataType{
	DataTypeRules,
	DataTypeEmissions,
	DataTypeInspections,
	DataTypeBulletins,
	DataTypeForms,
}

// IsValid проверяет, что категория входит в AllDataTypes.
func (d DataType) IsValid() bool {
	return slices.Contains(AllDataTypes, d)
}

// Depth — глубина исследования.
type Depth string

const (
	DepthSummary Depth = "summary"
	DepthFull    Depth = "full"
)

// IsValid проверяет значение Depth.
func (d Depth) IsValid() bool {
	return d == DepthSummary || d == DepthFull
}

// NormalizeStates приводит коды регионов к верхнему регистру,
// убирает повторы и сортирует.
//
// Код региона — ровно две латинские буквы ("CA", "TX").
func NormalizeStates(states []string) ([]string, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: states must not be empty", ErrValidation)
	}

	out := make([]string, 0, len(states))
	for _, s := range states {
		code := strings.ToUpper(strings.TrimSpace(s))
		if !isStateCode(code) {
			return nil, fmt.Errorf("%w: invalid state code %q", ErrValidation, s)
		}
		out = append(out, code)
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

// NormalizeDataTypes проверяет категории, убирает повторы и сортирует.
func NormalizeDataTypes(dataTypes []DataType) ([]DataType, error) {
	if len(dataTypes) == 0 {
		return nil, fmt.Errorf("%w: data_types must not be empty", ErrValidation)
	}

	out := make([]DataType, 0, len(dataTypes))
	for _, d := range dataTypes {
		d = DataType(strings.ToLower(strings.TrimSpace(string(d))))
		if !d.IsValid() {
			return nil, fmt.Errorf("%w: unknown data type %q", ErrValidation, d)
		}
		out = append(out, d)
	}

	slices.Sort(out)
	return slices.Compact(out), nil
}

func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// WorkSignature — «что именно исследуем»: пара (states, dataTypes).
//
// Используется для поиска дубликатов. Depth и время в сигнатуру не входят.
type WorkSignature struct {
	States    []string
	DataTypes []DataType
}

// Equivalent сравнивает сигнатуры как множества: порядок и повторы
// не важны, подмножество эквивалентным не считается.
func (w WorkSignature) Equivalent(other WorkSignature) bool {
	return sameSet(w.States, other.States) && sameSet(w.DataTypes, other.DataTypes)
}

func sameSet[T comparable](a, b []T) bool {
	left := make(map[T]struct{}, len(a))
	for _, v := range a {
		left[v] = struct{}{}
	}
	right := make(map[T]struct{}, len(b))
	for _, v := range b {
		if _, ok := left[v]; !ok {
			return false
		}
		right[v] = struct{}{}
	}
	return len(left) == len(right)
}

// DataTypeStrings конвертирует []DataType в []string (для БД и DTO).
func DataTypeStrings(in []DataType) []string {
	out := make([]string, len(in))
	for i, d := range in {
		out[i] = string(d)
	}
	return out
}

// ParseDataTypes конвертирует []string в []DataType без валидации.
func ParseDataTypes(in []string) []DataType {
	out := make([]DataType, len(in))
	for i, s := range in {
		out[i] = DataType(s)
	}
	return out
}
