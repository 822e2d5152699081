package repo

import (
	"errors"
	"fmt"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — операция невозможна в текущем состоянии
	// (например, job уже взят другим worker'ом).
	ErrInvalidState = errors.New("invalid state")

	// ErrStore — сбой хранилища (соединение, SQL, сканирование).
	ErrStore = errors.New("store error")
)

// storeErr помечает ошибку драйвера как ErrStore, сохраняя исходную в цепочке.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
