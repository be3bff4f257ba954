package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence общая ошибка хранилища (недоступно или отклонило операцию).
	ErrPersistence = errors.New("persistence error")
	// ErrInvalidID возвращается при попытке сохранить запись с отрицательным ID.
	ErrInvalidID = errors.New("entity id must be non-negative")
)

// PersistenceError описывает сбой операции репозитория.
// errors.Is(err, ErrPersistence) истинно для любой такой ошибки.
type PersistenceError struct {
	Op   string
	Kind Kind
	ID   int64
	Err  error
}

// NewPersistenceError оборачивает err; nil остаётся nil.
func NewPersistenceError(op string, kind Kind, id int64, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Kind: kind, ID: id, Err: err}
}

func (e *PersistenceError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %s id=%d: %v", e.Kind, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsPersistence проверяет, является ли ошибка ошибкой хранилища.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}
