package manager

import (
	"errors"

	"taskhub/internal/storage"
)

const (
	msgTaskRequired = "Task requires name and deadline"
	msgUserRequired = "User requires name and email"
	msgEmailTaken   = "A user with this email already exists"
)

// ErrNotFound - записи нет или идентификатор некорректен
var ErrNotFound = storage.ErrNotFound

// ValidationError - не заполнено обязательное поле, запись не выполнялась
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError - email уже занят, запись не выполнялась
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// status - метка для метрик
func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsValidation(err):
		return "invalid"
	case IsConflict(err):
		return "conflict"
	case IsNotFound(err):
		return "not_found"
	}
	return "error"
}
