package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("not found")

const (
	CodeCount            = "count"
	CodeSize             = "size"
	CodeContentType      = "content_type"
	CodeExtension        = "extension_mismatch"
	CodeContentMismatch  = "content_mismatch"
	CodeStructuredField  = "structured_field"
	CodeCoverIndex       = "cover_index"
	CodeAltText          = "alt_text"
	CodeCapacityExceeded = "capacity"
)

// Violation описывает одно нарушение правил валидации
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError перечисляет все найденные нарушения, а не только первое
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}

	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}

	return false
}

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// StorageError оборачивает отказ бэкенда хранилища при записи
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}

	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PersistenceError оборачивает отказ записи в БД после успешной записи файлов
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
