package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrStorage       = errors.New("storage error")
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("not found")
)

// StorageError wraps a failure of the persistent store so callers can tell it
// apart from an empty result.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err, returning nil for a nil err.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of an input.
type ValidationError struct {
	Fields []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when it holds at least one field error, nil otherwise.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateConflictError reports an operation refused because of the current
// state of the data, such as declaring a period that has not ended yet.
type StateConflictError struct {
	Op     string
	Reason string
}

func NewStateConflict(op, reason string) *StateConflictError {
	return &StateConflictError{Op: op, Reason: reason}
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }
