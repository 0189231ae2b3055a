package enrollment

import (
	"errors"
	"fmt"
)

// Kind classifies a row outcome
type Kind string

const (
	KindProcessed  Kind = "processed"
	KindWarning    Kind = "warning"
	KindSkipped    Kind = "skipped"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindDuplicate  Kind = "duplicate"
	KindStore      Kind = "store"
)

// IsError reports whether the kind fails a row
func (k Kind) IsError() bool {
	switch k {
	case KindValidation, KindNotFound, KindDuplicate, KindStore:
		return true
	}
	return false
}

// RowError is a failure confined to one request. It never aborts a batch.
type RowError struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil && e.Kind == KindStore {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// KindOf returns the row error kind of err, or KindStore for anything unclassified
func KindOf(err error) Kind {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr.Kind
	}
	return KindStore
}

func asRowError(err error) *RowError {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr
	}
	return &RowError{Kind: KindStore, Message: "unexpected error", Err: err}
}

func validationError(field, format string, args ...any) *RowError {
	return &RowError{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...any) *RowError {
	return &RowError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func duplicateError(err error, format string, args ...any) *RowError {
	return &RowError{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...), Err: err}
}

func storeError(err error, format string, args ...any) *RowError {
	return &RowError{Kind: KindStore, Message: fmt.Sprintf(format, args...), Err: err}
}

// Note is a non-fatal per-person outcome attached to a successful request
type Note struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}
