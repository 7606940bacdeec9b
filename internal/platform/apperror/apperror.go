package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError independently of the transport that reports it.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindInvalidArgument Kind = "invalid_argument"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// AppError is a typed failure returned by the booking core.
type AppError struct {
	Kind    Kind   // Failure class, mapped to a status code by the response layer
	Message string // User-facing message
	Err     error  // Underlying error, if any (not exposed to the user)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError of the same kind, so that
// errors.Is(err, apperror.ErrConflict) matches any conflict.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound        = &AppError{Kind: KindNotFound}
	ErrForbidden       = &AppError{Kind: KindForbidden}
	ErrInvalidArgument = &AppError{Kind: KindInvalidArgument}
	ErrConflict        = &AppError{Kind: KindConflict}
)

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap creates an AppError of the given kind wrapping err.
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// NewNotFound reports a missing entity, e.g. NewNotFound("Item", 7).
func NewNotFound(entity string, id any) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s with id: %v not found", entity, id))
}

func NewForbidden(message string) *AppError {
	return New(KindForbidden, message)
}

func NewInvalidArgument(message string) *AppError {
	return New(KindInvalidArgument, message)
}

func NewConflict(message string) *AppError {
	return New(KindConflict, message)
}

// KindOf returns the kind of the first AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
