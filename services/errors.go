package services

import (
	"errors"
	"fmt"
)

var (
	// ErrPostNotFound is returned when no post has the requested id.
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidID is returned when an id is not a valid ObjectID. It is kept
	// apart from ErrPostNotFound even though both surface as 404.
	ErrInvalidID = errors.New("invalid post id")

	// ErrUnauthenticated is returned when an operation needs a caller identity
	// and none was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ValidationError is an invalid argument with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// UpstreamError is a failure reported by the media store.
type UpstreamError struct {
	Op  string // "upload" or "destroy"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("media %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsUpstreamError(err error) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}
