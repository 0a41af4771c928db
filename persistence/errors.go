package persistence

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundError reports a missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewNotFound(kind string, id any) error { return &NotFoundError{Kind: kind, ID: id} }

// InvalidArgument wraps a validation failure so it matches ErrInvalidArgument.
func InvalidArgument(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, what, err)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
