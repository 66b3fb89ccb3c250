package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("tutor not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// InvalidInputError reports a malformed field. It is raised before the
// store is touched.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tutor not found with id: %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("email already exists: %s", e.Email)
}

func (e *DuplicateEmailError) Is(target error) bool { return target == ErrDuplicateEmail }
