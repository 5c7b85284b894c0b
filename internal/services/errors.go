package services

import (
	"errors"
	"strings"

	"github.com/yukikurage/taskflow-api/internal/lifecycle"
)

// Error kinds. Every error a service returns to a handler wraps exactly one of these,
// so callers can branch with errors.Is on either the concrete error or its kind.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	ErrUnavailable       = errors.New("service unavailable")
)

// serviceError is a concrete, comparable error belonging to a kind.
type serviceError struct {
	kind error
	msg  string
}

func (e *serviceError) Error() string { return e.msg }
func (e *serviceError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &serviceError{kind: kind, msg: msg}
}

// FieldsError names the request fields an error refers to.
type FieldsError struct {
	Err    error
	Fields []string
}

func (e *FieldsError) Error() string {
	return e.Err.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *FieldsError) Unwrap() error { return e.Err }

// Kind returns the kind sentinel err belongs to, or nil for unexpected errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrUnauthenticated,
		ErrForbidden,
		ErrNotFound,
		ErrConflict,
		ErrInvalidTransition,
		ErrUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var (
	ErrPermissionDenied = newError(ErrForbidden, "you do not have permission to perform this action")
	ErrNoOrganization   = newError(ErrForbidden, "you must belong to an organization")
)
