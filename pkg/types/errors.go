package types

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors returned by the fieldforms services.
var (
	ErrValidation           = errors.New("validation failed")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidIndex         = errors.New("invalid index")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidValue         = errors.New("invalid property value")
	ErrUnknownProperty      = errors.New("unknown field property")
	ErrUnknownFieldType     = errors.New("unknown field type")
	ErrCycle                = errors.New("parent would create a cycle")
	ErrHasChildren          = errors.New("field has subfields")
	ErrHasForms             = errors.New("field has forms")
	ErrHasAgents            = errors.New("field has assigned agents")
	ErrDuplicateName        = errors.New("name already exists")
	ErrDuplicateCode        = errors.New("agent code already exists")
	ErrDuplicateEmail       = errors.New("agent email already exists")
	ErrInvalidRole          = errors.New("invalid role")
	ErrForbidden            = errors.New("operation not permitted for this role")
	ErrUnauthenticated      = errors.New("no session")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrPersistence          = errors.New("persistence failure")
)

// ValidationError carries every user-correctable problem found while
// publishing a form, in the order they were detected.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a message.
func (e *ValidationError) Add(format string, args ...any) {
	e.Messages = append(e.Messages, fmt.Sprintf(format, args...))
}

// Empty reports whether no messages were recorded.
func (e *ValidationError) Empty() bool { return len(e.Messages) == 0 }

// MissingRequiredFieldError lists the required field IDs that had no value
// at submit time, in form order. The first entry is the one a UI focuses.
type MissingRequiredFieldError struct {
	FieldIDs []string
}

func (e *MissingRequiredFieldError) Error() string {
	if len(e.FieldIDs) == 1 {
		return "missing required field: " + e.FieldIDs[0]
	}
	return "missing required fields: " + strings.Join(e.FieldIDs, ", ")
}

func (e *MissingRequiredFieldError) Unwrap() error { return ErrMissingRequiredField }

// First returns the first failing field ID.
func (e *MissingRequiredFieldError) First() string {
	if len(e.FieldIDs) == 0 {
		return ""
	}
	return e.FieldIDs[0]
}

// PersistenceError reports a storage write or read that failed after the
// caller's in-memory work was complete.
type PersistenceError struct {
	Table string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Table, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
