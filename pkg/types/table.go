package types

import (
	"context"
	"errors"
	"regexp"
)

// Filter selects entities by equality on their JSON attributes, for example
// {"owner_id": "t1", "form_id": "f1"}. Values must be strings.
type Filter map[string]any

// Table provides uniform CRUD operations for a single collection.
// Get and Fetch return any; callers type-assert to the concrete entity struct.
type Table interface {
	// Get retrieves the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Get(ctx context.Context, id string) (any, error)

	// Set creates or updates an entity. When id is empty a new UUID v7 is
	// generated and written back to the entity. Returns the ID used.
	Set(ctx context.Context, id string, data any) (string, error)

	// Delete removes the entity with the given ID.
	// Returns ErrNotFound if no entity exists with that ID.
	Delete(ctx context.Context, id string) error

	// Fetch returns all entities matching the filter in insertion order.
	// An empty filter returns every entity in the table. Never returns nil.
	Fetch(ctx context.Context, filter Filter) ([]any, error)
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter value type")
)

var filterKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks that every key is a plain attribute name and every value
// is a string. Backends call it before building a query.
func (f Filter) Validate() error {
	for k, v := range f {
		if !filterKeyPattern.MatchString(k) {
			return ErrInvalidFilter
		}
		if _, ok := v.(string); !ok {
			return ErrInvalidFilter
		}
	}
	return nil
}

// With returns a copy of the filter with key set to value.
func (f Filter) With(key, value string) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[key] = value
	return out
}
