// Package memory is an in-process Cupboard backend. Entities are held as
// JSON bodies in insertion order, so reads return fresh copies exactly as
// the persistent backends do. Nothing survives Detach.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Backend implements types.Cupboard in memory.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	tables   map[string]*Table
}

// NewBackend returns a detached backend.
func NewBackend() *Backend {
	return &Backend{tables: make(map[string]*Table)}
}

// Attach creates empty tables. The config is validated but otherwise
// unused.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	for _, name := range types.StandardTableNames {
		b.tables[name] = &Table{name: name, backend: b, docs: make(map[string][]byte)}
	}
	b.attached = true
	return nil
}

// Detach drops all data. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = false
	b.tables = make(map[string]*Table)
	return nil
}

// GetTable returns the named table.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	t, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return t, nil
}

// Table is one in-memory collection.
type Table struct {
	name    string
	backend *Backend
	order   []string
	docs    map[string][]byte
}

func (t *Table) Get(_ context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}
	body, ok := t.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return docstore.Decode(t.name, body)
}

func (t *Table) Set(_ context.Context, id string, data any) (string, error) {
	e, id, err := docstore.Prepare(t.name, id, data)
	if err != nil {
		return "", err
	}
	body, err := docstore.Encode(e)
	if err != nil {
		return "", err
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return "", types.ErrCupboardDetached
	}
	if _, exists := t.docs[id]; !exists {
		t.order = append(t.order, id)
	}
	t.docs[id] = body
	return id, nil
}

func (t *Table) Delete(_ context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.ErrCupboardDetached
	}
	if _, ok := t.docs[id]; !ok {
		return types.ErrNotFound
	}
	delete(t.docs, id)
	t.order = slices.DeleteFunc(t.order, func(x string) bool { return x == id })
	return nil
}

func (t *Table) Fetch(_ context.Context, filter types.Filter) ([]any, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}
	results := []any{}
	for _, id := range t.order {
		body := t.docs[id]
		ok, err := docstore.Matches(body, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		e, err := docstore.Decode(t.name, body)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, nil
}

var (
	_ types.Cupboard = (*Backend)(nil)
	_ types.Table    = (*Table)(nil)
)
