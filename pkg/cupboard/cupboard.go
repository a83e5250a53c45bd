// Package cupboard is the public entry point for opening a storage backend.
// It selects the implementation named by Config.Backend while keeping the
// implementations internal.
package cupboard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/memory"
	"github.com/mesh-intelligence/fieldforms/internal/postgres"
	"github.com/mesh-intelligence/fieldforms/internal/sqlite"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// New returns a detached Cupboard for the named backend.
func New(backend string, logger *zap.Logger) (types.Cupboard, error) {
	switch backend {
	case types.BackendSQLite:
		return sqlite.NewBackend(sqlite.WithLogger(logger)), nil
	case types.BackendPostgres:
		return postgres.NewBackend(logger), nil
	case types.BackendMemory:
		return memory.NewBackend(), nil
	case "":
		return nil, types.ErrBackendEmpty
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, backend)
	}
}

// Open creates the backend named by cfg and attaches it.
//
// Example:
//
//	cup, err := cupboard.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".fieldforms",
//	}, logger)
//	defer cup.Detach()
func Open(cfg types.Config, logger *zap.Logger) (types.Cupboard, error) {
	cup, err := New(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}
	if err := cup.Attach(cfg); err != nil {
		return nil, err
	}
	return cup, nil
}
