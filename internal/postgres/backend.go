// Package postgres implements the Postgres storage backend. All
// collections share one documents table keyed by (collection, id) with a
// JSONB body; the schema is managed by embedded migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/internal/logging"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Default pool settings.
const (
	defaultMaxConns    int32 = 10
	defaultConnTimeout       = 10 * time.Second
)

// Backend implements types.Cupboard on a pgx connection pool.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	pool     *pgxpool.Pool
	tables   map[string]*Table
	logger   *zap.Logger
}

// NewBackend returns a detached backend. logger may be nil.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{tables: make(map[string]*Table), logger: logger}
}

// Attach migrates the schema and opens the pool.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	pc := config.PostgresConfig
	if pc == nil || pc.DSN == "" {
		return types.ErrDSNEmpty
	}

	if err := migrateDSN(pc.DSN, b.logger); err != nil {
		return fmt.Errorf("migrate %s: %w", logging.SanitizeDSN(pc.DSN), err)
	}

	poolConfig, err := pgxpool.ParseConfig(pc.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = pc.MaxConns
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = defaultMaxConns
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	b.pool = pool
	b.tables = make(map[string]*Table, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		b.tables[name] = &Table{name: name, backend: b}
	}
	b.attached = true
	b.logger.Info("postgres backend attached", zap.String("dsn", logging.SanitizeDSN(pc.DSN)))
	return nil
}

// Detach closes the pool. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil
	}
	b.pool.Close()
	b.pool = nil
	b.attached = false
	b.tables = make(map[string]*Table)
	return nil
}

// GetTable returns the Table for a collection name.
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

func (b *Backend) acquire() (*pgxpool.Pool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	return b.pool, nil
}

// Table is one collection in the documents table.
type Table struct {
	name    string
	backend *Backend
}

func (t *Table) Get(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	pool, err := t.backend.acquire()
	if err != nil {
		return nil, err
	}
	var body []byte
	err = pool.QueryRow(ctx,
		"SELECT body FROM documents WHERE collection = $1 AND id = $2", t.name, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t.name, id, err)
	}
	return docstore.Decode(t.name, body)
}

func (t *Table) Set(ctx context.Context, id string, data any) (string, error) {
	e, id, err := docstore.Prepare(t.name, id, data)
	if err != nil {
		return "", err
	}
	body, err := docstore.Encode(e)
	if err != nil {
		return "", err
	}
	pool, err := t.backend.acquire()
	if err != nil {
		return "", err
	}
	_, err = pool.Exec(ctx, `INSERT INTO documents (collection, id, owner_id, body, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (collection, id) DO UPDATE
SET owner_id = EXCLUDED.owner_id, body = EXCLUDED.body, updated_at = now()`,
		t.name, id, e.TenantID(), body)
	if err != nil {
		return "", fmt.Errorf("set %s %s: %w", t.name, id, err)
	}
	return id, nil
}

func (t *Table) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	pool, err := t.backend.acquire()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", t.name, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (t *Table) Fetch(ctx context.Context, filter types.Filter) ([]any, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	pool, err := t.backend.acquire()
	if err != nil {
		return nil, err
	}
	query, args := fetchQuery(t.name, filter)
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.name, err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		e, err := docstore.Decode(t.name, body)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// fetchQuery builds a parameterized SELECT. Keys are sorted for a stable
// statement text.
func fetchQuery(collection string, filter types.Filter) (string, []any) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []any{collection}
	where := []string{"collection = $1"}
	for _, k := range keys {
		if k == "owner_id" {
			args = append(args, filter[k])
			where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
			continue
		}
		args = append(args, k, filter[k])
		where = append(where, fmt.Sprintf("body->>$%d = $%d", len(args)-1, len(args)))
	}
	return "SELECT body FROM documents WHERE " + strings.Join(where, " AND ") + " ORDER BY seq", args
}

var (
	_ types.Cupboard = (*Backend)(nil)
	_ types.Table    = (*Table)(nil)
)
