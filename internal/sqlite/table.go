package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Table implements types.Table for one collection.
type Table struct {
	name    string
	backend *Backend
}

// Get retrieves an entity by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *Table) Get(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}

	var body string
	err := t.backend.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT body FROM %s WHERE id = ?", t.name), id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t.name, id, err)
	}
	return docstore.Decode(t.name, []byte(body))
}

// Set creates or updates an entity. If neither id nor the entity carries an
// ID, a UUID v7 is generated. Returns the entity ID.
func (t *Table) Set(ctx context.Context, id string, data any) (string, error) {
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

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := t.backend.db.ExecContext(ctx, upsertSQL(t.name), id, e.TenantID(), string(body), now); err != nil {
		return "", fmt.Errorf("set %s %s: %w", t.name, id, err)
	}
	return id, t.persist("set")
}

// Delete removes an entity by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *Table) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.ErrCupboardDetached
	}

	res, err := t.backend.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return t.persist("delete")
}

// Fetch returns the entities whose top-level attributes equal every filter
// value, in insertion order. An empty filter matches all.
func (t *Table) Fetch(ctx context.Context, filter types.Filter) ([]any, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := fetchQuery(t.name, filter)

	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrCupboardDetached
	}

	rows, err := t.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.name, err)
	}
	defer rows.Close()

	results := []any{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		e, err := docstore.Decode(t.name, []byte(body))
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// fetchQuery builds the SELECT for a validated filter. owner_id uses the
// indexed column; other keys go through json_extract. Keys are sorted so
// the statement text is stable.
func fetchQuery(table string, filter types.Filter) (string, []any) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var where []string
	var args []any
	for _, k := range keys {
		if k == "owner_id" {
			where = append(where, "owner_id = ?")
		} else {
			where = append(where, "json_extract(body, ?) = ?")
			args = append(args, "$."+k)
		}
		args = append(args, filter[k])
	}
	query := fmt.Sprintf("SELECT body FROM %s", table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY rowid", args
}

// persist rewrites the collection's JSONL file now or queues the rewrite,
// depending on the sync strategy. The caller must hold the backend lock.
func (t *Table) persist(op string) error {
	if t.backend.shouldPersistImmediately() {
		return t.writeJSONL()
	}
	t.backend.queueWrite(t.name, op, t.writeJSONL)
	return nil
}

// writeJSONL dumps the collection to its JSONL file.
func (t *Table) writeJSONL() error {
	rows, err := t.backend.db.Query(fmt.Sprintf("SELECT body FROM %s ORDER BY rowid", t.name))
	if err != nil {
		return fmt.Errorf("dump %s: %w", t.name, err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return err
		}
		records = append(records, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(t.backend.dataDir, jsonlFile(t.name)), records)
}

var _ types.Table = (*Table)(nil)
