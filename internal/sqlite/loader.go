package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/fieldforms/internal/docstore"
)

// loadAllJSONL reads each collection's JSONL file and inserts the records
// into SQLite. Loading is transactional: all succeed or the database stays
// empty. Lines that are not valid JSON, or that do not decode into the
// collection's entity, or that carry no ID are skipped. The raw line is
// stored, so attributes unknown to this version survive a rewrite.
func loadAllJSONL(db *sql.DB, dataDir string, tables []string) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	loaded := 0
	for _, table := range tables {
		records, err := readJSONL(filepath.Join(dataDir, jsonlFile(table)))
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", jsonlFile(table), err)
		}
		if len(records) == 0 {
			continue
		}
		n, err := insertRecords(tx, table, records, now)
		if err != nil {
			return 0, fmt.Errorf("loading %s: %w", table, err)
		}
		loaded += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return loaded, nil
}

func insertRecords(tx *sql.Tx, table string, records []json.RawMessage, now string) (int, error) {
	stmt, err := tx.Prepare(upsertSQL(table))
	if err != nil {
		return 0, fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	n := 0
	for _, rec := range records {
		e, err := docstore.Decode(table, rec)
		if err != nil || e.EntityID() == "" {
			continue
		}
		if _, err := stmt.Exec(e.EntityID(), e.TenantID(), string(rec), now); err != nil {
			continue
		}
		n++
	}
	return n, nil
}
