package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// dbFile is the SQLite cache rebuilt from JSONL on every Attach.
const dbFile = "fieldforms.db"

// Each collection is one table of JSON documents. rowid order is insertion
// order; an upsert keeps the original rowid.
const createCollection = `CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s(owner_id);`

// schemaSQL returns the DDL for every standard collection.
func schemaSQL() string {
	var sb strings.Builder
	for _, name := range types.StandardTableNames {
		fmt.Fprintf(&sb, createCollection, name)
		sb.WriteString("\n")
	}
	return sb.String()
}

// jsonlFile returns the JSONL file name for a collection.
func jsonlFile(table string) string {
	return table + ".jsonl"
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, owner_id, body, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, body = excluded.body, updated_at = excluded.updated_at`, table)
}
