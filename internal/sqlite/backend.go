// Package sqlite implements the SQLite storage backend. Each collection is
// kept in a JSONL file under DataDir, which is the source of truth; SQLite
// is a query cache rebuilt from those files on every Attach.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// Backend implements the Cupboard interface using SQLite as the query engine
// and JSONL files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
	tables   map[string]*Table
	logger   *zap.Logger

	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	pendingWrites []pendingWrite
	batchTimer    *time.Timer
	batchMu       sync.Mutex // protects pendingWrites and batchTimer
}

// pendingWrite is a deferred JSONL rewrite queued by the on_close and batch
// sync strategies.
type pendingWrite struct {
	tableName string
	operation string
	persist   func() error
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for load and flush reporting.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		tables: make(map[string]*Table),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// GetTable returns the Table for the given collection name.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCupboardDetached
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach creates DataDir if needed, rebuilds the SQLite cache from the
// JSONL files and starts the batch timer for the batch strategy.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The cache is always rebuilt so a stale schema never survives.
	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// One connection: SQLite serializes writers anyway and the backend lock
	// already orders them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL()); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	if err := initJSONLFiles(dataDir, types.StandardTableNames); err != nil {
		db.Close()
		return err
	}
	loaded, err := loadAllJSONL(db, dataDir, types.StandardTableNames)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = nil

	b.tables = make(map[string]*Table, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		b.tables[name] = &Table{name: name, backend: b}
	}
	b.attached = true

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}
	b.logger.Info("sqlite backend attached",
		zap.String("data_dir", dataDir),
		zap.String("sync", b.syncStrategy),
		zap.Int("records", loaded))
	return nil
}

// Detach flushes pending writes and closes the SQLite connection. After
// Detach, all operations return ErrCupboardDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()
	if err := b.flushPendingWritesLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.tables = make(map[string]*Table)
	return nil
}

// shouldPersistImmediately reports whether JSONL rewrites happen on every
// write.
func (b *Backend) shouldPersistImmediately() bool {
	return b.syncStrategy == types.SyncImmediate || b.syncStrategy == ""
}

// queueWrite adds a deferred rewrite. For the batch strategy the queue is
// flushed once it reaches the batch size. The caller must hold b.mu.
func (b *Backend) queueWrite(tableName, operation string, persist func() error) {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	b.pendingWrites = append(b.pendingWrites, pendingWrite{
		tableName: tableName,
		operation: operation,
		persist:   persist,
	})

	if b.syncStrategy == types.SyncBatch && b.batchSize > 0 && len(b.pendingWrites) >= b.batchSize {
		if err := b.flushPendingWritesBatchLocked(); err != nil {
			b.logger.Warn("batch flush failed", zap.Error(err))
		}
	}
}

// flushPendingWritesLocked flushes all pending writes. The caller must hold
// the b.mu write lock.
func (b *Backend) flushPendingWritesLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	return b.flushPendingWritesBatchLocked()
}

// flushPendingWritesBatchLocked rewrites each touched collection once. The
// queue is kept on failure so the next flush retries. The caller must hold
// b.batchMu.
func (b *Backend) flushPendingWritesBatchLocked() error {
	if len(b.pendingWrites) == 0 {
		return nil
	}

	done := make(map[string]bool, len(types.StandardTableNames))
	for _, pw := range b.pendingWrites {
		if done[pw.tableName] {
			continue
		}
		if err := pw.persist(); err != nil {
			return fmt.Errorf("flush %s %s: %w", pw.tableName, pw.operation, err)
		}
		done[pw.tableName] = true
	}
	b.pendingWrites = nil
	return nil
}

// startBatchTimer starts the periodic flush for the batch strategy.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}
		if err := b.flushPendingWritesLocked(); err != nil {
			b.logger.Warn("interval flush failed", zap.Error(err))
		}

		b.batchMu.Lock()
		if b.batchTimer != nil && b.attached {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}

var _ types.Cupboard = (*Backend)(nil)
