package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

// Default timeout for catalog operations
const defaultTimeout = 5 * time.Second

// Catalog manages all persisted asset and config state.
type Catalog struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	txStart time.Time // Track transaction start time for metrics
}

// New opens (or creates) the catalog at dbPath and initializes the schema.
// dbPath must be the full path to the database FILE (e.g. "/data/catalog.db")
// and the parent directory must already exist and be writable; use
// startup.LoadConfig to validate directories before calling this.
func New(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog path: %s", dbPath)

	// WAL mode plus busy_timeout prevents "database is locked" errors when
	// the UI reads while a scan commits.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	// Allow multiple readers; writes are serialized by c.mu anyway.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized successfully at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		thumb_path TEXT NOT NULL DEFAULT '',
		file_size TEXT NOT NULL DEFAULT '',
		mtime REAL NOT NULL DEFAULT 0.0,
		comment TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_assets_file_path ON assets(file_path);
	CREATE INDEX IF NOT EXISTS idx_assets_file_name ON assets(file_name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_assets_mtime ON assets(mtime);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := c.db.ExecContext(ctx, schema)
	recordQuery("initialize_schema", start, err)
	if err != nil {
		return err
	}

	return c.runMigrations(ctx)
}

// runMigrations upgrades catalogs created before the comment/tags columns
// existed. Adding columns is the only supported schema evolution; existing
// rows keep their data and the new columns default to empty.
func (c *Catalog) runMigrations(ctx context.Context) error {
	for _, column := range []string{"comment", "tags"} {
		var columnExists bool
		err := c.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('assets')
			WHERE name = ?
		`, column).Scan(&columnExists)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", column, err)
		}

		if !columnExists {
			logging.Info("Migrating catalog: adding %s column to assets table", column)

			_, err = c.db.ExecContext(ctx,
				fmt.Sprintf(`ALTER TABLE assets ADD COLUMN %s TEXT NOT NULL DEFAULT ''`, column))
			if err != nil {
				return fmt.Errorf("failed to add %s column: %w", column, err)
			}

			logging.Info("Migration complete: %s column added", column)
		}
	}

	return nil
}

// Close closes the catalog connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (c *Catalog) BeginBatch() (*sql.Tx, error) {
	// Short-lived lock - only protect transaction creation
	c.mu.Lock()
	txStart := time.Now()

	// Background context: the transaction's lifetime is managed by EndBatch,
	// not a timeout. A deferred cancel here would kill the transaction as
	// soon as this function returned.
	tx, err := c.db.BeginTx(context.Background(), nil)
	c.mu.Unlock()

	if err != nil {
		recordQuery("begin_transaction", txStart, err)
		return nil, err
	}

	c.txStart = txStart
	return tx, nil
}

// EndBatch commits or rolls back a transaction. If err is non-nil the
// transaction is rolled back and err (joined with any rollback failure)
// is returned; otherwise the transaction commits.
func (c *Catalog) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(c.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// recordQuery records catalog query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates catalog connection metrics
func (c *Catalog) UpdateDBMetrics() {
	stats := c.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}
