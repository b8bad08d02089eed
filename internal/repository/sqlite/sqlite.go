package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/config"
)

// DB owns the SQLite connection pool. Writers are serialized; readers check
// out their own connection.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// New opens the database, sizes the pool and creates the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")

	conn, err := sql.Open("sqlite3", "file:"+cfg.Path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen < 1 {
		maxOpen = 1
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS water_level (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_time DATETIME NOT NULL UNIQUE,
		river_name TEXT NOT NULL,
		est_level REAL NOT NULL,
		model_points BLOB NOT NULL,
		country_name TEXT NOT NULL DEFAULT '',
		basin_name TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_water_level_river ON water_level(river_name);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Checkout returns a healthy pooled connection. A connection that fails its
// ping is discarded and one fresh connection is tried before giving up. The
// caller must Close the returned connection.
func (db *DB) Checkout(ctx context.Context) (*sql.Conn, error) {
	const op = "sqlite.Checkout"

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := db.conn.Conn(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if err := conn.PingContext(ctx); err != nil {
			// ErrBadConn drops the connection from the pool instead of reusing it.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			conn.Close()
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, apperror.New(apperror.KindPersistence, op, fmt.Errorf("failed to check out connection: %w", lastErr))
}

// Ping checks that a connection can be checked out.
func (db *DB) Ping(ctx context.Context) error {
	conn, err := db.Checkout(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying pool for use by repositories and tools.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires the write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}
