package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
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
	CREATE TABLE IF NOT EXISTS frame_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		fps REAL DEFAULT 0,
		mode INTEGER DEFAULT 0,
		processing_time_ms INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		received_at DATETIME NOT NULL,
		average_fps REAL DEFAULT 0,
		max_fps REAL DEFAULT 0,
		min_fps REAL DEFAULT 0,
		average_processing_time REAL DEFAULT 0,
		total_frames INTEGER DEFAULT 0,
		uptime_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_frame_samples_session ON frame_samples(session);
	CREATE INDEX IF NOT EXISTS idx_frame_samples_timestamp ON frame_samples(timestamp);
	CREATE INDEX IF NOT EXISTS idx_stats_samples_session ON stats_samples(session);
	CREATE INDEX IF NOT EXISTS idx_stats_samples_received_at ON stats_samples(received_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
