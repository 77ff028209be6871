// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/goodtune/tabtime/internal/config"
	"github.com/goodtune/tabtime/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface using SQLite
type Store struct {
	db         *sql.DB
	sliceStore *sliceStore
	limitStore *limitStore
	usageStore *usageStore
}

// Open opens (creating if needed) the database file and initializes the schema
func Open(cfg config.SQLiteConfig) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers; a single connection keeps increments from
	// failing with SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{
		db:         db,
		sliceStore: &sliceStore{db: db},
		limitStore: &limitStore{db: db},
		usageStore: &usageStore{db: db},
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Slices returns the SliceStore implementation
func (s *Store) Slices() storage.SliceStore {
	return s.sliceStore
}

// Limits returns the LimitStore implementation
func (s *Store) Limits() storage.LimitStore {
	return s.limitStore
}

// Usage returns the UsageStore implementation
func (s *Store) Usage() storage.UsageStore {
	return s.usageStore
}

// initSchema creates the necessary tables
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS time_slices (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		productive INTEGER NOT NULL DEFAULT 0,
		time_spent INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		date TEXT NOT NULL,
		week TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_slices_timestamp ON time_slices(timestamp_ms);
	CREATE INDEX IF NOT EXISTS idx_slices_domain ON time_slices(domain, timestamp_ms);

	CREATE TABLE IF NOT EXISTS limits (
		id TEXT PRIMARY KEY,
		website TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(website, type)
	);

	CREATE TABLE IF NOT EXISTS usage_counters (
		website TEXT NOT NULL,
		date TEXT NOT NULL,
		seconds INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (website, date)
	);
	CREATE INDEX IF NOT EXISTS idx_usage_date ON usage_counters(date);
	`

	_, err := db.Exec(schema)
	return err
}
