// Package db manages access to the restaurant operational database.
//
// The training pipeline only ever reads from this store. OpenReadOnly is
// the path production code takes; Open (read-write) exists for migrations,
// seeding, and test fixtures.
package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// DB wraps the operational database handle.
type DB struct {
	*sql.DB

	readOnly bool
}

// Open opens the database at path with write access. Used by the migrate
// and seed commands and by test fixtures; the pipeline itself never holds
// a writable handle.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}
	return &DB{DB: sqlDB}, nil
}

// OpenReadOnly opens the database at path in read-only mode. The source of
// truth must not be mutable through an extraction handle, so this is
// enforced twice: the connection is opened with mode=ro, and query_only is
// set as a belt on every new connection.
func OpenReadOnly(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)", url.PathEscape(path))
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s read-only: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}
	return &DB{DB: sqlDB, readOnly: true}, nil
}

// ReadOnly reports whether this handle was opened in read-only mode.
func (db *DB) ReadOnly() bool {
	return db.readOnly
}
