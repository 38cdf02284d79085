// Package sqlite opens structdex stores on modernc.org/sqlite (pure Go, no cgo).
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/db/sqldb"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Config holds connection parameters for a SQLite store.
type Config struct {
	// Path is a file path or ":memory:".
	Path string
	Pool sqldb.Pool
}

// Open opens a SQLite store with WAL journaling and a busy timeout.
func Open(cfg Config) (*sqldb.Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	pool := cfg.Pool
	if cfg.Path == ":memory:" {
		// every connection would see its own empty database
		pool.MaxOpenConns = 1
	}

	sqlDB, err := sql.Open(DriverName, DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return sqldb.New(sqlDB, sqldb.Config{
		Dialect:           db.SQLite,
		IsUniqueViolation: IsUniqueViolation,
		Pool:              pool,
	}), nil
}

// DSN builds the connection string for path.
func DSN(path string) string {
	if path == ":memory:" {
		return path + "?_pragma=busy_timeout(5000)"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

// IsUniqueViolation reports whether err was raised by a unique key or primary key.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}
