// Package sqldb implements db.Store over database/sql. Driver packages open
// the *sql.DB and supply the dialect and error classification.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/structdex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Pool holds connection pool limits; zero values keep database/sql defaults.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config describes how a Store talks to its driver.
type Config struct {
	Dialect db.Dialect
	// IsUniqueViolation reports driver errors raised by a unique key.
	IsUniqueViolation func(error) bool
	Pool              Pool
	// OnClose releases resources owned alongside the *sql.DB.
	OnClose func()
}

// Store implements db.Store via database/sql.
type Store struct {
	sqlDB    *sql.DB
	dialect  db.Dialect
	isUnique func(error) bool
	onClose  func()
}

// New wraps an opened *sql.DB.
func New(sqlDB *sql.DB, cfg Config) *Store {
	p := cfg.Pool
	if p.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	}
	if p.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	}
	isUnique := cfg.IsUniqueViolation
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &Store{sqlDB: sqlDB, dialect: cfg.Dialect, isUnique: isUnique, onClose: cfg.OnClose}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.sqlDB }

// Dialect returns the SQL dialect of the backend.
func (s *Store) Dialect() db.Dialect { return s.dialect }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() {
	_ = s.sqlDB.Close()
	if s.onClose != nil {
		s.onClose()
	}
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Query runs a statement returning rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (db.Rows, error) {
	return queryRows(ctx, s.sqlDB, query, args)
}

// Exec runs a statement and returns the affected row count.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(ctx, s.sqlDB, s.isUnique, query, args)
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (db.Tx, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &db.Error{Op: db.OpBegin, Err: err}
	}
	return &Tx{tx: tx, isUnique: s.isUnique}, nil
}

// Tx implements db.Tx over *sql.Tx.
type Tx struct {
	tx       *sql.Tx
	isUnique func(error) bool
}

// Query runs a statement returning rows inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (db.Rows, error) {
	return queryRows(ctx, t.tx, query, args)
}

// Exec runs a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return execAffected(ctx, t.tx, t.isUnique, query, args)
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return db.ErrTxDone
		}
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	return nil
}

// Rollback aborts the transaction; rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &db.Error{Op: db.OpRollback, Err: err}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryRows(ctx context.Context, q queryer, query string, args []any) (db.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	return rows, nil
}

func execAffected(ctx context.Context, q queryer, isUnique func(error) bool, query string, args []any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUnique(err) {
			err = fmt.Errorf("%w: %w", db.ErrUniqueViolation, err)
		}
		return 0, &db.Error{Op: db.OpExec, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpExec, Err: err}
	}
	return n, nil
}
