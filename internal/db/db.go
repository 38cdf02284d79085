package db

import (
	"context"
	"time"
)

// Store is the relational facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces (ISP).
type Store interface {
	Pinger
	Executor
	Transactor
	Dialect() Dialect
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Rows is a forward-only cursor over query results. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Executor runs SQL text with bound arguments.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Tx is an Executor bound to one transaction.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Transactor starts transactions.
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// KVStore provides the key-value operations used for identity reservation.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Del(ctx context.Context, key string) error
}
