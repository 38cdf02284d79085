package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound     = errors.New("db: key not found")
	ErrUniqueViolation = errors.New("db: unique constraint violation")
	ErrTxDone          = errors.New("db: transaction already finished")
)

// Op constants name the failing operation for error context.
const (
	OpPing     = "PING"
	OpQuery    = "QUERY"
	OpExec     = "EXEC"
	OpBegin    = "BEGIN"
	OpCommit   = "COMMIT"
	OpRollback = "ROLLBACK"
	OpScan     = "SCAN"
	OpDel      = "DEL"
	OpGet      = "GET"
	OpSet      = "SET"
	OpIncrBy   = "INCRBY"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
