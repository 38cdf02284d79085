// Package identity reserves blocks of sequential structure ids per set.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/structdex/internal/db"
)

// Table holds the next free id of every identity set.
const Table = "StructdexIdentities"

const (
	colSetName = "SetName"
	colNextID  = "NextId"
)

// sqlStore is the consumer interface of the SQL reserver (ISP).
type sqlStore interface {
	db.Executor
	db.Transactor
	Dialect() db.Dialect
}

// SQL reserves ids from a counter row per set.
type SQL struct {
	store sqlStore
}

// NewSQL creates a SQL reserver.
func NewSQL(s sqlStore) *SQL {
	return &SQL{store: s}
}

// Init creates the counter table when absent.
func (r *SQL) Init(ctx context.Context) error {
	def := db.NewTable(Table).
		Key(colSetName).NotNull().
		BigInt(colNextID).NotNull().
		PrimaryKey(colSetName).
		MustBuild()
	for _, stmt := range r.store.Dialect().CreateTable(def) {
		if _, err := r.store.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create %s: %w", Table, err)
		}
	}
	return nil
}

// Reserve returns the first id of a block of n consecutive ids for set.
// The counter row is updated before it is read so concurrent reservations
// serialize on its row lock.
func (r *SQL) Reserve(ctx context.Context, set string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %d ids: block size must be positive", n)
	}
	first, err := r.reserve(ctx, set, n)
	if errors.Is(err, db.ErrUniqueViolation) {
		// a concurrent first reservation created the row
		return r.reserve(ctx, set, n)
	}
	return first, err
}

func (r *SQL) reserve(ctx context.Context, set string, n int64) (int64, error) {
	d := r.store.Dialect()
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	update := fmt.Sprintf("update %s set %s = %s + %s where %s = %s",
		d.Quote(Table), d.Quote(colNextID), d.Quote(colNextID), d.Placeholder(1),
		d.Quote(colSetName), d.Placeholder(2))
	affected, err := tx.Exec(ctx, update, n, set)
	if err != nil {
		return 0, fmt.Errorf("advance %s: %w", set, err)
	}

	var first int64
	if affected == 0 {
		insert := fmt.Sprintf("insert into %s (%s, %s) values (%s, %s)",
			d.Quote(Table), d.Quote(colSetName), d.Quote(colNextID), d.Placeholder(1), d.Placeholder(2))
		if _, err := tx.Exec(ctx, insert, set, 1+n); err != nil {
			return 0, fmt.Errorf("seed %s: %w", set, err)
		}
		first = 1
	} else {
		next, err := r.next(ctx, tx, set)
		if err != nil {
			return 0, err
		}
		first = next - n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return first, nil
}

func (r *SQL) next(ctx context.Context, tx db.Tx, set string) (int64, error) {
	d := r.store.Dialect()
	rows, err := tx.Query(ctx, fmt.Sprintf("select %s from %s where %s = %s",
		d.Quote(colNextID), d.Quote(Table), d.Quote(colSetName), d.Placeholder(1)), set)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", set, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, &db.Error{Op: db.OpScan, Err: err}
		}
		return 0, fmt.Errorf("identity row of %s vanished", set)
	}
	var next int64
	if err := rows.Scan(&next); err != nil {
		return 0, &db.Error{Op: db.OpScan, Err: err}
	}
	return next, nil
}

// Forget removes the counter of a dropped set.
func (r *SQL) Forget(ctx context.Context, set string) error {
	d := r.store.Dialect()
	stmt := fmt.Sprintf("delete from %s where %s = %s", d.Quote(Table), d.Quote(colSetName), d.Placeholder(1))
	if _, err := r.store.Exec(ctx, stmt, set); err != nil {
		return fmt.Errorf("forget %s: %w", set, err)
	}
	return nil
}
