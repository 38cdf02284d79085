// Package structure persists structures into the three tables of their set.
package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	domstruct "github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/translator"
)

// Rows per multi-row insert and ids per delete statement. SQL Server caps a
// statement at 2100 parameters.
const (
	insertBatch = 200
	deleteBatch = 500
)

// store is the consumer interface for structure tables (ISP).
type store interface {
	db.Executor
	db.Transactor
	Dialect() db.Dialect
}

// Repo implements the structure write path.
type Repo struct {
	store store
	tr    *translator.Translator
}

// New creates a structure repository.
func New(s store) *Repo {
	return &Repo{store: s, tr: translator.New(s.Dialect())}
}

// Upsert creates the tables of s when absent.
func (r *Repo) Upsert(ctx context.Context, s *schema.Schema) error {
	d := r.store.Dialect()
	for _, def := range Tables(s) {
		for _, stmt := range d.CreateTable(def) {
			if _, err := r.store.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", def.Name, err)
			}
		}
	}
	return nil
}

// Drop removes the tables of s when present.
func (r *Repo) Drop(ctx context.Context, s *schema.Schema) error {
	d := r.store.Dialect()
	for _, table := range []string{s.UniquesTable(), s.IndexesTable(), s.StructureTable()} {
		if _, err := r.store.Exec(ctx, d.DropTable(table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// Insert writes structures with their index and unique rows in one
// transaction. A duplicate unique value aborts the whole batch.
func (r *Repo) Insert(ctx context.Context, s *schema.Schema, items []domstruct.Structure) error {
	if len(items) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx db.Tx) error {
		for start := 0; start < len(items); start += insertBatch {
			chunk := items[start:min(start+insertBatch, len(items))]
			if err := r.insertStructures(ctx, tx, s, chunk); err != nil {
				return err
			}
		}
		return r.insertSide(ctx, tx, s, items)
	})
}

// Update replaces the JSON of an existing structure and rewrites its index
// and unique rows.
func (r *Repo) Update(ctx context.Context, s *schema.Schema, item domstruct.Structure) error {
	d := r.store.Dialect()
	return r.inTx(ctx, func(tx db.Tx) error {
		stmt := fmt.Sprintf("update %s set %s = %s where %s = %s",
			d.Quote(s.StructureTable()), d.Quote(schema.ColJSON), d.Placeholder(1),
			d.Quote(schema.ColStructureID), d.Placeholder(2))
		n, err := tx.Exec(ctx, stmt, item.JSON(), item.ID().Value())
		if err != nil {
			return fmt.Errorf("update structure %s: %w", item.ID(), err)
		}
		if n == 0 {
			return fmt.Errorf("structure %s in %s: %w", item.ID(), s.Name(), domain.ErrNotFound)
		}
		for _, table := range []string{s.UniquesTable(), s.IndexesTable()} {
			stmt := fmt.Sprintf("delete from %s where %s = %s",
				d.Quote(table), d.Quote(schema.ColStructureID), d.Placeholder(1))
			if _, err := tx.Exec(ctx, stmt, item.ID().Value()); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return r.insertSide(ctx, tx, s, []domstruct.Structure{item})
	})
}

// DeleteByID removes one structure and reports whether it existed.
func (r *Repo) DeleteByID(ctx context.Context, s *schema.Schema, id domstruct.ID) (bool, error) {
	var deleted int64
	err := r.inTx(ctx, func(tx db.Tx) error {
		var err error
		deleted, err = r.deleteIDs(ctx, tx, s, []any{id.Value()})
		return err
	})
	return deleted > 0, err
}

// DeleteByQuery removes every structure matching the where-expression of q
// and returns how many were removed. Matching ids are read first so the
// index rows the predicate joins are still present.
func (r *Repo) DeleteByQuery(ctx context.Context, s *schema.Schema, q query.Query) (int64, error) {
	st, err := r.tr.TranslateIDs(s, q)
	if err != nil {
		return 0, err
	}
	var deleted int64
	err = r.inTx(ctx, func(tx db.Tx) error {
		ids, err := scanIDs(ctx, tx, st)
		if err != nil {
			return err
		}
		deleted, err = r.deleteIDs(ctx, tx, s, ids)
		return err
	})
	return deleted, err
}

// DeleteAll clears a set and returns how many structures were removed.
func (r *Repo) DeleteAll(ctx context.Context, s *schema.Schema) (int64, error) {
	var deleted int64
	err := r.inTx(ctx, func(tx db.Tx) error {
		for _, st := range r.tr.DeleteAll(s) {
			n, err := tx.Exec(ctx, st.SQL)
			if err != nil {
				return fmt.Errorf("delete all: %w", err)
			}
			deleted = n
		}
		return nil
	})
	return deleted, err
}

func (r *Repo) deleteIDs(ctx context.Context, tx db.Tx, s *schema.Schema, ids []any) (int64, error) {
	var deleted int64
	for start := 0; start < len(ids); start += deleteBatch {
		chunk := ids[start:min(start+deleteBatch, len(ids))]
		stmts := r.tr.DeleteByIDs(s, chunk)
		for i, st := range stmts {
			n, err := tx.Exec(ctx, st.SQL, st.Args...)
			if err != nil {
				return 0, fmt.Errorf("delete from %s: %w", s.Name(), err)
			}
			// the structure table is deleted last
			if i == len(stmts)-1 {
				deleted += n
			}
		}
	}
	return deleted, nil
}

func scanIDs(ctx context.Context, tx db.Tx, st translator.Statement) ([]any, error) {
	rows, err := tx.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	defer rows.Close()

	var ids []any
	for rows.Next() {
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return ids, nil
}

func (r *Repo) insertStructures(ctx context.Context, tx db.Tx, s *schema.Schema, items []domstruct.Structure) error {
	d := r.store.Dialect()
	args := make([]any, 0, 2*len(items))
	values := make([]string, 0, len(items))
	for i := range items {
		args = append(args, items[i].ID().Value(), items[i].JSON())
		values = append(values, "("+d.Placeholder(len(args)-1)+", "+d.Placeholder(len(args))+")")
	}
	stmt := fmt.Sprintf("insert into %s (%s, %s) values %s",
		d.Quote(s.StructureTable()), d.Quote(schema.ColStructureID), d.Quote(schema.ColJSON),
		strings.Join(values, ", "))
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return mapUnique(fmt.Errorf("insert into %s: %w", s.StructureTable(), err))
	}
	return nil
}

// insertSide writes the index and unique rows of items.
func (r *Repo) insertSide(ctx context.Context, tx db.Tx, s *schema.Schema, items []domstruct.Structure) error {
	var idx []indexRow
	var uqs []domstruct.UniqueEntry
	for i := range items {
		id := items[i].ID().Value()
		for _, e := range items[i].Indexes() {
			idx = append(idx, indexRow{id: id, entry: e})
		}
		uqs = append(uqs, items[i].Uniques()...)
	}
	for start := 0; start < len(idx); start += insertBatch {
		if err := r.insertIndexes(ctx, tx, s, idx[start:min(start+insertBatch, len(idx))]); err != nil {
			return err
		}
	}
	for start := 0; start < len(uqs); start += insertBatch {
		if err := r.insertUniques(ctx, tx, s, uqs[start:min(start+insertBatch, len(uqs))]); err != nil {
			return err
		}
	}
	return nil
}

type indexRow struct {
	id    any
	entry domstruct.IndexEntry
}

func (r *Repo) insertIndexes(ctx context.Context, tx db.Tx, s *schema.Schema, rows []indexRow) error {
	d := r.store.Dialect()
	cols := append([]string{schema.ColStructureID, schema.ColMemberPath}, schema.ValueColumns...)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
	}

	args := make([]any, 0, len(rows)*len(cols))
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		ph := make([]string, len(cols))
		args = append(args, row.id, row.entry.Path)
		ph[0] = d.Placeholder(len(args) - 1)
		ph[1] = d.Placeholder(len(args))
		column := row.entry.Column()
		for i, c := range schema.ValueColumns {
			var v any
			if c == column {
				v = row.entry.Value
			}
			args = append(args, v)
			ph[i+2] = d.Placeholder(len(args))
		}
		values = append(values, "("+strings.Join(ph, ", ")+")")
	}
	stmt := fmt.Sprintf("insert into %s (%s) values %s",
		d.Quote(s.IndexesTable()), strings.Join(quoted, ", "), strings.Join(values, ", "))
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", s.IndexesTable(), err)
	}
	return nil
}

func (r *Repo) insertUniques(ctx context.Context, tx db.Tx, s *schema.Schema, uqs []domstruct.UniqueEntry) error {
	d := r.store.Dialect()
	args := make([]any, 0, 3*len(uqs))
	values := make([]string, 0, len(uqs))
	for _, u := range uqs {
		args = append(args, u.ID.Value(), u.Path, u.Value)
		n := len(args)
		values = append(values, "("+d.Placeholder(n-2)+", "+d.Placeholder(n-1)+", "+d.Placeholder(n)+")")
	}
	stmt := fmt.Sprintf("insert into %s (%s, %s, %s) values %s",
		d.Quote(s.UniquesTable()),
		d.Quote(schema.ColStructureID), d.Quote(schema.ColUqName), d.Quote(schema.ColUqValue),
		strings.Join(values, ", "))
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return mapUnique(fmt.Errorf("insert into %s: %w", s.UniquesTable(), err))
	}
	return nil
}

// mapUnique surfaces a unique key violation as the domain error while
// keeping the driver error in the chain.
func mapUnique(err error) error {
	if errors.Is(err, db.ErrUniqueViolation) {
		return fmt.Errorf("%w: %w", domain.ErrUniqueViolation, err)
	}
	return err
}

func (r *Repo) inTx(ctx context.Context, fn func(tx db.Tx) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
