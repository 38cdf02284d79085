// Package schemasync prunes side-table rows whose member is no longer part of
// a set's schema.
package schemasync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/logger"
)

// store is the consumer interface for the synchronizer (ISP).
type store interface {
	db.Executor
	Dialect() db.Dialect
}

// Observer receives the number of rows pruned per set and table.
type Observer func(set, table string, deleted int64)

// Synchronizer deletes stale unique and index rows.
type Synchronizer struct {
	store   store
	observe Observer
}

// New creates a Synchronizer.
func New(s store) *Synchronizer {
	return &Synchronizer{store: s}
}

// WithObserver reports pruned row counts, e.g. to metrics.
func (sy *Synchronizer) WithObserver(o Observer) *Synchronizer {
	sy.observe = o
	return sy
}

// Synchronize removes unique rows whose UqName is not a unique path of s.
func (sy *Synchronizer) Synchronize(ctx context.Context, s *schema.Schema) error {
	_, err := sy.prune(ctx, s.Name(), s.UniquesTable(), schema.ColUqName, s.UniquePaths())
	return err
}

// SynchronizeIndexes removes index rows whose MemberPath is not an index path of s.
func (sy *Synchronizer) SynchronizeIndexes(ctx context.Context, s *schema.Schema) error {
	_, err := sy.prune(ctx, s.Name(), s.IndexesTable(), schema.ColMemberPath, s.IndexPaths())
	return err
}

// All runs both synchronizations.
func (sy *Synchronizer) All(ctx context.Context, s *schema.Schema) error {
	if err := sy.Synchronize(ctx, s); err != nil {
		return err
	}
	return sy.SynchronizeIndexes(ctx, s)
}

func (sy *Synchronizer) prune(ctx context.Context, set, table, column string, keep []string) (int64, error) {
	ctx = logger.WithSet(ctx, set)
	d := sy.store.Dialect()
	stored, err := sy.distinct(ctx, d, table, column)
	if err != nil {
		return 0, err
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	var stale []any
	for _, name := range stored {
		if !kept[name] {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ph := make([]string, len(stale))
	for i := range stale {
		ph[i] = d.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("delete from %s where %s in (%s)", d.Quote(table), d.Quote(column), strings.Join(ph, ", "))
	n, err := sy.store.Exec(ctx, stmt, stale...)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", table, err)
	}

	logger.FromContext(ctx).Info("pruned stale members",
		zap.String("table", table),
		zap.Any("members", stale),
		zap.Int64("rows", n),
	)
	if sy.observe != nil {
		sy.observe(set, table, n)
	}
	return n, nil
}

func (sy *Synchronizer) distinct(ctx context.Context, d db.Dialect, table, column string) ([]string, error) {
	rows, err := sy.store.Query(ctx, fmt.Sprintf("select distinct %s from %s", d.Quote(column), d.Quote(table)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpScan, Err: err}
	}
	return out, nil
}
