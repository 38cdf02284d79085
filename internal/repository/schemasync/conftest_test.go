package schemasync

import (
	"context"

	"github.com/kailas-cloud/structdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	queryFn func(ctx context.Context, query string, args ...any) (db.Rows, error)
	execFn  func(ctx context.Context, query string, args ...any) (int64, error)
}

func (m *mockStore) Query(ctx context.Context, query string, args ...any) (db.Rows, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, query, args...)
	}
	return &stringRows{}, nil
}

func (m *mockStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if m.execFn != nil {
		return m.execFn(ctx, query, args...)
	}
	return 0, nil
}

func (m *mockStore) Dialect() db.Dialect { return db.SQLite }

// stringRows serves a single text column.
type stringRows struct {
	vals []string
	pos  int
}

func (r *stringRows) Columns() ([]string, error) { return []string{"v"}, nil }

func (r *stringRows) Next() bool {
	if r.pos >= len(r.vals) {
		return false
	}
	r.pos++
	return true
}

func (r *stringRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.vals[r.pos-1]
	return nil
}

func (r *stringRows) Err() error   { return nil }
func (r *stringRows) Close() error { return nil }
