package structdex

import (
	"context"
	"fmt"
	"iter"

	"github.com/kailas-cloud/structdex/internal/domain/query"
)

// QueryBuilder is a fluent builder for typed queries over a set.
type QueryBuilder[T any] struct {
	set *Set[T]
	b   *query.Builder
}

// Where adds a predicate. Repeated calls are combined with And.
func (qb *QueryBuilder[T]) Where(e Expr) *QueryBuilder[T] {
	qb.b.Where(e)
	return qb
}

// OrderBy sorts ascending by a member path.
func (qb *QueryBuilder[T]) OrderBy(path string) *QueryBuilder[T] {
	qb.b.OrderBy(path)
	return qb
}

// OrderByDesc sorts descending by a member path.
func (qb *QueryBuilder[T]) OrderByDesc(path string) *QueryBuilder[T] {
	qb.b.OrderByDesc(path)
	return qb
}

// Include inlines the structure of set target whose id is stored at path
// into the JSON field as of each result.
func (qb *QueryBuilder[T]) Include(path, target, as string) *QueryBuilder[T] {
	qb.b.Include(path, target, as)
	return qb
}

// Take limits the number of results. Cannot be combined with Page.
func (qb *QueryBuilder[T]) Take(n int) *QueryBuilder[T] {
	qb.b.Take(n)
	return qb
}

// Page selects the zero-based page of the given size.
func (qb *QueryBuilder[T]) Page(page, size int) *QueryBuilder[T] {
	qb.b.Page(page, size)
	return qb
}

// ToList runs the query and returns every result.
func (qb *QueryBuilder[T]) ToList(ctx context.Context) ([]T, error) {
	q, err := qb.b.Build()
	if err != nil {
		return nil, err
	}
	it, err := qb.set.db.queries.Query(ctx, qb.set.name, q)
	if err != nil {
		return nil, err
	}
	return qb.set.collect(it)
}

// Each runs the query and yields results as rows arrive. A failure is
// yielded once as the final element.
func (qb *QueryBuilder[T]) Each(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		q, err := qb.b.Build()
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		qb.each(ctx, q)(yield)
	}
}

// First returns the first result, or ErrNotFound when there is none. The
// builder is left unchanged.
func (qb *QueryBuilder[T]) First(ctx context.Context) (*T, error) {
	q, err := qb.b.Build()
	if err != nil {
		return nil, err
	}
	for item, err := range qb.each(ctx, q.Single()) {
		if err != nil {
			return nil, err
		}
		return &item, nil
	}
	return nil, fmt.Errorf("%s: %w", qb.set.name, ErrNotFound)
}

func (qb *QueryBuilder[T]) each(ctx context.Context, q query.Query) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		it, err := qb.set.db.queries.Query(ctx, qb.set.name, q)
		if err != nil {
			yield(zero, err)
			return
		}
		for text, err := range it.Seq() {
			if err != nil {
				yield(zero, err)
				return
			}
			var item T
			if err := qb.set.ser.Deserialize(text, &item); err != nil {
				yield(zero, fmt.Errorf("read %s: %w", qb.set.name, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Count returns the number of structures matching the where-expression.
// Sortings, paging and includes are not allowed.
func (qb *QueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	q, err := qb.b.Build()
	if err != nil {
		return 0, err
	}
	return qb.set.db.queries.Count(ctx, qb.set.name, q)
}

// Delete removes every structure matching the where-expression and returns
// how many were removed.
func (qb *QueryBuilder[T]) Delete(ctx context.Context) (int64, error) {
	q, err := qb.b.Build()
	if err != nil {
		return 0, err
	}
	return qb.set.db.documents.DeleteByQuery(ctx, qb.set.name, q)
}

// Explain returns the SQL and arguments the query translates to.
func (qb *QueryBuilder[T]) Explain() (string, []any, error) {
	q, err := qb.b.Build()
	if err != nil {
		return "", nil, err
	}
	ex, err := qb.set.db.queries.Explain(qb.set.name, q)
	if err != nil {
		return "", nil, err
	}
	return ex.SQL, ex.Args, nil
}
