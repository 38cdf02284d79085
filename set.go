package structdex

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/jsonrows"
)

// Set is a typed handle on the structure set of T. The set is named after
// the Go type; members are declared with `structdex:"name,modifier"` tags.
type Set[T any] struct {
	db   *DB
	name string
	ser  structure.JSONSerializer
}

// Use returns the set of T, creating its tables on first use.
func Use[T any](ctx context.Context, d *DB) (*Set[T], error) {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	sc, err := d.sets.Ensure(ctx, t.Name(), schema.For[T])
	if err != nil {
		return nil, fmt.Errorf("use %s: %w", t.Name(), err)
	}
	return &Set[T]{db: d, name: sc.Name()}, nil
}

// Name returns the set name.
func (s *Set[T]) Name() string { return s.name }

// Insert stores item and returns its id. An unset identity or guid id is
// generated and written back into item.
func (s *Set[T]) Insert(ctx context.Context, item *T) (ID, error) {
	return s.db.documents.Insert(ctx, s.name, item)
}

// InsertMany stores items in one transaction and returns their ids in order.
func (s *Set[T]) InsertMany(ctx context.Context, items []*T) ([]ID, error) {
	anys := make([]any, len(items))
	for i, it := range items {
		anys[i] = it
	}
	return s.db.documents.InsertMany(ctx, s.name, anys)
}

// Update replaces the stored structure with the same id as item.
func (s *Set[T]) Update(ctx context.Context, item *T) error {
	return s.db.documents.Update(ctx, s.name, item)
}

// Delete removes the structure with id. Returns ErrNotFound when absent.
func (s *Set[T]) Delete(ctx context.Context, id ID) error {
	return s.db.documents.DeleteByID(ctx, s.name, id)
}

// DeleteAll removes every structure of the set and returns how many were removed.
func (s *Set[T]) DeleteAll(ctx context.Context) (int64, error) {
	return s.db.documents.DeleteAll(ctx, s.name)
}

// GetByID loads one structure. Returns ErrNotFound when absent.
func (s *Set[T]) GetByID(ctx context.Context, id ID) (*T, error) {
	text, err := s.db.queries.GetByID(ctx, s.name, id)
	if err != nil {
		return nil, err
	}
	item := new(T)
	if err := s.ser.Deserialize(text, item); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", s.name, id, err)
	}
	return item, nil
}

// GetByIDs loads the structures with the given ids, ordered by id. Missing ids
// are skipped.
func (s *Set[T]) GetByIDs(ctx context.Context, ids ...ID) ([]T, error) {
	it, err := s.db.queries.GetByIDs(ctx, s.name, ids)
	if err != nil {
		return nil, err
	}
	return s.collect(it)
}

// GetByIDInterval loads the structures with from <= id <= to. Only identity
// sets support intervals.
func (s *Set[T]) GetByIDInterval(ctx context.Context, from, to ID) ([]T, error) {
	it, err := s.db.queries.GetByIDInterval(ctx, s.name, from, to)
	if err != nil {
		return nil, err
	}
	return s.collect(it)
}

// Count returns the number of structures in the set.
func (s *Set[T]) Count(ctx context.Context) (int64, error) {
	return s.db.queries.Count(ctx, s.name, query.Query{})
}

// Query starts a query over the set.
func (s *Set[T]) Query() *QueryBuilder[T] {
	return &QueryBuilder[T]{set: s, b: query.New()}
}

func (s *Set[T]) collect(it *jsonrows.Iterator) ([]T, error) {
	var out []T
	for text, err := range it.Seq() {
		if err != nil {
			return nil, err
		}
		var item T
		if err := s.ser.Deserialize(text, &item); err != nil {
			return nil, fmt.Errorf("read %s: %w", s.name, err)
		}
		out = append(out, item)
	}
	return out, nil
}
