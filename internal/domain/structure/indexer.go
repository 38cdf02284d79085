package structure

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/value"
)

// DefaultParallelThreshold is the batch size from which BuildMany uses the pool.
const DefaultParallelThreshold = 64

// Indexer converts instances into structures. It performs no I/O.
type Indexer struct {
	serializer Serializer
	pool       *ants.Pool
	threshold  int
}

// NewIndexer creates an Indexer that builds sequentially.
func NewIndexer(serializer Serializer) *Indexer {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	return &Indexer{serializer: serializer, threshold: DefaultParallelThreshold}
}

// WithPool enables parallel batch builds on pool for batches of at least threshold items.
func (ix *Indexer) WithPool(pool *ants.Pool, threshold int) *Indexer {
	ix.pool = pool
	if threshold > 0 {
		ix.threshold = threshold
	}
	return ix
}

// Build resolves the identity of item, assigning one from gen when it is
// unset, then flattens every indexed member. gen may be nil when ids are
// always supplied.
func (ix *Indexer) Build(s *schema.Schema, item any, gen IDGenerator) (Structure, error) {
	id, err := ix.assignID(s, item, gen)
	if err != nil {
		return Structure{}, err
	}
	return ix.build(s, item, id)
}

// BuildMany builds a batch, preserving input order. Identities are assigned
// sequentially first so that a given input order always maps to the same ids.
func (ix *Indexer) BuildMany(s *schema.Schema, items []any, gen IDGenerator) ([]Structure, error) {
	ids := make([]ID, len(items))
	for i, item := range items {
		id, err := ix.assignID(s, item, gen)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		ids[i] = id
	}

	out := make([]Structure, len(items))
	if ix.pool == nil || len(items) < ix.threshold {
		for i, item := range items {
			st, err := ix.build(s, item, ids[i])
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = st
		}
		return out, nil
	}

	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		if err := ix.pool.Submit(func() {
			defer wg.Done()
			out[i], errs[i] = ix.build(s, item, ids[i])
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit: %w", err)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out, nil
}

func (ix *Indexer) assignID(s *schema.Schema, item any, gen IDGenerator) (ID, error) {
	acc := s.ID()
	raw, err := acc.Get(item)
	if err != nil {
		return ID{}, err
	}
	id, err := IDFromValue(acc.Kind(), raw)
	if err != nil {
		return ID{}, fmt.Errorf("%s.%s: %w", s.Name(), acc.Path(), err)
	}
	if !id.IsZero() {
		return id, nil
	}
	if !acc.Kind().Generated() {
		return ID{}, fmt.Errorf("%s.%s is required: %w", s.Name(), acc.Path(), domain.ErrInvalidDocument)
	}
	if gen == nil {
		return ID{}, fmt.Errorf("%s: no id generator for unset %s: %w", s.Name(), acc.Path(), domain.ErrInvalidDocument)
	}
	if id, err = gen.Next(s); err != nil {
		return ID{}, err
	}
	if err := acc.Set(item, id.Native()); err != nil {
		return ID{}, fmt.Errorf("%s.%s: %w", s.Name(), acc.Path(), err)
	}
	return id, nil
}

func (ix *Indexer) build(s *schema.Schema, item any, id ID) (Structure, error) {
	accessors := s.Indexes()
	entries := make([]IndexEntry, 0, len(accessors))
	byPath := make(map[string]string, len(accessors))

	for i := range accessors {
		a := &accessors[i]
		entry, ok, err := indexEntry(s.Name(), a, item)
		if err != nil {
			return Structure{}, err
		}
		if !ok {
			continue
		}
		entries = append(entries, entry)
		byPath[entry.Path] = entry.Text
	}

	var uniques []UniqueEntry
	for _, path := range s.UniquePaths() {
		v, ok := byPath[path]
		if !ok {
			continue
		}
		uniques = append(uniques, UniqueEntry{Path: path, Value: v, ID: id})
	}

	text, err := ix.serializer.Serialize(item)
	if err != nil {
		return Structure{}, fmt.Errorf("%s %s: %w", s.Name(), id, err)
	}
	return New(id, text, entries, uniques), nil
}

func indexEntry(set string, a *schema.IndexAccessor, item any) (IndexEntry, bool, error) {
	vals, err := a.Resolve(item)
	if err != nil || len(vals) == 0 {
		return IndexEntry{}, false, err
	}

	if !a.Enumerable() {
		if len(vals) > 1 {
			segs := strings.Split(a.Path(), ".")
			return IndexEntry{}, false, domain.NewSchemaMismatch(set, a.Path(), segs[len(segs)-1], "array")
		}
		n, err := value.Normalize(a.Kind(), vals[0])
		if err != nil {
			return IndexEntry{}, false, kindMismatch(set, a.Path(), vals[0], err)
		}
		return IndexEntry{
			Path:  a.Path(),
			Kind:  a.Kind(),
			Text:  value.Format(n),
			Value: n,
		}, true, nil
	}

	rendered := make([]string, 0, len(vals))
	for _, v := range vals {
		r, err := value.Render(a.Kind(), v)
		if err != nil {
			return IndexEntry{}, false, kindMismatch(set, a.Path(), v, err)
		}
		rendered = append(rendered, r)
	}
	enc := value.Encode(rendered)
	return IndexEntry{
		Path:       a.Path(),
		Kind:       a.Kind(),
		Enumerable: true,
		Text:       enc,
		Value:      enc,
	}, true, nil
}

func kindMismatch(set, path string, v any, err error) error {
	if !errors.Is(err, value.ErrKind) {
		return err
	}
	segment := path[strings.LastIndexByte(path, '.')+1:]
	return domain.NewSchemaMismatch(set, path, segment, fmt.Sprintf("%T", v))
}
