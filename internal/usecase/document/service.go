// Package document implements the structure write path: identity
// reservation, indexing, persistence and change events.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/patch"
	"github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/events"
	"github.com/kailas-cloud/structdex/internal/logger"
)

// Write operation names reported to the observer.
const (
	OpInsert        = "insert"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpDeleteByQuery = "delete_by_query"
	OpDeleteAll     = "delete_all"
)

// Service handles structure writes.
type Service struct {
	repo      Repository
	schemas   Schemas
	ids       IdentityReserver
	indexer   *structure.Indexer
	sync      Synchronizer
	reader    Reader
	publisher events.Publisher
	observer  Observer
	now       func() time.Time

	mu         sync.RWMutex
	validators map[string]*gojsonschema.Schema
}

// New creates a write service. ids may be nil when no set uses identity ids.
func New(repo Repository, schemas Schemas, ids IdentityReserver, indexer *structure.Indexer) *Service {
	if indexer == nil {
		indexer = structure.NewIndexer(nil)
	}
	return &Service{
		repo:       repo,
		schemas:    schemas,
		ids:        ids,
		indexer:    indexer,
		publisher:  events.Noop{},
		now:        time.Now,
		validators: make(map[string]*gojsonschema.Schema),
	}
}

// WithSynchronizer runs sy before every write.
func (s *Service) WithSynchronizer(sy Synchronizer) *Service {
	s.sync = sy
	return s
}

// WithReader enables PatchJSON.
func (s *Service) WithReader(r Reader) *Service {
	s.reader = r
	return s
}

// WithPublisher publishes change events after every committed write.
func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithObserver records every write on o.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// SetValidator validates the JSON documents of set against a JSON Schema.
// An empty schema removes the validator.
func (s *Service) SetValidator(set, jsonSchema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jsonSchema == "" {
		delete(s.validators, set)
		return nil
	}
	v, err := compileSchema(jsonSchema)
	if err != nil {
		return fmt.Errorf("%s: %w", set, err)
	}
	s.validators[set] = v
	return nil
}

// Insert stores one item and returns its id, assigning one when unset.
func (s *Service) Insert(ctx context.Context, set string, item any) (structure.ID, error) {
	ids, err := s.InsertMany(ctx, set, []any{item})
	if err != nil {
		return structure.ID{}, err
	}
	return ids[0], nil
}

// InsertMany stores a batch in one transaction and returns the ids in input
// order. Unset identity ids come from one reserved block.
func (s *Service) InsertMany(ctx context.Context, set string, items []any) (ids []structure.ID, err error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	defer func() { s.observe(set, OpInsert, len(items), err) }()

	if err := s.prepare(ctx, sc); err != nil {
		return nil, err
	}
	gen, err := s.generator(ctx, sc, items)
	if err != nil {
		return nil, err
	}
	built, err := s.indexer.BuildMany(sc, items, gen)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", set, err)
	}
	if err := s.repo.Insert(ctx, sc, built); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", set, err)
	}

	ids = make([]structure.ID, len(built))
	for i := range built {
		ids[i] = built[i].ID()
	}
	s.publish(ctx, events.Event{Kind: events.Inserted, Set: set, IDs: idStrings(ids), Count: int64(len(ids))})
	return ids, nil
}

// InsertJSON decodes JSON documents of a dynamic set, validates them and
// stores them.
func (s *Service) InsertJSON(ctx context.Context, set string, docs []json.RawMessage) ([]structure.ID, error) {
	items, err := s.decode(set, docs)
	if err != nil {
		return nil, err
	}
	return s.InsertMany(ctx, set, items)
}

// Update replaces a stored item. Its id must be set.
func (s *Service) Update(ctx context.Context, set string, item any) (err error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return err
	}
	defer func() { s.observe(set, OpUpdate, 1, err) }()

	if err := s.prepare(ctx, sc); err != nil {
		return err
	}
	raw, err := sc.ID().Get(item)
	if err != nil {
		return fmt.Errorf("update %s: %w", set, err)
	}
	id, err := structure.IDFromValue(sc.ID().Kind(), raw)
	if err != nil {
		return fmt.Errorf("update %s: %w", set, err)
	}
	if id.IsZero() {
		return fmt.Errorf("update %s: %s is required: %w", set, sc.ID().Path(), domain.ErrInvalidDocument)
	}
	built, err := s.indexer.Build(sc, item, nil)
	if err != nil {
		return fmt.Errorf("index %s: %w", set, err)
	}
	if err := s.repo.Update(ctx, sc, built); err != nil {
		return fmt.Errorf("update %s %s: %w", set, id, err)
	}
	s.publish(ctx, events.Event{Kind: events.Updated, Set: set, IDs: []string{id.String()}, Count: 1})
	return nil
}

// UpdateJSON decodes, validates and updates one document of a dynamic set.
// A non-zero id overrides the id member of the document.
func (s *Service) UpdateJSON(ctx context.Context, set string, id structure.ID, doc json.RawMessage) error {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return err
	}
	items, err := s.decode(set, []json.RawMessage{doc})
	if err != nil {
		return err
	}
	if !id.IsZero() {
		if err := sc.ID().Set(items[0], id.Native()); err != nil {
			return fmt.Errorf("update %s: %w", set, err)
		}
	}
	return s.Update(ctx, set, items[0])
}

// PatchJSON applies a JSON merge patch to one stored document of a dynamic
// set. The read and the update run in separate transactions, so a concurrent
// update between them is overwritten.
func (s *Service) PatchJSON(ctx context.Context, set string, id structure.ID, raw json.RawMessage) error {
	p, err := patch.Parse(raw)
	if err != nil {
		return err
	}
	if s.reader == nil {
		return fmt.Errorf("patch %s: no document reader configured", set)
	}
	text, err := s.reader.GetByID(ctx, set, id)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("patch %s %s: stored document: %w", set, id, err)
	}
	merged, err := json.Marshal(p.Apply(doc))
	if err != nil {
		return fmt.Errorf("patch %s %s: %w", set, id, err)
	}
	logger.FromContext(logger.WithSet(ctx, set)).Debug("patching document",
		zap.String("id", id.String()), zap.Strings("fields", p.Fields()))
	return s.UpdateJSON(ctx, set, id, merged)
}

// DeleteByID removes one structure.
func (s *Service) DeleteByID(ctx context.Context, set string, id structure.ID) (err error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return err
	}
	defer func() { s.observe(set, OpDelete, 1, err) }()

	deleted, err := s.repo.DeleteByID(ctx, sc, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", set, id, err)
	}
	if !deleted {
		return fmt.Errorf("delete %s %s: %w", set, id, domain.ErrNotFound)
	}
	s.publish(ctx, events.Event{Kind: events.Deleted, Set: set, IDs: []string{id.String()}, Count: 1})
	return nil
}

// DeleteByQuery removes the structures matching the where clause of q and
// returns how many were removed.
func (s *Service) DeleteByQuery(ctx context.Context, set string, q query.Query) (n int64, err error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return 0, err
	}
	defer func() { s.observe(set, OpDeleteByQuery, int(n), err) }()

	if err := s.prepare(ctx, sc); err != nil {
		return 0, err
	}
	n, err = s.repo.DeleteByQuery(ctx, sc, q)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", set, err)
	}
	if n > 0 {
		s.publish(ctx, events.Event{Kind: events.DeletedByQuery, Set: set, Count: n})
	}
	return n, nil
}

// DeleteAll removes every structure of a set, keeping its tables.
func (s *Service) DeleteAll(ctx context.Context, set string) (n int64, err error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return 0, err
	}
	defer func() { s.observe(set, OpDeleteAll, int(n), err) }()

	n, err = s.repo.DeleteAll(ctx, sc)
	if err != nil {
		return 0, fmt.Errorf("clear %s: %w", set, err)
	}
	if n > 0 {
		s.publish(ctx, events.Event{Kind: events.DeletedByQuery, Set: set, Count: n})
	}
	return n, nil
}

// prepare synchronizes the side tables of sc before a write.
func (s *Service) prepare(ctx context.Context, sc *schema.Schema) error {
	if s.sync == nil {
		return nil
	}
	if err := s.sync.Maybe(ctx, sc); err != nil {
		return fmt.Errorf("synchronize %s: %w", sc.Name(), err)
	}
	return nil
}

// generator reserves one identity block covering every item with an unset id.
func (s *Service) generator(ctx context.Context, sc *schema.Schema, items []any) (structure.IDGenerator, error) {
	if !sc.ID().Kind().IsIdentity() {
		return structure.NewBlock(0, 0), nil
	}
	var missing int64
	for i, item := range items {
		raw, err := sc.ID().Get(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		id, err := structure.IDFromValue(schema.IDIdentity, raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if id.IsZero() {
			missing++
		}
	}
	if missing == 0 {
		return structure.NewBlock(0, 0), nil
	}
	if s.ids == nil {
		return nil, fmt.Errorf("%s: no identity reserver configured: %w", sc.Name(), domain.ErrInvalidDocument)
	}
	first, err := s.ids.Reserve(ctx, sc.Name(), missing)
	if err != nil {
		return nil, fmt.Errorf("reserve ids for %s: %w", sc.Name(), err)
	}
	return structure.NewBlock(first, missing), nil
}

func (s *Service) decode(set string, docs []json.RawMessage) ([]any, error) {
	s.mu.RLock()
	v := s.validators[set]
	s.mu.RUnlock()

	items := make([]any, len(docs))
	for i, raw := range docs {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("document %d: %w: %w", i, domain.ErrInvalidDocument, err)
		}
		if doc == nil {
			return nil, fmt.Errorf("document %d: not a JSON object: %w", i, domain.ErrInvalidDocument)
		}
		if v != nil {
			if err := validate(v, doc); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
		}
		items[i] = doc
	}
	return items, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	e.At = s.now().UTC()
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.FromContext(logger.WithSet(ctx, e.Set)).Warn("publish change event",
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) observe(set, op string, n int, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveWrite(set, op, n, err)
}

func idStrings(ids []structure.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
