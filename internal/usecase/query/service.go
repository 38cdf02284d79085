// Package query executes translated structure queries and streams the
// reassembled JSON documents.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/domain"
	domquery "github.com/kailas-cloud/structdex/internal/domain/query"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/jsonrows"
	"github.com/kailas-cloud/structdex/internal/logger"
	"github.com/kailas-cloud/structdex/internal/translator"
)

// DefaultSlowQuery is the latency from which a query is logged as slow.
const DefaultSlowQuery = 500 * time.Millisecond

// Explanation is the translation of a query without executing it.
type Explanation struct {
	Set   string `json:"set"`
	Shape string `json:"shape"`
	SQL   string `json:"sql"`
	Args  []any  `json:"args"`
}

// Service runs read queries against one store.
type Service struct {
	schemas  Schemas
	exec     db.Executor
	tr       *translator.Translator
	observer Observer
	slow     time.Duration

	mu    sync.RWMutex
	named map[string]string
}

// New creates a query service.
func New(schemas Schemas, exec db.Executor, d db.Dialect) *Service {
	return &Service{
		schemas: schemas,
		exec:    exec,
		tr:      translator.New(d),
		slow:    DefaultSlowQuery,
		named:   make(map[string]string),
	}
}

// WithObserver records every execution on o.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// WithSlowQuery sets the slow query threshold. Zero disables slow query logs.
func (s *Service) WithSlowQuery(threshold time.Duration) *Service {
	s.slow = threshold
	return s
}

// Query streams the documents matching q. The caller must close the iterator.
func (s *Service) Query(ctx context.Context, set string, q domquery.Query) (*jsonrows.Iterator, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return nil, err
	}
	st, err := s.tr.Translate(sc, q)
	if err != nil {
		return nil, fmt.Errorf("translate query on %s: %w", set, err)
	}
	return s.stream(ctx, set, string(translator.ShapeOf(q)), st)
}

// Count counts the structures matching the where clause of q.
func (s *Service) Count(ctx context.Context, set string, q domquery.Query) (int64, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return 0, err
	}
	st := s.tr.Count(sc)
	if q.HasWhere() {
		st, err = s.tr.CountWhere(sc, q)
		if err != nil {
			return 0, fmt.Errorf("translate count on %s: %w", set, err)
		}
	}
	return s.scalar(ctx, set, st)
}

// GetByID returns the JSON of one structure.
func (s *Service) GetByID(ctx context.Context, set string, id structure.ID) (string, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return "", err
	}
	it, err := s.stream(ctx, set, "id", s.tr.GetByID(sc, id))
	if err != nil {
		return "", err
	}
	defer it.Close()
	if !it.Next() {
		if err := it.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s %s: %w", set, id, domain.ErrNotFound)
	}
	return it.JSON(), nil
}

// GetByIDs streams the listed structures ordered by id. Missing ids are skipped.
func (s *Service) GetByIDs(ctx context.Context, set string, ids []structure.ID) (*jsonrows.Iterator, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return nil, err
	}
	st, err := s.tr.GetByIDs(sc, ids)
	if err != nil {
		return nil, err
	}
	return s.stream(ctx, set, "ids", st)
}

// GetByIDInterval streams the structures with identity ids in [from, to].
func (s *Service) GetByIDInterval(ctx context.Context, set string, from, to structure.ID) (*jsonrows.Iterator, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return nil, err
	}
	st, err := s.tr.GetByIDInterval(sc, from, to)
	if err != nil {
		return nil, err
	}
	return s.stream(ctx, set, "interval", st)
}

// ParseID parses the textual id of a structure of set.
func (s *Service) ParseID(set, raw string) (structure.ID, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return structure.ID{}, err
	}
	return structure.ParseID(sc.ID().Kind(), raw)
}

// Explain translates q without executing it.
func (s *Service) Explain(set string, q domquery.Query) (Explanation, error) {
	sc, err := s.schemas.Schema(set)
	if err != nil {
		return Explanation{}, err
	}
	st, err := s.tr.Translate(sc, q)
	if err != nil {
		return Explanation{}, fmt.Errorf("translate query on %s: %w", set, err)
	}
	args := st.Args
	if args == nil {
		args = []any{}
	}
	return Explanation{Set: sc.Name(), Shape: string(translator.ShapeOf(q)), SQL: st.SQL, Args: args}, nil
}

// RawQuery runs caller SQL whose first column is structure JSON, optionally
// followed by included structure columns.
func (s *Service) RawQuery(ctx context.Context, sql string, args ...any) (*jsonrows.Iterator, error) {
	return s.stream(ctx, "", "raw", translator.Statement{SQL: sql, Args: args})
}

// RegisterNamed stores a named raw statement, replacing any previous one.
func (s *Service) RegisterNamed(name, sql string) {
	s.mu.Lock()
	s.named[name] = sql
	s.mu.Unlock()
}

// NamedQuery runs a registered statement with args.
func (s *Service) NamedQuery(ctx context.Context, name string, args ...any) (*jsonrows.Iterator, error) {
	s.mu.RLock()
	sql, ok := s.named[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("named query %q: %w", name, domain.ErrNotFound)
	}
	return s.stream(ctx, "", "named", translator.Statement{SQL: sql, Args: args})
}

func (s *Service) stream(ctx context.Context, set, shape string, st translator.Statement) (*jsonrows.Iterator, error) {
	start := time.Now()
	rows, err := s.exec.Query(ctx, st.SQL, st.Args...)
	s.observe(ctx, set, shape, st, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return jsonrows.New(rows)
}

func (s *Service) scalar(ctx context.Context, set string, st translator.Statement) (int64, error) {
	start := time.Now()
	rows, err := s.exec.Query(ctx, st.SQL, st.Args...)
	s.observe(ctx, set, "count", st, time.Since(start), err)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, &db.Error{Op: db.OpScan, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, &db.Error{Op: db.OpScan, Err: err}
	}
	return n, nil
}

func (s *Service) observe(ctx context.Context, set, shape string, st translator.Statement, d time.Duration, err error) {
	if s.observer != nil {
		s.observer.ObserveQuery(set, shape, d, err)
	}
	if s.slow > 0 && d >= s.slow {
		logger.FromContext(logger.WithSet(ctx, set)).Warn("slow query",
			zap.String("shape", shape),
			zap.Duration("duration", d),
			zap.String("sql", st.SQL),
		)
	}
}

// Schema exposes the cached schema of set.
func (s *Service) Schema(set string) (*schema.Schema, error) {
	return s.schemas.Schema(set)
}
