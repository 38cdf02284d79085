// Package database owns the schema cache of one store and serializes schema
// changes against it.
package database

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/domain"
	"github.com/kailas-cloud/structdex/internal/domain/schema"
	"github.com/kailas-cloud/structdex/internal/logger"
)

// Service manages structure sets. Schema lookups never take the lock; set
// upserts and drops hold it for their whole duration.
type Service struct {
	mu       sync.Mutex
	cache    *schema.Cache
	tables   Tables
	sync     Synchronizer
	identity IdentityForgetter
	resetter SyncResetter
}

// New creates a database service. identity may be nil when identity sets
// are not used.
func New(tables Tables, sync Synchronizer, identity IdentityForgetter) *Service {
	return &Service{
		cache:    schema.NewCache(),
		tables:   tables,
		sync:     sync,
		identity: identity,
	}
}

// WithSyncResetter makes upserts reset the write-path synchronization throttle.
func (s *Service) WithSyncResetter(r SyncResetter) *Service {
	s.resetter = r
	return s
}

// UpsertSet creates the tables of sc when absent, prunes side rows of members
// it no longer declares and replaces the cached schema.
func (s *Service) UpsertSet(ctx context.Context, sc *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(ctx, sc)
}

func (s *Service) upsert(ctx context.Context, sc *schema.Schema) error {
	ctx = logger.WithSet(ctx, sc.Name())
	s.cache.Invalidate(sc.Name())
	if err := s.tables.Upsert(ctx, sc); err != nil {
		return fmt.Errorf("upsert set %s: %w", sc.Name(), err)
	}
	if err := s.sync.All(ctx, sc); err != nil {
		return fmt.Errorf("synchronize set %s: %w", sc.Name(), err)
	}
	s.cache.Put(sc)
	if s.resetter != nil {
		s.resetter.Reset(sc.Name())
	}
	logger.FromContext(ctx).Info("structure set upserted",
		zap.Int("members", len(sc.Indexes())),
		zap.Int("uniques", len(sc.UniquePaths())),
	)
	return nil
}

// DropSet drops the tables of a cached set.
func (s *Service) DropSet(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.cache.Get(name)
	if !ok {
		return fmt.Errorf("drop set %s: %w", name, domain.ErrSetNotFound)
	}
	s.cache.Invalidate(name)
	if err := s.tables.Drop(ctx, sc); err != nil {
		return fmt.Errorf("drop set %s: %w", name, err)
	}
	if s.identity != nil && sc.ID().Kind().IsIdentity() {
		if err := s.identity.Forget(ctx, name); err != nil {
			return fmt.Errorf("drop set %s: %w", name, err)
		}
	}
	logger.FromContext(logger.WithSet(ctx, name)).Info("structure set dropped")
	return nil
}

// Ensure returns the cached schema of name, building and upserting it on
// first use.
func (s *Service) Ensure(ctx context.Context, name string, build func() (*schema.Schema, error)) (*schema.Schema, error) {
	if sc, ok := s.cache.Get(name); ok {
		return sc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.cache.Get(name); ok {
		return sc, nil
	}
	sc, err := build()
	if err != nil {
		return nil, fmt.Errorf("build schema %s: %w", name, err)
	}
	if err := s.upsert(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// Schema returns the cached schema of a set.
func (s *Service) Schema(name string) (*schema.Schema, error) {
	sc, ok := s.cache.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrSetNotFound)
	}
	return sc, nil
}

// Names lists the known sets, sorted.
func (s *Service) Names() []string {
	return s.cache.Names()
}
