// Package structdex stores Go structs as JSON documents in a relational
// database and queries them through flattened index tables.
package structdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/structdex/internal/db/mysql"
	"github.com/kailas-cloud/structdex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/structdex/internal/db/redis"
	"github.com/kailas-cloud/structdex/internal/db/sqldb"
	"github.com/kailas-cloud/structdex/internal/db/sqlite"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/repository/identity"
	"github.com/kailas-cloud/structdex/internal/repository/schemasync"
	structrepo "github.com/kailas-cloud/structdex/internal/repository/structure"
	databaseuc "github.com/kailas-cloud/structdex/internal/usecase/database"
	documentuc "github.com/kailas-cloud/structdex/internal/usecase/document"
	queryuc "github.com/kailas-cloud/structdex/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

type reserver interface {
	Reserve(ctx context.Context, set string, n int64) (int64, error)
	Forget(ctx context.Context, set string) error
}

// DB is the structdex SDK entry point. It is safe for concurrent use.
type DB struct {
	store     *sqldb.Store
	sync      *schemasync.Synchronizer
	sets      *databaseuc.Service
	queries   *queryuc.Service
	documents *documentuc.Service
	closers   []func()
}

// Open connects to the configured database. Exactly one of WithSQLite,
// WithMySQL or WithPostgres is required.
func Open(opts ...Option) (*DB, error) {
	cfg := &dbConfig{readiness: defaultReadinessTimeout}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.driver == "" {
		return nil, errors.New("structdex: database required (use WithSQLite, WithMySQL or WithPostgres)")
	}

	ctx := context.Background()
	store, err := createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d := &DB{store: store, closers: []func(){store.Close}}

	if err := store.WaitForReady(ctx, cfg.readiness); err != nil {
		d.Close()
		return nil, fmt.Errorf("structdex: database not ready: %w", err)
	}
	if err := d.wire(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func createStore(ctx context.Context, cfg *dbConfig) (*sqldb.Store, error) {
	var (
		s   *sqldb.Store
		err error
	)
	switch cfg.driver {
	case "sqlite":
		s, err = sqlite.Open(sqlite.Config{Path: cfg.dsn, Pool: cfg.pool})
	case "mysql":
		s, err = mysql.Open(ctx, mysql.Config{DSN: cfg.dsn, Pool: cfg.pool, ConnectTimeout: cfg.readiness})
	case "postgres":
		s, err = postgres.Open(ctx, postgres.Config{
			DSN:             cfg.dsn,
			MaxConns:        int32(cfg.pool.MaxOpenConns), //nolint:gosec // small positive pool size
			MaxConnLifetime: cfg.pool.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("structdex: unknown driver %q", cfg.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("structdex: open %s: %w", cfg.driver, err)
	}
	return s, nil
}

func (d *DB) wire(ctx context.Context, cfg *dbConfig) error {
	var ids reserver
	if len(cfg.redisAddrs) > 0 {
		kv, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.redisAddrs, Password: cfg.redisPassword})
		if err != nil {
			return fmt.Errorf("structdex: create identity store: %w", err)
		}
		d.closers = append(d.closers, kv.Close)
		ids = identity.NewKV(kv)
	} else {
		sqlIDs := identity.NewSQL(d.store)
		if err := sqlIDs.Init(ctx); err != nil {
			return fmt.Errorf("structdex: %w", err)
		}
		ids = sqlIDs
	}

	indexer := structure.NewIndexer(structure.JSONSerializer{})
	if cfg.poolSize > 0 {
		pool, err := ants.NewPool(cfg.poolSize)
		if err != nil {
			return fmt.Errorf("structdex: create indexing pool: %w", err)
		}
		d.closers = append(d.closers, pool.Release)
		indexer = indexer.WithPool(pool, cfg.parallelThreshold)
	}

	repo := structrepo.New(d.store)
	d.sync = schemasync.New(d.store)
	throttled := schemasync.NewThrottled(d.sync, cfg.syncInterval)

	d.sets = databaseuc.New(repo, d.sync, ids).WithSyncResetter(throttled)
	d.queries = queryuc.New(d.sets, d.store, d.store.Dialect())
	if cfg.slowQuery > 0 {
		d.queries = d.queries.WithSlowQuery(cfg.slowQuery)
	}
	d.documents = documentuc.New(repo, d.sets, ids, indexer).WithSynchronizer(throttled)
	if cfg.onEvent != nil {
		d.documents = d.documents.WithPublisher(&handlerPublisher{fn: cfg.onEvent})
	}
	return nil
}

// Close releases all resources.
func (d *DB) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Sets lists the sets used through this DB, sorted.
func (d *DB) Sets() []string {
	return d.sets.Names()
}

// Drop removes the tables of a set and, for identity sets, its id counter.
func (d *DB) Drop(ctx context.Context, set string) error {
	return d.sets.DropSet(ctx, set)
}

// Synchronize prunes index and unique rows of members a set no longer declares.
func (d *DB) Synchronize(ctx context.Context, set string) error {
	sc, err := d.sets.Schema(set)
	if err != nil {
		return err
	}
	return d.sync.All(ctx, sc)
}
