package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/structdex/internal/config"
	"github.com/kailas-cloud/structdex/internal/db/mysql"
	"github.com/kailas-cloud/structdex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/structdex/internal/db/redis"
	"github.com/kailas-cloud/structdex/internal/db/sqldb"
	"github.com/kailas-cloud/structdex/internal/db/sqlite"
	"github.com/kailas-cloud/structdex/internal/domain/structure"
	"github.com/kailas-cloud/structdex/internal/events"
	logpkg "github.com/kailas-cloud/structdex/internal/logger"
	"github.com/kailas-cloud/structdex/internal/metrics"
	"github.com/kailas-cloud/structdex/internal/repository/identity"
	"github.com/kailas-cloud/structdex/internal/repository/schemasync"
	structrepo "github.com/kailas-cloud/structdex/internal/repository/structure"
	chiTransport "github.com/kailas-cloud/structdex/internal/transport/chi"
	databaseuc "github.com/kailas-cloud/structdex/internal/usecase/database"
	documentuc "github.com/kailas-cloud/structdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/structdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/structdex/internal/usecase/query"
	"github.com/kailas-cloud/structdex/internal/version"
)

// reserver hands out identity blocks and forgets dropped sets.
type reserver interface {
	Reserve(ctx context.Context, set string, n int64) (int64, error)
	Forget(ctx context.Context, set string) error
}

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store     *sqldb.Store
	sync      *schemasync.Synchronizer
	sets      *databaseuc.Service
	queries   *queryuc.Service
	documents *documentuc.Service
	health    *healthuc.Service
	server    *chiTransport.Server

	closers []func()
}

func loadConfig() (config.Config, string, *zap.Logger, error) {
	env := envFlag
	if env == "" {
		env = config.GetEnv()
	}
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, env, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, env, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	logger.Info("Starting structdex",
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("identity_driver", cfg.Identity.Driver),
		zap.String("events_driver", cfg.Events.Driver),
	)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	cfg := a.cfg.Database
	pool := sqldb.Pool{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
	}
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	var err error
	switch cfg.Driver {
	case "sqlite":
		a.store, err = sqlite.Open(sqlite.Config{Path: cfg.DSN, Pool: pool})
	case "mysql":
		a.store, err = mysql.Open(ctx, mysql.Config{DSN: cfg.DSN, Pool: pool, ConnectTimeout: readiness})
	case "postgres":
		a.store, err = postgres.Open(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxConns:        int32(cfg.MaxOpenConns), //nolint:gosec // validated pool size
			MaxConnLifetime: pool.ConnMaxLifetime,
		})
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create database store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	if err := a.store.WaitForReady(ctx, readiness); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	a.logger.Info("Connected to database")
	return nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	// Register store metrics explicitly (no init())
	metrics.RegisterStoreMetrics()
	recorder := metrics.Recorder{}

	ids, identityPinger, err := a.identity(ctx)
	if err != nil {
		return err
	}

	pool, err := ants.NewPool(cfg.Indexing.PoolSize)
	if err != nil {
		return fmt.Errorf("create indexing pool: %w", err)
	}
	a.closers = append(a.closers, pool.Release)
	indexer := structure.NewIndexer(structure.JSONSerializer{}).WithPool(pool, cfg.Indexing.ParallelThreshold)

	publisher, err := a.publisher()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = publisher.Close() })

	repo := structrepo.New(a.store)
	a.sync = schemasync.New(a.store).WithObserver(recorder.ObserveSync)
	throttled := schemasync.NewThrottled(a.sync, time.Duration(cfg.Sync.IntervalSec)*time.Second)

	a.sets = databaseuc.New(repo, a.sync, ids).WithSyncResetter(throttled)
	a.queries = queryuc.New(a.sets, a.store, a.store.Dialect()).
		WithObserver(recorder).
		WithSlowQuery(time.Duration(cfg.Query.SlowQueryMs) * time.Millisecond)
	for name, sql := range cfg.Query.Named {
		a.queries.RegisterNamed(name, sql)
	}
	a.documents = documentuc.New(repo, a.sets, ids, indexer).
		WithSynchronizer(throttled).
		WithPublisher(publisher).
		WithObserver(recorder).
		WithReader(a.queries)
	a.health = healthuc.New(a.store, identityPinger)

	a.server = chiTransport.NewServer(a.sets, a.queries, a.documents, a.sync, a.health, a.logger).
		WithMaxBatchSize(cfg.HTTP.MaxBatchSize)

	for _, sc := range cfg.Sets {
		if _, err := a.server.DefineSet(ctx, sc.Name, setRequest(sc)); err != nil {
			return fmt.Errorf("define set %s: %w", sc.Name, err)
		}
		a.logger.Info("Set ready", zap.String("set", sc.Name), zap.Int("members", len(sc.Members)))
	}
	return nil
}

// identity returns the reserver and, for a separate id store, its pinger.
// The pinger is a nil interface for the SQL reserver, never a typed nil.
func (a *app) identity(ctx context.Context) (reserver, healthuc.Pinger, error) {
	cfg := a.cfg.Identity
	switch cfg.Driver {
	case "redis":
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create identity store: %w", err)
		}
		a.closers = append(a.closers, kv.Close)
		if err := kv.WaitForReady(ctx, time.Duration(a.cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return nil, nil, fmt.Errorf("identity store not ready: %w", err)
		}
		return identity.NewKV(kv), kv, nil
	default:
		ids := identity.NewSQL(a.store)
		if err := ids.Init(ctx); err != nil {
			return nil, nil, err
		}
		return ids, nil, nil
	}
}

func (a *app) publisher() (events.Publisher, error) {
	cfg := a.cfg.Events
	switch cfg.Driver {
	case "kafka":
		k, err := events.NewKafka(events.KafkaConfig{
			Brokers:      cfg.Brokers,
			Topic:        cfg.Topic,
			BatchSize:    cfg.BatchSize,
			BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Millisecond,
			WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
			RequiredAcks: cfg.RequiredAcks,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		a.logger.Info("Publishing change events", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
		return k, nil
	case "memory":
		return events.NewMemory(), nil
	default:
		return events.Noop{}, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setRequest(sc config.SetConfig) chiTransport.SetRequest {
	members := make([]chiTransport.MemberDTO, len(sc.Members))
	for i, m := range sc.Members {
		members[i] = chiTransport.MemberDTO{
			Path:       m.Path,
			Kind:       m.Kind,
			Enumerable: m.Enumerable,
			Unique:     m.Unique,
		}
	}
	req := chiTransport.SetRequest{
		IDPath:  sc.IDPath,
		IDKind:  sc.IDKind,
		Members: members,
	}
	if sc.JSONSchema != "" {
		req.JSONSchema = json.RawMessage(sc.JSONSchema)
	}
	return req
}
