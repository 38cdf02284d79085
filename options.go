package structdex

import (
	"time"

	"github.com/kailas-cloud/structdex/internal/db/sqldb"
)

// Option configures Open.
type Option func(*dbConfig)

type dbConfig struct {
	driver    string
	dsn       string
	pool      sqldb.Pool
	readiness time.Duration

	redisAddrs    []string
	redisPassword string

	poolSize          int
	parallelThreshold int
	syncInterval      time.Duration
	slowQuery         time.Duration
	onEvent           func(Event)
}

// WithSQLite stores sets in a SQLite file, or in memory for ":memory:".
func WithSQLite(path string) Option {
	return func(c *dbConfig) {
		c.driver = "sqlite"
		c.dsn = path
	}
}

// WithMySQL stores sets in MySQL. dsn uses go-sql-driver/mysql syntax.
func WithMySQL(dsn string) Option {
	return func(c *dbConfig) {
		c.driver = "mysql"
		c.dsn = dsn
	}
}

// WithPostgres stores sets in Postgres. dsn is a pgx connection string.
func WithPostgres(dsn string) Option {
	return func(c *dbConfig) {
		c.driver = "postgres"
		c.dsn = dsn
	}
}

// WithPool sets connection pool limits.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *dbConfig) {
		c.pool = sqldb.Pool{MaxOpenConns: maxOpen, MaxIdleConns: maxIdle, ConnMaxLifetime: maxLifetime}
	}
}

// WithReadinessTimeout bounds how long Open waits for the database.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *dbConfig) {
		if d > 0 {
			c.readiness = d
		}
	}
}

// WithRedisIdentity reserves identity ids in Redis or Valkey instead of the
// relational store.
func WithRedisIdentity(addrs []string, password string) Option {
	return func(c *dbConfig) {
		c.redisAddrs = addrs
		c.redisPassword = password
	}
}

// WithParallelIndexing flattens batches of at least threshold items on a
// worker pool of the given size.
func WithParallelIndexing(workers, threshold int) Option {
	return func(c *dbConfig) {
		c.poolSize = workers
		c.parallelThreshold = threshold
	}
}

// WithSyncInterval bounds how often writes trigger schema synchronization.
func WithSyncInterval(d time.Duration) Option {
	return func(c *dbConfig) {
		c.syncInterval = d
	}
}

// WithSlowQuery logs queries slower than d.
func WithSlowQuery(d time.Duration) Option {
	return func(c *dbConfig) {
		c.slowQuery = d
	}
}

// WithEventHandler receives a change event after every committed write.
func WithEventHandler(fn func(Event)) Option {
	return func(c *dbConfig) {
		c.onEvent = fn
	}
}
