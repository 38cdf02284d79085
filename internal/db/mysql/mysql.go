// Package mysql opens structdex stores on go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kailas-cloud/structdex/internal/db"
	"github.com/kailas-cloud/structdex/internal/db/sqldb"
)

// erDupEntry is the MySQL error number of a duplicate key.
const erDupEntry = 1062

// Config holds connection parameters for a MySQL store.
type Config struct {
	DSN  string
	Pool sqldb.Pool
	// ConnectTimeout bounds the initial ping; zero skips it.
	ConnectTimeout time.Duration
}

// Open opens a MySQL store. The DSN is parsed so that parseTime stays off:
// DateTime members are stored as canonical text.
func Open(ctx context.Context, cfg Config) (*sqldb.Store, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	mc.ParseTime = false
	mc.MultiStatements = false

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	sqlDB := sql.OpenDB(connector)

	if cfg.ConnectTimeout > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
	}

	return sqldb.New(sqlDB, sqldb.Config{
		Dialect:           db.MySQL,
		IsUniqueViolation: IsUniqueViolation,
		Pool:              cfg.Pool,
	}), nil
}

// IsUniqueViolation reports whether err is a duplicate key error.
func IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}
