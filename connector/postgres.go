package connector

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/dialect"
	"github.com/Konsultn-Engineering/silence/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// PostgresConnector represents a PostgreSQL database connection.
type PostgresConnector struct {
	config  Config
	pool    *pgxpool.Pool
	dialect dialect.Dialect
	logger  *zap.Logger

	dbOnce sync.Once
	db     *sql.DB
}

// newPostgresConnector connects and pings, retrying per cfg.Retry.
func newPostgresConnector(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresConnector, error) {
	p := &PostgresConnector{
		config:  cfg,
		dialect: dialect.NewPostgresDialect(),
		logger:  logger,
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	logger.Info("connecting",
		zap.String("dsn", logging.SanitizeConnectionString(cfg.DSN())),
		zap.Uint64("max_retries", cfg.Retry.MaxRetries))

	if err := retryConnect(ctx, cfg.Retry, logger, p.connect); err != nil {
		return nil, dberr.Wrap(dberr.KindDataAccess, "connect", err, "after %d retries", cfg.Retry.MaxRetries)
	}
	return p, nil
}

// poolConfig maps Config onto a pgxpool configuration.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.Pool.MaxOpen > 0 {
		poolCfg.MaxConns = int32(cfg.Pool.MaxOpen)
	}
	if cfg.Pool.MaxIdle > 0 {
		poolCfg.MinConns = int32(cfg.Pool.MaxIdle)
	}
	if cfg.Pool.MaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Pool.MaxLifetime
	}
	if cfg.Pool.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.Pool.MaxIdleTime
	}
	if cfg.Pool.HealthCheckFreq > 0 {
		poolCfg.HealthCheckPeriod = cfg.Pool.HealthCheckFreq
	}
	return poolCfg, nil
}

// connect establishes the pool and checks it with a ping.
func (p *PostgresConnector) connect(ctx context.Context) error {
	if p.pool != nil {
		return nil // Already connected
	}

	poolCfg, err := poolConfig(p.config)
	if err != nil {
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}

	p.pool = pool
	return nil
}

// DB returns a *sql.DB over the pool, opened once.
func (p *PostgresConnector) DB() *sql.DB {
	p.dbOnce.Do(func() {
		p.db = stdlib.OpenDBFromPool(p.pool)
	})
	return p.db
}

// Database returns the pgx-backed execution layer.
func (p *PostgresConnector) Database() database.Database {
	return database.NewPgxDatabase(p.pool)
}

// Dialect returns the PostgreSQL dialect.
func (p *PostgresConnector) Dialect() dialect.Dialect {
	return p.dialect
}

// Health checks the connection health.
func (p *PostgresConnector) Health(ctx context.Context) error {
	if p.pool == nil {
		return dberr.New(dberr.KindDataAccess, "health", "not connected")
	}
	return p.pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (p *PostgresConnector) Stats() ConnectionStats {
	if p.pool == nil {
		return ConnectionStats{}
	}
	s := p.pool.Stat()
	return ConnectionStats{
		MaxConnections:  int(s.MaxConns()),
		OpenConnections: int(s.TotalConns()),
		InUse:           int(s.AcquiredConns()),
		Idle:            int(s.IdleConns()),
		Acquires:        s.AcquireCount(),
	}
}

// Close closes the sql.DB view, if opened, and the pool.
func (p *PostgresConnector) Close() error {
	if p.db != nil {
		_ = p.db.Close()
	}
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}
