// Package silence wires configuration, a pooled connection and the
// statement executor together.
package silence

import (
	"context"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/silence/builder"
	"github.com/Konsultn-Engineering/silence/cache"
	"github.com/Konsultn-Engineering/silence/config"
	"github.com/Konsultn-Engineering/silence/connector"
	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/dialect"
	"github.com/Konsultn-Engineering/silence/dynsql"
	"github.com/Konsultn-Engineering/silence/engine"
	"github.com/Konsultn-Engineering/silence/mapper"
	"github.com/Konsultn-Engineering/silence/schema"
)

// Client is an open connection and the Executor running on it.
type Client struct {
	*engine.Executor

	conn  connector.Connection
	stmts *cache.StatementCache
}

// Connect opens the database named by cfg and returns a ready Client.
// The pgx driver executes through the pool directly; postgres goes
// through database/sql with an optional prepared statement cache.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, dberr.New(dberr.KindEmptyInput, "connect", "nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := connector.Open(ctx, cfg.Database, connector.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	c := &Client{conn: conn}
	var db database.Database
	if cfg.Database.Driver == "pgx" {
		db = conn.Database()
	} else {
		var opts []database.SqlOption
		if size := cfg.Executor.StatementCacheSize; size > 0 {
			c.stmts, err = cache.NewStatementCache(size)
			if err != nil {
				_ = conn.Close()
				return nil, err
			}
			opts = append(opts, database.WithStatementCache(c.stmts))
		}
		db = database.NewSqlDatabase(conn.DB(), opts...)
	}

	c.Executor = NewExecutor(db, conn.Dialect(), cfg, logger)
	return c, nil
}

// NewExecutor builds an Executor over db configured from cfg.
func NewExecutor(db database.Database, d dialect.Dialect, cfg *config.Config, logger *zap.Logger) *engine.Executor {
	sc := schema.New(
		schema.WithTagName(cfg.Schema.TagName),
		schema.WithPluralTables(cfg.Schema.PluralTables),
		schema.WithCacheSize(cfg.Schema.CacheSize),
	)
	tmpl := dynsql.New(
		dynsql.WithSchema(sc),
		dynsql.WithLogger(logger),
		dynsql.WithCacheSize(cfg.Template.CacheSize),
		dynsql.WithInjectionGuard(cfg.Template.InjectionGuard),
		dynsql.WithStrictConditions(cfg.Template.StrictConditions),
	)

	return engine.New(db,
		engine.WithLogger(logger),
		engine.WithDialect(d),
		engine.WithBuilder(builder.New(sc)),
		engine.WithTemplateEngine(tmpl),
		engine.WithMapper(mapper.New(sc)),
		engine.WithQueryTimeout(cfg.Database.QueryTimeout),
	)
}

// Stats reports the connection pool.
func (c *Client) Stats() connector.ConnectionStats { return c.conn.Stats() }

// Close releases cached statements and the pool.
func (c *Client) Close() error {
	if c.stmts != nil {
		_ = c.stmts.Close()
	}
	return c.conn.Close()
}
