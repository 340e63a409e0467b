// Package engine executes built and templated statements against a
// database and maps the results back into Go values.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/silence/builder"
	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/dialect"
	"github.com/Konsultn-Engineering/silence/dynsql"
	"github.com/Konsultn-Engineering/silence/logging"
	"github.com/Konsultn-Engineering/silence/mapper"
)

// Executor runs statements against one database. It holds no per-call
// state and is safe for concurrent use.
type Executor struct {
	db       database.Database
	dialect  dialect.Dialect
	template *dynsql.Engine
	builder  *builder.Builder
	mapper   *mapper.Mapper
	logger   *zap.Logger
	timeout  time.Duration
}

type Option func(*Executor)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithDialect sets the placeholder style statements are rebound to.
func WithDialect(d dialect.Dialect) Option {
	return func(e *Executor) { e.dialect = d }
}

func WithTemplateEngine(t *dynsql.Engine) Option {
	return func(e *Executor) { e.template = t }
}

func WithBuilder(b *builder.Builder) Option {
	return func(e *Executor) { e.builder = b }
}

func WithMapper(m *mapper.Mapper) Option {
	return func(e *Executor) { e.mapper = m }
}

// WithQueryTimeout bounds every statement. Zero means no bound beyond the
// caller's context.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// New returns an Executor over db. Without options it speaks PostgreSQL
// and uses the default template engine, builder and mapper.
func New(db database.Database, options ...Option) *Executor {
	e := &Executor{
		db:      db,
		dialect: dialect.NewPostgresDialect(),
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.builder == nil {
		e.builder = builder.Default()
	}
	if e.template == nil {
		e.template = dynsql.New(dynsql.WithSchema(e.builder.Schema()), dynsql.WithLogger(e.logger))
	}
	if e.mapper == nil {
		e.mapper = mapper.New(e.builder.Schema())
	}
	return e
}

func (e *Executor) Database() database.Database { return e.db }

func (e *Executor) Dialect() dialect.Dialect { return e.dialect }

// Builder returns the statement builder the Executor uses.
func (e *Executor) Builder() *builder.Builder { return e.builder }

// Ping checks that the database answers.
func (e *Executor) Ping(ctx context.Context) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	if err := e.db.PingContext(ctx); err != nil {
		return dberr.Wrap(dberr.KindDataAccess, "ping", err, "database unreachable")
	}
	return nil
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return ctx, func() {}
}

// prepare rebinds query for the dialect and logs it.
func (e *Executor) prepare(op, query string, bindings int) string {
	query = dialect.Rebind(e.dialect, query)
	e.logger.Debug(op,
		zap.String("sql", logging.SanitizeQuery(query)),
		zap.Int("bindings", bindings))
	return query
}

// exec runs one statement and returns the affected row count.
func (e *Executor) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := e.execResult(ctx, op, query, args)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dberr.Wrap(dberr.KindDataAccess, op, err, "rows affected")
	}
	return n, nil
}

func (e *Executor) execResult(ctx context.Context, op, query string, args []any) (database.Result, error) {
	query = e.prepare(op, query, len(args))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, e.dataAccess(op, query, err)
	}
	return res, nil
}

// execBatch runs query once per row.
func (e *Executor) execBatch(ctx context.Context, op string, batch *builder.BatchStatement) (int64, error) {
	query := e.prepare(op, batch.SQL, len(batch.Rows))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	n, err := e.db.ExecBatch(ctx, query, batch.Rows)
	if err != nil {
		return n, e.dataAccess(op, query, err)
	}
	return n, nil
}

// query runs a statement and hands the open cursor to fn. The cursor is
// closed on every path.
func (e *Executor) query(ctx context.Context, op, query string, args []any, fn func(database.Rows) error) error {
	query = e.prepare(op, query, len(args))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return e.dataAccess(op, query, err)
	}
	defer rows.Close()

	return fn(rows)
}

func (e *Executor) dataAccess(op, query string, err error) error {
	e.logger.Debug("statement failed",
		zap.String("op", op),
		zap.String("sql", logging.SanitizeQuery(query)),
		zap.String("error", logging.SanitizeError(err)))
	return dberr.Wrap(dberr.KindDataAccess, op, err, "%s", logging.SanitizeQuery(query))
}
