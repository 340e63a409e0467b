package database

import (
	"context"
	"database/sql"

	"github.com/Konsultn-Engineering/silence/cache"
)

// SqlDatabase implements Database for *sql.DB.
type SqlDatabase struct {
	db    *sql.DB
	stmts *cache.StatementCache
}

type SqlOption func(*SqlDatabase)

// WithStatementCache prepares every statement once and reuses it from c.
func WithStatementCache(c *cache.StatementCache) SqlOption {
	return func(s *SqlDatabase) { s.stmts = c }
}

// NewSqlDatabase creates a new SqlDatabase.
func NewSqlDatabase(db *sql.DB, options ...SqlOption) *SqlDatabase {
	s := &SqlDatabase{db: db}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// DB returns the wrapped handle.
func (s *SqlDatabase) DB() *sql.DB { return s.db }

// QueryContext executes a query with a context. A cached statement is
// held until the returned rows are closed.
func (s *SqlDatabase) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if s.stmts == nil {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return &SqlRows{rows: rows}, nil
	}

	stmt, release, err := s.stmts.Acquire(ctx, s.db, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		release()
		return nil, err
	}
	return &SqlRows{rows: rows, release: release}, nil
}

// ExecContext executes a query without returning rows.
func (s *SqlDatabase) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	if s.stmts == nil {
		return s.db.ExecContext(ctx, query, args...) // database/sql.Result implements Result
	}

	stmt, release, err := s.stmts.Acquire(ctx, s.db, query)
	if err != nil {
		return nil, err
	}
	defer release()
	return stmt.ExecContext(ctx, args...)
}

// ExecBatch prepares query once and executes it for every row.
func (s *SqlDatabase) ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error) {
	var stmt *sql.Stmt
	if s.stmts != nil {
		cached, release, err := s.stmts.Acquire(ctx, s.db, query)
		if err != nil {
			return 0, err
		}
		defer release()
		stmt = cached
	} else {
		prepared, err := s.db.PrepareContext(ctx, query)
		if err != nil {
			return 0, err
		}
		defer prepared.Close()
		stmt = prepared
	}

	var total int64
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return total, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// PingContext verifies the connection to the database is alive.
func (s *SqlDatabase) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes cached statements and then the database.
func (s *SqlDatabase) Close() error {
	if s.stmts != nil {
		_ = s.stmts.Close()
	}
	return s.db.Close()
}

// SetMaxOpenConns sets the maximum number of open connections.
func (s *SqlDatabase) SetMaxOpenConns(n int) { s.db.SetMaxOpenConns(n) }

// SetMaxIdleConns sets the maximum number of idle connections.
func (s *SqlDatabase) SetMaxIdleConns(n int) { s.db.SetMaxIdleConns(n) }

// SqlRows implements Rows for *sql.Rows.
type SqlRows struct {
	rows    *sql.Rows
	release func() // returns a cached statement, nil otherwise
}

// Next prepares the next result row for reading.
func (s *SqlRows) Next() bool { return s.rows.Next() }

// Scan copies the columns from the current row into the provided destinations.
func (s *SqlRows) Scan(dest ...any) error { return s.rows.Scan(dest...) }

// Close closes the rows iterator and releases its cached statement.
func (s *SqlRows) Close() error {
	err := s.rows.Close()
	if s.release != nil {
		s.release()
	}
	return err
}

// Columns returns the column names.
func (s *SqlRows) Columns() ([]string, error) { return s.rows.Columns() }

// Err returns the error, if any, that ended iteration.
func (s *SqlRows) Err() error { return s.rows.Err() }

// Assert that SqlDatabase implements the Database interface.
var _ Database = (*SqlDatabase)(nil)
