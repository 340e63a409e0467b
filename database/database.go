// Package database is the statement execution layer the executor talks to.
// SqlDatabase wraps database/sql; PgxDatabase wraps a pgx pool.
package database

import (
	"context"
)

type Database interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	// ExecBatch runs query once per row of args and returns the total
	// number of affected rows.
	ExecBatch(ctx context.Context, query string, rows [][]any) (int64, error)
	PingContext(ctx context.Context) error
	Close() error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Columns() ([]string, error)
	Err() error
}

type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}
