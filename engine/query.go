package engine

import (
	"context"
	"reflect"

	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/mapper"
)

// entityType names T for the builder, which accepts a reflect.Type in
// place of a value.
func entityType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func queryOne[T any](ctx context.Context, e *Executor, op, sql string, args []any) (*T, error) {
	var out *T
	err := e.query(ctx, op, sql, args, func(rows database.Rows) error {
		var err error
		out, err = mapper.MapOneWith[T](e.mapper, rows)
		return err
	})
	return out, err
}

func queryList[T any](ctx context.Context, e *Executor, op, sql string, args []any) ([]T, error) {
	var out []T
	err := e.query(ctx, op, sql, args, func(rows database.Rows) error {
		var err error
		out, err = mapper.MapAllWith[T](e.mapper, rows)
		return err
	})
	return out, err
}

// SelectByID returns the T whose primary key equals id, or nil when no
// row matches.
func SelectByID[T any](ctx context.Context, e *Executor, id any) (*T, error) {
	stmt, err := e.builder.SelectByID(entityType[T](), id)
	if err != nil {
		return nil, err
	}
	return queryOne[T](ctx, e, "select by id", stmt.SQL, stmt.Args)
}

// SelectAll returns every row of T's table.
func SelectAll[T any](ctx context.Context, e *Executor) ([]T, error) {
	stmt, err := e.builder.SelectAll(entityType[T]())
	if err != nil {
		return nil, err
	}
	return queryList[T](ctx, e, "select all", stmt.SQL, stmt.Args)
}

// Count returns the number of rows in T's table.
func Count[T any](ctx context.Context, e *Executor) (int64, error) {
	stmt, err := e.builder.Count(entityType[T]())
	if err != nil {
		return 0, err
	}
	return scalarCount(ctx, e, stmt.SQL, stmt.Args)
}

// QueryOne renders template with params and maps at most one row.
func QueryOne[T any](ctx context.Context, e *Executor, template string, params any) (*T, error) {
	sql, args, err := e.template.Build(template, params)
	if err != nil {
		return nil, err
	}
	return queryOne[T](ctx, e, "query one", sql, args)
}

// QueryList renders template with params and maps every row.
func QueryList[T any](ctx context.Context, e *Executor, template string, params any) ([]T, error) {
	sql, args, err := e.template.Build(template, params)
	if err != nil {
		return nil, err
	}
	return queryList[T](ctx, e, "query list", sql, args)
}

// SimpleQueryOne runs sql with positional args and maps at most one row.
func SimpleQueryOne[T any](ctx context.Context, e *Executor, sql string, args ...any) (*T, error) {
	return queryOne[T](ctx, e, "query one", sql, args)
}

// SimpleQueryList runs sql with positional args and maps every row.
func SimpleQueryList[T any](ctx context.Context, e *Executor, sql string, args ...any) ([]T, error) {
	return queryList[T](ctx, e, "query list", sql, args)
}

func scalarCount(ctx context.Context, e *Executor, sql string, args []any) (int64, error) {
	n, err := queryOne[int64](ctx, e, "count", sql, args)
	if err != nil || n == nil {
		return 0, err
	}
	return *n, nil
}
