package engine

import (
	"context"
)

// UpdateByID sets every non-key column of entity, nulls included, on the
// row its primary key names.
func (e *Executor) UpdateByID(ctx context.Context, entity any) (int64, error) {
	return e.updateByID(ctx, entity, false)
}

// UpdateByIDSelective sets only the non-null fields of entity.
func (e *Executor) UpdateByIDSelective(ctx context.Context, entity any) (int64, error) {
	return e.updateByID(ctx, entity, true)
}

func (e *Executor) updateByID(ctx context.Context, entity any, selective bool) (int64, error) {
	stmt, err := e.builder.UpdateByID(entity, selective)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, "update", stmt.SQL, stmt.Args)
}

// Exec renders template with params and executes the result.
func (e *Executor) Exec(ctx context.Context, template string, params any) (int64, error) {
	query, args, err := e.template.Build(template, params)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, "exec", query, args)
}

// SimpleExec executes sql with positional args. The text is not treated
// as a template.
func (e *Executor) SimpleExec(ctx context.Context, sql string, args ...any) (int64, error) {
	return e.exec(ctx, "exec", sql, args)
}
