package engine

import (
	"context"
)

// DeleteByID deletes the row named by the primary key of entity.
func (e *Executor) DeleteByID(ctx context.Context, entity any) (int64, error) {
	_, id, err := e.builder.Schema().PrimaryKeyValue(entity)
	if err != nil {
		return 0, err
	}
	stmt, err := e.builder.DeleteByID(entity, id)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, "delete", stmt.SQL, stmt.Args)
}
