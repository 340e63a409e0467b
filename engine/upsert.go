package engine

import (
	"context"
)

// Upsert inserts entity, or overwrites the clashing row's other columns
// when the insert conflicts on conflictColumns. It defaults to the
// primary key.
func (e *Executor) Upsert(ctx context.Context, entity any, conflictColumns ...string) (int64, error) {
	stmt, err := e.builder.Upsert(entity, false, conflictColumns...)
	if err != nil {
		return 0, err
	}
	query := stmt.SQL + e.dialect.UpsertClause(stmt.Conflict, stmt.Update)
	return e.exec(ctx, "upsert", query, stmt.Args)
}
