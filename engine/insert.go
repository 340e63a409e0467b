package engine

import (
	"context"
	"reflect"

	"github.com/Konsultn-Engineering/silence/database"
	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/schema"
)

// Insert writes every mapped field of entity, nulls included.
func (e *Executor) Insert(ctx context.Context, entity any) (int64, error) {
	return e.insert(ctx, entity, false)
}

// InsertSelective writes only the fields of entity that are not null.
func (e *Executor) InsertSelective(ctx context.Context, entity any) (int64, error) {
	return e.insert(ctx, entity, true)
}

func (e *Executor) insert(ctx context.Context, entity any, selective bool) (int64, error) {
	stmt, err := e.builder.Insert(entity, selective)
	if err != nil {
		return 0, err
	}
	return e.exec(ctx, "insert", stmt.SQL, stmt.Args)
}

// InsertList writes every mapped field of each element of entities, a
// slice of structs or struct pointers, as one batch. Nulls are written.
func (e *Executor) InsertList(ctx context.Context, entities any) (int64, error) {
	return e.insertList(ctx, entities, false)
}

// InsertListSelective batches entities over the columns the first element
// holds non-null values for. Later elements are written through the same
// columns.
func (e *Executor) InsertListSelective(ctx context.Context, entities any) (int64, error) {
	return e.insertList(ctx, entities, true)
}

func (e *Executor) insertList(ctx context.Context, entities any, selective bool) (int64, error) {
	batch, err := e.builder.InsertList(entities, selective)
	if err != nil {
		return 0, err
	}
	return e.execBatch(ctx, "insert list", batch)
}

// InsertAndEchoID inserts entity, a pointer to a struct, and writes the
// key the database generated back into its primary key field.
func (e *Executor) InsertAndEchoID(ctx context.Context, entity any) (int64, error) {
	if err := e.insertAndEcho(ctx, entity); err != nil {
		return 0, err
	}
	return 1, nil
}

// InsertListAndEchoID inserts each element of entities and echoes its
// generated key. Elements of a []T are updated in place.
func (e *Executor) InsertListAndEchoID(ctx context.Context, entities any) (int64, error) {
	list := reflect.ValueOf(entities)
	for list.IsValid() && list.Kind() == reflect.Ptr && !list.IsNil() {
		list = list.Elem()
	}
	if !list.IsValid() || list.Kind() != reflect.Slice {
		return 0, dberr.New(dberr.KindTypeMismatch, "insert list", "%T is not a slice", entities)
	}
	if list.Len() == 0 {
		return 0, dberr.New(dberr.KindEmptyInput, "insert list", "no entities")
	}

	var n int64
	for i := 0; i < list.Len(); i++ {
		elem := list.Index(i)
		if elem.Kind() == reflect.Interface {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Ptr {
			if !elem.CanAddr() {
				return n, dberr.New(dberr.KindTypeMismatch, "insert list", "element %d of %T cannot be updated in place", i, entities)
			}
			elem = elem.Addr()
		}
		if err := e.insertAndEcho(ctx, elem.Interface()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (e *Executor) insertAndEcho(ctx context.Context, entity any) error {
	stmt, pk, err := e.builder.InsertGenerated(entity)
	if err != nil {
		return err
	}
	key := pk.ValueOf(reflect.ValueOf(entity).Elem())

	if e.dialect.SupportsReturning() {
		query := stmt.SQL + " returning " + pk.DBName
		return e.query(ctx, "insert echo", query, stmt.Args, func(rows database.Rows) error {
			if !rows.Next() {
				if err := rows.Err(); err != nil {
					return dberr.Wrap(dberr.KindDataAccess, "insert echo", err, "read key")
				}
				return dberr.New(dberr.KindDataAccess, "insert echo", "no key returned for %s", pk.DBName)
			}
			var id any
			if err := rows.Scan(&id); err != nil {
				return dberr.Wrap(dberr.KindDataAccess, "insert echo", err, "scan key")
			}
			return assignKey(key, pk, id)
		})
	}

	res, err := e.execResult(ctx, "insert echo", stmt.SQL, stmt.Args)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return dberr.Wrap(dberr.KindDataAccess, "insert echo", err, "last insert id")
	}
	return assignKey(key, pk, id)
}

func assignKey(dst reflect.Value, pk *schema.FieldMeta, id any) error {
	if err := schema.Assign(dst, id); err != nil {
		return dberr.Wrap(dberr.KindOf(err), "insert echo", err, "key %s", pk.Name)
	}
	return nil
}
