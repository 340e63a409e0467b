// Package mapper turns result rows into structs. Columns named
// parent__field fill the struct-valued field parent, to any depth.
package mapper

import (
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/schema"
)

// Delimiter separates a child field prefix from the rest of a column name.
const Delimiter = "__"

// Rows is the cursor the mapper reads. *sql.Rows satisfies it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// Mapper resolves target types through a schema context.
type Mapper struct {
	schema *schema.Context
}

// New returns a Mapper using ctx, or the default schema context when nil.
func New(ctx *schema.Context) *Mapper {
	if ctx == nil {
		ctx = schema.Default()
	}
	return &Mapper{schema: ctx}
}

var defaultMapper = New(nil)

// Default returns the Mapper on the default schema context.
func Default() *Mapper { return defaultMapper }

// MapOne maps at most one row. No rows gives nil and no error; a second
// row is a cardinality error.
func MapOne[T any](rows Rows) (*T, error) {
	return MapOneWith[T](defaultMapper, rows)
}

// MapAll maps every remaining row.
func MapAll[T any](rows Rows) ([]T, error) {
	return MapAllWith[T](defaultMapper, rows)
}

// MapOneWith is MapOne using m.
func MapOneWith[T any](m *Mapper, rows Rows) (*T, error) {
	var result *T
	err := m.each(rows, reflect.TypeOf((*T)(nil)).Elem(), func(n int, v reflect.Value) error {
		if n > 0 {
			return dberr.New(dberr.KindCardinality, "map one", "expected one row, got more")
		}
		result = v.Addr().Interface().(*T)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MapAllWith is MapAll using m.
func MapAllWith[T any](m *Mapper, rows Rows) ([]T, error) {
	results := make([]T, 0)
	err := m.each(rows, reflect.TypeOf((*T)(nil)).Elem(), func(_ int, v reflect.Value) error {
		results = append(results, v.Interface().(T))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// column is where one result column lands: a direct field, a child path,
// or nowhere.
type column struct {
	name  string
	field *schema.FieldMeta
	child bool
}

// plan is the per-call column layout for one target type.
type plan struct {
	target reflect.Type // T itself
	elem   reflect.Type // T, or the struct T points to
	meta   *schema.EntityMeta
	scalar bool
	cols   []column
}

func (m *Mapper) newPlan(target reflect.Type, names []string) (*plan, error) {
	p := &plan{target: target, elem: target}
	if target.Kind() == reflect.Ptr {
		p.elem = target.Elem()
	}

	if isScalar(p.elem) {
		p.scalar = true
		if len(names) == 0 {
			return nil, dberr.New(dberr.KindDataAccess, "map", "result has no columns")
		}
		return p, nil
	}

	meta, err := m.schema.Introspect(p.elem)
	if err != nil {
		return nil, err
	}
	p.meta = meta
	p.cols = make([]column, len(names))
	for i, name := range names {
		p.cols[i] = column{name: name}
		if f := directField(meta, name); f != nil {
			p.cols[i].field = f
		} else if strings.Contains(name, Delimiter) {
			p.cols[i].child = true
		}
	}
	return p, nil
}

// isScalar reports whether t is read from the first column rather than
// mapped field by field.
func isScalar(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t == timeType {
		return true
	}
	return reflect.PointerTo(t).Implements(scannerType)
}

// directField matches a column against scalar fields: by column name, then
// by the snake_case form of the label, then by Go or parameter name.
func directField(meta *schema.EntityMeta, name string) *schema.FieldMeta {
	if f, ok := meta.ColumnMap[name]; ok && !f.Relation {
		return f
	}
	if strings.Contains(name, Delimiter) {
		return nil
	}
	if f, ok := meta.ColumnMap[schema.ToSnakeCase(name)]; ok && !f.Relation {
		return f
	}
	if f, ok := meta.Lookup(name); ok && !f.Relation {
		return f
	}
	return nil
}

// each scans every row and hands the mapped value to fn with its index.
func (m *Mapper) each(rows Rows, target reflect.Type, fn func(int, reflect.Value) error) error {
	if rows == nil {
		return dberr.New(dberr.KindEmptyInput, "map", "nil rows")
	}
	names, err := rows.Columns()
	if err != nil {
		return dberr.Wrap(dberr.KindDataAccess, "map", err, "read columns")
	}
	p, err := m.newPlan(target, names)
	if err != nil {
		return err
	}

	buf := getBuffers(len(names))
	defer putBuffers(buf)

	for n := 0; rows.Next(); n++ {
		if err := rows.Scan(buf.ptrs...); err != nil {
			return dberr.Wrap(dberr.KindDataAccess, "map", err, "scan row %d", n)
		}
		v, err := m.mapRow(p, buf.vals)
		if err != nil {
			return err
		}
		if err := fn(n, v); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return dberr.Wrap(dberr.KindDataAccess, "map", err, "iterate rows")
	}
	return nil
}

// mapRow builds one addressable value of p.target from vals.
func (m *Mapper) mapRow(p *plan, vals []any) (reflect.Value, error) {
	out := reflect.New(p.target).Elem()
	dst := out
	if p.target.Kind() == reflect.Ptr {
		out.Set(reflect.New(p.elem))
		dst = out.Elem()
	}

	if p.scalar {
		if err := schema.Assign(dst, vals[0]); err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	}

	var children accumulator
	for i, col := range p.cols {
		switch {
		case col.field != nil:
			if err := assignField(p.meta, col.field, dst, col.name, vals[i]); err != nil {
				return reflect.Value{}, err
			}
		case col.child:
			if children == nil {
				children = make(accumulator)
			}
			children.add(col.name, vals[i])
		}
	}

	if len(children) > 0 {
		if _, err := m.resolve(p.meta, dst, children); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

func assignField(meta *schema.EntityMeta, f *schema.FieldMeta, dst reflect.Value, col string, val any) error {
	if err := schema.Assign(f.ValueOf(dst), val); err != nil {
		return dberr.Wrap(dberr.KindOf(err), "map", err, "column %s into %s.%s", col, meta.Name, f.Name)
	}
	return nil
}
