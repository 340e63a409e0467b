package schema

import (
	"database/sql/driver"
	"reflect"
	"sort"

	"github.com/Konsultn-Engineering/silence/dberr"
)

// Projection is the ordered field/column/value view of one entity.
type Projection struct {
	Meta    *EntityMeta // nil when the entity is a map
	Names   []string    // Go field names, or map keys
	Columns []string
	Values  []any
}

// Len returns the number of projected columns.
func (p *Projection) Len() int { return len(p.Columns) }

// ProjectFields lists the scalar fields of entity in declaration order with
// their current values. In selective mode fields holding a null are left
// out of every list. Maps project their keys in sorted order.
func (ctx *Context) ProjectFields(entity any, selective bool) (*Projection, error) {
	v, err := indirect(entity, "project")
	if err != nil {
		return nil, err
	}

	if v.Kind() == reflect.Map {
		return projectMap(v, selective)
	}

	meta, err := ctx.Introspect(v.Type())
	if err != nil {
		return nil, err
	}
	if len(meta.Fields) == 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "project", "%s declares no mapped fields", meta.Type)
	}

	p := &Projection{
		Meta:    meta,
		Names:   make([]string, 0, len(meta.Fields)),
		Columns: make([]string, 0, len(meta.Fields)),
		Values:  make([]any, 0, len(meta.Fields)),
	}
	for _, f := range meta.Fields {
		fv := f.ValueOf(v)
		if selective && IsNull(fv) {
			continue
		}
		p.Names = append(p.Names, f.Name)
		p.Columns = append(p.Columns, f.DBName)
		p.Values = append(p.Values, fv.Interface())
	}
	return p, nil
}

func projectMap(v reflect.Value, selective bool) (*Projection, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, dberr.New(dberr.KindTypeMismatch, "project", "map key must be a string, got %s", v.Type().Key())
	}
	if v.Len() == 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "project", "empty map")
	}

	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	p := &Projection{}
	for _, k := range keys {
		fv := v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))
		if selective && IsNull(fv) {
			continue
		}
		p.Names = append(p.Names, k)
		p.Columns = append(p.Columns, k)
		p.Values = append(p.Values, valueInterface(fv))
	}
	return p, nil
}

// IsNull reports whether v holds no value: a nil pointer, interface, map,
// slice or func, or a driver.Valuer reporting nil. Zero numbers and empty
// strings are values.
func IsNull(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return true
		}
	}
	if v.CanInterface() {
		if valuer, ok := v.Interface().(driver.Valuer); ok {
			val, err := valuer.Value()
			return err == nil && val == nil
		}
	}
	if v.Kind() == reflect.Interface {
		return IsNull(v.Elem())
	}
	return false
}

// ResolvePrimaryKey returns the primary key field of the entity's type.
func (ctx *Context) ResolvePrimaryKey(entity any) (*FieldMeta, error) {
	var t reflect.Type
	switch e := entity.(type) {
	case nil:
		return nil, dberr.New(dberr.KindEmptyInput, "primary key", "nil entity")
	case reflect.Type:
		t = e
	default:
		t = reflect.TypeOf(entity)
	}
	meta, err := ctx.Introspect(t)
	if err != nil {
		return nil, err
	}
	if meta.PrimaryKey == nil {
		return nil, dberr.New(dberr.KindEmptyInput, "primary key", "%s declares no mapped fields", meta.Type)
	}
	return meta.PrimaryKey, nil
}

// PrimaryKeyValue returns the key column and its current value.
func (ctx *Context) PrimaryKeyValue(entity any) (string, any, error) {
	v, err := indirect(entity, "primary key")
	if err != nil {
		return "", nil, err
	}
	pk, err := ctx.ResolvePrimaryKey(v.Type())
	if err != nil {
		return "", nil, err
	}
	return pk.DBName, pk.ValueOf(v).Interface(), nil
}

// ToParameterMap converts obj into a template parameter scope. A
// map[string]any is returned as is. Structs contribute every mapped field,
// nulls and relations included, keyed by parameter name.
func (ctx *Context) ToParameterMap(obj any) (map[string]any, error) {
	if obj == nil {
		return map[string]any{}, nil
	}
	if m, ok := obj.(map[string]any); ok {
		return m, nil
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return map[string]any{}, nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, dberr.New(dberr.KindTypeMismatch, "parameters", "map key must be a string, got %s", v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = valueInterface(iter.Value())
		}
		return out, nil

	case reflect.Struct:
		meta, err := ctx.Introspect(v.Type())
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(meta.Fields)+len(meta.Relations))
		for _, f := range meta.Fields {
			out[f.ParamName] = f.ValueOf(v).Interface()
		}
		for _, f := range meta.Relations {
			out[f.ParamName] = f.ValueOf(v).Interface()
		}
		return out, nil
	}

	return nil, dberr.New(dberr.KindTypeMismatch, "parameters", "cannot use %T as parameters", obj)
}

// FillGenerated sets every zero field that has a generator. entity must be
// a non-nil pointer to a struct; other values are left alone.
func (ctx *Context) FillGenerated(entity any) error {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	v = v.Elem()

	meta, err := ctx.Introspect(v.Type())
	if err != nil {
		return err
	}
	for _, f := range meta.Fields {
		if f.Generator == nil {
			continue
		}
		fv := f.ValueOf(v)
		if !fv.IsZero() {
			continue
		}
		id, err := f.Generator.Generate()
		if err != nil {
			return dberr.Wrap(dberr.KindReflectionAccess, "generate", err, "%s.%s", meta.Name, f.Name)
		}
		if err := Assign(fv, generatedValue(id, f.Type)); err != nil {
			return err
		}
	}
	return nil
}

func indirect(entity any, op string) (reflect.Value, error) {
	if entity == nil {
		return reflect.Value{}, dberr.New(dberr.KindEmptyInput, op, "nil entity")
	}
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, dberr.New(dberr.KindEmptyInput, op, "nil %s", v.Type())
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct && v.Kind() != reflect.Map {
		return reflect.Value{}, dberr.New(dberr.KindTypeMismatch, op, "%s is not a struct", v.Type())
	}
	return v, nil
}

func valueInterface(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

// ProjectFields projects entity with the default Context.
func ProjectFields(entity any, selective bool) (*Projection, error) {
	return defaultContext.ProjectFields(entity, selective)
}

// ResolvePrimaryKey resolves the key field with the default Context.
func ResolvePrimaryKey(entity any) (*FieldMeta, error) {
	return defaultContext.ResolvePrimaryKey(entity)
}

// ToParameterMap converts obj with the default Context.
func ToParameterMap(obj any) (map[string]any, error) {
	return defaultContext.ToParameterMap(obj)
}
