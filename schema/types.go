package schema

import (
	"reflect"
)

// EntityMeta is the resolved mapping of one struct type.
type EntityMeta struct {
	Type      reflect.Type
	Name      string
	TableName string

	// Fields are the scalar fields in declaration order; embedded structs
	// are flattened in place.
	Fields []*FieldMeta
	// Relations are struct-valued child fields filled from parent__field columns.
	Relations []*FieldMeta
	// PrimaryKey is the field tagged primary, or the first scalar field.
	PrimaryKey *FieldMeta

	FieldMap  map[string]*FieldMeta // Go field name -> FieldMeta
	ColumnMap map[string]*FieldMeta // column name -> FieldMeta
	ParamMap  map[string]*FieldMeta // lowerCamel parameter name -> FieldMeta

	HasCustomTableName bool
}

// Lookup finds a field by Go name, parameter name or column name, in that order.
func (m *EntityMeta) Lookup(name string) (*FieldMeta, bool) {
	if f, ok := m.FieldMap[name]; ok {
		return f, true
	}
	if f, ok := m.ParamMap[name]; ok {
		return f, true
	}
	f, ok := m.ColumnMap[name]
	return f, ok
}

// Columns returns the scalar column names in declaration order.
func (m *EntityMeta) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.DBName
	}
	return cols
}

// FieldMeta describes one mapped struct field.
type FieldMeta struct {
	Name      string // Go field name
	DBName    string // column name, or the column prefix for relations
	ParamName string // template parameter name (lowerCamel)
	Type      reflect.Type
	Index     []int
	Tag       *ParsedTag
	Primary   bool
	Relation  bool
	Generator IDGenerator
}

// ValueOf returns the field of the struct value v. Only value embeds are
// flattened, so the index path never crosses a pointer.
func (f *FieldMeta) ValueOf(v reflect.Value) reflect.Value {
	return v.FieldByIndex(f.Index)
}

// TableNamer overrides the derived table name of an entity.
type TableNamer interface {
	TableName() string
}
