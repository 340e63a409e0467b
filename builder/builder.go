// Package builder emits insert, update, delete and select statements for
// mapped entities. Statements use ? placeholders; nothing is executed here.
package builder

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/schema"
)

// Statement is SQL text with its bound values in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

// BatchStatement is one SQL text executed once per row of values.
type BatchStatement struct {
	SQL  string
	Rows [][]any
}

// Builder derives statements from entity metadata.
type Builder struct {
	schema *schema.Context
}

// New returns a Builder reading metadata from ctx, or from the default
// schema context when ctx is nil.
func New(ctx *schema.Context) *Builder {
	if ctx == nil {
		ctx = schema.Default()
	}
	return &Builder{schema: ctx}
}

var defaultBuilder = New(nil)

// Default returns the Builder bound to the default schema context.
func Default() *Builder { return defaultBuilder }

// Schema returns the schema context the Builder reads from.
func (b *Builder) Schema() *schema.Context { return b.schema }

// metaOf accepts a reflect.Type, a struct value or a pointer to one.
func (b *Builder) metaOf(entity any, op string) (*schema.EntityMeta, error) {
	switch e := entity.(type) {
	case nil:
		return nil, dberr.New(dberr.KindEmptyInput, op, "nil entity")
	case reflect.Type:
		return b.schema.Introspect(e)
	}
	return b.schema.Meta(entity)
}

// Insert builds an insert of entity into its table. Zero fields that carry
// a generator are filled first when entity is a pointer.
func (b *Builder) Insert(entity any, selective bool) (*Statement, error) {
	meta, err := b.metaOf(entity, "insert")
	if err != nil {
		return nil, err
	}
	return b.InsertInto(meta.TableName, entity, selective)
}

// InsertInto builds an insert of entity, a struct or a map with string
// keys, into table.
func (b *Builder) InsertInto(table string, entity any, selective bool) (*Statement, error) {
	if err := b.schema.FillGenerated(entity); err != nil {
		return nil, err
	}
	p, err := b.schema.ProjectFields(entity, selective)
	if err != nil {
		return nil, err
	}
	if p.Len() == 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "insert", "every field of %s is null", table)
	}
	return &Statement{SQL: insertSQL(table, p.Columns), Args: p.Values}, nil
}

// InsertGenerated builds a selective insert for an entity whose key the
// database assigns. A zero primary key is left out of the column list.
// The key field is returned so the caller can write the generated value
// back.
func (b *Builder) InsertGenerated(entity any) (*Statement, *schema.FieldMeta, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, nil, dberr.New(dberr.KindTypeMismatch, "insert", "%T is not a pointer to a struct", entity)
	}
	if err := b.schema.FillGenerated(entity); err != nil {
		return nil, nil, err
	}
	p, err := b.schema.ProjectFields(entity, true)
	if err != nil {
		return nil, nil, err
	}
	pk := p.Meta.PrimaryKey

	columns := make([]string, 0, p.Len())
	args := make([]any, 0, p.Len())
	for i, name := range p.Names {
		if name == pk.Name && pk.ValueOf(v.Elem()).IsZero() {
			continue
		}
		columns = append(columns, p.Columns[i])
		args = append(args, p.Values[i])
	}
	if len(columns) == 0 {
		return nil, nil, dberr.New(dberr.KindEmptyInput, "insert", "every field of %s is null", p.Meta.TableName)
	}
	return &Statement{SQL: insertSQL(p.Meta.TableName, columns), Args: args}, pk, nil
}

func insertSQL(table string, columns []string) string {
	var sb strings.Builder
	sb.WriteString("insert into ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ","))
	sb.WriteString(") values (")
	for i := range columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('?')
	}
	sb.WriteByte(')')
	return sb.String()
}

// InsertList builds one insert for a slice of entities. The column list
// comes from the first entity; every other entity is read through the same
// columns, so selective mode only affects which columns the first one has.
func (b *Builder) InsertList(entities any, selective bool) (*BatchStatement, error) {
	list := reflect.ValueOf(entities)
	for list.IsValid() && list.Kind() == reflect.Ptr && !list.IsNil() {
		list = list.Elem()
	}
	if !list.IsValid() || (list.Kind() != reflect.Slice && list.Kind() != reflect.Array) {
		return nil, dberr.New(dberr.KindTypeMismatch, "insert list", "%T is not a slice", entities)
	}
	if list.Len() == 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "insert list", "no entities")
	}

	batch := &BatchStatement{Rows: make([][]any, 0, list.Len())}
	var first *schema.Projection
	for i := 0; i < list.Len(); i++ {
		elem := list.Index(i)
		if err := b.schema.FillGenerated(addressable(elem)); err != nil {
			return nil, err
		}

		if first == nil {
			p, err := b.schema.ProjectFields(elem.Interface(), selective)
			if err != nil {
				return nil, err
			}
			if p.Meta == nil {
				return nil, dberr.New(dberr.KindTypeMismatch, "insert list", "elements must be structs, got %s", elem.Type())
			}
			if p.Len() == 0 {
				return nil, dberr.New(dberr.KindEmptyInput, "insert list", "every field of the first %s is null", p.Meta.Name)
			}
			first = p
			batch.SQL = insertSQL(p.Meta.TableName, p.Columns)
			batch.Rows = append(batch.Rows, p.Values)
			continue
		}

		row, err := b.valuesFor(first, elem)
		if err != nil {
			return nil, err
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

func (b *Builder) valuesFor(p *schema.Projection, elem reflect.Value) ([]any, error) {
	for elem.Kind() == reflect.Ptr || elem.Kind() == reflect.Interface {
		if elem.IsNil() {
			return nil, dberr.New(dberr.KindEmptyInput, "insert list", "nil element")
		}
		elem = elem.Elem()
	}
	if elem.Type() != p.Meta.Type {
		return nil, dberr.New(dberr.KindTypeMismatch, "insert list", "mixed element types %s and %s", p.Meta.Type, elem.Type())
	}

	row := make([]any, len(p.Names))
	for i, name := range p.Names {
		row[i] = p.Meta.FieldMap[name].ValueOf(elem).Interface()
	}
	return row, nil
}

// addressable returns a pointer to elem when one can be taken, so that
// generated keys land in the caller's slice.
func addressable(elem reflect.Value) any {
	if elem.Kind() == reflect.Ptr || elem.Kind() == reflect.Interface {
		return elem.Interface()
	}
	if elem.CanAddr() {
		return elem.Addr().Interface()
	}
	return elem.Interface()
}

// UpdateByID builds an update of every non-key column, keyed by the
// entity's current primary key value, which is bound last.
func (b *Builder) UpdateByID(entity any, selective bool) (*Statement, error) {
	p, err := b.schema.ProjectFields(entity, selective)
	if err != nil {
		return nil, err
	}
	if p.Meta == nil {
		return nil, dberr.New(dberr.KindTypeMismatch, "update", "%T is not a struct", entity)
	}
	keyCol, keyVal, err := b.schema.PrimaryKeyValue(entity)
	if err != nil {
		return nil, err
	}
	if schema.IsNull(reflect.ValueOf(keyVal)) {
		return nil, dberr.New(dberr.KindEmptyInput, "update", "%s primary key %s is null", p.Meta.Name, keyCol)
	}

	var sb strings.Builder
	sb.WriteString("update ")
	sb.WriteString(p.Meta.TableName)
	sb.WriteString(" set ")

	args := make([]any, 0, p.Len())
	for i, col := range p.Columns {
		if col == keyCol {
			continue
		}
		if len(args) > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(col)
		sb.WriteString("=?")
		args = append(args, p.Values[i])
	}
	if len(args) == 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "update", "%s has no columns to set", p.Meta.Name)
	}

	sb.WriteString(" where ")
	sb.WriteString(keyCol)
	sb.WriteString(" = ?")
	return &Statement{SQL: sb.String(), Args: append(args, keyVal)}, nil
}

// DeleteByID builds a delete of the row whose key equals id. entity only
// names the type and may be a zero value or a reflect.Type.
func (b *Builder) DeleteByID(entity any, id any) (*Statement, error) {
	meta, err := b.keyed(entity, id, "delete")
	if err != nil {
		return nil, err
	}
	return &Statement{
		SQL:  "delete from " + meta.TableName + " where " + meta.PrimaryKey.DBName + " = ?",
		Args: []any{id},
	}, nil
}

// SelectByID builds a select of the row whose key equals id.
func (b *Builder) SelectByID(entity any, id any) (*Statement, error) {
	meta, err := b.keyed(entity, id, "select")
	if err != nil {
		return nil, err
	}
	return NewSelect(meta.TableName).Where(meta.PrimaryKey.DBName+" = ?", id).Build(), nil
}

// SelectAll builds a select of every row of the entity's table.
func (b *Builder) SelectAll(entity any) (*Statement, error) {
	meta, err := b.metaOf(entity, "select")
	if err != nil {
		return nil, err
	}
	return NewSelect(meta.TableName).Build(), nil
}

// Count builds a count of every row of the entity's table.
func (b *Builder) Count(entity any) (*Statement, error) {
	meta, err := b.metaOf(entity, "count")
	if err != nil {
		return nil, err
	}
	return NewSelect(meta.TableName, "count(*)").Build(), nil
}

func (b *Builder) keyed(entity, id any, op string) (*schema.EntityMeta, error) {
	meta, err := b.metaOf(entity, op)
	if err != nil {
		return nil, err
	}
	if meta.PrimaryKey == nil {
		return nil, dberr.New(dberr.KindEmptyInput, op, "%s declares no mapped fields", meta.Name)
	}
	if schema.IsNull(reflect.ValueOf(id)) {
		return nil, dberr.New(dberr.KindEmptyInput, op, "nil key for %s", meta.Name)
	}
	return meta, nil
}

// CountOf wraps sql in a row count.
func CountOf(sql string) string {
	return "select count(*) from (" + sql + ") t"
}

// Paginate appends limit and offset for page num (1-based) of size rows.
// Page numbers below one are treated as the first page.
func Paginate(sql string, num, size int) string {
	if num < 1 {
		num = 1
	}
	return sql + " limit " + strconv.Itoa(size) + " offset " + strconv.Itoa((num-1)*size)
}

// Insert builds an insert with the default Builder.
func Insert(entity any, selective bool) (*Statement, error) {
	return defaultBuilder.Insert(entity, selective)
}

// InsertList builds a batch insert with the default Builder.
func InsertList(entities any, selective bool) (*BatchStatement, error) {
	return defaultBuilder.InsertList(entities, selective)
}

// UpdateByID builds an update with the default Builder.
func UpdateByID(entity any, selective bool) (*Statement, error) {
	return defaultBuilder.UpdateByID(entity, selective)
}

// DeleteByID builds a delete with the default Builder.
func DeleteByID(entity any, id any) (*Statement, error) {
	return defaultBuilder.DeleteByID(entity, id)
}

// SelectByID builds a keyed select with the default Builder.
func SelectByID(entity any, id any) (*Statement, error) {
	return defaultBuilder.SelectByID(entity, id)
}

// UpsertStatement is an insert plus the columns a dialect needs to turn
// it into an upsert.
type UpsertStatement struct {
	Statement
	Conflict []string
	Update   []string
}

// Upsert builds an insert of entity whose clashes on conflict overwrite
// every other inserted column. conflict defaults to the primary key.
func (b *Builder) Upsert(entity any, selective bool, conflict ...string) (*UpsertStatement, error) {
	stmt, err := b.Insert(entity, selective)
	if err != nil {
		return nil, err
	}
	p, err := b.schema.ProjectFields(entity, selective)
	if err != nil {
		return nil, err
	}
	if p.Meta == nil {
		return nil, dberr.New(dberr.KindTypeMismatch, "upsert", "%T is not a struct", entity)
	}
	if len(conflict) == 0 {
		conflict = []string{p.Meta.PrimaryKey.DBName}
	}

	skip := make(map[string]struct{}, len(conflict))
	for _, col := range conflict {
		if _, ok := p.Meta.ColumnMap[col]; !ok {
			return nil, dberr.New(dberr.KindUnknownParameter, "upsert", "unknown column name: %s", col)
		}
		skip[col] = struct{}{}
	}

	update := make([]string, 0, p.Len())
	for _, col := range p.Columns {
		if _, ok := skip[col]; !ok {
			update = append(update, col)
		}
	}
	return &UpsertStatement{Statement: *stmt, Conflict: conflict, Update: update}, nil
}
