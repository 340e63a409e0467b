package schema

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// isRelationType reports whether a field of type t holds a child entity
// rather than a column value. time.Time and types that scan themselves or
// produce driver values stay scalar.
func isRelationType(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	if t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return false
	}
	return true
}

// buildMeta resolves the fields, table name and primary key of the struct t.
func (ctx *Context) buildMeta(t reflect.Type) (*EntityMeta, error) {
	meta := &EntityMeta{
		Type:      t,
		Name:      t.Name(),
		FieldMap:  make(map[string]*FieldMeta, t.NumField()),
		ColumnMap: make(map[string]*FieldMeta, t.NumField()),
		ParamMap:  make(map[string]*FieldMeta, t.NumField()),
	}

	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		meta.TableName = tn.TableName()
		meta.HasCustomTableName = true
	} else {
		meta.TableName = ctx.namingStrategy.TableName(t.Name())
	}

	if err := ctx.collectFields(meta, t, nil); err != nil {
		return nil, err
	}

	for _, f := range meta.Fields {
		if f.Primary {
			meta.PrimaryKey = f
			break
		}
	}
	if meta.PrimaryKey == nil && len(meta.Fields) > 0 {
		meta.PrimaryKey = meta.Fields[0]
		meta.Fields[0].Primary = true
	}

	return meta, nil
}

func (ctx *Context) collectFields(meta *EntityMeta, t reflect.Type, prefix []int) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		index := make([]int, 0, len(prefix)+1)
		index = append(append(index, prefix...), i)

		// Value embeds without a tag are flattened into the parent.
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get(ctx.tagName) == "" && isRelationType(f.Type) {
			if err := ctx.collectFields(meta, f.Type, index); err != nil {
				return err
			}
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Ptr {
			continue
		}

		tag, err := ctx.parser.ParseTag(f.Name, f.Tag)
		if err != nil {
			return dberr.Wrap(dberr.KindReflectionAccess, "introspect", err, "%s", t)
		}
		if tag.Skip {
			continue
		}

		fm := &FieldMeta{
			Name:      f.Name,
			DBName:    tag.ColumnName,
			ParamName: ToCamelCase(f.Name),
			Type:      f.Type,
			Index:     index,
			Tag:       tag,
			Primary:   tag.Primary,
			Relation:  isRelationType(f.Type),
		}
		if tag.Generator != "" {
			gen, ok := ctx.generators.Get(tag.Generator)
			if !ok {
				return dberr.New(dberr.KindReflectionAccess, "introspect", "%s.%s: unknown generator %q", t, f.Name, tag.Generator)
			}
			fm.Generator = gen
		}

		if _, dup := meta.ColumnMap[fm.DBName]; dup {
			return dberr.New(dberr.KindReflectionAccess, "introspect", "%s: column %q mapped twice", t, fm.DBName)
		}

		if fm.Relation {
			fm.Primary = false
			meta.Relations = append(meta.Relations, fm)
		} else {
			meta.Fields = append(meta.Fields, fm)
		}
		meta.FieldMap[fm.Name] = fm
		meta.ColumnMap[fm.DBName] = fm
		meta.ParamMap[fm.ParamName] = fm
	}
	return nil
}
