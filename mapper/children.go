package mapper

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/schema"
)

// accumulator groups the parent__field columns of one row by parent:
// prefix -> suffix -> value. It lives only while that row is mapped.
type accumulator map[string]map[string]any

func (a accumulator) add(name string, val any) {
	prefix, suffix, _ := strings.Cut(name, Delimiter)
	group, ok := a[prefix]
	if !ok {
		group = make(map[string]any)
		a[prefix] = group
	}
	group[suffix] = val
}

// relation finds the child field a column prefix refers to.
func relation(meta *schema.EntityMeta, prefix string) *schema.FieldMeta {
	snake := schema.ToSnakeCase(prefix)
	for _, f := range meta.Relations {
		if f.DBName == prefix || f.DBName == snake || f.Name == prefix || f.ParamName == prefix {
			return f
		}
	}
	return nil
}

// resolve builds every child named in acc and stores it into dst. It
// reports whether any non-null value reached a child. Pointer children whose
// columns are all null stay nil, as an unmatched outer join would leave them.
func (m *Mapper) resolve(meta *schema.EntityMeta, dst reflect.Value, acc accumulator) (bool, error) {
	filled := false
	for prefix, group := range acc {
		f := relation(meta, prefix)
		if f == nil {
			continue
		}

		childType := f.Type
		if childType.Kind() == reflect.Ptr {
			childType = childType.Elem()
		}
		childMeta, err := m.schema.Introspect(childType)
		if err != nil {
			return false, dberr.Wrap(dberr.KindReflectionAccess, "map", err, "child %s.%s", meta.Name, f.Name)
		}

		child := reflect.New(childType).Elem()
		set, err := m.fillChild(childMeta, child, group)
		if err != nil {
			return false, err
		}

		target := f.ValueOf(dst)
		if f.Type.Kind() == reflect.Ptr {
			if !set {
				continue
			}
			ptr := reflect.New(childType)
			ptr.Elem().Set(child)
			target.Set(ptr)
		} else {
			target.Set(child)
		}
		filled = filled || set
	}
	return filled, nil
}

// fillChild assigns the suffix columns of one group to child, grouping
// suffixes that carry a further delimiter for the next level down.
func (m *Mapper) fillChild(meta *schema.EntityMeta, child reflect.Value, group map[string]any) (bool, error) {
	set := false
	var nested accumulator
	for suffix, val := range group {
		if strings.Contains(suffix, Delimiter) {
			if nested == nil {
				nested = make(accumulator)
			}
			nested.add(suffix, val)
			continue
		}

		f := directField(meta, suffix)
		if f == nil {
			continue
		}
		if err := assignField(meta, f, child, suffix, val); err != nil {
			return false, err
		}
		if val != nil {
			set = true
		}
	}

	if len(nested) > 0 {
		deeper, err := m.resolve(meta, child, nested)
		if err != nil {
			return false, err
		}
		set = set || deeper
	}
	return set, nil
}
