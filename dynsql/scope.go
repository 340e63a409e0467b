package dynsql

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/silence/schema"
)

// scope is the set of named values visible while building one template.
// Foreach bodies get a copy, so item bindings never reach the caller's map.
type scope struct {
	vars   map[string]any
	schema *schema.Context
}

// child returns a scope sharing nothing mutable with s.
func (s *scope) child() *scope {
	vars := make(map[string]any, len(s.vars)+1)
	for k, v := range s.vars {
		vars[k] = v
	}
	return &scope{vars: vars, schema: s.schema}
}

// lookup resolves a dotted path. Walking through a nil value yields nil;
// a segment missing from a map or struct reports found=false.
func (s *scope) lookup(path string) (any, bool) {
	name, rest, dotted := strings.Cut(path, ".")
	current, ok := s.vars[name]
	if !ok {
		return nil, false
	}

	for dotted {
		name, rest, dotted = strings.Cut(rest, ".")
		current, ok = s.member(current, name)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func (s *scope) member(v any, name string) (any, bool) {
	if v == nil {
		return nil, true
	}
	if m, ok := v.(map[string]any); ok {
		val, found := m[name]
		return val, found
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return nil, false
		}
		return val.Interface(), true

	case reflect.Struct:
		if meta, err := s.schema.Introspect(rv.Type()); err == nil {
			if f, ok := meta.Lookup(name); ok {
				return f.ValueOf(rv).Interface(), true
			}
		}
		// Fields hidden from the mapping are still addressable by Go name.
		if sf, ok := rv.Type().FieldByName(name); ok && sf.IsExported() {
			fv, err := rv.FieldByIndexErr(sf.Index)
			if err != nil {
				return nil, true
			}
			return fv.Interface(), true
		}
	}
	return nil, false
}
