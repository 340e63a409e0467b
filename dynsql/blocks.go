package dynsql

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/utils"
)

var leadingConjunction = regexp.MustCompile(`(?i)^(and|or)\b`)

// ifBlock renders "cond: body". The body is kept verbatim, leading blanks
// included, when the condition holds.
func (r *render) ifBlock(out *strings.Builder, inner string, sc *scope) error {
	colon := utils.IndexUnquoted(inner, ':')
	if colon < 0 {
		return dberr.New(dberr.KindMalformedStatement, "if", "missing ':' after condition in %q", inner)
	}
	expr := strings.TrimSpace(inner[:colon])
	if expr == "" {
		return dberr.New(dberr.KindMalformedStatement, "if", "empty condition in %q", inner)
	}

	cond, err := r.engine.condition(expr)
	if err != nil {
		return err
	}

	env := make(map[string]any, len(cond.idents))
	for _, name := range cond.idents {
		v, found := sc.lookup(name)
		if !found && r.engine.strictConditions {
			return dberr.New(dberr.KindUnknownParameter, "if", "no parameter named %q", name)
		}
		env[name] = v
	}

	result, err := cond.root.eval(env)
	if err != nil {
		return err
	}
	ok, err := truth(result)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	body, err := r.build(inner[colon+1:], sc)
	if err != nil {
		return err
	}
	out.WriteString(body)
	return nil
}

// whereBlock renders its body and, when anything is left, prefixes it with
// "where" after dropping one leading and/or.
func (r *render) whereBlock(out *strings.Builder, inner string, sc *scope) error {
	body, err := r.build(inner, sc)
	if err != nil {
		return err
	}

	body = strings.TrimSpace(body)
	if loc := leadingConjunction.FindStringIndex(body); loc != nil {
		body = strings.TrimSpace(body[loc[1]:])
	}
	if body == "" {
		return nil
	}

	out.WriteString("where ")
	out.WriteString(body)
	return nil
}

type foreachAttrs struct {
	open, close, sep string
	item, collection string
}

func parseForeachAttrs(text string) (*foreachAttrs, error) {
	values := make(map[string]string, 5)
	for _, part := range utils.SplitUnquoted(text, ',') {
		if strings.TrimSpace(part) == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, dberr.New(dberr.KindMalformedStatement, "foreach", "attribute %q is not key=value", strings.TrimSpace(part))
		}
		switch key {
		case "o", "c", "s", "i", "v":
		default:
			return nil, dberr.New(dberr.KindMalformedStatement, "foreach", "unknown attribute %q", key)
		}
		if _, dup := values[key]; dup {
			return nil, dberr.New(dberr.KindMalformedStatement, "foreach", "attribute %q given twice", key)
		}
		values[key] = utils.Unquote(value)
	}

	for _, key := range []string{"o", "c", "s", "i", "v"} {
		if _, ok := values[key]; !ok {
			return nil, dberr.New(dberr.KindMalformedStatement, "foreach", "attribute %q is required", key)
		}
	}
	if values["i"] == "" || values["v"] == "" {
		return nil, dberr.New(dberr.KindMalformedStatement, "foreach", "attributes i and v must name parameters")
	}

	return &foreachAttrs{
		open:       values["o"],
		close:      values["c"],
		sep:        values["s"],
		item:       values["i"],
		collection: values["v"],
	}, nil
}

// foreachBlock renders the body once per element of the collection. Each
// element result is trimmed; an empty collection renders open+close.
func (r *render) foreachBlock(out *strings.Builder, inner string, sc *scope) error {
	colon := utils.IndexUnquoted(inner, ':')
	if colon < 0 {
		return dberr.New(dberr.KindMalformedStatement, "foreach", "missing ':' after attributes in %q", inner)
	}
	attrs, err := parseForeachAttrs(inner[:colon])
	if err != nil {
		return err
	}
	body := inner[colon+1:]

	collection, found := sc.lookup(attrs.collection)
	if !found {
		return dberr.New(dberr.KindUnknownParameter, "foreach", "no parameter named %q", attrs.collection)
	}
	items, err := sequence(attrs.collection, collection)
	if err != nil {
		return err
	}

	out.WriteString(attrs.open)
	if items.IsValid() && items.Len() > 0 {
		child := sc.child()
		for i := 0; i < items.Len(); i++ {
			child.vars[attrs.item] = items.Index(i).Interface()
			part, err := r.build(body, child)
			if err != nil {
				return err
			}
			if i > 0 {
				out.WriteString(attrs.sep)
			}
			out.WriteString(strings.TrimSpace(part))
		}
	}
	out.WriteString(attrs.close)
	return nil
}

// sequence checks that v can be iterated. A nil slice is an empty sequence;
// an untyped nil, a string, []byte or a map is not a collection.
func sequence(name string, v any) (reflect.Value, error) {
	mismatch := func() error {
		return dberr.New(dberr.KindTypeMismatch, "foreach", "parameter %q is %T, not a collection", name, v)
	}
	if v == nil {
		return reflect.Value{}, mismatch()
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, mismatch()
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return reflect.Value{}, mismatch()
		}
		return rv, nil
	}
	return reflect.Value{}, mismatch()
}
