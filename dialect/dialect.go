// Package dialect holds the per-database differences the executor needs:
// placeholder style, identifier quoting and echo-id support.
package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
)

type Dialect interface {
	Name() string
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	// RenderValue prints v as a SQL literal. It is meant for logs and
	// previews; statements sent to a database keep their bindings.
	RenderValue(v any) string
	// SupportsReturning reports whether inserts can return generated keys
	// through a returning clause.
	SupportsReturning() bool
	// UpsertClause is appended to an insert so that a row clashing on
	// conflict has its update columns overwritten instead.
	UpsertClause(conflict, update []string) string
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx", "pg":
		return NewPostgresDialect(), nil
	case "mysql", "mariadb":
		return NewMySQLDialect(), nil
	case "tidb":
		return NewTiDBDialect(), nil
	}
	return nil, dberr.New(dberr.KindMalformedStatement, "dialect", "unknown dialect %q", name)
}

// Rebind rewrites each ? outside quoted text into the dialect's
// placeholder, numbering from 1.
func Rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" || strings.IndexByte(query, '?') < 0 {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			n++
			sb.WriteString(d.Placeholder(n))
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// renderValue prints the literal forms the dialects share. bytes renders
// []byte, which differs per dialect.
func renderValue(v any, bytes func([]byte) string) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return strconv.FormatFloat(reflect.ValueOf(val).Float(), 'f', -1, 64)
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05.000000") + "'"
	case []byte:
		return bytes(val)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return "NULL"
			}
			return renderValue(rv.Elem().Interface(), bytes)
		}
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

// Inline substitutes args into a ?-placeholder query for display.
func Inline(d Dialect, query string, args []any) string {
	var sb strings.Builder
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?' && n < len(args):
			sb.WriteString(d.RenderValue(args[n]))
			n++
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
