package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

type Postgres struct{}

func NewPostgresDialect() Dialect {
	return &Postgres{}
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) QuoteIdentifier(name string) string {
	return `"` + name + `"`
}

func (p Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) RenderValue(v any) string {
	return renderValue(v, func(b []byte) string {
		return fmt.Sprintf("'\\x%x'", b) // hex bytea literal
	})
}

func (p Postgres) SupportsReturning() bool {
	return true
}

func (p Postgres) UpsertClause(conflict, update []string) string {
	var sb strings.Builder
	sb.WriteString(" on conflict (")
	sb.WriteString(strings.Join(conflict, ","))
	sb.WriteByte(')')
	if len(update) == 0 {
		sb.WriteString(" do nothing")
		return sb.String()
	}
	sb.WriteString(" do update set ")
	for i, col := range update {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(col + "=excluded." + col)
	}
	return sb.String()
}
