package dialect

import (
	"fmt"
	"strings"
)

type MySQL struct{}

func NewMySQLDialect() Dialect {
	return &MySQL{}
}

func (m MySQL) Name() string { return "mysql" }

func (m MySQL) QuoteIdentifier(name string) string {
	return "`" + name + "`"
}

func (m MySQL) Placeholder(n int) string {
	return "?"
}

func (m MySQL) RenderValue(v any) string {
	return renderValue(v, func(b []byte) string {
		return fmt.Sprintf("X'%x'", b)
	})
}

// SupportsReturning is false; generated keys come from LastInsertId.
func (m MySQL) SupportsReturning() bool {
	return false
}

// UpsertClause ignores conflict columns; MySQL resolves clashes on any
// unique key. With nothing to update the first conflict column is set to
// itself, which keeps the existing row.
func (m MySQL) UpsertClause(conflict, update []string) string {
	var sb strings.Builder
	sb.WriteString(" on duplicate key update ")
	if len(update) == 0 && len(conflict) > 0 {
		sb.WriteString(conflict[0] + "=" + conflict[0])
		return sb.String()
	}
	for i, col := range update {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(col + "=values(" + col + ")")
	}
	return sb.String()
}
