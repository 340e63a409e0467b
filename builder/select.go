package builder

import (
	"strconv"
	"strings"
)

// SelectBuilder assembles a single-table select. Columns default to *.
type SelectBuilder struct {
	table   string
	columns []string
	where   string
	args    []any
	orderBy string
	limit   *int
	offset  *int
}

func NewSelect(table string, columns ...string) *SelectBuilder {
	return &SelectBuilder{
		table:   table,
		columns: columns,
	}
}

func (b *SelectBuilder) Where(cond string, args ...any) *SelectBuilder {
	b.where = cond
	b.args = args
	return b
}

func (b *SelectBuilder) Order(order string) *SelectBuilder {
	b.orderBy = order
	return b
}

func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

func (b *SelectBuilder) Build() *Statement {
	var sb strings.Builder

	sb.WriteString("select ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ","))
	}
	sb.WriteString(" from ")
	sb.WriteString(b.table)

	if b.where != "" {
		sb.WriteString(" where ")
		sb.WriteString(b.where)
	}

	if b.orderBy != "" {
		sb.WriteString(" order by ")
		sb.WriteString(b.orderBy)
	}

	if b.limit != nil {
		sb.WriteString(" limit ")
		sb.WriteString(strconv.Itoa(*b.limit))
	}

	if b.offset != nil {
		sb.WriteString(" offset ")
		sb.WriteString(strconv.Itoa(*b.offset))
	}

	return &Statement{SQL: sb.String(), Args: b.args}
}
