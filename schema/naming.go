package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

// pluralizeClient is shared; the pluralize client is safe for concurrent reads.
var pluralizeClient = pluralizer.NewClient()

// =========================================================================
// Core Interfaces
// =========================================================================

// NamingStrategy converts Go identifiers into database table and column names.
type NamingStrategy interface {
	ColumnNamingStrategy
	TableNamingStrategy
}

// ColumnNamingStrategy defines how Go field names are converted to column names.
type ColumnNamingStrategy interface {
	ColumnName(fieldName string) string
}

// TableNamingStrategy defines how Go struct names are converted to table names.
type TableNamingStrategy interface {
	TableName(structName string) string
	IsPlural() bool
}

// =========================================================================
// Column Naming Strategies
// =========================================================================

// ColumnNamingType represents different column naming conventions.
type ColumnNamingType int

const (
	ColumnSnakeCase  ColumnNamingType = iota // user_id, first_name, created_at
	ColumnCamelCase                          // userId, firstName, createdAt
	ColumnPascalCase                         // UserId, FirstName, CreatedAt
)

type columnNamingStrategy struct {
	namingType ColumnNamingType
}

// NewColumnNamingStrategy creates a new column naming strategy.
func NewColumnNamingStrategy(namingType ColumnNamingType) ColumnNamingStrategy {
	return &columnNamingStrategy{namingType: namingType}
}

func (c *columnNamingStrategy) ColumnName(fieldName string) string {
	switch c.namingType {
	case ColumnCamelCase:
		return ToCamelCase(fieldName)
	case ColumnPascalCase:
		return ToPascalCase(fieldName)
	default:
		return ToSnakeCase(fieldName)
	}
}

// =========================================================================
// Table Naming Strategies
// =========================================================================

// TableNamingType represents different table naming conventions.
type TableNamingType int

const (
	TableSnakeCaseSingular TableNamingType = iota // user, blog_post
	TableSnakeCasePlural                          // users, blog_posts
	TableCamelCaseSingular                        // user, blogPost
	TableCamelCasePlural                          // users, blogPosts
)

type tableNamingStrategy struct {
	namingType TableNamingType
}

// NewTableNamingStrategy creates a new table naming strategy.
func NewTableNamingStrategy(namingType TableNamingType) TableNamingStrategy {
	return &tableNamingStrategy{namingType: namingType}
}

func (t *tableNamingStrategy) TableName(structName string) string {
	switch t.namingType {
	case TableSnakeCasePlural:
		return pluralize(ToSnakeCase(structName))
	case TableCamelCaseSingular:
		return ToCamelCase(structName)
	case TableCamelCasePlural:
		return pluralize(ToCamelCase(structName))
	default:
		return ToSnakeCase(structName)
	}
}

func (t *tableNamingStrategy) IsPlural() bool {
	return t.namingType == TableSnakeCasePlural || t.namingType == TableCamelCasePlural
}

// combinedNamingStrategy glues a column and a table strategy together.
type combinedNamingStrategy struct {
	ColumnNamingStrategy
	TableNamingStrategy
}

// NewNamingStrategy creates a complete naming strategy.
func NewNamingStrategy(columns ColumnNamingStrategy, tables TableNamingStrategy) NamingStrategy {
	return &combinedNamingStrategy{ColumnNamingStrategy: columns, TableNamingStrategy: tables}
}

// DefaultNamingStrategy maps FirstName to first_name and UserAccount to user_account.
func DefaultNamingStrategy() NamingStrategy {
	return NewNamingStrategy(
		NewColumnNamingStrategy(ColumnSnakeCase),
		NewTableNamingStrategy(TableSnakeCaseSingular),
	)
}

// PluralNamingStrategy keeps snake_case columns and pluralizes table names.
func PluralNamingStrategy() NamingStrategy {
	return NewNamingStrategy(
		NewColumnNamingStrategy(ColumnSnakeCase),
		NewTableNamingStrategy(TableSnakeCasePlural),
	)
}

// =========================================================================
// Core Conversion Functions
// =========================================================================

// ToSnakeCase converts camelCase, PascalCase and acronym-heavy names to
// snake_case. Names that are already snake_case are only lowercased.
func ToSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	if !hasUpperCase(name) {
		return name
	}

	var result strings.Builder
	result.Grow(len(name) + 4)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			// aB -> a_b, a1B -> a1_b, ABc -> a_bc
			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				result.WriteByte('_')
			case unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}

	return result.String()
}

// ToCamelCase converts any naming convention to lower camelCase:
// FirstName -> firstName, user_id -> userId, ID -> id.
func ToCamelCase(name string) string {
	pascal := ToPascalCase(name)
	if pascal == "" {
		return ""
	}
	r := []rune(pascal)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// ToPascalCase converts any naming convention to PascalCase.
func ToPascalCase(name string) string {
	if name == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(name))

	for _, part := range strings.Split(ToSnakeCase(name), "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		result.WriteString(string(r))
	}

	return result.String()
}

// pluralize converts a singular noun to its plural form, keeping the case
// pattern of the input.
func pluralize(name string) string {
	if name == "" {
		return ""
	}
	return preserveCase(name, pluralizeClient.Plural(name))
}

func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func preserveCase(original, result string) string {
	if original == "" || result == "" {
		return result
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(result)
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(result)
	}
	return result
}
