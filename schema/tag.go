package schema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ParsedTag is the parsed form of a `db` struct tag.
type ParsedTag struct {
	ColumnName string // explicit or derived column name
	Skip       bool   // db:"-"
	Primary    bool   // primary key marker
	Null       bool   // column explicitly accepts NULL
	NotNull    bool
	Generator  string // uuid, ulid, snowflake, nanoid or a registered name
}

// TagParser parses and caches struct tags.
//
// Supported tag syntax:
//
//	`db:"column_name"`                    // Basic column mapping
//	`db:"-"`                              // Skip field
//	`db:"user_id;primary"`                // Column name followed by flags
//	`db:"column:user_id;primary"`         // Explicit column option
//	`db:"primary;generator:uuid"`         // Key filled on insert when zero
//	`db:"null"`                           // Nullable column, default naming
type TagParser struct {
	tagName        string
	namingStrategy ColumnNamingStrategy
	cache          map[string]*ParsedTag
	cacheMu        sync.RWMutex
}

// NewTagParser creates a parser reading tagName with the given column naming.
func NewTagParser(tagName string, namingStrategy ColumnNamingStrategy) *TagParser {
	return &TagParser{
		tagName:        tagName,
		namingStrategy: namingStrategy,
		cache:          make(map[string]*ParsedTag, 64),
	}
}

// ParseTag parses the tag of one struct field. The returned value is shared
// through the cache and must not be modified.
func (p *TagParser) ParseTag(fieldName string, tag reflect.StructTag) (*ParsedTag, error) {
	tagValue := strings.TrimSpace(tag.Get(p.tagName))
	if tagValue == "" {
		return &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}, nil
	}

	cacheKey := fieldName + ":" + tagValue
	p.cacheMu.RLock()
	if cached, ok := p.cache[cacheKey]; ok {
		p.cacheMu.RUnlock()
		return cached, nil
	}
	p.cacheMu.RUnlock()

	parsed, err := p.parseTagValue(fieldName, tagValue)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName, err)
	}

	p.cacheMu.Lock()
	p.cache[cacheKey] = parsed
	p.cacheMu.Unlock()

	return parsed, nil
}

func (p *TagParser) parseTagValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}

	for i, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		if colon := strings.IndexByte(option, ':'); colon >= 0 {
			key := strings.TrimSpace(option[:colon])
			value := strings.TrimSpace(option[colon+1:])
			if err := parseKeyValue(parsed, key, value); err != nil {
				return nil, err
			}
			continue
		}
		if !parseFlag(parsed, option) {
			if i != 0 {
				return nil, fmt.Errorf("unknown tag option %q", option)
			}
			// A leading bare word is the column name.
			parsed.ColumnName = option
		}
	}

	return parsed, nil
}

func parseFlag(tag *ParsedTag, flag string) bool {
	switch strings.ToLower(flag) {
	case "primary", "primary_key":
		tag.Primary = true
	case "null", "nullable":
		tag.Null = true
	case "not_null", "not null":
		tag.NotNull = true
	default:
		return false
	}
	return true
}

func parseKeyValue(tag *ParsedTag, key, value string) error {
	switch strings.ToLower(key) {
	case "column", "name":
		if value == "" {
			return fmt.Errorf("empty column name")
		}
		tag.ColumnName = value
	case "generator", "gen":
		if value == "" {
			return fmt.Errorf("empty generator name")
		}
		tag.Generator = value
	default:
		return fmt.Errorf("unknown tag option %q", key)
	}
	return nil
}

// IsNullable reports whether the column explicitly accepts NULL.
func (tag *ParsedTag) IsNullable() bool {
	return tag.Null && !tag.NotNull
}
