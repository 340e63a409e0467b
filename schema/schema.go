// Package schema resolves struct types into table and column metadata and
// projects entity values into ordered column/value lists.
package schema

import (
	"reflect"

	"github.com/Konsultn-Engineering/silence/dberr"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Context holds naming configuration and the per-type metadata cache.
// A Context is safe for concurrent use.
type Context struct {
	namingStrategy NamingStrategy
	tagName        string
	cacheSize      int
	generators     *GeneratorRegistry
	onEvict        func(reflect.Type, *EntityMeta)

	parser      *TagParser
	entityCache *lru.Cache[reflect.Type, *EntityMeta]
}

type Option func(*Context)

// WithNamingStrategy sets the naming strategy for tables and columns.
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(ctx *Context) { ctx.namingStrategy = strategy }
}

// WithPluralTables switches table names to pluralized snake_case.
func WithPluralTables(plural bool) Option {
	return func(ctx *Context) {
		if plural {
			ctx.namingStrategy = PluralNamingStrategy()
		} else {
			ctx.namingStrategy = DefaultNamingStrategy()
		}
	}
}

// WithTagName sets the struct tag name to read, "db" by default.
func WithTagName(tagName string) Option {
	return func(ctx *Context) { ctx.tagName = tagName }
}

// WithCacheSize sets the LRU size of the metadata cache.
func WithCacheSize(size int) Option {
	return func(ctx *Context) { ctx.cacheSize = size }
}

// WithGenerators replaces the ID generator registry.
func WithGenerators(registry *GeneratorRegistry) Option {
	return func(ctx *Context) { ctx.generators = registry }
}

// WithEvictionCallback is called when metadata drops out of the cache.
func WithEvictionCallback(onEvict func(reflect.Type, *EntityMeta)) Option {
	return func(ctx *Context) { ctx.onEvict = onEvict }
}

// New creates a Context.
func New(options ...Option) *Context {
	ctx := &Context{
		namingStrategy: DefaultNamingStrategy(),
		tagName:        "db",
		cacheSize:      256,
		generators:     DefaultGenerators(),
	}

	for _, opt := range options {
		opt(ctx)
	}
	if ctx.cacheSize <= 0 {
		ctx.cacheSize = 256
	}

	ctx.parser = NewTagParser(ctx.tagName, ctx.namingStrategy)
	// NewWithEvict only fails for a non-positive size.
	ctx.entityCache, _ = lru.NewWithEvict(ctx.cacheSize, func(t reflect.Type, m *EntityMeta) {
		if ctx.onEvict != nil {
			ctx.onEvict(t, m)
		}
	})

	return ctx
}

var defaultContext = New()

// Default returns the Context used by the package-level helpers.
func Default() *Context { return defaultContext }

// NamingStrategy returns the configured naming strategy.
func (ctx *Context) NamingStrategy() NamingStrategy { return ctx.namingStrategy }

// Introspect returns the metadata of t, building and caching it on first use.
// Pointer types are dereferenced.
func (ctx *Context) Introspect(t reflect.Type) (*EntityMeta, error) {
	if t == nil {
		return nil, dberr.New(dberr.KindEmptyInput, "introspect", "nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, dberr.New(dberr.KindTypeMismatch, "introspect", "%s is not a struct", t)
	}

	if meta, ok := ctx.entityCache.Get(t); ok {
		return meta, nil
	}

	meta, err := ctx.buildMeta(t)
	if err != nil {
		return nil, err
	}
	ctx.entityCache.Add(t, meta)
	return meta, nil
}

// Meta returns the metadata of the dynamic type of v.
func (ctx *Context) Meta(v any) (*EntityMeta, error) {
	if v == nil {
		return nil, dberr.New(dberr.KindEmptyInput, "introspect", "nil entity")
	}
	return ctx.Introspect(reflect.TypeOf(v))
}

// CachedTypes returns how many types are currently cached.
func (ctx *Context) CachedTypes() int { return ctx.entityCache.Len() }

// Introspect resolves t with the default Context.
func Introspect(t reflect.Type) (*EntityMeta, error) {
	return defaultContext.Introspect(t)
}
