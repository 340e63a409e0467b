// Package dynsql renders dynamic SQL templates.
//
// A template is literal SQL mixed with blocks and placeholders:
//
//	&[<condition>: <body>]                 body is kept when condition holds
//	@[<body>]                              "where" + body, leading and/or dropped
//	%[o=(,c=),s=`,`,i=x,v=ids: #{x}]       body repeated for each item of ids
//	#{name}                                bound value, emitted as ?
//	${name}                                value spliced into the SQL text, never a ?
//
// Build returns the SQL and the bound values in placeholder order.
package dynsql

import (
	"strings"

	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/Konsultn-Engineering/silence/schema"
	"github.com/Konsultn-Engineering/silence/utils"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type scanEntry struct {
	template  string
	positions []Position
}

// Engine renders templates. An Engine is safe for concurrent use; each
// Build call owns its bindings.
type Engine struct {
	logger           *zap.Logger
	schema           *schema.Context
	cacheSize        int
	injectionGuard   bool
	strictConditions bool

	scans      *lru.Cache[uint64, scanEntry]
	conditions *lru.Cache[string, *condition]
}

type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSchema sets the schema context used to read struct parameters.
func WithSchema(ctx *schema.Context) Option {
	return func(e *Engine) { e.schema = ctx }
}

// WithCacheSize sets how many scanned templates and parsed conditions are
// kept. Zero disables both caches.
func WithCacheSize(size int) Option {
	return func(e *Engine) { e.cacheSize = size }
}

// WithInjectionGuard rejects ${} values that libinjection flags as SQL.
func WithInjectionGuard(enabled bool) Option {
	return func(e *Engine) { e.injectionGuard = enabled }
}

// WithStrictConditions makes If conditions fail on names missing from the
// parameters. By default a missing name reads as null.
func WithStrictConditions(strict bool) Option {
	return func(e *Engine) { e.strictConditions = strict }
}

// New creates an Engine.
func New(options ...Option) *Engine {
	e := &Engine{
		logger:    zap.NewNop(),
		schema:    schema.Default(),
		cacheSize: 512,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.cacheSize > 0 {
		e.scans, _ = lru.New[uint64, scanEntry](e.cacheSize)
		e.conditions, _ = lru.New[string, *condition](e.cacheSize)
	}
	return e
}

var defaultEngine = New()

// Build renders template with the default Engine.
func Build(template string, params any) (string, []any, error) {
	return defaultEngine.Build(template, params)
}

// Build renders template against params, which may be nil, a map with
// string keys, or a struct. The caller's map is never modified.
func (e *Engine) Build(template string, params any) (string, []any, error) {
	vars, err := e.schema.ToParameterMap(params)
	if err != nil {
		return "", nil, err
	}

	r := &render{engine: e}
	sql, err := r.build(template, &scope{vars: vars, schema: e.schema})
	if err != nil {
		return "", nil, err
	}

	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("template rendered",
			zap.String("sql", utils.Truncate(sql, 200)),
			zap.Int("bindings", len(r.bindings)))
	}
	return sql, r.bindings, nil
}

func (e *Engine) scan(template string) ([]Position, error) {
	if e.scans == nil {
		return Scan(template)
	}
	key := utils.FingerprintString(template)
	if entry, ok := e.scans.Get(key); ok && entry.template == template {
		return entry.positions, nil
	}
	positions, err := Scan(template)
	if err != nil {
		return nil, err
	}
	e.scans.Add(key, scanEntry{template: template, positions: positions})
	return positions, nil
}

func (e *Engine) condition(expr string) (*condition, error) {
	if e.conditions != nil {
		if c, ok := e.conditions.Get(expr); ok {
			return c, nil
		}
	}
	c, err := parseCondition(expr)
	if err != nil {
		return nil, err
	}
	if e.conditions != nil {
		e.conditions.Add(expr, c)
	}
	return c, nil
}

// render carries the bindings of one Build call.
type render struct {
	engine   *Engine
	bindings []any
}

func (r *render) build(template string, sc *scope) (string, error) {
	positions, err := r.engine.scan(template)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.Grow(len(template))

	last := 0
	for _, pos := range positions {
		if err := r.substitute(&out, template[last:pos.Begin], sc); err != nil {
			return "", err
		}
		if err := r.block(&out, template[pos.Begin:pos.End], pos.Kind, sc); err != nil {
			return "", err
		}
		last = pos.End
	}
	if err := r.substitute(&out, template[last:], sc); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (r *render) block(out *strings.Builder, text string, kind BlockKind, sc *scope) error {
	// Strip the two-byte opener and the closing bracket.
	inner := text[2 : len(text)-1]
	switch kind {
	case BlockIf:
		return r.ifBlock(out, inner, sc)
	case BlockWhere:
		return r.whereBlock(out, inner, sc)
	case BlockForeach:
		return r.foreachBlock(out, inner, sc)
	}
	return dberr.New(dberr.KindTemplateSyntax, "build", "unknown block %q", text[:2])
}
