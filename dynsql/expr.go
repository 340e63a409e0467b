package dynsql

import (
	"database/sql/driver"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Konsultn-Engineering/silence/dberr"
)

// Conditions of If blocks are parsed by a small recursive descent parser:
//
//	or    := and ("||" and)*
//	and   := unary ("&&" unary)*
//	unary := "!" unary | cmp
//	cmp   := primary (op primary)?
//	op    := "=" | "==" | "!=" | "<>" | ">" | "<" | ">=" | "<="
//	primary := ident("." ident)* | number | 'str' | "str" | null | true | false | "(" or ")"
//
// The words and, or and not are accepted as aliases.

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokNull
	tokTrue
	tokFalse
	tokCompare
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) isOperand() bool {
	switch t.kind {
	case tokIdent, tokNumber, tokString, tokNull, tokTrue, tokFalse, tokRParen:
		return true
	}
	return false
}

func syntaxError(expr string, pos int, format string, args ...any) error {
	e := dberr.New(dberr.KindTemplateSyntax, "condition", format, args...)
	e.Msg += " at offset " + strconv.Itoa(pos) + " in " + strconv.Quote(expr)
	return e
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func tokenize(expr string) ([]token, error) {
	var tokens []token
	prevOperand := func() bool {
		return len(tokens) > 0 && tokens[len(tokens)-1].isOperand()
	}

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++

		case c == '&' || c == '|':
			if i+1 >= len(expr) || expr[i+1] != c {
				return nil, syntaxError(expr, i, "expected %c%c", c, c)
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind, expr[i : i+2], i})
			i += 2

		case c == '!':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{tokCompare, "!=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokNot, "!", i})
				i++
			}

		case c == '=':
			width := 1
			if i+1 < len(expr) && expr[i+1] == '=' {
				width = 2
			}
			tokens = append(tokens, token{tokCompare, "=", i})
			i += width

		case c == '<' || c == '>':
			op, width := string(c), 1
			if i+1 < len(expr) {
				switch {
				case expr[i+1] == '=':
					op, width = expr[i:i+2], 2
				case c == '<' && expr[i+1] == '>':
					op, width = "!=", 2
				}
			}
			tokens = append(tokens, token{tokCompare, op, i})
			i += width

		case c == '\'' || c == '"':
			var b strings.Builder
			j := i + 1
			for ; j < len(expr) && expr[j] != c; j++ {
				if expr[j] == '\\' && j+1 < len(expr) {
					j++
				}
				b.WriteByte(expr[j])
			}
			if j >= len(expr) {
				return nil, syntaxError(expr, i, "unterminated string")
			}
			tokens = append(tokens, token{tokString, b.String(), i})
			i = j + 1

		case isDigit(c) || (c == '-' && i+1 < len(expr) && isDigit(expr[i+1]) && !prevOperand()):
			j := i + 1
			for j < len(expr) && (isDigit(expr[j]) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j], i})
			i = j

		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && (isIdentStart(expr[j]) || isDigit(expr[j]) || expr[j] == '.') {
				j++
			}
			word := expr[i:j]
			kind := tokIdent
			switch strings.ToLower(word) {
			case "null", "nil":
				kind = tokNull
			case "true":
				kind = tokTrue
			case "false":
				kind = tokFalse
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			}
			tokens = append(tokens, token{kind, word, i})
			i = j

		default:
			return nil, syntaxError(expr, i, "unexpected character %q", c)
		}
	}

	return append(tokens, token{tokEOF, "", len(expr)}), nil
}

// node is an evaluable condition fragment. env holds every identifier the
// condition references, already resolved.
type node interface {
	eval(env map[string]any) (any, error)
}

type (
	literalNode struct{ value any }
	identNode   struct{ name string }
	notNode     struct{ operand node }
	logicNode   struct {
		and         bool
		left, right node
	}
	compareNode struct {
		op          string
		left, right node
	}
)

func (n literalNode) eval(map[string]any) (any, error) { return n.value, nil }

func (n identNode) eval(env map[string]any) (any, error) { return normalize(env[n.name]), nil }

func (n notNode) eval(env map[string]any) (any, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}
	b, err := truth(v)
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func (n logicNode) eval(env map[string]any) (any, error) {
	lv, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	l, err := truth(lv)
	if err != nil {
		return nil, err
	}
	if n.and && !l {
		return false, nil
	}
	if !n.and && l {
		return true, nil
	}
	rv, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	return truth(rv)
}

func (n compareNode) eval(env map[string]any) (any, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "=":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	}

	// Ordering against null is never true.
	if l == nil || r == nil {
		return false, nil
	}
	c, err := order(l, r)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case ">":
		return c > 0, nil
	case "<":
		return c < 0, nil
	case ">=":
		return c >= 0, nil
	default:
		return c <= 0, nil
	}
}

// condition is a parsed If block condition.
type condition struct {
	root   node
	idents []string
}

type parser struct {
	expr   string
	tokens []token
	pos    int
	idents []string
	seen   map[string]bool
}

func parseCondition(expr string) (*condition, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, tokens: tokens, seen: make(map[string]bool)}
	if p.peek().kind == tokEOF {
		return nil, syntaxError(expr, 0, "empty condition")
	}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(expr, t.pos, "unexpected %q", t.text)
	}
	return &condition{root: root, idents: p.idents}, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicNode{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = logicNode{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokCompare {
		return left, nil
	}
	op := p.next().text
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compareNode{op: op, left: left, right: right}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, syntaxError(p.expr, closing.pos, "expected )")
		}
		return inner, nil
	case tokIdent:
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.idents = append(p.idents, t.text)
		}
		return identNode{name: t.text}, nil
	case tokNumber:
		n, err := parseNumber(t.text)
		if err != nil {
			return nil, syntaxError(p.expr, t.pos, "bad number %q", t.text)
		}
		return literalNode{value: n}, nil
	case tokString:
		return literalNode{value: t.text}, nil
	case tokNull:
		return literalNode{value: nil}, nil
	case tokTrue:
		return literalNode{value: true}, nil
	case tokFalse:
		return literalNode{value: false}, nil
	case tokEOF:
		return nil, syntaxError(p.expr, t.pos, "unexpected end of condition")
	}
	return nil, syntaxError(p.expr, t.pos, "unexpected %q", t.text)
}

func parseNumber(s string) (any, error) {
	if !strings.Contains(s, ".") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

// normalize folds a parameter value to nil, bool, int64, float64, string,
// time.Time or, failing that, the value itself.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int64, float64, time.Time:
		return x
	case []byte:
		return string(x)
	case driver.Valuer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && rv.IsNil() {
			return nil
		}
		if val, err := x.Value(); err == nil {
			return normalize(val)
		}
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil
		}
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u)
		}
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func truth(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	}
	return false, dberr.New(dberr.KindTypeMismatch, "condition", "%T is not a boolean", v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if isNumber(l) && isNumber(r) {
		return compareNumbers(l, r) == 0
	}
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return lt.Equal(rt)
		}
	}
	// Value.Comparable looks inside interface fields, which a struct type
	// with an any field may hold a slice in.
	if reflect.ValueOf(l).Comparable() && reflect.ValueOf(r).Comparable() {
		return l == r
	}
	return reflect.DeepEqual(l, r)
}

func order(l, r any) (int, error) {
	switch {
	case isNumber(l) && isNumber(r):
		return compareNumbers(l, r), nil
	}
	switch lv := l.(type) {
	case string:
		if rv, ok := r.(string); ok {
			return strings.Compare(lv, rv), nil
		}
	case time.Time:
		if rv, ok := r.(time.Time); ok {
			return lv.Compare(rv), nil
		}
	}
	return 0, dberr.New(dberr.KindTypeMismatch, "condition", "cannot order %T against %T", l, r)
}

func compareNumbers(l, r any) int {
	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch {
		case li < ri:
			return -1
		case li > ri:
			return 1
		}
		return 0
	}
	lf, rf := toFloat(l), toFloat(r)
	switch {
	case lf < rf:
		return -1
	case lf > rf:
		return 1
	}
	return 0
}

func toFloat(v any) float64 {
	if i, ok := v.(int64); ok {
		return float64(i)
	}
	return v.(float64)
}
