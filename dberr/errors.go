// Package dberr defines the single error category surfaced by every silence
// component. Callers branch on the Kind, usually through errors.Is against
// one of the exported sentinels.
package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTemplateSyntax
	KindUnknownParameter
	KindTypeMismatch
	KindMalformedStatement
	KindCardinality
	KindReflectionAccess
	KindDataAccess
	KindEmptyInput
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindTemplateSyntax:     "template syntax",
	KindUnknownParameter:   "unknown parameter",
	KindTypeMismatch:       "type mismatch",
	KindMalformedStatement: "malformed statement",
	KindCardinality:        "cardinality",
	KindReflectionAccess:   "reflection access",
	KindDataAccess:         "data access",
	KindEmptyInput:         "empty input",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its own kind.
var (
	ErrTemplateSyntax     = &Error{Kind: KindTemplateSyntax}
	ErrUnknownParameter   = &Error{Kind: KindUnknownParameter}
	ErrTypeMismatch       = &Error{Kind: KindTypeMismatch}
	ErrMalformedStatement = &Error{Kind: KindMalformedStatement}
	ErrCardinality        = &Error{Kind: KindCardinality}
	ErrReflectionAccess   = &Error{Kind: KindReflectionAccess}
	ErrDataAccess         = &Error{Kind: KindDataAccess}
	ErrEmptyInput         = &Error{Kind: KindEmptyInput}
)

// Error carries a kind tag, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("silence")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. A target that
// carries an Op or Msg must match those too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return (t.Op == "" || t.Op == e.Op) && (t.Msg == "" || t.Msg == e.Msg)
}

// New builds an Error without a cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: sprintf(format, args)}
}

// Wrap builds an Error around err. Wrap returns nil when err is nil.
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: sprintf(format, args), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
