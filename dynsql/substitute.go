package dynsql

import (
	"fmt"
	"strings"

	"github.com/Konsultn-Engineering/silence/dberr"
	libinjection "github.com/corazawaf/libinjection-go"
)

// nextPlaceholder returns the offset of the first "#{" or "${" in s.
func nextPlaceholder(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if (s[i] == '#' || s[i] == '$') && s[i+1] == '{' {
			return i
		}
	}
	return -1
}

// substitute copies text to out, replacing #{name} with a ? and a binding
// and ${name} with the value itself. Placeholders are handled in one
// left-to-right pass so bindings follow their ? order.
func (r *render) substitute(out *strings.Builder, text string, sc *scope) error {
	for {
		at := nextPlaceholder(text)
		if at < 0 {
			out.WriteString(text)
			return nil
		}
		out.WriteString(text[:at])

		marker := text[at]
		closing := strings.IndexByte(text[at+2:], '}')
		if closing < 0 {
			return dberr.New(dberr.KindTemplateSyntax, "substitute", "%c{ placeholder is not closed", marker)
		}
		name := strings.TrimSpace(text[at+2 : at+2+closing])
		text = text[at+2+closing+1:]

		if name == "" {
			return dberr.New(dberr.KindTemplateSyntax, "substitute", "empty %c{} placeholder", marker)
		}
		value, found := sc.lookup(name)
		if !found {
			return dberr.New(dberr.KindUnknownParameter, "substitute", "no parameter named %q", name)
		}

		if marker == '#' {
			out.WriteByte('?')
			r.bindings = append(r.bindings, value)
			continue
		}

		spliced := splice(value)
		// Every ? in the output must have a binding.
		if strings.IndexByte(spliced, '?') >= 0 {
			return dberr.New(dberr.KindMalformedStatement, "substitute",
				"value of ${%s} contains ?, bind it with #{%s} instead", name, name)
		}
		if r.engine.injectionGuard && spliced != "" {
			if flagged, fingerprint := libinjection.IsSQLi(spliced); flagged {
				return dberr.New(dberr.KindMalformedStatement, "substitute",
					"value of ${%s} looks like SQL injection (fingerprint %s)", name, fingerprint)
			}
		}
		out.WriteString(spliced)
	}
}

func splice(v any) string {
	switch s := v.(type) {
	case nil:
		return "null"
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(normalizeSplice(v))
}

// normalizeSplice dereferences pointers so ${} prints the value, not the
// address.
func normalizeSplice(v any) any {
	if n := normalize(v); n != nil {
		return n
	}
	return "null"
}
