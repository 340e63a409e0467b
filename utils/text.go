package utils

import "strings"

// isQuote reports whether c opens a quoted run. Backticks, single and
// double quotes are recognised; a run ends at the next identical quote.
func isQuote(c byte) bool {
	return c == '\'' || c == '"' || c == '`'
}

// IndexUnquoted returns the index of the first sep in s that is not inside
// a quoted run, or -1.
func IndexUnquoted(s string, sep byte) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case isQuote(c):
			quote = c
		case c == sep:
			return i
		}
	}
	return -1
}

// SplitUnquoted splits s around every sep that is outside a quoted run.
func SplitUnquoted(s string, sep byte) []string {
	var parts []string
	for {
		i := IndexUnquoted(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+1:]
	}
}

// Unquote trims surrounding blanks and removes one pair of matching quotes.
// The content of a quoted value is returned untouched.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Truncate shortens s to max bytes and appends an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
