package lookup

import (
	"fmt"
	"strings"
)

// compiledQuery is a lookup query with its :name markers rewritten to
// positional ? placeholders.
type compiledQuery struct {
	SQL string
	// Binds lists the parameter name for each placeholder, in order. A name
	// used twice appears twice.
	Binds []string
}

// compileQuery rewrites :name bind markers to ?. Markers inside single
// quoted literals, double quoted identifiers and PostgreSQL style ::casts
// are left alone.
func compileQuery(query string) compiledQuery {
	var (
		b     strings.Builder
		binds []string
		quote byte
	)
	b.Grow(len(query))

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			b.WriteString("::")
			i++
		case c == ':' && i+1 < len(query) && isIdentStart(query[i+1]):
			j := i + 1
			for j < len(query) && isIdentPart(query[j]) {
				j++
			}
			binds = append(binds, query[i+1:j])
			b.WriteByte('?')
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return compiledQuery{SQL: b.String(), Binds: binds}
}

// check reports bind markers that have no configured parameter.
func (q compiledQuery) check(params map[string]string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, name := range q.Binds {
		if _, ok := params[name]; !ok && !seen[name] {
			missing = append(missing, name)
			seen[name] = true
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("query references undefined parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
