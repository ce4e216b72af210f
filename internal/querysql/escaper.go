package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

// Escaper quotes identifiers and literals for one SQL dialect.
//
// Implementations must be deterministic and free of side effects: the same
// input always yields the same output, and an Escaper may be shared between
// goroutines.
type Escaper interface {
	// EscapeIdentifier quotes a table or field name.
	EscapeIdentifier(name string) string

	// EscapeLiteral renders a literal value as SQL text.
	EscapeLiteral(v ir.Literal) string
}

// Dialect is a table-driven Escaper covering the quoting rules of the
// supported databases.
type Dialect struct {
	// Name identifies the dialect ("ansi", "sqlite", "mysql").
	Name string

	// IdentQuote encloses identifiers; inside a name it is doubled.
	IdentQuote byte

	// BackslashEscapes marks dialects where a backslash inside a string
	// literal starts an escape sequence and must itself be escaped.
	BackslashEscapes bool
}

var (
	// ANSI quotes identifiers with "..." and strings with '...'.
	ANSI = Dialect{Name: "ansi", IdentQuote: '"'}

	// SQLite accepts the ANSI quoting rules.
	SQLite = Dialect{Name: "sqlite", IdentQuote: '"'}

	// MySQL quotes identifiers with backticks and escapes backslashes in
	// strings.
	MySQL = Dialect{Name: "mysql", IdentQuote: '`', BackslashEscapes: true}
)

// Dialects lists the built-in dialects in lookup order.
var Dialects = []Dialect{ANSI, SQLite, MySQL}

// DialectByName returns the built-in dialect with the given name.
func DialectByName(name string) (Dialect, error) {
	for _, d := range Dialects {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	names := make([]string, len(Dialects))
	for i, d := range Dialects {
		names[i] = d.Name
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q: must be one of %v", name, names)
}

// EscapeIdentifier encloses name in the dialect's identifier quote,
// doubling any quote inside it.
func (d Dialect) EscapeIdentifier(name string) string {
	q := string(d.IdentQuote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// EscapeLiteral renders ints in decimal and strings single-quoted. A Like
// pattern is translated to SQL wildcards first.
func (d Dialect) EscapeLiteral(v ir.Literal) string {
	switch val := v.(type) {
	case ir.Int:
		return strconv.FormatInt(int64(val), 10)
	case ir.String:
		return d.quoteString(string(val))
	case ir.Like:
		return d.quoteString(val.SQLPattern())
	default:
		return "NULL"
	}
}

func (d Dialect) quoteString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			sb.WriteString("''")
		case c == '\\' && d.BackslashEscapes:
			sb.WriteString(`\\`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// String returns the dialect name.
func (d Dialect) String() string {
	return d.Name
}
