package ir

import (
	"strconv"
	"strings"
)

// LiteralKind identifies the variant of a Literal.
type LiteralKind int

const (
	KindInt LiteralKind = iota + 1
	KindString
	KindLike
)

// String returns the lowercase kind name.
func (k LiteralKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindLike:
		return "like"
	default:
		return "unknown"
	}
}

// Literal is a sealed interface over the scalar constants that may appear on
// the right of a comparison: Int, String and Like.
type Literal interface {
	Operand
	Kind() LiteralKind
	literal()
}

// Int is an integer literal.
type Int int64

func (Int) operand()          {}
func (Int) literal()          {}
func (Int) Kind() LiteralKind { return KindInt }

// String is a string literal.
type String string

func (String) operand()          {}
func (String) literal()          {}
func (String) Kind() LiteralKind { return KindString }

// Like is a LIKE pattern literal. '?' matches one character and '*' matches
// any run of characters.
type Like string

func (Like) operand()          {}
func (Like) literal()          {}
func (Like) Kind() LiteralKind { return KindLike }

// OfInt creates an Int literal.
func OfInt(n int64) Int {
	return Int(n)
}

// OfString creates a String literal.
func OfString(s string) String {
	return String(s)
}

// OfLike creates a Like literal from a '?'/'*' pattern.
func OfLike(pattern string) Like {
	return Like(pattern)
}

// likeReplacer maps the user wildcard syntax onto SQL's.
var likeReplacer = strings.NewReplacer("?", "_", "*", "%")

// SQLPattern translates the pattern to SQL wildcards: '?' becomes '_' and
// '*' becomes '%'. Existing '_' and '%' are left as they are.
func (l Like) SQLPattern() string {
	return likeReplacer.Replace(string(l))
}

// FormatLiteral renders v for diagnostics: ints in decimal, strings
// single-quoted, patterns as like('...'). Not SQL; see querysql for that.
func FormatLiteral(v Literal) string {
	switch val := v.(type) {
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case String:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case Like:
		return "like('" + strings.ReplaceAll(string(val), "'", "''") + "')"
	default:
		return "<nil>"
	}
}
