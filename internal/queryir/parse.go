package queryir

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

// Parse parses filter text into a Node.
//
// Grammar:
//
//	expr    := andExpr { ("||" | OR) andExpr }
//	andExpr := primary { ("&&" | AND) primary }
//	primary := "(" expr ")" | compare
//	compare := field op operand | field LIKE string
//	op      := "=" | "==" | "!=" | "<>" | "<" | "<=" | ">" | ">="
//	operand := field | integer | string | like "(" string ")"
//	field   := name "." name { "." name }
//	name    := identifier | '"' chars '"'
//
// AND binds tighter than OR and both associate to the left, so
// "a || b && c" is (a) OR ((b) AND (c)). Keywords are case-insensitive.
// Strings are single-quoted; a quote inside is written twice. When a field
// has more than two parts the last one is the field and the rest, joined
// with ".", is the table.
//
// Examples:
//
//	Client_tbl.Id_PK == 25
//	Client_tbl.Id_PK > 0 && Client_tbl.Id_PK < 44
//	Client_tbl.Name LIKE '?25*'
//	A.a = B.b
//
// Every failure is an INVALID_EXPRESSION error carrying the byte offset,
// including grammar violations such as 25 == A.a or (A.a = 1) = 2.
func Parse(text string) (Node, error) {
	p := &parser{lex: lexer{src: text}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokEOF {
		return nil, p.errorf(p.tok, "empty expression")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected("end of expression")
	}
	return n, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for constant filters.
func MustParse(text string) Node {
	return Must(Parse(text))
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokCompare
	tokAnd
	tokOr
	tokLike
	tokLParen
	tokRParen
	tokDot
)

var tokenNames = map[tokenKind]string{
	tokEOF:     "end of expression",
	tokIdent:   "identifier",
	tokInt:     "integer",
	tokString:  "string",
	tokCompare: "comparison operator",
	tokAnd:     "AND",
	tokOr:      "OR",
	tokLike:    "LIKE",
	tokLParen:  "'('",
	tokRParen:  "')'",
	tokDot:     "'.'",
}

type token struct {
	kind tokenKind
	text string // identifier name, string contents or operator spelling
	op   ComparisonOp
	num  int64
	pos  int
	// quoted is set for double-quoted identifiers, which are never keywords.
	quoted bool
}

// keywords are matched case-insensitively against unquoted identifiers.
var keywords = map[string]tokenKind{
	"AND":  tokAnd,
	"OR":   tokOr,
	"LIKE": tokLike,
}

func isKeyword(s string) bool {
	_, ok := keywords[strings.ToUpper(s)]
	return ok
}

func isIdentRune(r rune, first bool) bool {
	if r == '_' || unicode.IsLetter(r) {
		return true
	}
	return !first && unicode.IsDigit(r)
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(pos int, format string, args ...any) *ExprError {
	err := NewInvalidExpression(format, args...)
	err.Offset = pos
	return err
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '.':
		l.pos++
		return token{kind: tokDot, text: ".", pos: start}, nil
	case c == '&':
		if strings.HasPrefix(l.src[l.pos:], "&&") {
			l.pos += 2
			return token{kind: tokAnd, text: "&&", pos: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '&', did you mean '&&'")
	case c == '|':
		if strings.HasPrefix(l.src[l.pos:], "||") {
			l.pos += 2
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '|', did you mean '||'")
	case c == '=' || c == '!' || c == '<' || c == '>':
		return l.lexCompare()
	case c == '\'':
		return l.lexString()
	case c == '"':
		return l.lexQuotedIdent()
	case c == '-' || (c >= '0' && c <= '9'):
		return l.lexInt()
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	if isIdentRune(r, true) {
		return l.lexIdent(), nil
	}
	return token{}, l.errorf(start, "unexpected character %q", r)
}

// compareSpellings is ordered longest first so "<=" wins over "<".
var compareSpellings = []struct {
	text string
	op   ComparisonOp
}{
	{"==", OpEq},
	{"!=", OpNotEq},
	{"<>", OpNotEq},
	{"<=", OpLtEq},
	{">=", OpGtEq},
	{"=", OpEq},
	{"<", OpLt},
	{">", OpGt},
}

func (l *lexer) lexCompare() (token, error) {
	start := l.pos
	for _, s := range compareSpellings {
		if strings.HasPrefix(l.src[l.pos:], s.text) {
			l.pos += len(s.text)
			return token{kind: tokCompare, text: s.text, op: s.op, pos: start}, nil
		}
	}
	return token{}, l.errorf(start, "unexpected %q", l.src[l.pos])
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	var sb strings.Builder
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\'' {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokString, text: sb.String(), pos: start}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated string")
}

func (l *lexer) lexQuotedIdent() (token, error) {
	start := l.pos
	var sb strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '"' {
				sb.WriteByte('"')
				l.pos += 2
				continue
			}
			l.pos++
			if sb.Len() == 0 {
				return token{}, l.errorf(start, "empty quoted identifier")
			}
			return token{kind: tokIdent, text: sb.String(), pos: start, quoted: true}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated quoted identifier")
}

func (l *lexer) lexInt() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	digits := l.pos
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.pos == digits {
		return token{}, l.errorf(start, "expected digits after '-'")
	}
	text := l.src[start:l.pos]
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, l.errorf(start, "integer %s out of range", text)
	}
	return token{kind: tokInt, text: text, num: n, pos: start}, nil
}

func (l *lexer) lexIdent() token {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentRune(r, false) {
			break
		}
		l.pos += size
	}
	text := l.src[start:l.pos]
	if kind, ok := keywords[strings.ToUpper(text)]; ok {
		return token{kind: kind, text: text, pos: start}
	}
	return token{kind: tokIdent, text: text, pos: start}
}

// parser is a recursive descent parser with one token of lookahead.
type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(at token, format string, args ...any) *ExprError {
	return p.lex.errorf(at.pos, format, args...)
}

func (p *parser) unexpected(want string) *ExprError {
	return p.errorf(p.tok, "expected %s, found %s", want, describe(p.tok))
}

func describe(t token) string {
	if t.kind == tokEOF {
		return tokenNames[tokEOF]
	}
	return tokenNames[t.kind] + " " + strconv.Quote(t.text)
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left, err = Or(left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if left, err = And(left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.tok.kind == tokLParen {
		open := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.unexpected("')' to close '(' at offset " + strconv.Itoa(open.pos))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.rejectNestedComparison(); err != nil {
			return nil, err
		}
		return n, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Node, error) {
	switch p.tok.kind {
	case tokInt, tokString:
		return nil, p.errorf(p.tok, "literal %s on the left of a comparison; the left operand must be a field", p.tok.text)
	case tokLike:
		return nil, p.errorf(p.tok, "LIKE pattern on the left of a comparison; the left operand must be a field")
	case tokIdent:
	default:
		return nil, p.unexpected("field or '('")
	}

	left, err := p.parseField()
	if err != nil {
		return nil, err
	}

	var n Node
	switch p.tok.kind {
	case tokLike:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokString {
			return nil, p.unexpected("string pattern after LIKE")
		}
		pattern := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err = Like(left, pattern)
	case tokCompare:
		opTok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		n, err = Compare(opTok.op, left, right)
		if err != nil {
			return nil, p.withOffset(err, opTok)
		}
	default:
		return nil, p.unexpected("comparison operator")
	}
	if err != nil {
		return nil, err
	}
	if err := p.rejectNestedComparison(); err != nil {
		return nil, err
	}
	return n, nil
}

// rejectNestedComparison fails if a comparison operator follows a complete
// comparison or parenthesised expression, e.g. "(A.a = 1) = 2".
func (p *parser) rejectNestedComparison() error {
	if p.tok.kind == tokCompare || p.tok.kind == tokLike {
		return p.errorf(p.tok, "a comparison result can not be compared again; the left operand must be a field")
	}
	return nil
}

func (p *parser) withOffset(err error, at token) error {
	if ee, ok := err.(*ExprError); ok && ee.Offset < 0 {
		return &ExprError{Code: ee.Code, Message: ee.Message, Offset: at.pos}
	}
	return err
}

func (p *parser) parseOperand() (ir.Operand, error) {
	switch p.tok.kind {
	case tokInt:
		n := p.tok.num
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ir.OfInt(n), nil
	case tokString:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ir.OfString(s), nil
	case tokLike:
		// like('...') lexes as the LIKE keyword followed by '('
		return p.parseLikeCall()
	case tokIdent:
		return p.parseField()
	default:
		return nil, p.unexpected("field, integer, string or like('...')")
	}
}

func (p *parser) parseLikeCall() (ir.Operand, error) {
	if err := p.advance(); err != nil { // like
		return nil, err
	}
	if p.tok.kind != tokLParen {
		return nil, p.unexpected("'(' after like")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokString {
		return nil, p.unexpected("string pattern")
	}
	pattern := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokRParen {
		return nil, p.unexpected("')' after like pattern")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return ir.OfLike(pattern), nil
}

func (p *parser) parseField() (ir.FieldRef, error) {
	start := p.tok
	var parts []string
	for {
		if p.tok.kind != tokIdent {
			return ir.FieldRef{}, p.unexpected("name")
		}
		parts = append(parts, p.tok.text)
		if err := p.advance(); err != nil {
			return ir.FieldRef{}, err
		}
		if p.tok.kind != tokDot {
			break
		}
		if err := p.advance(); err != nil {
			return ir.FieldRef{}, err
		}
	}
	if len(parts) < 2 {
		return ir.FieldRef{}, p.errorf(start, "field %q must be qualified as table.field", parts[0])
	}
	f := ir.NewFieldRef(strings.Join(parts[:len(parts)-1], "."), parts[len(parts)-1])
	if f.IsNull() {
		return ir.FieldRef{}, p.errorf(start, "field has an empty table or field name")
	}
	return f, nil
}
