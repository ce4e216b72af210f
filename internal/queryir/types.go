package queryir

import (
	"strconv"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

// ComparisonOp is a binary comparison operator.
// The zero value is not a valid operator.
type ComparisonOp int

const (
	OpEq ComparisonOp = iota + 1
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
)

// comparisonNames are the operator names used in errors and canonical form.
var comparisonNames = map[ComparisonOp]string{
	OpEq:    "Eq",
	OpNotEq: "NotEq",
	OpLt:    "Lt",
	OpLtEq:  "LtEq",
	OpGt:    "Gt",
	OpGtEq:  "GtEq",
}

// comparisonSymbols are the filter-text spellings (see Parse).
var comparisonSymbols = map[ComparisonOp]string{
	OpEq:    "==",
	OpNotEq: "!=",
	OpLt:    "<",
	OpLtEq:  "<=",
	OpGt:    ">",
	OpGtEq:  ">=",
}

// Valid reports whether op is one of the six comparison operators.
func (op ComparisonOp) Valid() bool {
	_, ok := comparisonNames[op]
	return ok
}

// String returns the operator name, e.g. "Eq".
func (op ComparisonOp) String() string {
	if name, ok := comparisonNames[op]; ok {
		return name
	}
	return "ComparisonOp(" + strconv.Itoa(int(op)) + ")"
}

// LogicalOp combines two expressions.
// The zero value is not a valid operator.
type LogicalOp int

const (
	OpAnd LogicalOp = iota + 1
	OpOr
)

// Valid reports whether op is And or Or.
func (op LogicalOp) Valid() bool {
	return op == OpAnd || op == OpOr
}

// String returns "And" or "Or".
func (op LogicalOp) String() string {
	switch op {
	case OpAnd:
		return "And"
	case OpOr:
		return "Or"
	default:
		return "LogicalOp(" + strconv.Itoa(int(op)) + ")"
	}
}

// Node is a node of a constraint expression.
//
// This is a sealed interface - only *Comparison and *Logical implement it.
// String returns the expression in filter-text form, which Parse accepts.
type Node interface {
	exprNode() // Marker method - seals interface to this package
	String() string
}

// Comparison compares a field with a field or a literal.
//
// Semantics:
//
//	<left> <op> <right>
//
// Left is always a field reference. When Right is an ir.Like pattern, Op is
// always OpEq and the comparison renders as LIKE.
type Comparison struct {
	op    ComparisonOp
	left  ir.FieldRef
	right ir.Operand
}

func (*Comparison) exprNode() {}

// Op returns the comparison operator.
func (c *Comparison) Op() ComparisonOp { return c.op }

// Left returns the field on the left of the comparison.
func (c *Comparison) Left() ir.FieldRef { return c.left }

// Right returns the field or literal on the right of the comparison.
func (c *Comparison) Right() ir.Operand { return c.right }

// IsLike reports whether the right operand is a LIKE pattern.
func (c *Comparison) IsLike() bool {
	_, ok := c.right.(ir.Like)
	return ok
}

// IsFieldToField reports whether both operands are fields.
func (c *Comparison) IsFieldToField() bool {
	_, ok := c.right.(ir.FieldRef)
	return ok
}

// String returns the comparison in filter-text form.
func (c *Comparison) String() string {
	if c.IsLike() {
		return formatField(c.left) + " LIKE " + quoteText(string(c.right.(ir.Like)))
	}
	return formatField(c.left) + " " + comparisonSymbols[c.op] + " " + formatOperand(c.right)
}

// Logical combines two expressions with AND or OR.
//
// Semantics:
//
//	(<left>) <op> (<right>)
//
// Children may be any well-formed Node, including other Logical nodes, to
// any depth.
type Logical struct {
	op    LogicalOp
	left  Node
	right Node
}

func (*Logical) exprNode() {}

// Op returns the logical operator.
func (l *Logical) Op() LogicalOp { return l.op }

// Left returns the left child.
func (l *Logical) Left() Node { return l.left }

// Right returns the right child.
func (l *Logical) Right() Node { return l.right }

// String returns the expression in filter-text form.
func (l *Logical) String() string {
	sym := " && "
	if l.op == OpOr {
		sym = " || "
	}
	return "(" + nodeString(l.left) + ")" + sym + "(" + nodeString(l.right) + ")"
}

func nodeString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.String()
}

func formatOperand(o ir.Operand) string {
	switch v := o.(type) {
	case ir.FieldRef:
		return formatField(v)
	case ir.Int:
		return strconv.FormatInt(int64(v), 10)
	case ir.String:
		return quoteText(string(v))
	case ir.Like:
		return "like(" + quoteText(string(v)) + ")"
	default:
		return "<nil>"
	}
}

// quoteText single-quotes s the way Parse expects: quotes are doubled.
func quoteText(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}

// formatField writes table.field, double-quoting any part that is not a
// plain identifier.
func formatField(f ir.FieldRef) string {
	if f.IsNull() {
		return f.String()
	}
	return formatName(f.Table()) + "." + formatName(f.Field())
}

func formatName(name string) string {
	if isPlainIdent(name) {
		return name
	}
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	return string(append(out, '"'))
}

func isPlainIdent(s string) bool {
	if s == "" || isKeyword(s) {
		return false
	}
	for i, r := range s {
		if !isIdentRune(r, i == 0) {
			return false
		}
	}
	return true
}
