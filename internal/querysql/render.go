package querysql

import (
	"strings"

	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/queryir"
)

// sqlOperators maps comparison operators to their SQL text.
// No spaces: "Id"=25, not "Id" = 25.
var sqlOperators = map[queryir.ComparisonOp]string{
	queryir.OpEq:    "=",
	queryir.OpNotEq: "<>",
	queryir.OpLt:    "<",
	queryir.OpLtEq:  "<=",
	queryir.OpGt:    ">",
	queryir.OpGtEq:  ">=",
}

// likeOperator replaces the comparison operator when the right operand is a
// LIKE pattern.
const likeOperator = " LIKE "

// sqlLogical maps logical operators to their SQL keywords.
var sqlLogical = map[queryir.LogicalOp]string{
	queryir.OpAnd: "AND",
	queryir.OpOr:  "OR",
}

// Render converts an expression tree to a SQL fragment.
//
// Returns PRECONDITION_FAILED if n or esc is nil, or if esc returns an empty
// identifier for a non-empty name. A tree that does not satisfy the where
// grammar (only possible with zero-value nodes) is INVALID_EXPRESSION.
// Otherwise rendering can not fail.
func Render(n queryir.Node, esc Escaper) (string, error) {
	if n == nil {
		return "", queryir.NewPreconditionFailed("render of a null expression")
	}
	if esc == nil {
		return "", queryir.NewPreconditionFailed("render without an escaper")
	}
	r := &renderer{esc: esc}
	if err := r.render(n); err != nil {
		return "", err
	}
	return r.sb.String(), nil
}

// renderer accumulates SQL text during traversal.
type renderer struct {
	esc Escaper
	sb  strings.Builder
}

func (r *renderer) render(n queryir.Node) error {
	switch node := n.(type) {
	case *queryir.Comparison:
		return r.renderComparison(node)
	case *queryir.Logical:
		return r.renderLogical(node)
	case nil:
		return queryir.NewInvalidExpression("nil node in expression tree")
	default:
		return queryir.NewInvalidExpression("unsupported node type: %T", n)
	}
}

// renderComparison writes lhs + op + rhs.
func (r *renderer) renderComparison(c *queryir.Comparison) error {
	if c == nil || c.Left().IsNull() || c.Right() == nil {
		return queryir.NewInvalidExpression("incomplete comparison")
	}
	op, ok := sqlOperators[c.Op()]
	if !ok {
		return queryir.NewInvalidExpression("invalid comparison operator %s", c.Op())
	}

	if err := r.writeField(c.Left()); err != nil {
		return err
	}

	switch right := c.Right().(type) {
	case ir.FieldRef:
		r.sb.WriteString(op)
		return r.writeField(right)
	case ir.Like:
		// The grammar guarantees Eq here; LIKE replaces it regardless.
		r.sb.WriteString(likeOperator)
		r.sb.WriteString(r.esc.EscapeLiteral(ir.OfString(right.SQLPattern())))
	case ir.Int, ir.String:
		r.sb.WriteString(op)
		r.sb.WriteString(r.esc.EscapeLiteral(right.(ir.Literal)))
	default:
		return queryir.NewInvalidExpression("unsupported right operand %T", right)
	}
	return nil
}

// renderLogical writes (left)OP(right).
func (r *renderer) renderLogical(l *queryir.Logical) error {
	if l == nil {
		return queryir.NewInvalidExpression("nil logical node")
	}
	kw, ok := sqlLogical[l.Op()]
	if !ok {
		return queryir.NewInvalidExpression("invalid logical operator %s", l.Op())
	}
	r.sb.WriteByte('(')
	if err := r.render(l.Left()); err != nil {
		return err
	}
	r.sb.WriteByte(')')
	r.sb.WriteString(kw)
	r.sb.WriteByte('(')
	if err := r.render(l.Right()); err != nil {
		return err
	}
	r.sb.WriteByte(')')
	return nil
}

// writeField writes table.field with both parts escaped.
func (r *renderer) writeField(f ir.FieldRef) error {
	table, err := escapeIdentifier(r.esc, f.Table())
	if err != nil {
		return err
	}
	field, err := escapeIdentifier(r.esc, f.Field())
	if err != nil {
		return err
	}
	r.sb.WriteString(table)
	r.sb.WriteByte('.')
	r.sb.WriteString(field)
	return nil
}

// escapeIdentifier calls esc and checks its result.
func escapeIdentifier(esc Escaper, name string) (string, error) {
	quoted := esc.EscapeIdentifier(name)
	if quoted == "" && name != "" {
		return "", queryir.NewPreconditionFailed("escaper returned an empty identifier for %q", name)
	}
	return quoted, nil
}
