package queryir

import (
	"github.com/multidiagtools/mdtsql/internal/ir"
)

// Compare builds a comparison of left with right.
//
// Returns INVALID_EXPRESSION if op is not a comparison operator, if either
// field is null, if right is nil, or if right is a LIKE pattern and op is
// not OpEq.
func Compare(op ComparisonOp, left ir.FieldRef, right ir.Operand) (Node, error) {
	c := &Comparison{op: op, left: left, right: right}
	if err := checkComparison(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Eq builds left = right. With an ir.Like right operand it builds a LIKE.
func Eq(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpEq, left, right)
}

// NotEq builds left <> right.
func NotEq(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpNotEq, left, right)
}

// Lt builds left < right.
func Lt(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpLt, left, right)
}

// LtEq builds left <= right.
func LtEq(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpLtEq, left, right)
}

// Gt builds left > right.
func Gt(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpGt, left, right)
}

// GtEq builds left >= right.
func GtEq(left ir.FieldRef, right ir.Operand) (Node, error) {
	return Compare(OpGtEq, left, right)
}

// Like builds left LIKE pattern, with '?'/'*' wildcards.
func Like(left ir.FieldRef, pattern string) (Node, error) {
	return Compare(OpEq, left, ir.OfLike(pattern))
}

// Combine builds (left) op (right).
//
// Returns INVALID_EXPRESSION if op is not And or Or, or if either child is
// nil or not well-formed.
func Combine(op LogicalOp, left, right Node) (Node, error) {
	l := &Logical{op: op, left: left, right: right}
	if err := checkLogical(l); err != nil {
		return nil, err
	}
	return l, nil
}

// And builds (left) AND (right).
func And(left, right Node) (Node, error) {
	return Combine(OpAnd, left, right)
}

// Or builds (left) OR (right).
func Or(left, right Node) (Node, error) {
	return Combine(OpOr, left, right)
}

// AndAll folds nodes left to right with AND: AndAll(a, b, c) is
// ((a) AND (b)) AND (c). A single node is returned unchanged.
func AndAll(nodes ...Node) (Node, error) {
	return fold(OpAnd, nodes)
}

// OrAll folds nodes left to right with OR.
func OrAll(nodes ...Node) (Node, error) {
	return fold(OpOr, nodes)
}

func fold(op LogicalOp, nodes []Node) (Node, error) {
	if len(nodes) == 0 {
		return nil, NewInvalidExpression("%s needs at least one operand", op)
	}
	acc := nodes[0]
	if err := ValidateWhere(acc); err != nil {
		return nil, err
	}
	for _, n := range nodes[1:] {
		next, err := Combine(op, acc, n)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

// Must is like a builder result but panics on error.
// Use only in tests or when the expression is known to be valid.
//
//	n := queryir.Must(queryir.Eq(field, ir.OfInt(25)))
func Must(n Node, err error) Node {
	if err != nil {
		panic(err)
	}
	return n
}
