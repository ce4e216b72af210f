package queryir

import (
	"github.com/multidiagtools/mdtsql/internal/ir"
)

// JoinGrammar selects how ValidateJoinConstraint treats literals.
type JoinGrammar int

const (
	// JoinGrammarLenient accepts literal right-hand sides, like the where
	// grammar. This is the default.
	JoinGrammarLenient JoinGrammar = iota

	// JoinGrammarStrict requires a field on both sides of every comparison.
	JoinGrammarStrict
)

// String returns "lenient" or "strict".
func (g JoinGrammar) String() string {
	if g == JoinGrammarStrict {
		return "strict"
	}
	return "lenient"
}

// ValidateWhere checks that n is a well-formed where expression.
//
// Rules:
//  1. Every comparison has a non-null field on the left
//  2. Every right operand is a non-null field or a literal
//  3. LIKE patterns are only compared with Eq
//  4. Every logical node has a valid operator and two well-formed children
//
// Trees obtained from the builder functions or Parse always pass; the check
// exists for zero-value nodes and for containers that accept a Node from
// outside.
//
// ValidateWhere is a pure function with no side effects.
func ValidateWhere(n Node) error {
	v := &validator{}
	return v.validate(n, "expression")
}

// ValidateJoinConstraint checks that n is a well-formed join constraint.
//
// It applies every where rule, then, in strict mode, rejects any comparison
// whose right operand is not a field. The join grammar is its own pass so
// that the two grammars can diverge without touching each other.
func ValidateJoinConstraint(n Node, mode JoinGrammar) error {
	if err := ValidateWhere(n); err != nil {
		return err
	}
	if mode != JoinGrammarStrict {
		return nil
	}
	v := &joinValidator{}
	return v.validate(n, "constraint")
}

// validator walks a tree checking the where grammar.
type validator struct{}

// validate recursively validates a node. path names the node in errors.
func (v *validator) validate(n Node, path string) error {
	switch node := n.(type) {
	case nil:
		return NewInvalidExpression("%s: nil node", path)
	case *Comparison:
		if node == nil {
			return NewInvalidExpression("%s: nil comparison", path)
		}
		if err := checkComparison(node); err != nil {
			return wrapPath(path, err)
		}
		return nil
	case *Logical:
		if node == nil {
			return NewInvalidExpression("%s: nil logical node", path)
		}
		if !node.op.Valid() {
			return NewInvalidExpression("%s: invalid logical operator %s", path, node.op)
		}
		if err := v.validate(node.left, path+".left"); err != nil {
			return err
		}
		return v.validate(node.right, path+".right")
	default:
		return NewInvalidExpression("%s: unknown node type %T", path, n)
	}
}

// joinValidator walks an already where-valid tree checking the strict join
// grammar.
type joinValidator struct{}

func (v *joinValidator) validate(n Node, path string) error {
	switch node := n.(type) {
	case *Comparison:
		if !node.IsFieldToField() {
			return NewInvalidExpression(
				"%s: join constraint compares %s with literal %s; both sides must be fields",
				path, node.left, ir.FormatLiteral(node.right.(ir.Literal)))
		}
		return nil
	case *Logical:
		if err := v.validate(node.left, path+".left"); err != nil {
			return err
		}
		return v.validate(node.right, path+".right")
	default:
		return NewInvalidExpression("%s: unknown node type %T", path, n)
	}
}

// checkComparison enforces the comparison rules on a single node.
func checkComparison(c *Comparison) error {
	if !c.op.Valid() {
		return NewInvalidExpression("invalid comparison operator %s", c.op)
	}
	if c.left.IsNull() {
		return NewInvalidExpression("left operand is a null field reference")
	}
	switch right := c.right.(type) {
	case nil:
		return NewInvalidExpression("comparison of %s has no right operand", c.left)
	case ir.FieldRef:
		if right.IsNull() {
			return NewInvalidExpression("right operand of %s is a null field reference", c.left)
		}
	case ir.Like:
		if c.op != OpEq {
			return NewInvalidExpression("LIKE pattern can only be compared with Eq, got %s", c.op)
		}
	case ir.Int, ir.String:
	default:
		return NewInvalidExpression("unsupported right operand %T", c.right)
	}
	return nil
}

// checkLogical enforces the logical rules on a single node.
//
// Children are only checked one level deep: node fields are unexported, so
// a non-zero child can only have come from a builder that already checked
// it. A zero-value child is caught here.
func checkLogical(l *Logical) error {
	if !l.op.Valid() {
		return NewInvalidExpression("invalid logical operator %s", l.op)
	}
	if err := checkChild(l.left, "left"); err != nil {
		return err
	}
	return checkChild(l.right, "right")
}

func checkChild(n Node, side string) error {
	switch child := n.(type) {
	case nil:
		return NewInvalidExpression("%s operand is nil", side)
	case *Comparison:
		if child == nil {
			return NewInvalidExpression("%s operand is nil", side)
		}
		return wrapPath(side, checkComparison(child))
	case *Logical:
		if child == nil || !child.op.Valid() || child.left == nil || child.right == nil {
			return NewInvalidExpression("%s operand is an incomplete logical node", side)
		}
		return nil
	default:
		return NewInvalidExpression("%s operand has unknown node type %T", side, n)
	}
}

// wrapPath prefixes an ExprError message with the node path.
func wrapPath(path string, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*ExprError); ok {
		return &ExprError{Code: ee.Code, Message: path + ": " + ee.Message, Offset: ee.Offset}
	}
	return err
}
