// Package queryir provides the constraint-expression tree of mdtsql.
//
// An expression is a tree of Comparison and Logical nodes whose leaves are
// ir terminals. The tree is the abstraction boundary between the ways an
// expression is written (Go builder calls, filter text, CUE definitions) and
// the way it is rendered (querysql, one Escaper per SQL dialect):
//
//	[builder / Parse] → [queryir.Node] → [querysql.Render] → SQL fragment
//
// GRAMMAR:
//
// Trees are checked when they are built, never when they are rendered.
//   - A comparison has a field on the left and a field or literal on the
//     right. The builder signatures only accept ir.FieldRef on the left, so a
//     literal-on-the-left comparison can not be written in Go; Parse rejects
//     it in text.
//   - A comparison can not be the operand of another comparison.
//   - A LIKE pattern may only be compared with Eq.
//   - AND and OR take any two well-formed nodes, to any depth.
//
// Join constraints have their own grammar (ValidateJoinConstraint). In
// strict mode every comparison must link two fields; in lenient mode, the
// default, it accepts everything the where grammar accepts.
//
// SEALED INTERFACE:
//
// Node uses the marker method pattern: only *Comparison and *Logical
// implement it, so renderers can switch exhaustively. Node fields are
// unexported and nodes are immutable; a subtree may be shared by several
// parents without any observable difference from a deep copy.
//
// ERRORS:
//
// Grammar violations are *ExprError values with code INVALID_EXPRESSION.
// Contract violations at render time use PRECONDITION_FAILED. Use
// IsInvalidExpression and IsPreconditionFailed to test wrapped errors.
package queryir
