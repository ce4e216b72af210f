package querysql

import (
	"fmt"

	"github.com/multidiagtools/mdtsql/internal/queryir"
)

// CompiledExpression holds one expression tree, or nothing.
//
// The zero value is null. CompiledExpression is a value type: assigning it
// copies it, and SetExpression on the copy leaves the original untouched.
// The held tree is immutable, so copies never observe each other.
type CompiledExpression struct {
	node queryir.Node
}

// NewCompiledExpression creates a container holding n. A nil n yields a
// null container.
//
// The caller is responsible for n satisfying the intended grammar; use
// WhereExpression or JoinConstraintExpression to have it checked.
func NewCompiledExpression(n queryir.Node) CompiledExpression {
	return CompiledExpression{node: n}
}

// SetExpression replaces the held tree.
func (e *CompiledExpression) SetExpression(n queryir.Node) {
	e.node = n
}

// Clear makes the container null.
func (e *CompiledExpression) Clear() {
	e.node = nil
}

// IsNull reports whether no tree is held.
func (e CompiledExpression) IsNull() bool {
	return e.node == nil
}

// Node returns the held tree, or nil.
func (e CompiledExpression) Node() queryir.Node {
	return e.node
}

// ToSQL renders the held tree with esc.
// Returns PRECONDITION_FAILED on a null container.
func (e CompiledExpression) ToSQL(esc Escaper) (string, error) {
	if e.node == nil {
		return "", queryir.NewPreconditionFailed("toSql called on a null expression")
	}
	return Render(e.node, esc)
}

// Fingerprint returns the content hash of the held tree.
// Returns PRECONDITION_FAILED on a null container.
func (e CompiledExpression) Fingerprint() (string, error) {
	if e.node == nil {
		return "", queryir.NewPreconditionFailed("fingerprint of a null expression")
	}
	return queryir.Fingerprint(e.node)
}

// String returns the held tree in filter-text form, or "<null>".
func (e CompiledExpression) String() string {
	if e.node == nil {
		return "<null>"
	}
	return e.node.String()
}

// WhereExpression is a CompiledExpression checked against the where
// grammar.
type WhereExpression struct {
	expr CompiledExpression
}

// NewWhereExpression creates a WhereExpression holding n.
func NewWhereExpression(n queryir.Node) (WhereExpression, error) {
	var w WhereExpression
	if err := w.SetExpression(n); err != nil {
		return WhereExpression{}, err
	}
	return w, nil
}

// ParseWhere parses filter text into a WhereExpression.
func ParseWhere(filter string) (WhereExpression, error) {
	n, err := queryir.Parse(filter)
	if err != nil {
		return WhereExpression{}, fmt.Errorf("parse where: %w", err)
	}
	return NewWhereExpression(n)
}

// SetExpression validates n with queryir.ValidateWhere and, if it passes,
// replaces the held tree. On error the held tree is unchanged.
func (w *WhereExpression) SetExpression(n queryir.Node) error {
	if err := queryir.ValidateWhere(n); err != nil {
		return err
	}
	w.expr.SetExpression(n)
	return nil
}

// Clear makes the expression null.
func (w *WhereExpression) Clear() { w.expr.Clear() }

// IsNull reports whether no tree is held.
func (w WhereExpression) IsNull() bool { return w.expr.IsNull() }

// Node returns the held tree, or nil.
func (w WhereExpression) Node() queryir.Node { return w.expr.Node() }

// Compiled returns the underlying container.
func (w WhereExpression) Compiled() CompiledExpression { return w.expr }

// ToSQL renders the expression. Returns PRECONDITION_FAILED when null.
func (w WhereExpression) ToSQL(esc Escaper) (string, error) {
	return w.expr.ToSQL(esc)
}

// String returns the expression in filter-text form.
func (w WhereExpression) String() string { return w.expr.String() }

// JoinConstraintExpression is a CompiledExpression checked against the join
// constraint grammar.
//
// The zero value uses the lenient grammar.
type JoinConstraintExpression struct {
	expr    CompiledExpression
	grammar queryir.JoinGrammar
}

// NewJoinConstraintExpression creates a null join constraint that will
// validate against mode.
func NewJoinConstraintExpression(mode queryir.JoinGrammar) JoinConstraintExpression {
	return JoinConstraintExpression{grammar: mode}
}

// JoinOn creates a join constraint holding n, validated against mode.
func JoinOn(n queryir.Node, mode queryir.JoinGrammar) (JoinConstraintExpression, error) {
	j := NewJoinConstraintExpression(mode)
	if err := j.SetExpression(n); err != nil {
		return JoinConstraintExpression{}, err
	}
	return j, nil
}

// SetExpression validates n with queryir.ValidateJoinConstraint and, if it
// passes, replaces the held tree. On error the held tree is unchanged.
func (j *JoinConstraintExpression) SetExpression(n queryir.Node) error {
	if err := queryir.ValidateJoinConstraint(n, j.grammar); err != nil {
		return err
	}
	j.expr.SetExpression(n)
	return nil
}

// Grammar returns the join grammar mode.
func (j JoinConstraintExpression) Grammar() queryir.JoinGrammar { return j.grammar }

// Clear makes the constraint null.
func (j *JoinConstraintExpression) Clear() { j.expr.Clear() }

// IsNull reports whether no tree is held.
func (j JoinConstraintExpression) IsNull() bool { return j.expr.IsNull() }

// Node returns the held tree, or nil.
func (j JoinConstraintExpression) Node() queryir.Node { return j.expr.Node() }

// Compiled returns the underlying container.
func (j JoinConstraintExpression) Compiled() CompiledExpression { return j.expr }

// ToSQL renders the constraint without the ON keyword, which the statement
// assembly writes. Returns PRECONDITION_FAILED when null.
func (j JoinConstraintExpression) ToSQL(esc Escaper) (string, error) {
	return j.expr.ToSQL(esc)
}

// String returns the constraint in filter-text form.
func (j JoinConstraintExpression) String() string { return j.expr.String() }
