package queryir

import (
	"fmt"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

// Walk visits n and its descendants in pre-order. If fn returns false the
// children of that node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if l, ok := n.(*Logical); ok {
		Walk(l.left, fn)
		Walk(l.right, fn)
	}
}

// Fields returns the distinct field references of n in first-seen order,
// left operands before right operands.
func Fields(n Node) []ir.FieldRef {
	seen := make(map[ir.FieldRef]bool)
	var fields []ir.FieldRef
	add := func(f ir.FieldRef) {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	Walk(n, func(node Node) bool {
		if c, ok := node.(*Comparison); ok {
			add(c.left)
			if f, ok := c.right.(ir.FieldRef); ok {
				add(f)
			}
		}
		return true
	})
	return fields
}

// Tables returns the distinct table names referenced by n in first-seen
// order.
func Tables(n Node) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, f := range Fields(n) {
		if !seen[f.Table()] {
			seen[f.Table()] = true
			tables = append(tables, f.Table())
		}
	}
	return tables
}

// Depth returns the height of the tree: 1 for a comparison.
func Depth(n Node) int {
	l, ok := n.(*Logical)
	if !ok {
		if n == nil {
			return 0
		}
		return 1
	}
	return 1 + max(Depth(l.left), Depth(l.right))
}

// Canonical converts n to the map form used for hashing:
//
//	{"op":"Gt","left":{"field":...,"table":...},"right":{"kind":"int","value":1}}
//	{"op":"And","left":{...},"right":{...}}
func Canonical(n Node) (map[string]any, error) {
	switch node := n.(type) {
	case *Comparison:
		if node == nil {
			return nil, NewInvalidExpression("nil comparison")
		}
		return map[string]any{
			"op":    node.op.String(),
			"left":  node.left,
			"right": node.right,
		}, nil
	case *Logical:
		if node == nil {
			return nil, NewInvalidExpression("nil logical node")
		}
		left, err := Canonical(node.left)
		if err != nil {
			return nil, err
		}
		right, err := Canonical(node.right)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"op":    node.op.String(),
			"left":  left,
			"right": right,
		}, nil
	default:
		return nil, NewInvalidExpression("unknown node type %T", n)
	}
}

// Fingerprint computes the content-addressed identity of n.
// Structurally equal trees have equal fingerprints regardless of how they
// were built.
func Fingerprint(n Node) (string, error) {
	obj, err := Canonical(n)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return ir.HashCanonical(ir.DomainExpression, obj)
}
