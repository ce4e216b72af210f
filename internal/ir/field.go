package ir

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Operand is a sealed interface for the right-hand side of a comparison.
// Only FieldRef, Int, String and Like implement it.
type Operand interface {
	operand() // Sealed - only terminals in this package implement it
}

// FieldRef references a column of a table.
//
// The zero value is the null reference. Use NewFieldRef to construct one;
// the fields are unexported so a FieldRef can not be changed after
// construction.
type FieldRef struct {
	table string
	field string
}

func (FieldRef) operand() {}

// NewFieldRef creates a reference to field of table.
//
// Both names are trimmed and NFC normalised. If either name is empty after
// trimming the result is the null reference (IsNull reports true).
func NewFieldRef(table, field string) FieldRef {
	t := normalizeName(table)
	f := normalizeName(field)
	if t == "" || f == "" {
		return FieldRef{}
	}
	return FieldRef{table: t, field: f}
}

// ParseFieldRef splits a "table.field" string on its last dot.
// Returns the null reference if s has no dot.
func ParseFieldRef(s string) FieldRef {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return FieldRef{}
	}
	return NewFieldRef(s[:i], s[i+1:])
}

// Table returns the table name.
func (f FieldRef) Table() string { return f.table }

// Field returns the field name.
func (f FieldRef) Field() string { return f.field }

// IsNull reports whether f is the null reference.
func (f FieldRef) IsNull() bool {
	return f.table == "" || f.field == ""
}

// Equal reports whether f and other reference the same table and field.
func (f FieldRef) Equal(other FieldRef) bool {
	return f == other
}

// String returns "table.field", or "<null>" for the null reference.
func (f FieldRef) String() string {
	if f.IsNull() {
		return "<null>"
	}
	return f.table + "." + f.field
}

// normalizeName trims surrounding whitespace and applies NFC so that
// visually identical names compare equal.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
