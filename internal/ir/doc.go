// Package ir provides the terminal types of mdtsql expressions.
//
// This package contains leaf values only: field references and literals,
// plus the canonical encoding used to fingerprint them. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Terminals are immutable values, compared with ==
//   - A FieldRef with an empty table or field name is null, never an error
//   - Operand is sealed: only FieldRef and the Literal kinds implement it,
//     so a comparison's right-hand side cannot be anything else
//   - Names are NFC normalised on construction so equality is stable
package ir
