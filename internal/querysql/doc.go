// Package querysql renders queryir expressions to SQL text.
//
// Rendering is a pure, recursive transform parameterised by an Escaper,
// the dialect-specific quoting capability:
//
//	Render(A > 0 AND A < 44, ANSI)
//	    → ("Client_tbl"."Id_PK">0)AND("Client_tbl"."Id_PK"<44)
//
// OUTPUT FORMAT:
//
// The spelling below is a compatibility contract; statement assembly and
// stored fixtures depend on it byte for byte:
//   - comparison operators =, <>, <, <=, >, >= with no surrounding spaces
//   - LIKE with exactly one space on each side; '?' and '*' in the pattern
//     become '_' and '%' before the pattern is quoted
//   - AND / OR with no surrounding spaces and each operand parenthesised
//
// CONTAINERS:
//
// CompiledExpression holds one tree or nothing. WhereExpression and
// JoinConstraintExpression add their grammar check to SetExpression. All
// three are plain values: copying one and then reassigning the copy never
// affects the original.
//
// STATEMENTS:
//
// SQLCompiler assembles SELECT statements from a FROM table, join clauses
// (the only place "ON" is written) and a where expression.
package querysql
