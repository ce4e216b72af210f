package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/queryir"
)

// JoinKind selects the join type of a JoinClause.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
)

// String returns the SQL keywords for the join kind.
func (k JoinKind) String() string {
	if k == JoinLeft {
		return "LEFT JOIN"
	}
	return "INNER JOIN"
}

// JoinClause joins Table to the statement using the On constraint.
type JoinClause struct {
	Kind  JoinKind
	Table string
	On    JoinConstraintExpression
}

// SelectStatement describes a SELECT over one table and its joins.
//
// Semantics:
//
//	SELECT <fields|*> FROM <from> {<kind> <table> ON <on>} [WHERE <where>]
//	[ORDER BY <order>] [LIMIT <limit>]
type SelectStatement struct {
	Fields  []ir.FieldRef // empty = *
	From    string
	Joins   []JoinClause
	Where   WhereExpression // null = no WHERE
	OrderBy []ir.FieldRef
	Limit   int // 0 = no limit
}

// Tables returns the FROM table followed by the joined tables.
func (s SelectStatement) Tables() []string {
	tables := []string{s.From}
	for _, j := range s.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}

// SQLCompiler assembles SelectStatements into SQL for one dialect.
type SQLCompiler struct {
	Escaper Escaper
}

// NewSQLCompiler creates a compiler using esc.
func NewSQLCompiler(esc Escaper) *SQLCompiler {
	return &SQLCompiler{Escaper: esc}
}

// Compile converts a SelectStatement to SQL.
//
// Every field referenced by the select list, the join constraints, the
// where expression and ORDER BY must belong to the FROM table or a joined
// table.
func (c *SQLCompiler) Compile(stmt SelectStatement) (string, error) {
	if c.Escaper == nil {
		return "", queryir.NewPreconditionFailed("compile without an escaper")
	}
	if strings.TrimSpace(stmt.From) == "" {
		return "", fmt.Errorf("select statement has no FROM table")
	}

	known := make(map[string]bool)
	for _, t := range stmt.Tables() {
		if known[t] {
			return "", fmt.Errorf("table %q appears more than once", t)
		}
		known[t] = true
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	selectClause, err := c.compileFields(stmt.Fields, known, "*")
	if err != nil {
		return "", fmt.Errorf("compile select list: %w", err)
	}
	sb.WriteString(selectClause)

	from, err := escapeIdentifier(c.Escaper, stmt.From)
	if err != nil {
		return "", err
	}
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	for i, j := range stmt.Joins {
		joinSQL, err := c.compileJoin(j, known)
		if err != nil {
			return "", fmt.Errorf("compile join %d (%s): %w", i, j.Table, err)
		}
		sb.WriteString(joinSQL)
	}

	if !stmt.Where.IsNull() {
		if err := checkTables(stmt.Where.Node(), known); err != nil {
			return "", fmt.Errorf("compile where: %w", err)
		}
		whereSQL, err := stmt.Where.ToSQL(c.Escaper)
		if err != nil {
			return "", fmt.Errorf("compile where: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(whereSQL)
	}

	if len(stmt.OrderBy) > 0 {
		orderClause, err := c.compileFields(stmt.OrderBy, known, "")
		if err != nil {
			return "", fmt.Errorf("compile order by: %w", err)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderClause)
	}

	if stmt.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(stmt.Limit))
	}

	return sb.String(), nil
}

// compileJoin renders " <KIND> <table> ON <constraint>".
func (c *SQLCompiler) compileJoin(j JoinClause, known map[string]bool) (string, error) {
	if j.On.IsNull() {
		return "", fmt.Errorf("join has no ON constraint")
	}
	if err := checkTables(j.On.Node(), known); err != nil {
		return "", err
	}
	table, err := escapeIdentifier(c.Escaper, j.Table)
	if err != nil {
		return "", err
	}
	on, err := j.On.ToSQL(c.Escaper)
	if err != nil {
		return "", err
	}
	return " " + j.Kind.String() + " " + table + " ON " + on, nil
}

// compileFields renders a comma-separated field list, or empty if there
// are no fields.
func (c *SQLCompiler) compileFields(fields []ir.FieldRef, known map[string]bool, empty string) (string, error) {
	if len(fields) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.IsNull() {
			return "", queryir.NewInvalidExpression("null field reference")
		}
		if !known[f.Table()] {
			return "", fmt.Errorf("field %s references table %q which is not in FROM or JOIN", f, f.Table())
		}
		r := &renderer{esc: c.Escaper}
		if err := r.writeField(f); err != nil {
			return "", err
		}
		parts = append(parts, r.sb.String())
	}
	return strings.Join(parts, ", "), nil
}

// checkTables fails if n references a table outside known.
func checkTables(n queryir.Node, known map[string]bool) error {
	for _, t := range queryir.Tables(n) {
		if !known[t] {
			return fmt.Errorf("expression references table %q which is not in FROM or JOIN", t)
		}
	}
	return nil
}
