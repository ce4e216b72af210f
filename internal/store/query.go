package store

import (
	"context"
	"fmt"

	"github.com/multidiagtools/mdtsql/internal/querysql"
)

// ResultSet holds the rows returned by QueryRows.
type ResultSet struct {
	SQL     string
	Columns []string
	Rows    [][]any
}

// Maps returns each row keyed by column name.
func (r *ResultSet) Maps() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// QueryRows compiles stmt with the store's dialect and runs it.
// TEXT and BLOB values are returned as strings.
func (s *Store) QueryRows(ctx context.Context, stmt querysql.SelectStatement) (*ResultSet, error) {
	query, err := querysql.NewSQLCompiler(s.Escaper()).Compile(stmt)
	if err != nil {
		return nil, fmt.Errorf("compile statement: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &ResultSet{SQL: query, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// QueryRun records one execution of QueryRows.
type QueryRun struct {
	Seq        int64
	ID         string
	Expression string // catalog name of the where expression, if any
	SQL        string
	RowCount   int
}

// RecordRun appends a run to the log. Seq is assigned by the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) RecordRun(ctx context.Context, run QueryRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_runs (id, expression, sql, row_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Expression, run.SQL, run.RowCount)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns every recorded run ordered by seq.
func (s *Store) ListRuns(ctx context.Context) ([]QueryRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, expression, sql, row_count
		FROM query_runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []QueryRun{}
	for rows.Next() {
		var run QueryRun
		if err := rows.Scan(&run.Seq, &run.ID, &run.Expression, &run.SQL, &run.RowCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}
