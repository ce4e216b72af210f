package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/multidiagtools/mdtsql/internal/compiler"
	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/querysql"
	"github.com/multidiagtools/mdtsql/internal/store"
	"github.com/multidiagtools/mdtsql/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh catalog with deterministic run IDs.
type Harness struct {
	store   *store.Store
	dialect querysql.Dialect
	ids     store.RunIDGenerator
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load the CUE specs and compile every expression, saving the ones that
// compile to the catalog
// 3. Check expectations against the compiled outcomes
// 4. Execute setup statements
// 5. Execute query checks, loading expressions back from the catalog
//
// Returns an error only if the scenario could not be executed; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with an explicit logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	dialect := querysql.ANSI
	if scenario.Dialect != "" {
		d, err := querysql.DialectByName(scenario.Dialect)
		if err != nil {
			return nil, err
		}
		dialect = d
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		dialect: dialect,
		ids:     testutil.NewSequenceIDGenerator(scenario.Name),
		logger:  logger.With("scenario", scenario.Name),
	}

	ctx := context.Background()

	value, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	result := NewResult()
	if err := h.compileExpressions(ctx, value, result); err != nil {
		return nil, err
	}

	h.checkExpectations(scenario.Expect, result)

	for i, stmt := range scenario.Setup {
		if err := st.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, q := range scenario.Queries {
		if err := h.executeQuery(ctx, i, q, result); err != nil {
			result.AddError(fmt.Sprintf("queries[%d]: %v", i, err))
		}
	}

	return result, nil
}

// loadSpecs compiles and unifies the given CUE files.
func loadSpecs(paths []string) (cue.Value, error) {
	ctx := cuecontext.New()
	var value cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, fmt.Errorf("compile %s: %w", path, err)
		}
		if i == 0 {
			value = v
		} else {
			value = value.Unify(v)
		}
	}
	if err := value.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("unify specs: %w", err)
	}
	return value, nil
}

// compileExpressions compiles each definition on its own so that one bad
// definition does not hide the others.
func (h *Harness) compileExpressions(ctx context.Context, value cue.Value, result *Result) error {
	exprVal := value.LookupPath(cue.ParsePath("expression"))
	if !exprVal.Exists() {
		return nil
	}

	iter, err := exprVal.Fields()
	if err != nil {
		return fmt.Errorf("iterating expressions: %w", err)
	}

	for iter.Next() {
		name := iter.Label()
		def, err := compiler.CompileDefinition(iter.Value())
		if err != nil {
			result.Expressions = append(result.Expressions, ExpressionOutcome{
				Expression: name,
				ErrorCode:  errorCode(err),
				Err:        err,
			})
			h.logger.Debug("expression rejected", "expression", name, "error", err)
			continue
		}

		sql, err := def.ToSQL(h.dialect)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := h.store.SaveDefinition(ctx, def); err != nil {
			return err
		}

		result.Expressions = append(result.Expressions, ExpressionOutcome{
			Expression: name,
			Kind:       string(def.Kind),
			SQL:        sql,
		})
		h.logger.Debug("expression compiled", "expression", name, "sql", sql)
	}

	sort.Slice(result.Expressions, func(i, j int) bool {
		return result.Expressions[i].Expression < result.Expressions[j].Expression
	})
	return nil
}

// checkExpectations compares outcomes against the scenario expectations.
func (h *Harness) checkExpectations(expect []Expectation, result *Result) {
	for i, e := range expect {
		outcome, ok := result.Outcome(e.Expression)
		if !ok {
			result.AddError(fmt.Sprintf("expect[%d]: expression %s is not defined in specs", i, e.Expression))
			continue
		}

		switch {
		case e.SQL != "" && outcome.Err != nil:
			result.AddError(fmt.Sprintf("expect[%d]: %s: expected SQL %s, got error: %v",
				i, e.Expression, e.SQL, outcome.Err))
		case e.SQL != "" && outcome.SQL != e.SQL:
			result.AddError(fmt.Sprintf("expect[%d]: %s: SQL mismatch\n  Expected: %s\n  Actual:   %s",
				i, e.Expression, e.SQL, outcome.SQL))
		case e.Error != "" && outcome.Err == nil:
			result.AddError(fmt.Sprintf("expect[%d]: %s: expected error %s, compiled to %s",
				i, e.Expression, e.Error, outcome.SQL))
		case e.Error != "" && !matchError(outcome, e.Error):
			result.AddError(fmt.Sprintf("expect[%d]: %s: expected error %s, got: %v",
				i, e.Expression, e.Error, outcome.Err))
		default:
			h.logger.Debug("expectation met", "expression", e.Expression)
		}
	}
}

// executeQuery assembles, runs and records one query check.
func (h *Harness) executeQuery(ctx context.Context, index int, q QueryCheck, result *Result) error {
	stmt := querysql.SelectStatement{
		From:  q.From,
		Limit: q.Limit,
	}
	for _, f := range q.Fields {
		stmt.Fields = append(stmt.Fields, ir.ParseFieldRef(f))
	}
	for _, f := range q.OrderBy {
		stmt.OrderBy = append(stmt.OrderBy, ir.ParseFieldRef(f))
	}

	if q.Where != "" {
		def, err := h.store.GetDefinition(ctx, q.Where)
		if err != nil {
			return err
		}
		where, err := def.Where()
		if err != nil {
			return err
		}
		stmt.Where = where
	}

	for _, j := range q.Joins {
		def, err := h.store.GetDefinition(ctx, j.On)
		if err != nil {
			return err
		}
		on, err := def.JoinConstraint()
		if err != nil {
			return err
		}
		kind, err := parseJoinKind(j.Kind)
		if err != nil {
			return err
		}
		stmt.Joins = append(stmt.Joins, querysql.JoinClause{Kind: kind, Table: j.Table, On: on})
	}

	rows, err := h.store.QueryRows(ctx, stmt)
	if err != nil {
		return err
	}

	run := store.QueryRun{
		ID:         h.ids.Generate(),
		Expression: q.Where,
		SQL:        rows.SQL,
		RowCount:   len(rows.Rows),
	}
	if err := h.store.RecordRun(ctx, run); err != nil {
		return err
	}

	result.Queries = append(result.Queries, QueryOutcome{ID: run.ID, SQL: run.SQL, Rows: run.RowCount})
	h.logger.Debug("query executed", "index", index, "run_id", run.ID, "rows", run.RowCount)

	if run.RowCount != *q.Rows {
		return fmt.Errorf("expected %d rows, got %d\n  SQL: %s", *q.Rows, run.RowCount, run.SQL)
	}
	return nil
}

// errorCode classifies a compile error by its validation code.
func errorCode(err error) string {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return compiler.MapFieldToCode(compileErr.Field)
	}
	return compiler.ErrCUE
}

// matchError reports whether want is the outcome's validation code or a
// substring of its error, such as INVALID_EXPRESSION.
func matchError(o ExpressionOutcome, want string) bool {
	if o.Err == nil {
		return false
	}
	return want == o.ErrorCode || strings.Contains(o.Err.Error(), want)
}
