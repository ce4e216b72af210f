package harness

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ClientsScenarioPasses(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/clients.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	outcome, ok := result.Outcome("literalOnLeft")
	require.True(t, ok)
	assert.Error(t, outcome.Err)
	assert.Equal(t, "E103", outcome.ErrorCode)

	require.Len(t, result.Queries, 3)
	assert.Equal(t, "clients-0001", result.Queries[0].ID)
	assert.Equal(t, 1, result.Queries[2].Rows)
}

func TestRun_IsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/clients.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	snapA := NewSnapshot(s, first)
	a, err := snapA.MarshalCanonical()
	require.NoError(t, err)
	snapB := NewSnapshot(s, second)
	b, err := snapB.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ReportsMismatches(t *testing.T) {
	dir := t.TempDir()
	defs := `
expression: eq: { kind: "where", filter: "A.a == 1" }
expression: bad: { kind: "where", filter: "A.a ==" }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(defs), 0o644))

	s := &Scenario{
		Name:        "mismatch",
		Description: "every expectation is wrong",
		Specs:       []string{filepath.Join(dir, "defs.cue")},
		Expect: []Expectation{
			{Expression: "eq", SQL: `"A"."a"=2`},
			{Expression: "eq", Error: "INVALID_EXPRESSION"},
			{Expression: "bad", SQL: `"A"."a"=1`},
			{Expression: "bad", Error: "E104"},
			{Expression: "missing", SQL: "x"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "SQL mismatch")
	assert.Contains(t, result.Errors[1], "expected error INVALID_EXPRESSION")
	assert.Contains(t, result.Errors[2], "got error")
	assert.Contains(t, result.Errors[3], "expected error E104")
	assert.Contains(t, result.Errors[4], "not defined in specs")
}

func TestRun_QueryRowMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"),
		[]byte(`expression: one: { kind: "where", filter: "T.id == 1" }`), 0o644))

	three := 3
	s := &Scenario{
		Name:        "rows",
		Description: "row count is off",
		Specs:       []string{filepath.Join(dir, "defs.cue")},
		Setup: []string{
			"CREATE TABLE T (id INTEGER)",
			"INSERT INTO T VALUES (1), (2)",
		},
		Queries: []QueryCheck{{From: "T", Where: "one", Rows: &three}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected 3 rows, got 1")
	assert.Equal(t, "rows-0001", result.Queries[0].ID)
}

func TestRun_WhereNameNotInCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(`expression: {}`), 0o644))

	zero := 0
	s := &Scenario{
		Name:        "missing_where",
		Description: "where names an unknown expression",
		Specs:       []string{filepath.Join(dir, "defs.cue")},
		Setup:       []string{"CREATE TABLE T (id INTEGER)"},
		Queries:     []QueryCheck{{From: "T", Where: "nope", Rows: &zero}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "not found")
}

func TestRun_BadSetupIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(`expression: {}`), 0o644))

	s := &Scenario{
		Name:        "bad_setup",
		Description: "setup SQL does not parse",
		Specs:       []string{filepath.Join(dir, "defs.cue")},
		Setup:       []string{"CREATE TABLOID T"},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}

func TestRunWithLogger_LogsExpressions(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/join_grammar.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result, err := RunWithLogger(s, logger)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, buf.String(), "expression rejected")
	assert.Contains(t, buf.String(), "scenario=join_grammar")
}
