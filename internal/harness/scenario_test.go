package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario and an empty spec file next to it.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte("expression: {}\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/clients.yaml")
	require.NoError(t, err)

	assert.Equal(t, "clients", s.Name)
	assert.Equal(t, "ansi", s.Dialect)
	assert.Equal(t, []string{
		filepath.Join("testdata", "defs", "clients.cue"),
		filepath.Join("testdata", "defs", "rejected.cue"),
	}, s.Specs)
	assert.Len(t, s.Expect, 6)
	assert.Equal(t, `"Client_tbl"."Name" LIKE '_e%'`, s.Expect[3].SQL)
	require.Len(t, s.Queries, 3)
	require.NotNil(t, s.Queries[1].Rows)
	assert.Equal(t, 2, *s.Queries[1].Rows)
	assert.Equal(t, "clientAddress", s.Queries[1].Joins[0].On)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nexpects: []\n",
			wantErr: "field expects not found",
		},
		{
			name:    "missing name",
			content: "description: d\nspecs: [defs.cue]\nexpect: [{expression: a, sql: x}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nspecs: [defs.cue]\nexpect: [{expression: a, sql: x}]\n",
			wantErr: "description is required",
		},
		{
			name:    "unknown dialect",
			content: "name: x\ndescription: d\ndialect: oracle\nspecs: [defs.cue]\nexpect: [{expression: a, sql: x}]\n",
			wantErr: `unknown dialect "oracle"`,
		},
		{
			name:    "no specs",
			content: "name: x\ndescription: d\nexpect: [{expression: a, sql: x}]\n",
			wantErr: "specs list is required",
		},
		{
			name:    "spec not found",
			content: "name: x\ndescription: d\nspecs: [missing.cue]\nexpect: [{expression: a, sql: x}]\n",
			wantErr: "spec file not found",
		},
		{
			name:    "nothing to check",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\n",
			wantErr: "expect or queries is required",
		},
		{
			name:    "sql and error",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nexpect: [{expression: a, sql: x, error: y}]\n",
			wantErr: "exactly one of sql and error",
		},
		{
			name:    "expectation without expression",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nexpect: [{sql: x}]\n",
			wantErr: "expression is required",
		},
		{
			name:    "query without rows",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nqueries: [{from: T}]\n",
			wantErr: "rows is required",
		},
		{
			name:    "query with unqualified field",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nqueries: [{from: T, fields: [Name], rows: 0}]\n",
			wantErr: "must be table.field",
		},
		{
			name:    "bad join kind",
			content: "name: x\ndescription: d\nspecs: [defs.cue]\nqueries: [{from: T, joins: [{table: U, on: j, kind: outer}], rows: 0}]\n",
			wantErr: `unknown join kind "outer"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
