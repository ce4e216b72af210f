package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multidiagtools/mdtsql/internal/store"
	"github.com/multidiagtools/mdtsql/internal/testutil"
)

// createCatalog compiles testdata/defs into a new catalog and seeds the
// client tables.
func createCatalog(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	_, err := executeCompile(t, "text", validDefsDir, "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, q := range []string{
		`CREATE TABLE Client_tbl (Id_PK INTEGER PRIMARY KEY, Name TEXT)`,
		`CREATE TABLE Address_tbl (Id_PK INTEGER PRIMARY KEY, Client_Id_FK INTEGER, Street TEXT)`,
		`INSERT INTO Client_tbl VALUES (10, 'Ada'), (25, 'Bob'), (44, 'Cy'), (50, 'Dee')`,
		`INSERT INTO Address_tbl VALUES (1, 25, 'Main St'), (2, 44, 'Side Rd')`,
	} {
		require.NoError(t, st.Exec(ctx, q))
	}
	return dbPath
}

// runQueryWith runs the query command with a deterministic run ID generator.
func runQueryWith(t *testing.T, opts *QueryOptions) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	if opts.RootOptions == nil {
		opts.RootOptions = &RootOptions{Format: "text"}
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = testutil.NewSequenceIDGenerator("q")
	}
	err := runQuery(context.Background(), opts, cmd)
	return buf.String(), errBuf.String(), err
}

func listRuns(t *testing.T, dbPath string) []store.QueryRun {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	return runs
}

func TestQueryWhere(t *testing.T) {
	dbPath := createCatalog(t)

	output, _, err := runQueryWith(t, &QueryOptions{
		Database: dbPath,
		From:     "Client_tbl",
		Where:    "clientRange",
		OrderBy:  []string{"Client_tbl.Id_PK"},
	})
	require.NoError(t, err)

	assert.Contains(t, output, `SELECT * FROM "Client_tbl" WHERE ("Client_tbl"."Id_PK">0)AND("Client_tbl"."Id_PK"<44) ORDER BY "Client_tbl"."Id_PK"`)
	assert.Contains(t, output, "Ada")
	assert.Contains(t, output, "Bob")
	assert.NotContains(t, output, "Dee")
	assert.Contains(t, output, "_2 rows_")

	runs := listRuns(t, dbPath)
	require.Len(t, runs, 1)
	assert.Equal(t, "q-0001", runs[0].ID)
	assert.Equal(t, "clientRange", runs[0].Expression)
	assert.Equal(t, 2, runs[0].RowCount)
}

func TestQueryInnerJoinJSON(t *testing.T) {
	dbPath := createCatalog(t)

	output, _, err := runQueryWith(t, &QueryOptions{
		RootOptions: &RootOptions{Format: "json"},
		Database:    dbPath,
		From:        "Client_tbl",
		Fields:      []string{"Client_tbl.Name", "Address_tbl.Street"},
		Joins:       []string{"Address_tbl=clientAddress"},
		OrderBy:     []string{"Client_tbl.Name"},
	})
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "q-0001", resp.RunID)
	assert.Equal(t, []string{"Name", "Street"}, resp.Data.Columns)
	assert.Equal(t, []map[string]any{
		{"Name": "Bob", "Street": "Main St"},
		{"Name": "Cy", "Street": "Side Rd"},
	}, resp.Data.Rows)
	assert.Contains(t, resp.Data.SQL, `INNER JOIN "Address_tbl" ON "Address_tbl"."Client_Id_FK"="Client_tbl"."Id_PK"`)
}

func TestQueryLeftJoinShowsNulls(t *testing.T) {
	dbPath := createCatalog(t)

	output, _, err := runQueryWith(t, &QueryOptions{
		Database:  dbPath,
		From:      "Client_tbl",
		Fields:    []string{"Client_tbl.Name", "Address_tbl.Street"},
		LeftJoins: []string{"Address_tbl = clientAddress"},
		OrderBy:   []string{"Client_tbl.Name"},
	})
	require.NoError(t, err)
	assert.Contains(t, output, "LEFT JOIN")
	assert.Contains(t, output, "NULL")
	assert.Contains(t, output, "_4 rows_")
}

func TestQueryNoRows(t *testing.T) {
	dbPath := createCatalog(t)

	output, _, err := runQueryWith(t, &QueryOptions{
		Database: dbPath,
		From:     "Address_tbl",
		Fields:   []string{"Address_tbl.Street"},
		Joins:    []string{"Client_tbl=clientAddress"},
		Where:    "nameLike",
		Limit:    0,
	})
	require.NoError(t, err)
	// Bob and Cy both lack an 'e' in second position
	assert.Contains(t, output, "_No rows_")
}

func TestQueryDryRunDoesNotRecord(t *testing.T) {
	dbPath := createCatalog(t)

	output, _, err := runQueryWith(t, &QueryOptions{
		Database: dbPath,
		From:     "Client_tbl",
		Where:    "nameLike",
		Limit:    5,
		DryRun:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Client_tbl" WHERE "Client_tbl"."Name" LIKE '_e%' LIMIT 5`+"\n", output)
	assert.Empty(t, listRuns(t, dbPath))
}

func TestQueryErrors(t *testing.T) {
	dbPath := createCatalog(t)

	tests := []struct {
		name    string
		opts    QueryOptions
		wantErr string
	}{
		{
			name:    "unknown where expression",
			opts:    QueryOptions{From: "Client_tbl", Where: "nope"},
			wantErr: "definition nope: not found",
		},
		{
			name:    "join constraint used as where",
			opts:    QueryOptions{From: "Client_tbl", Where: "clientAddress"},
			wantErr: "not a where expression",
		},
		{
			name:    "where expression used as join",
			opts:    QueryOptions{From: "Client_tbl", Joins: []string{"Address_tbl=clientRange"}},
			wantErr: "not a join constraint",
		},
		{
			name:    "malformed join flag",
			opts:    QueryOptions{From: "Client_tbl", Joins: []string{"Address_tbl"}},
			wantErr: "must be table=expression",
		},
		{
			name:    "table outside the statement",
			opts:    QueryOptions{From: "Address_tbl", Where: "clientRange"},
			wantErr: `"Client_tbl"`,
		},
		{
			name:    "negative limit",
			opts:    QueryOptions{From: "Client_tbl", Limit: -1},
			wantErr: "limit must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Database = dbPath
			output, _, err := runQueryWith(t, &opts)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, output, "Error [")
		})
	}

	assert.Empty(t, listRuns(t, dbPath))
}

func TestQueryVerboseLogs(t *testing.T) {
	dbPath := createCatalog(t)

	_, logs, err := runQueryWith(t, &QueryOptions{
		RootOptions: &RootOptions{Format: "text", Verbose: true},
		Database:    dbPath,
		From:        "Client_tbl",
		Where:       "clientRange",
	})
	require.NoError(t, err)
	assert.Contains(t, logs, "opening catalog")
	assert.Contains(t, logs, "query recorded")
	assert.Contains(t, logs, "run_id=q-0001")
}

func TestQueryCommandRequiredFlags(t *testing.T) {
	cmd := NewQueryCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--from", "Client_tbl"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestQueryCommandFlagsExecute(t *testing.T) {
	dbPath := createCatalog(t)

	buf := &bytes.Buffer{}
	cmd := NewQueryCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--db", dbPath,
		"--from", "Client_tbl",
		"--fields", "Client_tbl.Name,Address_tbl.Street",
		"--join", "Address_tbl=clientAddress",
		"--limit", "1",
		"--order-by", "Client_tbl.Name",
	})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "LIMIT 1")
	assert.Contains(t, buf.String(), "_1 rows_")

	runs := listRuns(t, dbPath)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].ID, 36)
}
