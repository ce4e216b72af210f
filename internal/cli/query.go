package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/querysql"
	"github.com/multidiagtools/mdtsql/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database  string
	From      string
	Fields    []string
	Where     string
	Joins     []string // table=expression
	LeftJoins []string // table=expression
	OrderBy   []string
	Limit     int
	DryRun    bool

	// IDGenerator overrides the run ID generator (for testing).
	// If nil, defaults to store.UUIDGenerator.
	IDGenerator store.RunIDGenerator
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	RunID   string           `json:"run_id,omitempty"`
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a select built from catalog expressions",
		Long: `Build a SELECT statement from expressions saved in a catalog and run it.

The where and join constraints are looked up by name in the catalog
written by "compile --db". Every executed query is recorded in the
catalog's run log.

Examples:
  mdtsql query --db catalog.db --from Client_tbl --where clientRange
  mdtsql query --db catalog.db --from Client_tbl --join Address_tbl=clientAddress \
    --fields Client_tbl.Name,Address_tbl.Street --order-by Client_tbl.Name
  mdtsql query --db catalog.db --from Client_tbl --where clientRange --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runQuery(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to catalog database (required)")
	cmd.Flags().StringVar(&opts.From, "from", "", "table to select from (required)")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "table.field list to select (default *)")
	cmd.Flags().StringVar(&opts.Where, "where", "", "name of a where expression in the catalog")
	cmd.Flags().StringArrayVar(&opts.Joins, "join", nil, "inner join as table=expression (repeatable)")
	cmd.Flags().StringArrayVar(&opts.LeftJoins, "left-join", nil, "left join as table=expression (repeatable)")
	cmd.Flags().StringSliceVar(&opts.OrderBy, "order-by", nil, "table.field list to order by")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 for no limit)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the SQL without running it")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	if opts.Limit < 0 {
		return outputQueryError(formatter, ErrCodeQuery, fmt.Sprintf("limit must be non-negative, got %d", opts.Limit))
	}

	logger.Debug("opening catalog", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return outputQueryError(formatter, ErrCodeNotFound, fmt.Sprintf("opening catalog: %v", err))
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing catalog", "error", closeErr)
		}
	}()

	stmt, err := buildStatement(ctx, st, opts)
	if err != nil {
		return outputQueryError(formatter, ErrCodeQuery, err.Error())
	}

	if opts.DryRun {
		sql, err := querysql.NewSQLCompiler(st.Escaper()).Compile(stmt)
		if err != nil {
			return outputQueryError(formatter, ErrCodeQuery, err.Error())
		}
		if formatter.Format == "json" {
			return formatter.Success(QueryResult{SQL: sql})
		}
		fmt.Fprintln(formatter.Writer, sql)
		return nil
	}

	rows, err := st.QueryRows(ctx, stmt)
	if err != nil {
		return outputQueryError(formatter, ErrCodeQuery, err.Error())
	}
	logger.Debug("query executed", "sql", rows.SQL, "rows", len(rows.Rows))

	ids := opts.IDGenerator
	if ids == nil {
		ids = store.UUIDGenerator{}
	}
	run := store.QueryRun{
		ID:         ids.Generate(),
		Expression: opts.Where,
		SQL:        rows.SQL,
		RowCount:   len(rows.Rows),
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return outputQueryError(formatter, ErrCodeWriteFailed, err.Error())
	}
	logger.Info("query recorded", "run_id", run.ID, "rows", run.RowCount)

	return outputQuerySuccess(formatter, run.ID, rows)
}

// buildStatement resolves the named catalog expressions into a statement.
func buildStatement(ctx context.Context, st *store.Store, opts *QueryOptions) (querysql.SelectStatement, error) {
	stmt := querysql.SelectStatement{
		From:  opts.From,
		Limit: opts.Limit,
	}
	for _, f := range opts.Fields {
		stmt.Fields = append(stmt.Fields, ir.ParseFieldRef(strings.TrimSpace(f)))
	}
	for _, f := range opts.OrderBy {
		stmt.OrderBy = append(stmt.OrderBy, ir.ParseFieldRef(strings.TrimSpace(f)))
	}

	if opts.Where != "" {
		def, err := st.GetDefinition(ctx, opts.Where)
		if err != nil {
			return stmt, err
		}
		where, err := def.Where()
		if err != nil {
			return stmt, err
		}
		stmt.Where = where
	}

	joins := make([]querysql.JoinClause, 0, len(opts.Joins)+len(opts.LeftJoins))
	for _, spec := range opts.Joins {
		j, err := resolveJoin(ctx, st, querysql.JoinInner, spec)
		if err != nil {
			return stmt, err
		}
		joins = append(joins, j)
	}
	for _, spec := range opts.LeftJoins {
		j, err := resolveJoin(ctx, st, querysql.JoinLeft, spec)
		if err != nil {
			return stmt, err
		}
		joins = append(joins, j)
	}
	stmt.Joins = joins

	return stmt, nil
}

// resolveJoin parses a table=expression flag value.
func resolveJoin(ctx context.Context, st *store.Store, kind querysql.JoinKind, spec string) (querysql.JoinClause, error) {
	table, name, ok := strings.Cut(spec, "=")
	table, name = strings.TrimSpace(table), strings.TrimSpace(name)
	if !ok || table == "" || name == "" {
		return querysql.JoinClause{}, fmt.Errorf("invalid join %q: must be table=expression", spec)
	}

	def, err := st.GetDefinition(ctx, name)
	if err != nil {
		return querysql.JoinClause{}, err
	}
	on, err := def.JoinConstraint()
	if err != nil {
		return querysql.JoinClause{}, err
	}
	return querysql.JoinClause{Kind: kind, Table: table, On: on}, nil
}

// outputQuerySuccess writes the rows as JSON or a markdown table.
func outputQuerySuccess(formatter *OutputFormatter, runID string, rows *store.ResultSet) error {
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{
			Status: "ok",
			RunID:  runID,
			Data: QueryResult{
				RunID:   runID,
				SQL:     rows.SQL,
				Columns: rows.Columns,
				Rows:    rows.Maps(),
			},
		})
	}

	formatter.Status(true, "%s", rows.SQL)
	fmt.Fprintln(formatter.Writer)
	if len(rows.Rows) == 0 {
		fmt.Fprintln(formatter.Writer, "_No rows_")
		return nil
	}

	cells := make([][]string, len(rows.Rows))
	for i, row := range rows.Rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = formatValue(v)
		}
	}
	if err := formatter.Table(rows.Columns, cells); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\n_%d rows_\n", len(rows.Rows))
	return nil
}

// formatValue renders one SQLite value for a table cell.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// outputQueryError outputs a query error.
func outputQueryError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
