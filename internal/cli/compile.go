package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/multidiagtools/mdtsql/internal/compiler"
	"github.com/multidiagtools/mdtsql/internal/querysql"
	"github.com/multidiagtools/mdtsql/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string
	DB      string // catalog database to save definitions into
	Output  string // output file path
}

// CompiledEntry is one rendered definition.
type CompiledEntry struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Filter      string `json:"filter"`
	Strict      bool   `json:"strict,omitempty"`
	SQL         string `json:"sql"`
	Fingerprint string `json:"fingerprint"`
}

// CompilationResult holds the rendered definitions.
type CompilationResult struct {
	Dialect     string          `json:"dialect"`
	Expressions []CompiledEntry `json:"expressions"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <defs-dir>",
		Short: "Compile expression definitions to SQL",
		Long: `Compile the CUE expression definitions in a directory to SQL.

Every definition is parsed, checked against the grammar of its kind and
rendered for the selected dialect. With --db the compiled definitions are
saved to a SQLite catalog for the query command.

Examples:
  mdtsql compile ./defs
  mdtsql compile ./defs --dialect mysql
  mdtsql compile ./defs --db catalog.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "ansi", "SQL dialect (ansi|sqlite|mysql)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "save compiled definitions to this catalog database")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, defsDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dialect, err := querysql.DialectByName(opts.Dialect)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	loadResult, loadErrors := LoadDefinitions(defsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, defsDir)
	for _, def := range loadResult.Definitions {
		formatter.VerboseLog("Compiled %s expression: %s", def.Kind, def.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}
	if verrs := compiler.Validate(loadResult.Definitions); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{
		Dialect:     dialect.Name,
		Expressions: make([]CompiledEntry, 0, len(loadResult.Definitions)),
	}
	for _, def := range loadResult.Definitions {
		sql, err := def.ToSQL(dialect)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("rendering %s: %v", def.Name, err), nil)
		}
		result.Expressions = append(result.Expressions, CompiledEntry{
			Name:        def.Name,
			Kind:        string(def.Kind),
			Filter:      def.Filter,
			Strict:      def.Strict,
			SQL:         sql,
			Fingerprint: def.Fingerprint,
		})
	}

	if opts.DB != "" {
		if err := saveDefinitions(ctx, opts.DB, loadResult.Definitions); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, err.Error(), nil)
		}
		formatter.VerboseLog("Saved %d definition(s) to %s", len(loadResult.Definitions), opts.DB)
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts)
}

// saveDefinitions upserts every definition into the catalog at path.
func saveDefinitions(ctx context.Context, path string, defs []*compiler.Definition) error {
	st, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer st.Close()

	for _, def := range defs {
		if err := st.SaveDefinition(ctx, def); err != nil {
			return fmt.Errorf("saving %s: %w", def.Name, err)
		}
	}
	return nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, opts *CompileOptions) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	formatter.Status(true, "Compiled %d expression(s) for %s", len(result.Expressions), result.Dialect)
	fmt.Fprintln(formatter.Writer)

	rows := make([][]string, len(result.Expressions))
	for i, e := range result.Expressions {
		kind := e.Kind
		if e.Strict {
			kind += " (strict)"
		}
		rows[i] = []string{e.Name, kind, e.SQL}
	}
	if err := formatter.Table([]string{"Name", "Kind", "SQL"}, rows); err != nil {
		return err
	}

	if opts.DB != "" {
		fmt.Fprintf(formatter.Writer, "\nSaved to catalog %s\n", opts.DB)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled expressions to %s\n", opts.Output)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs every definition error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return exitErr
	}

	formatter.Status(false, "Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return exitErr
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var ve compiler.ValidationError
	if errors.As(err, &ve) {
		if ve.Expression != "" {
			return ve.Code, fmt.Sprintf("expression.%s: %s", ve.Expression, ve.Message)
		}
		return ve.Code, ve.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeResultToFile writes the compilation result as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
