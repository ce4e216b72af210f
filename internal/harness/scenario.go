package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/querysql"
)

// Scenario defines a conformance test scenario.
// Scenarios compile the expressions declared in CUE definition files,
// compare their SQL against expectations, and optionally run queries built
// from them against a scratch SQLite database.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialect selects the escaper used for expectations (default "ansi").
	// Queries always run with the SQLite dialect.
	Dialect string `yaml:"dialect,omitempty"`

	// Specs lists paths to CUE definition files.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Expect lists per-expression expectations.
	Expect []Expectation `yaml:"expect"`

	// Setup contains SQL statements run before the queries, typically
	// CREATE TABLE and INSERT.
	Setup []string `yaml:"setup,omitempty"`

	// Queries are SELECTs assembled from catalogued expressions.
	Queries []QueryCheck `yaml:"queries,omitempty"`
}

// Expectation specifies the outcome of compiling one expression.
// Exactly one of SQL and Error must be set.
type Expectation struct {
	// Expression is the definition name.
	Expression string `yaml:"expression"`

	// SQL is the expected rendering, byte for byte.
	SQL string `yaml:"sql,omitempty"`

	// Error is an error code (INVALID_EXPRESSION, E104, ...) or a substring
	// of the expected compile error.
	Error string `yaml:"error,omitempty"`
}

// QueryCheck runs a SELECT and checks the row count.
type QueryCheck struct {
	// Fields are "table.field" references; empty selects *.
	Fields []string `yaml:"fields,omitempty"`

	// From is the FROM table.
	From string `yaml:"from"`

	// Joins are applied in order.
	Joins []JoinStep `yaml:"joins,omitempty"`

	// Where names a where expression from the spec files.
	Where string `yaml:"where,omitempty"`

	// OrderBy are "table.field" references.
	OrderBy []string `yaml:"order_by,omitempty"`

	// Limit caps the row count when positive.
	Limit int `yaml:"limit,omitempty"`

	// Rows is the expected number of rows.
	Rows *int `yaml:"rows"`
}

// JoinStep joins a table using a named join expression.
type JoinStep struct {
	Kind  string `yaml:"kind,omitempty"` // "inner" (default) or "left"
	Table string `yaml:"table"`
	On    string `yaml:"on"`
}

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "expects:" vs "expect:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Dialect != "" {
		if _, err := querysql.DialectByName(s.Dialect); err != nil {
			return err
		}
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Expect) == 0 && len(s.Queries) == 0 {
		return fmt.Errorf("expect or queries is required")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, e := range s.Expect {
		if e.Expression == "" {
			return fmt.Errorf("expect[%d]: expression is required", i)
		}
		if (e.SQL == "") == (e.Error == "") {
			return fmt.Errorf("expect[%d]: exactly one of sql and error is required", i)
		}
	}

	for i, q := range s.Queries {
		if err := validateQuery(i, &q); err != nil {
			return err
		}
	}

	return nil
}

// validateQuery validates a single query check.
func validateQuery(index int, q *QueryCheck) error {
	if q.From == "" {
		return fmt.Errorf("queries[%d]: from is required", index)
	}
	if q.Rows == nil {
		return fmt.Errorf("queries[%d]: rows is required", index)
	}
	if *q.Rows < 0 {
		return fmt.Errorf("queries[%d]: rows must be non-negative", index)
	}
	for _, f := range append(append([]string{}, q.Fields...), q.OrderBy...) {
		if ir.ParseFieldRef(f).IsNull() {
			return fmt.Errorf("queries[%d]: field %q must be table.field", index, f)
		}
	}
	for j, join := range q.Joins {
		if join.Table == "" || join.On == "" {
			return fmt.Errorf("queries[%d].joins[%d]: table and on are required", index, j)
		}
		if _, err := parseJoinKind(join.Kind); err != nil {
			return fmt.Errorf("queries[%d].joins[%d]: %w", index, j, err)
		}
	}
	return nil
}

// parseJoinKind maps the YAML join kind to querysql.JoinKind.
func parseJoinKind(kind string) (querysql.JoinKind, error) {
	switch kind {
	case "", "inner":
		return querysql.JoinInner, nil
	case "left":
		return querysql.JoinLeft, nil
	default:
		return 0, fmt.Errorf("unknown join kind %q: must be inner or left", kind)
	}
}
