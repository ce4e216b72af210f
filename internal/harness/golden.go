package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

// Snapshot captures the outcome of a scenario for golden comparison.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Dialect      string              `json:"dialect"`
	Expressions  []ExpressionOutcome `json:"expressions"`
	Queries      []QueryOutcome      `json:"queries,omitempty"`
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(scenario *Scenario, result *Result) Snapshot {
	dialect := scenario.Dialect
	if dialect == "" {
		dialect = "ansi"
	}
	return Snapshot{
		ScenarioName: scenario.Name,
		Dialect:      dialect,
		Expressions:  result.Expressions,
		Queries:      result.Queries,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles terminals and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	exprList := make([]any, len(s.Expressions))
	for i, o := range s.Expressions {
		m := map[string]any{"expression": o.Expression}
		if o.Kind != "" {
			m["kind"] = o.Kind
		}
		if o.SQL != "" {
			m["sql"] = o.SQL
		}
		if o.ErrorCode != "" {
			m["error_code"] = o.ErrorCode
		}
		exprList[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"dialect":       s.Dialect,
		"expressions":   exprList,
	}

	if len(s.Queries) > 0 {
		queryList := make([]any, len(s.Queries))
		for i, q := range s.Queries {
			queryList[i] = map[string]any{
				"id":   q.ID,
				"sql":  q.SQL,
				"rows": q.Rows,
			}
		}
		result["queries"] = queryList
	}
	return result
}

// MarshalCanonical serializes the snapshot to canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, NewSnapshot(scenario, result)); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already built snapshot against its golden file.
func AssertGolden(t *testing.T, snapshot Snapshot) error {
	t.Helper()

	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, snapshot.ScenarioName, data)

	return nil
}
