// Package harness provides conformance testing for expression definitions.
//
// The harness loads CUE definition files, compiles every expression they
// declare, and checks the rendered SQL and compile errors against a
// scenario. Queries assembled from the compiled expressions can then be run
// against a scratch SQLite database.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: client_range
//	description: "What this scenario validates"
//	dialect: ansi
//	specs:
//	  - ../defs/clients.cue
//	expect:
//	  - expression: clientRange
//	    sql: '("Client_tbl"."Id_PK">0)AND("Client_tbl"."Id_PK"<44)'
//	  - expression: literalOnLeft
//	    error: INVALID_EXPRESSION
//	setup:
//	  - CREATE TABLE Client_tbl (Id_PK INTEGER PRIMARY KEY)
//	queries:
//	  - from: Client_tbl
//	    where: clientRange
//	    rows: 2
//
// An expectation's error matches a validation code (E103), or any substring
// of the compile error.
//
// # Deterministic Testing
//
// The harness uses:
//   - Fixed run IDs (testutil.SequenceIDGenerator, prefixed with the scenario name)
//   - In-memory SQLite database (isolated per run)
//   - Expressions sorted by name
//
// This ensures identical snapshots across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/clients.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
