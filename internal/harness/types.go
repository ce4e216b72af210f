package harness

// ExpressionOutcome is the compiled form of one definition in a scenario.
// Exactly one of SQL and ErrorCode is set.
type ExpressionOutcome struct {
	Expression string `json:"expression"`
	Kind       string `json:"kind,omitempty"`
	SQL        string `json:"sql,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Err        error  `json:"-"`
}

// QueryOutcome is the result of one query check.
type QueryOutcome struct {
	ID   string `json:"id"`
	SQL  string `json:"sql"`
	Rows int    `json:"rows"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation and query check matched.
	Pass bool `json:"pass"`

	// Expressions holds every definition loaded from the spec files, ordered by
	// name, including those that failed to compile.
	Expressions []ExpressionOutcome `json:"expressions"`

	// Queries holds the query checks in scenario order.
	Queries []QueryOutcome `json:"queries,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Expressions: []ExpressionOutcome{},
		Queries:     []QueryOutcome{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Outcome returns the outcome for the named expression.
func (r *Result) Outcome(name string) (ExpressionOutcome, bool) {
	for _, o := range r.Expressions {
		if o.Expression == name {
			return o, true
		}
	}
	return ExpressionOutcome{}, false
}
