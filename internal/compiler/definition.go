package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/multidiagtools/mdtsql/internal/queryir"
	"github.com/multidiagtools/mdtsql/internal/querysql"
)

// Kind selects the grammar a definition is checked against.
type Kind string

const (
	KindWhere Kind = "where"
	KindJoin  Kind = "join"
)

// Definition is a named, compiled expression from a definitions file.
type Definition struct {
	Name        string
	Kind        Kind
	Filter      string
	Description string
	Strict      bool // join only
	Node        queryir.Node
	Fingerprint string
}

// Grammar returns the join grammar mode of the definition.
func (d *Definition) Grammar() queryir.JoinGrammar {
	if d.Strict {
		return queryir.JoinGrammarStrict
	}
	return queryir.JoinGrammarLenient
}

// Where returns the definition as a where expression.
func (d *Definition) Where() (querysql.WhereExpression, error) {
	if d.Kind != KindWhere {
		return querysql.WhereExpression{}, fmt.Errorf("expression %s is a %s constraint, not a where expression", d.Name, d.Kind)
	}
	return querysql.NewWhereExpression(d.Node)
}

// JoinConstraint returns the definition as a join constraint.
func (d *Definition) JoinConstraint() (querysql.JoinConstraintExpression, error) {
	if d.Kind != KindJoin {
		return querysql.JoinConstraintExpression{}, fmt.Errorf("expression %s is a %s expression, not a join constraint", d.Name, d.Kind)
	}
	return querysql.JoinOn(d.Node, d.Grammar())
}

// ToSQL renders the definition with esc through the container matching its
// kind.
func (d *Definition) ToSQL(esc querysql.Escaper) (string, error) {
	switch d.Kind {
	case KindWhere:
		w, err := d.Where()
		if err != nil {
			return "", err
		}
		return w.ToSQL(esc)
	case KindJoin:
		j, err := d.JoinConstraint()
		if err != nil {
			return "", err
		}
		return j.ToSQL(esc)
	default:
		return "", fmt.Errorf("expression %s has unknown kind %q", d.Name, d.Kind)
	}
}

// CompileDefinition parses a CUE value into a Definition.
//
// The CUE value should be the definition struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`expression: clientRange: { kind: "where", filter: "..." }`)
//	def, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.clientRange")))
func CompileDefinition(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	kind, err := parseKind(v)
	if err != nil {
		return nil, err
	}
	def.Kind = kind

	filterVal := v.LookupPath(cue.ParsePath("filter"))
	if !filterVal.Exists() {
		return nil, &CompileError{
			Field:   "filter",
			Message: "filter is required",
			Pos:     v.Pos(),
		}
	}
	filter, err := filterVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	if strings.TrimSpace(filter) == "" {
		return nil, &CompileError{
			Field:   "filter",
			Message: "filter must not be empty",
			Pos:     filterVal.Pos(),
		}
	}
	def.Filter = filter

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Description = desc
	}

	strictVal := v.LookupPath(cue.ParsePath("strict"))
	if strictVal.Exists() {
		strict, err := strictVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if strict && kind != KindJoin {
			return nil, &CompileError{
				Field:   "strict",
				Message: "strict only applies to join constraints",
				Pos:     strictVal.Pos(),
			}
		}
		def.Strict = strict
	}

	node, err := queryir.Parse(filter)
	if err != nil {
		return nil, &CompileError{
			Field:   "syntax",
			Message: err.Error(),
			Pos:     filterVal.Pos(),
		}
	}

	switch kind {
	case KindWhere:
		err = queryir.ValidateWhere(node)
	case KindJoin:
		err = queryir.ValidateJoinConstraint(node, def.Grammar())
	}
	if err != nil {
		return nil, &CompileError{
			Field:   "grammar",
			Message: err.Error(),
			Pos:     filterVal.Pos(),
		}
	}
	def.Node = node

	def.Fingerprint, err = queryir.Fingerprint(node)
	if err != nil {
		return nil, fmt.Errorf("expression %s: %w", def.Name, err)
	}

	return def, nil
}

// CompileDefinitions compiles every field of the top-level "expression"
// struct, ordered by name. It stops at the first error.
func CompileDefinitions(v cue.Value) ([]*Definition, error) {
	exprVal := v.LookupPath(cue.ParsePath("expression"))
	if !exprVal.Exists() {
		return nil, nil
	}

	iter, err := exprVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*Definition
	for iter.Next() {
		def, err := CompileDefinition(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("expression.%s: %w", iter.Label(), err)
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs, nil
}

// parseKind reads the required kind field.
func parseKind(v cue.Value) (Kind, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return "", &CompileError{
			Field:   "kind",
			Message: "kind is required (where or join)",
			Pos:     v.Pos(),
		}
	}
	s, err := kindVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	switch Kind(s) {
	case KindWhere, KindJoin:
		return Kind(s), nil
	default:
		return "", &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("invalid kind %q: must be where or join", s),
			Pos:     kindVal.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
