package compiler

import (
	"errors"
	"fmt"
	"regexp"

	"cuelang.org/go/cue"

	"github.com/multidiagtools/mdtsql/internal/queryir"
)

// Validation error codes (E100-E199)
const (
	ErrCUE              = "E100" // CUE evaluation error
	ErrInvalidKind      = "E101" // kind missing or not where/join
	ErrFilterMissing    = "E102" // filter missing or empty
	ErrFilterSyntax     = "E103" // filter text does not parse
	ErrGrammarViolation = "E104" // expression violates the grammar of its kind
	ErrStrictNotJoin    = "E105" // strict set on a where expression
	ErrInvalidName      = "E106" // definition name is not an identifier
	ErrDuplicateExpr    = "E107" // two definitions compile to the same expression
)

// ValidationError represents a definition validation error.
type ValidationError struct {
	Expression string `json:"expression,omitempty"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Line       int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	prefix := e.Field
	if e.Expression != "" {
		prefix = e.Expression + "." + e.Field
	}
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, prefix, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, prefix, e.Message)
}

// ValidateValue compiles every definition under "expression" and returns
// all errors found (does not fail-fast), followed by the set-level checks of
// Validate on the definitions that compiled.
func ValidateValue(v cue.Value) []ValidationError {
	exprVal := v.LookupPath(cue.ParsePath("expression"))
	if !exprVal.Exists() {
		return nil
	}

	iter, err := exprVal.Fields()
	if err != nil {
		return []ValidationError{fromCompileError("", formatCUEError(err))}
	}

	var errs []ValidationError
	var defs []*Definition
	for iter.Next() {
		def, err := CompileDefinition(iter.Value())
		if err != nil {
			errs = append(errs, fromCompileError(iter.Label(), err))
			continue
		}
		defs = append(defs, def)
	}

	return append(errs, Validate(defs)...)
}

// Validate checks compiled definitions against the catalog rules.
// Returns all errors found (does not fail-fast).
func Validate(defs []*Definition) []ValidationError {
	var errs []ValidationError
	byFingerprint := make(map[string]string)

	for _, def := range defs {
		// E106
		if !namePattern.MatchString(def.Name) {
			errs = append(errs, ValidationError{
				Expression: def.Name,
				Field:      "name",
				Message:    fmt.Sprintf("invalid expression name %q", def.Name),
				Code:       ErrInvalidName,
			})
		}

		// E101/E104: hand-built definitions skip CompileDefinition
		var grammarErr error
		switch def.Kind {
		case KindWhere:
			grammarErr = queryir.ValidateWhere(def.Node)
		case KindJoin:
			grammarErr = queryir.ValidateJoinConstraint(def.Node, def.Grammar())
		default:
			errs = append(errs, ValidationError{
				Expression: def.Name,
				Field:      "kind",
				Message:    fmt.Sprintf("invalid kind %q: must be where or join", def.Kind),
				Code:       ErrInvalidKind,
			})
			continue
		}
		if grammarErr != nil {
			errs = append(errs, ValidationError{
				Expression: def.Name,
				Field:      "grammar",
				Message:    grammarErr.Error(),
				Code:       ErrGrammarViolation,
			})
			continue
		}

		// E105
		if def.Strict && def.Kind != KindJoin {
			errs = append(errs, ValidationError{
				Expression: def.Name,
				Field:      "strict",
				Message:    "strict only applies to join constraints",
				Code:       ErrStrictNotJoin,
			})
		}

		// E107: same kind and same tree under two names
		fp := def.Fingerprint
		if fp == "" {
			fp, _ = queryir.Fingerprint(def.Node)
		}
		key := string(def.Kind) + ":" + fp
		if other, ok := byFingerprint[key]; ok {
			errs = append(errs, ValidationError{
				Expression: def.Name,
				Field:      "filter",
				Message:    fmt.Sprintf("same expression as %s", other),
				Code:       ErrDuplicateExpr,
			})
			continue
		}
		byFingerprint[key] = def.Name
	}

	return errs
}

// namePattern matches CUE identifier labels.
var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// fromCompileError converts a CompileDefinition error to a ValidationError.
func fromCompileError(name string, err error) ValidationError {
	var compileErr *CompileError
	if !errors.As(err, &compileErr) {
		return ValidationError{
			Expression: name,
			Field:      "expression",
			Message:    err.Error(),
			Code:       ErrCUE,
		}
	}
	ve := ValidationError{
		Expression: name,
		Field:      compileErr.Field,
		Message:    compileErr.Message,
		Code:       MapFieldToCode(compileErr.Field),
	}
	if compileErr.Pos.IsValid() {
		ve.Line = compileErr.Pos.Line()
	}
	return ve
}

// MapFieldToCode maps a CompileError field to a validation code.
func MapFieldToCode(field string) string {
	switch field {
	case "kind":
		return ErrInvalidKind
	case "filter":
		return ErrFilterMissing
	case "syntax":
		return ErrFilterSyntax
	case "grammar":
		return ErrGrammarViolation
	case "strict":
		return ErrStrictNotJoin
	default:
		return ErrCUE
	}
}
