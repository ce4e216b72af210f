package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multidiagtools/mdtsql/internal/queryir"
	"github.com/multidiagtools/mdtsql/internal/querysql"
)

func compileSource(t *testing.T, src string) cue.Value {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("defs.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompileDefinitionWhere(t *testing.T) {
	v := compileSource(t, `
		expression: clientRange: {
			kind:        "where"
			filter:      "Client_tbl.Id_PK > 0 && Client_tbl.Id_PK < 44"
			description: "Clients in the first range"
		}
	`)

	def, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.clientRange")))
	require.NoError(t, err)

	assert.Equal(t, "clientRange", def.Name)
	assert.Equal(t, KindWhere, def.Kind)
	assert.Equal(t, "Clients in the first range", def.Description)
	assert.False(t, def.Strict)
	assert.Len(t, def.Fingerprint, 64)

	sql, err := def.ToSQL(querysql.ANSI)
	require.NoError(t, err)
	assert.Equal(t, `("Client_tbl"."Id_PK">0)AND("Client_tbl"."Id_PK"<44)`, sql)

	_, err = def.JoinConstraint()
	assert.Error(t, err)
}

func TestCompileDefinitionJoin(t *testing.T) {
	v := compileSource(t, `
		expression: clientAddress: {
			kind:   "join"
			filter: "Address_tbl.Client_Id_FK == Client_tbl.Id_PK"
			strict: true
		}
	`)

	def, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.clientAddress")))
	require.NoError(t, err)

	assert.Equal(t, KindJoin, def.Kind)
	assert.True(t, def.Strict)
	assert.Equal(t, queryir.JoinGrammarStrict, def.Grammar())

	j, err := def.JoinConstraint()
	require.NoError(t, err)
	assert.Equal(t, queryir.JoinGrammarStrict, j.Grammar())

	sql, err := def.ToSQL(querysql.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "`Address_tbl`.`Client_Id_FK`=`Client_tbl`.`Id_PK`", sql)

	_, err = def.Where()
	assert.Error(t, err)
}

func TestCompileDefinitionLenientJoinAcceptsLiteral(t *testing.T) {
	v := compileSource(t, `
		expression: activeAddress: {
			kind:   "join"
			filter: "Address_tbl.Client_Id_FK == Client_tbl.Id_PK && Address_tbl.Active == 1"
		}
	`)

	def, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.activeAddress")))
	require.NoError(t, err)
	assert.Equal(t, queryir.JoinGrammarLenient, def.Grammar())
}

func TestCompileDefinitionErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing kind",
			src:       `expression: e: { filter: "A.a == 1" }`,
			wantField: "kind",
			wantMsg:   "kind is required",
		},
		{
			name:      "unknown kind",
			src:       `expression: e: { kind: "having", filter: "A.a == 1" }`,
			wantField: "kind",
			wantMsg:   `invalid kind "having"`,
		},
		{
			name:      "missing filter",
			src:       `expression: e: { kind: "where" }`,
			wantField: "filter",
			wantMsg:   "filter is required",
		},
		{
			name:      "blank filter",
			src:       `expression: e: { kind: "where", filter: "  " }`,
			wantField: "filter",
			wantMsg:   "must not be empty",
		},
		{
			name:      "strict on where",
			src:       `expression: e: { kind: "where", filter: "A.a == 1", strict: true }`,
			wantField: "strict",
			wantMsg:   "only applies to join",
		},
		{
			name:      "syntax error",
			src:       `expression: e: { kind: "where", filter: "A.a == " }`,
			wantField: "syntax",
			wantMsg:   "INVALID_EXPRESSION",
		},
		{
			name:      "literal on the left",
			src:       `expression: e: { kind: "where", filter: "25 == A.a" }`,
			wantField: "syntax",
			wantMsg:   "left operand must be a field",
		},
		{
			name:      "strict join with literal",
			src:       `expression: e: { kind: "join", filter: "A.a == 3", strict: true }`,
			wantField: "grammar",
			wantMsg:   "both sides must be fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compileSource(t, tt.src)
			_, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.e")))
			require.Error(t, err)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, compileErr.Field)
			assert.Contains(t, compileErr.Message, tt.wantMsg)
			assert.True(t, compileErr.Pos.IsValid())
			assert.Contains(t, err.Error(), "defs.cue:")
		})
	}
}

func TestCompileDefinitionWrongType(t *testing.T) {
	v := compileSource(t, `expression: e: { kind: 5, filter: "A.a == 1" }`)
	_, err := CompileDefinition(v.LookupPath(cue.ParsePath("expression.e")))
	require.Error(t, err)
}

func TestCompileDefinitionsSortedByName(t *testing.T) {
	v := compileSource(t, `
		expression: zeta:  { kind: "where", filter: "A.a == 1" }
		expression: alpha: { kind: "where", filter: "A.a == 2" }
		expression: mid:   { kind: "join", filter: "A.a == B.b" }
	`)

	defs, err := CompileDefinitions(v)
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
}

func TestCompileDefinitionsNone(t *testing.T) {
	v := compileSource(t, `other: 1`)
	defs, err := CompileDefinitions(v)
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestCompileDefinitionsStopsAtFirstError(t *testing.T) {
	v := compileSource(t, `
		expression: good: { kind: "where", filter: "A.a == 1" }
		expression: bad:  { kind: "where", filter: "A.a" }
	`)
	_, err := CompileDefinitions(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression.bad")
}

func TestCompileErrorWithoutPosition(t *testing.T) {
	err := &CompileError{Field: "kind", Message: "kind is required"}
	assert.Equal(t, "kind: kind is required", err.Error())
}
