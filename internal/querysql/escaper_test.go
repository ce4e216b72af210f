package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

func TestDialect_EscapeIdentifier(t *testing.T) {
	tests := []struct {
		dialect Dialect
		name    string
		want    string
	}{
		{ANSI, "Client_tbl", `"Client_tbl"`},
		{ANSI, `odd"name`, `"odd""name"`},
		{ANSI, "", `""`},
		{SQLite, "Id_PK", `"Id_PK"`},
		{MySQL, "Client_tbl", "`Client_tbl`"},
		{MySQL, "odd`name", "`odd``name`"},
		{MySQL, `with"quote`, "`with\"quote`"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.EscapeIdentifier(tt.name))
		})
	}
}

func TestDialect_EscapeLiteral(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		lit     ir.Literal
		want    string
	}{
		{"int", ANSI, ir.OfInt(25), "25"},
		{"negative int", ANSI, ir.OfInt(-7), "-7"},
		{"string", ANSI, ir.OfString("abc"), "'abc'"},
		{"quote doubled", ANSI, ir.OfString("it's"), "'it''s'"},
		{"backslash kept on ansi", ANSI, ir.OfString(`a\b`), `'a\b'`},
		{"backslash escaped on mysql", MySQL, ir.OfString(`a\b`), `'a\\b'`},
		{"like translated", SQLite, ir.OfLike("?25*"), "'_25%'"},
		{"like keeps sql wildcards", ANSI, ir.OfLike("a_b%"), "'a_b%'"},
		{"nil literal", ANSI, nil, "NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.EscapeLiteral(tt.lit))
		})
	}
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("MySQL")
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)

	d, err = DialectByName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.String())

	_, err = DialectByName("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "oracle"`)
}
