package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

func TestParse_Comparisons(t *testing.T) {
	tests := []struct {
		input string
		op    ComparisonOp
		right ir.Operand
	}{
		{"Client_tbl.Id_PK == 25", OpEq, ir.OfInt(25)},
		{"Client_tbl.Id_PK = 25", OpEq, ir.OfInt(25)},
		{"Client_tbl.Id_PK != 25", OpNotEq, ir.OfInt(25)},
		{"Client_tbl.Id_PK <> 25", OpNotEq, ir.OfInt(25)},
		{"Client_tbl.Id_PK < -3", OpLt, ir.OfInt(-3)},
		{"Client_tbl.Id_PK<=44", OpLtEq, ir.OfInt(44)},
		{"Client_tbl.Id_PK > 0", OpGt, ir.OfInt(0)},
		{"Client_tbl.Id_PK >= 0", OpGtEq, ir.OfInt(0)},
		{"Client_tbl.Id_PK = 'it''s'", OpEq, ir.OfString("it's")},
		{"Client_tbl.Id_PK LIKE '?25?'", OpEq, ir.OfLike("?25?")},
		{"Client_tbl.Id_PK like '*x'", OpEq, ir.OfLike("*x")},
		{"Client_tbl.Id_PK == like('?1')", OpEq, ir.OfLike("?1")},
		{"Client_tbl.Id_PK = Other.Id_FK", OpEq, ir.NewFieldRef("Other", "Id_FK")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := Parse(tt.input)
			require.NoError(t, err)

			c, ok := n.(*Comparison)
			require.True(t, ok, "expected comparison, got %T", n)
			assert.Equal(t, clientID, c.Left())
			assert.Equal(t, tt.op, c.Op())
			assert.Equal(t, tt.right, c.Right())
		})
	}
}

func TestParse_Precedence(t *testing.T) {
	// AND binds tighter than OR
	n := MustParse("A.a = 1 || A.a = 2 && A.a = 3")

	or, ok := n.(*Logical)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op())
	assert.Equal(t, "A.a == 1", or.Left().String())

	and, ok := or.Right().(*Logical)
	require.True(t, ok)
	assert.Equal(t, OpAnd, and.Op())
}

func TestParse_LeftAssociative(t *testing.T) {
	n := MustParse("A.a = 1 AND A.a = 2 and A.a = 3")
	assert.Equal(t, "((A.a == 1) && (A.a == 2)) && (A.a == 3)", n.String())
}

func TestParse_Parentheses(t *testing.T) {
	n := MustParse("((A.a > 0) && (A.a < 44)) || (A.a == 25)")
	assert.Equal(t, "((A.a > 0) && (A.a < 44)) || (A.a == 25)", n.String())
	assert.Equal(t, 3, Depth(n))
}

func TestParse_QualifiedAndQuotedNames(t *testing.T) {
	n := MustParse(`main.Client_tbl.Id_PK = 1`)
	assert.Equal(t, ir.NewFieldRef("main.Client_tbl", "Id_PK"), n.(*Comparison).Left())

	n = MustParse(`"my table"."and" = "B"."b"`)
	c := n.(*Comparison)
	assert.Equal(t, ir.NewFieldRef("my table", "and"), c.Left())
	assert.Equal(t, ir.NewFieldRef("B", "b"), c.Right())
}

func TestParse_StringRoundTrip(t *testing.T) {
	inputs := []string{
		"Client_tbl.Id_PK == 25",
		"(A.a > 0) && (A.a < 44)",
		"((A.a == 25) || (A.a == 44)) && (B.b LIKE '?x*')",
		"A.a != 'quote''s'",
		`"my table"."and" == like('*')`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			n := MustParse(input)
			again, err := Parse(n.String())
			require.NoError(t, err)
			assert.Equal(t, n.String(), again.String())
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		offset  int
		message string
	}{
		{"empty", "   ", 3, "empty expression"},
		{"literal on left", "25 == Client_tbl.Id_PK", 0, "left operand must be a field"},
		{"string on left", "'x' = A.a", 0, "left operand must be a field"},
		{"like on left", "like('x') = A.a", 0, "left operand must be a field"},
		{"nested comparison", "(A.a = 1) = 2", 10, "can not be compared again"},
		{"chained comparison", "A.a = 1 = 2", 8, "can not be compared again"},
		{"like with not equal", "A.a != like('?')", 4, "LIKE pattern can only be compared with Eq"},
		{"like with less than", "A.a < like('?')", 4, "LIKE"},
		{"unqualified field", "a = 1", 0, "table.field"},
		{"missing operand", "A.a =", 5, "expected field, integer, string"},
		{"missing operator", "A.a 1", 4, "expected comparison operator"},
		{"unclosed paren", "(A.a = 1", 8, "expected ')'"},
		{"trailing tokens", "A.a = 1 )", 8, "expected end of expression"},
		{"single ampersand", "A.a = 1 & A.b = 2", 8, "did you mean '&&'"},
		{"single pipe", "A.a = 1 | A.b = 2", 8, "did you mean '||'"},
		{"unterminated string", "A.a = 'abc", 6, "unterminated string"},
		{"unterminated ident", `"A.a = 1`, 0, "unterminated quoted identifier"},
		{"bare minus", "A.a = -", 6, "expected digits"},
		{"int overflow", "A.a = 99999999999999999999", 6, "out of range"},
		{"bad char", "A.a = 1 ; drop", 8, "unexpected character"},
		{"like without string", "A.a LIKE 1", 9, "string pattern after LIKE"},
		{"dangling and", "A.a = 1 &&", 10, "expected field or '('"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, n)
			assert.True(t, IsInvalidExpression(err), "got %v", err)

			var ee *ExprError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.offset, ee.Offset)
			assert.Contains(t, ee.Message, tt.message)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("1 = A.a") })
}
