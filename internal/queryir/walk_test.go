package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multidiagtools/mdtsql/internal/ir"
)

func TestWalk_PreOrder(t *testing.T) {
	n := MustParse("(A.a = 1 || A.a = 2) && B.b = 3")

	var visited []string
	Walk(n, func(node Node) bool {
		switch v := node.(type) {
		case *Logical:
			visited = append(visited, v.Op().String())
		case *Comparison:
			visited = append(visited, v.String())
		}
		return true
	})

	assert.Equal(t, []string{"And", "Or", "A.a == 1", "A.a == 2", "B.b == 3"}, visited)
}

func TestWalk_SkipChildren(t *testing.T) {
	n := MustParse("(A.a = 1 || A.a = 2) && B.b = 3")

	count := 0
	Walk(n, func(node Node) bool {
		count++
		_, isOr := node.(*Logical)
		return !isOr || node.(*Logical).Op() != OpOr
	})

	assert.Equal(t, 3, count) // And, Or (children skipped), B.b == 3
}

func TestFieldsAndTables(t *testing.T) {
	n := MustParse("A.a = B.b && (A.a > 1 || C.c = A.x)")

	assert.Equal(t, []ir.FieldRef{
		ir.NewFieldRef("A", "a"),
		ir.NewFieldRef("B", "b"),
		ir.NewFieldRef("C", "c"),
		ir.NewFieldRef("A", "x"),
	}, Fields(n))
	assert.Equal(t, []string{"A", "B", "C"}, Tables(n))
	assert.Nil(t, Fields(nil))
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(nil))
	assert.Equal(t, 1, Depth(MustParse("A.a = 1")))
	assert.Equal(t, 3, Depth(MustParse("A.a = 1 || (A.a = 2 && A.a = 3)")))
}

func TestFingerprint_StructuralIdentity(t *testing.T) {
	built := Must(And(
		Must(Gt(clientID, ir.OfInt(0))),
		Must(Lt(clientID, ir.OfInt(44))),
	))
	parsed := MustParse("Client_tbl.Id_PK > 0 AND Client_tbl.Id_PK < 44")

	a, err := Fingerprint(built)
	require.NoError(t, err)
	b, err := Fingerprint(parsed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_DistinguishesLiteralKinds(t *testing.T) {
	asString, err := Fingerprint(MustParse("A.a = '1'"))
	require.NoError(t, err)
	asInt, err := Fingerprint(MustParse("A.a = 1"))
	require.NoError(t, err)
	asLike, err := Fingerprint(MustParse("A.a LIKE '1'"))
	require.NoError(t, err)

	assert.NotEqual(t, asString, asInt)
	assert.NotEqual(t, asString, asLike)
}

func TestFingerprint_RejectsZeroNodes(t *testing.T) {
	_, err := Fingerprint(nil)
	assert.True(t, IsInvalidExpression(err))

	_, err = Fingerprint(&Comparison{})
	assert.Error(t, err)
}

func TestCanonical(t *testing.T) {
	obj, err := Canonical(MustParse("A.a > 1"))
	require.NoError(t, err)

	assert.Equal(t, "Gt", obj["op"])
	assert.Equal(t, ir.NewFieldRef("A", "a"), obj["left"])
	assert.Equal(t, ir.OfInt(1), obj["right"])
}
