package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeopt/internal/ir"
)

func TestEval(t *testing.T) {
	doc := ir.Doc(
		ir.O("_id", ir.IRInt(1)),
		ir.O("a", ir.IRInt(1)),
		ir.O("b", ir.IRInt(3)),
		ir.O("s", ir.IRString("x")),
		ir.O("n", ir.IRNull{}),
		ir.O("sub", ir.Doc(ir.O("c", ir.IRInt(-4)))),
	)

	tests := []struct {
		name     string
		expr     Expr
		expected ir.IRValue
	}{
		{"field", Field("a"), ir.IRInt(1)},
		{"nested field", Field("sub.c"), ir.IRInt(-4)},
		{"missing field", Field("zzz"), nil},
		{"ne fields", Fn("$ne", Field("a"), Field("b")), ir.IRBool(true)},
		{"eq fields", Fn("$eq", Field("a"), Field("a")), ir.IRBool(true)},
		{"eq missing and null", Fn("$eq", Field("zzz"), Field("n")), ir.IRBool(true)},
		{"gt across types", Fn("$gt", Field("s"), Field("b")), ir.IRBool(true)},
		{"lte", Fn("$lte", Field("a"), Lit(ir.IRInt(1))), ir.IRBool(true)},
		{"cmp", Fn("$cmp", Field("a"), Field("b")), ir.IRInt(-1)},
		{"and", Fn("$and", Field("a"), Field("b")), ir.IRBool(true)},
		{"and with missing", Fn("$and", Field("a"), Field("zzz")), ir.IRBool(false)},
		{"or", Fn("$or", Field("n"), Lit(ir.IRInt(0)), Field("s")), ir.IRBool(true)},
		{"not", Fn("$not", Field("n")), ir.IRBool(true)},
		{"add", Fn("$add", Field("a"), Field("b"), Lit(ir.IRInt(10))), ir.IRInt(14)},
		{"add null", Fn("$add", Field("a"), Field("zzz")), ir.IRNull{}},
		{"subtract", Fn("$subtract", Field("a"), Field("b")), ir.IRInt(-2)},
		{"multiply", Fn("$multiply", Field("b"), Lit(ir.IRInt(-2))), ir.IRInt(-6)},
		{"abs", Fn("$abs", Field("sub.c")), ir.IRInt(4)},
		{"ifNull first", Fn("$ifNull", Field("a"), Lit(ir.IRInt(9))), ir.IRInt(1)},
		{"ifNull fallback", Fn("$ifNull", Field("n"), Field("zzz"), Lit(ir.IRInt(9))), ir.IRInt(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, doc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	doc := ir.Doc(ir.O("s", ir.IRString("x")), ir.O("big", ir.IRInt(math.MaxInt64)))

	_, err := Eval(Fn("$add", Field("s"), Lit(ir.IRInt(1))), doc)
	assert.ErrorIs(t, err, ErrType)

	_, err = Eval(Fn("$add", Field("big"), Lit(ir.IRInt(1))), doc)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Eval(Fn("$multiply", Field("big"), Lit(ir.IRInt(2))), doc)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Eval(Fn("$subtract", Lit(ir.IRInt(math.MinInt64)), Lit(ir.IRInt(1))), doc)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Eval(Call{Op: "$regex"}, doc)
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Eval(Call{Op: "$ne", Args: []Expr{Field("s")}}, doc)
	assert.ErrorIs(t, err, ErrArity)

	_, err = Eval(nil, doc)
	assert.Error(t, err)
}

func TestEvalShortCircuit(t *testing.T) {
	// The second argument would fail with a type error if evaluated.
	bad := Fn("$add", Lit(ir.IRString("x")), Lit(ir.IRInt(1)))

	v, err := Eval(Fn("$and", Lit(ir.IRBool(false)), bad), ir.IRObject{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(false), v)

	v, err = Eval(Fn("$or", Lit(ir.IRBool(true)), bad), ir.IRObject{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), v)
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(ir.IRNull{}))
	assert.False(t, Truthy(ir.IRBool(false)))
	assert.False(t, Truthy(ir.IRInt(0)))

	assert.True(t, Truthy(ir.IRInt(-1)))
	assert.True(t, Truthy(ir.IRString("")))
	assert.True(t, Truthy(ir.IRArray{}))
	assert.True(t, Truthy(ir.IRObject{}))
}
