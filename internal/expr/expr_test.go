package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeopt/internal/ir"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Expr
	}{
		{"field ref", "$a", Field("a")},
		{"dotted field ref", "$a.b", Field("a.b")},
		{"string literal", "hello", Lit(ir.IRString("hello"))},
		{"int literal", 2, Lit(ir.IRInt(2))},
		{"null literal", nil, Lit(ir.IRNull{})},
		{"explicit literal", map[string]any{"$literal": "$a"}, Lit(ir.IRString("$a"))},
		{
			"binary call",
			map[string]any{"$ne": []any{"$a", "$b"}},
			Fn("$ne", Field("a"), Field("b")),
		},
		{
			"unary call without list",
			map[string]any{"$not": "$flag"},
			Fn("$not", Field("flag")),
		},
		{
			"nested",
			map[string]any{"$and": []any{
				map[string]any{"$gt": []any{"$a", 1}},
				map[string]any{"$lt": []any{map[string]any{"$add": []any{"$a", "$b"}}, 10}},
			}},
			Fn("$and",
				Fn("$gt", Field("a"), Lit(ir.IRInt(1))),
				Fn("$lt", Fn("$add", Field("a"), Field("b")), Lit(ir.IRInt(10))),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr error
		msg     string
	}{
		{"unknown operator", map[string]any{"$regex": []any{"$a", "x"}}, ErrUnknownOperator, "$regex"},
		{"wrong arity", map[string]any{"$ne": []any{"$a"}}, ErrArity, "expects 2 arguments"},
		{"empty variadic", map[string]any{"$and": []any{}}, ErrArity, "at least one"},
		{"two keys", map[string]any{"$eq": []any{1, 1}, "$ne": []any{1, 2}}, nil, "exactly one operator key"},
		{"float", 1.5, nil, "floats are not supported"},
		{"bare dollar", "$", nil, "invalid field reference"},
		{"array", []any{1, 2}, nil, "array expressions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRender(t *testing.T) {
	e := Fn("$ne", Field("a"), Field("b"))
	assert.Equal(t, `{"$ne":["$a","$b"]}`, String(e))

	assert.Equal(t, `{"$eq":["$a",{"$literal":"$b"}]}`, String(Fn("$eq", Field("a"), Lit(ir.IRString("$b")))))
	assert.Equal(t, `{"$eq":["$a",{"$literal":[1]}]}`, String(Fn("$eq", Field("a"), Lit(ir.IRArray{ir.IRInt(1)}))))
}

func TestRenderParseRoundTrip(t *testing.T) {
	exprs := []Expr{
		Fn("$ne", Field("a"), Field("b")),
		Fn("$ifNull", Field("x"), Lit(ir.IRString("$dollar")), Lit(ir.IRNull{})),
		Fn("$not", Fn("$and", Field("a"), Lit(ir.IRBool(true)))),
	}

	for _, e := range exprs {
		t.Run(String(e), func(t *testing.T) {
			parsed, err := Parse(ir.ToGo(Render(e)))
			require.NoError(t, err)
			assert.Equal(t, e, parsed)
		})
	}
}

func TestFields(t *testing.T) {
	e := Fn("$and",
		Fn("$ne", Field("b"), Field("a")),
		Fn("$gt", Field("a"), Lit(ir.IRInt(0))),
	)
	assert.Equal(t, []string{"a", "b"}, Fields(e))
	assert.Empty(t, Fields(Lit(ir.IRInt(1))))
}

func TestOperators(t *testing.T) {
	ops := Operators()
	assert.Contains(t, ops, "$ne")
	assert.True(t, IsOperator("$ifNull"))
	assert.False(t, IsOperator("$regex"))
	assert.IsIncreasing(t, ops)
}
