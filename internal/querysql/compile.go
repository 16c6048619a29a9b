// Package querysql compiles comparison-only predicates into SQLite WHERE
// fragments over JSON document bodies.
//
// The generated SQL has exactly the semantics of predicate.Matches, so a
// filter pushed into the scan returns the same documents as the same filter
// evaluated in a pipeline stage. Each comparison is type guarded with
// json_type and wrapped in COALESCE(..., 0), which keeps the SQL two-valued:
// a missing field never turns NOT or OR into SQL NULL.
//
// CRITICAL: All values and JSON paths are parameterized, never interpolated.
package querysql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/predicate"
)

// ErrNotCompilable is returned for predicates the SQL backend cannot
// express: opaque expressions, unknown operators, and array or object
// literals. Callers fall back to evaluating the predicate in Go.
var ErrNotCompilable = errors.New("predicate not compilable to SQL")

// DefaultColumn is the column holding each document's canonical JSON.
const DefaultColumn = "body"

// SQLCompiler compiles predicates against a JSON column.
type SQLCompiler struct {
	// Column is the TEXT column holding document JSON. It is interpolated,
	// so it must be a trusted identifier.
	Column string
}

// NewSQLCompiler creates a compiler for the given column.
func NewSQLCompiler(column string) *SQLCompiler {
	if column == "" {
		column = DefaultColumn
	}
	return &SQLCompiler{Column: column}
}

// Compile compiles p against DefaultColumn.
func Compile(p predicate.Predicate) (string, []any, error) {
	return NewSQLCompiler(DefaultColumn).Compile(p)
}

// Compile converts p to a parameterized SQL boolean expression.
// Returns (sql, params, error). A nil predicate compiles to "1".
func (c *SQLCompiler) Compile(p predicate.Predicate) (string, []any, error) {
	var params []any
	sql, err := c.compile(p, &params)
	if err != nil {
		return "", nil, err
	}
	return sql, params, nil
}

func (c *SQLCompiler) compile(p predicate.Predicate, params *[]any) (string, error) {
	switch n := p.(type) {
	case nil:
		return "1", nil
	case predicate.Comparison:
		return c.compileComparison(n, params)
	case predicate.And:
		return c.compileConnective(n.Children, " AND ", "1", params)
	case predicate.Or:
		return c.compileConnective(n.Children, " OR ", "0", params)
	case predicate.Not:
		inner, err := c.compile(n.Child, params)
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case predicate.Opaque:
		return "", fmt.Errorf("%w: $expr %s", ErrNotCompilable, predicate.String(n))
	default:
		return "", fmt.Errorf("%w: unsupported predicate type %T", ErrNotCompilable, p)
	}
}

func (c *SQLCompiler) compileConnective(children []predicate.Predicate, sep, empty string, params *[]any) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		sql, err := c.compile(child, params)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *SQLCompiler) compileComparison(cmp predicate.Comparison, params *[]any) (string, error) {
	path, err := jsonPath(cmp.Field)
	if err != nil {
		return "", err
	}
	f := field{column: c.Column, path: path}

	switch cmp.Op {
	case predicate.OpEq:
		return f.eq(cmp.Value, params)
	case predicate.OpNe:
		sql, err := f.eq(cmp.Value, params)
		if err != nil {
			return "", err
		}
		return "NOT " + sql, nil
	case predicate.OpGt, predicate.OpGte, predicate.OpLt, predicate.OpLte:
		return f.rangeCmp(cmp.Op, cmp.Value, params)
	case predicate.OpIn, predicate.OpNin:
		sql, err := f.in(cmp.Value, params)
		if err != nil {
			return "", err
		}
		if cmp.Op == predicate.OpNin {
			return "NOT " + sql, nil
		}
		return sql, nil
	case predicate.OpExists:
		want, ok := cmp.Value.(ir.IRBool)
		if !ok {
			return "", fmt.Errorf("%w: $exists on %q needs a bool", ErrNotCompilable, cmp.Field)
		}
		*params = append(*params, f.path)
		if want {
			return fmt.Sprintf("(json_type(%s, ?) IS NOT NULL)", f.column), nil
		}
		return fmt.Sprintf("(json_type(%s, ?) IS NULL)", f.column), nil
	default:
		return "", fmt.Errorf("%w: operator %s", ErrNotCompilable, cmp.Op)
	}
}

// field renders type-guarded tests for one JSON path.
type field struct {
	column string
	path   string
}

func (f field) typeExpr(params *[]any) string {
	*params = append(*params, f.path)
	return fmt.Sprintf("json_type(%s, ?)", f.column)
}

func (f field) valueExpr(params *[]any) string {
	*params = append(*params, f.path)
	return fmt.Sprintf("json_extract(%s, ?)", f.column)
}

// guard wraps a comparison so it is 0 rather than NULL when the field is missing.
func guard(sql string) string {
	return "COALESCE((" + sql + "), 0)"
}

// eq matches a present field equal to lit; a null literal also matches a
// missing field.
func (f field) eq(lit ir.IRValue, params *[]any) (string, error) {
	switch v := lit.(type) {
	case nil, ir.IRNull:
		// Positional placeholders cannot be bound twice, so the path is passed once per json_type call.
		return fmt.Sprintf("(%s IS NULL OR %s = 'null')", f.typeExpr(params), f.typeExpr(params)), nil
	case ir.IRInt:
		t := f.typeExpr(params)
		x := f.valueExpr(params)
		*params = append(*params, int64(v))
		return guard(fmt.Sprintf("%s = 'integer' AND %s = ?", t, x)), nil
	case ir.IRString:
		t := f.typeExpr(params)
		x := f.valueExpr(params)
		*params = append(*params, string(v))
		return guard(fmt.Sprintf("%s = 'text' AND %s = ?", t, x)), nil
	case ir.IRBool:
		t := f.typeExpr(params)
		if v {
			return guard(t + " = 'true'"), nil
		}
		return guard(t + " = 'false'"), nil
	default:
		return "", fmt.Errorf("%w: %s literal", ErrNotCompilable, ir.TypeName(lit))
	}
}

var sqlRangeOps = map[predicate.Op]string{
	predicate.OpGt:  ">",
	predicate.OpGte: ">=",
	predicate.OpLt:  "<",
	predicate.OpLte: "<=",
}

// rangeCmp matches values of the literal's type class only.
func (f field) rangeCmp(op predicate.Op, lit ir.IRValue, params *[]any) (string, error) {
	sqlOp := sqlRangeOps[op]

	switch v := lit.(type) {
	case nil, ir.IRNull:
		if op == predicate.OpGte || op == predicate.OpLte {
			return f.eq(lit, params)
		}
		return "0", nil
	case ir.IRInt:
		t := f.typeExpr(params)
		x := f.valueExpr(params)
		*params = append(*params, int64(v))
		return guard(fmt.Sprintf("%s = 'integer' AND %s %s ?", t, x, sqlOp)), nil
	case ir.IRString:
		t := f.typeExpr(params)
		x := f.valueExpr(params)
		*params = append(*params, string(v))
		return guard(fmt.Sprintf("%s = 'text' AND %s %s ?", t, x, sqlOp)), nil
	case ir.IRBool:
		t1 := f.typeExpr(params)
		t2 := f.typeExpr(params)
		b := int64(0)
		if v {
			b = 1
		}
		*params = append(*params, b)
		return guard(fmt.Sprintf("%s IN ('true', 'false') AND (%s = 'true') %s ?", t1, t2, sqlOp)), nil
	default:
		return "", fmt.Errorf("%w: %s literal", ErrNotCompilable, ir.TypeName(lit))
	}
}

// in matches when the field equals any element of the literal array.
func (f field) in(lit ir.IRValue, params *[]any) (string, error) {
	list, ok := lit.(ir.IRArray)
	if !ok {
		return "", fmt.Errorf("%w: $in needs an array, got %s", ErrNotCompilable, ir.TypeName(lit))
	}
	if len(list) == 0 {
		return "0", nil
	}

	parts := make([]string, 0, len(list))
	for _, elem := range list {
		sql, err := f.eq(elem, params)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

var plainKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// jsonPath converts a dotted field path to a SQLite JSON path:
// "a.b" -> "$.a.b", "my-field" -> `$."my-field"`.
func jsonPath(field string) (string, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		switch {
		case seg == "":
			return "", fmt.Errorf("%w: empty segment in field %q", ErrNotCompilable, field)
		case plainKey.MatchString(seg):
			b.WriteString("." + seg)
		case strings.ContainsAny(seg, `"\`):
			return "", fmt.Errorf("%w: field %q has quote characters", ErrNotCompilable, field)
		default:
			b.WriteString(`."` + seg + `"`)
		}
	}
	return b.String(), nil
}
