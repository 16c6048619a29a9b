package expr

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/pipeopt/internal/ir"
)

// Expr is a sealed expression node: FieldRef, Literal or Call.
type Expr interface {
	exprNode()
}

// FieldRef reads a dotted path from the current document.
type FieldRef struct {
	Path string
}

func (FieldRef) exprNode() {}

// Literal is a constant value.
type Literal struct {
	Value ir.IRValue
}

func (Literal) exprNode() {}

// Call applies an operator such as "$ne" to its arguments.
type Call struct {
	Op   string
	Args []Expr
}

func (Call) exprNode() {}

// Supported operators with their arity. -1 means variadic (at least one).
var operators = map[string]int{
	"$eq":       2,
	"$ne":       2,
	"$gt":       2,
	"$gte":      2,
	"$lt":       2,
	"$lte":      2,
	"$cmp":      2,
	"$and":      -1,
	"$or":       -1,
	"$not":      1,
	"$add":      -1,
	"$subtract": 2,
	"$multiply": -1,
	"$abs":      1,
	"$ifNull":   -1,
}

// IsOperator reports whether op is a supported expression operator.
func IsOperator(op string) bool {
	_, ok := operators[op]
	return ok
}

// Operators returns the supported operator names in sorted order.
func Operators() []string {
	ops := make([]string, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Field builds a FieldRef.
func Field(path string) FieldRef { return FieldRef{Path: path} }

// Lit builds a Literal.
func Lit(v ir.IRValue) Literal { return Literal{Value: v} }

// Fn builds a Call.
func Fn(op string, args ...Expr) Call { return Call{Op: op, Args: args} }

// Parse converts a decoded document value (from yaml.v3 or encoding/json with
// UseNumber) into an Expr.
//
//	"$a"                 -> FieldRef{a}
//	{$literal: v}        -> Literal{v}
//	{$op: [args...]}     -> Call
//	{$op: arg}           -> Call with one argument
//	scalars, null        -> Literal
func Parse(v any) (Expr, error) {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			path := strings.TrimPrefix(val, "$")
			if path == "" || strings.HasPrefix(path, "$") {
				return nil, fmt.Errorf("invalid field reference %q", val)
			}
			return FieldRef{Path: path}, nil
		}
		return Literal{Value: ir.IRString(val)}, nil
	case map[string]any:
		return parseObject(val)
	case ir.IRObject:
		return parseObject(ir.ToGo(val).(map[string]any))
	case []any:
		return nil, fmt.Errorf("array expressions are not supported")
	default:
		lit, err := ir.FromGo(val)
		if err != nil {
			return nil, err
		}
		if s, ok := lit.(ir.IRString); ok {
			return Parse(string(s))
		}
		if _, ok := lit.(ir.IRArray); ok {
			return nil, fmt.Errorf("array expressions are not supported")
		}
		return Literal{Value: lit}, nil
	}
}

func parseObject(obj map[string]any) (Expr, error) {
	if len(obj) != 1 {
		return nil, fmt.Errorf("expression object must have exactly one operator key, got %d keys", len(obj))
	}

	var op string
	var raw any
	for k, v := range obj {
		op, raw = k, v
	}

	if op == "$literal" {
		lit, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("$literal: %w", err)
		}
		return Literal{Value: lit}, nil
	}

	arity, ok := operators[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}

	rawArgs, isList := raw.([]any)
	if !isList {
		rawArgs = []any{raw}
	}

	args := make([]Expr, 0, len(rawArgs))
	for i, a := range rawArgs {
		arg, err := Parse(a)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		args = append(args, arg)
	}

	if err := checkArity(op, arity, len(args)); err != nil {
		return nil, err
	}
	return Call{Op: op, Args: args}, nil
}

func checkArity(op string, arity, n int) error {
	switch {
	case arity == -1 && n == 0:
		return fmt.Errorf("%w: %s expects at least one argument", ErrArity, op)
	case arity >= 0 && n != arity:
		return fmt.Errorf("%w: %s expects %d arguments, got %d", ErrArity, op, arity, n)
	}
	return nil
}

// Render converts e back into its document form.
// Render(Parse(v)) is equivalent to v, with single arguments wrapped in a list.
func Render(e Expr) ir.IRValue {
	switch n := e.(type) {
	case FieldRef:
		return ir.IRString("$" + n.Path)
	case Literal:
		if s, ok := n.Value.(ir.IRString); ok && strings.HasPrefix(string(s), "$") {
			return ir.IRObject{"$literal": s}
		}
		switch n.Value.(type) {
		case ir.IRArray, ir.IRObject:
			return ir.IRObject{"$literal": n.Value}
		}
		if n.Value == nil {
			return ir.IRNull{}
		}
		return n.Value
	case Call:
		args := make(ir.IRArray, len(n.Args))
		for i, a := range n.Args {
			args[i] = Render(a)
		}
		return ir.IRObject{n.Op: args}
	default:
		return ir.IRNull{}
	}
}

// String returns the canonical JSON text of Render(e).
func String(e Expr) string {
	b, err := ir.MarshalCanonical(Render(e))
	if err != nil {
		return fmt.Sprintf("<invalid expr: %v>", err)
	}
	return string(b)
}

// Fields returns the sorted, de-duplicated field paths referenced by e.
func Fields(e Expr) []string {
	var out []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case FieldRef:
			out = append(out, n.Path)
		case Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)

	sort.Strings(out)
	return slices.Compact(out)
}
