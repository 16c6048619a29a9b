package expr

import (
	"fmt"
	"math"

	"github.com/roach88/pipeopt/internal/ir"
)

// Eval evaluates e against doc.
// A FieldRef to an absent path yields nil (missing), which Truthy treats as false.
func Eval(e Expr, doc ir.IRObject) (ir.IRValue, error) {
	switch n := e.(type) {
	case FieldRef:
		v, ok := ir.Lookup(doc, n.Path)
		if !ok {
			return nil, nil
		}
		return v, nil
	case Literal:
		return n.Value, nil
	case Call:
		return evalCall(n, doc)
	case nil:
		return nil, fmt.Errorf("cannot evaluate nil expression")
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", e)
	}
}

// Truthy applies expression truthiness: false, null, missing and 0 are false.
func Truthy(v ir.IRValue) bool {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return false
	case ir.IRBool:
		return bool(val)
	case ir.IRInt:
		return val != 0
	default:
		return true
	}
}

func evalCall(c Call, doc ir.IRObject) (ir.IRValue, error) {
	arity, ok := operators[c.Op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Op)
	}
	if err := checkArity(c.Op, arity, len(c.Args)); err != nil {
		return nil, err
	}

	// $and/$or short-circuit, so arguments are evaluated lazily.
	switch c.Op {
	case "$and":
		for _, a := range c.Args {
			v, err := Eval(a, doc)
			if err != nil {
				return nil, err
			}
			if !Truthy(v) {
				return ir.IRBool(false), nil
			}
		}
		return ir.IRBool(true), nil
	case "$or":
		for _, a := range c.Args {
			v, err := Eval(a, doc)
			if err != nil {
				return nil, err
			}
			if Truthy(v) {
				return ir.IRBool(true), nil
			}
		}
		return ir.IRBool(false), nil
	}

	args := make([]ir.IRValue, len(c.Args))
	for i, a := range c.Args {
		v, err := Eval(a, doc)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", c.Op, i, err)
		}
		args[i] = v
	}

	switch c.Op {
	case "$eq":
		return ir.IRBool(ir.Compare(args[0], args[1]) == 0), nil
	case "$ne":
		return ir.IRBool(ir.Compare(args[0], args[1]) != 0), nil
	case "$gt":
		return ir.IRBool(ir.Compare(args[0], args[1]) > 0), nil
	case "$gte":
		return ir.IRBool(ir.Compare(args[0], args[1]) >= 0), nil
	case "$lt":
		return ir.IRBool(ir.Compare(args[0], args[1]) < 0), nil
	case "$lte":
		return ir.IRBool(ir.Compare(args[0], args[1]) <= 0), nil
	case "$cmp":
		return ir.IRInt(ir.Compare(args[0], args[1])), nil
	case "$not":
		return ir.IRBool(!Truthy(args[0])), nil
	case "$ifNull":
		for _, v := range args[:len(args)-1] {
			if !isNullish(v) {
				return v, nil
			}
		}
		return args[len(args)-1], nil
	case "$abs":
		if isNullish(args[0]) {
			return ir.IRNull{}, nil
		}
		n, err := asInt(c.Op, args[0])
		if err != nil {
			return nil, err
		}
		if n == math.MinInt64 {
			return nil, fmt.Errorf("%w: $abs(%d)", ErrOverflow, n)
		}
		if n < 0 {
			n = -n
		}
		return ir.IRInt(n), nil
	case "$add", "$multiply", "$subtract":
		return arithmetic(c.Op, args)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Op)
	}
}

// arithmetic folds args left to right. Any null or missing argument makes
// the result null.
func arithmetic(op string, args []ir.IRValue) (ir.IRValue, error) {
	for _, v := range args {
		if isNullish(v) {
			return ir.IRNull{}, nil
		}
	}

	acc, err := asInt(op, args[0])
	if err != nil {
		return nil, err
	}
	for _, v := range args[1:] {
		n, err := asInt(op, v)
		if err != nil {
			return nil, err
		}
		var ok bool
		switch op {
		case "$add":
			acc, ok = addInt(acc, n)
		case "$subtract":
			acc, ok = subInt(acc, n)
		case "$multiply":
			acc, ok = mulInt(acc, n)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrOverflow, op)
		}
	}
	return ir.IRInt(acc), nil
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return c, false
	}
	return c, true
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	if (c < a) != (b > 0) {
		return c, false
	}
	return c, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return c, false
	}
	return c, true
}

func asInt(op string, v ir.IRValue) (int64, error) {
	n, ok := v.(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("%w: %s only supports numeric arguments, got %s", ErrType, op, ir.TypeName(v))
	}
	return int64(n), nil
}

func isNullish(v ir.IRValue) bool {
	switch v.(type) {
	case nil, ir.IRNull:
		return true
	}
	return false
}
