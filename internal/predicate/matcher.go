package predicate

import (
	"errors"
	"fmt"

	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
)

// ErrUnknownOperator is returned by Matches for comparisons it cannot evaluate.
var ErrUnknownOperator = errors.New("unknown comparison operator")

// Matches reports whether doc satisfies p. A nil predicate matches every document.
//
// Field comparison semantics:
//   - $eq matches when the field is present and compares equal; $eq null also
//     matches a missing field
//   - $ne is the negation of $eq
//   - range operators match only values of the literal's type class;
//     $gte/$lte null behave like $eq null and $gt/$lt null never match
//   - $in/$nin behave like $eq/$ne against each element of the literal array
//   - $exists tests presence (an explicit null is present)
//   - arrays are compared as whole values and never traversed
func Matches(p Predicate, doc ir.IRObject) (bool, error) {
	switch n := p.(type) {
	case nil:
		return true, nil
	case Comparison:
		return matchComparison(n, doc)
	case And:
		for _, c := range n.Children {
			ok, err := Matches(c, doc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, c := range n.Children {
			ok, err := Matches(c, doc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Matches(n.Child, doc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case Opaque:
		v, err := expr.Eval(n.Expr, doc)
		if err != nil {
			return false, fmt.Errorf("$expr: %w", err)
		}
		return expr.Truthy(v), nil
	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func matchComparison(c Comparison, doc ir.IRObject) (bool, error) {
	v, present := ir.Lookup(doc, c.Field)

	switch c.Op {
	case OpEq:
		return equalityMatch(v, present, c.Value), nil
	case OpNe:
		return !equalityMatch(v, present, c.Value), nil
	case OpGt, OpGte, OpLt, OpLte:
		return rangeMatch(c.Op, v, present, c.Value), nil
	case OpIn, OpNin:
		list, ok := c.Value.(ir.IRArray)
		if !ok {
			return false, fmt.Errorf("%s on %q needs an array, got %s", c.Op, c.Field, ir.TypeName(c.Value))
		}
		found := false
		for _, elem := range list {
			if equalityMatch(v, present, elem) {
				found = true
				break
			}
		}
		if c.Op == OpIn {
			return found, nil
		}
		return !found, nil
	case OpExists:
		want, ok := c.Value.(ir.IRBool)
		if !ok {
			return false, fmt.Errorf("$exists on %q needs a bool, got %s", c.Field, ir.TypeName(c.Value))
		}
		return present == bool(want), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Op)
	}
}

func equalityMatch(v ir.IRValue, present bool, lit ir.IRValue) bool {
	if isNull(lit) {
		return !present || isNull(v)
	}
	return present && ir.Compare(v, lit) == 0
}

func rangeMatch(op Op, v ir.IRValue, present bool, lit ir.IRValue) bool {
	if isNull(lit) {
		if op == OpGte || op == OpLte {
			return equalityMatch(v, present, lit)
		}
		return false
	}
	if !present || !ir.SameTypeClass(v, lit) {
		return false
	}

	c := ir.Compare(v, lit)
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	default:
		return c <= 0
	}
}

func isNull(v ir.IRValue) bool {
	switch v.(type) {
	case nil, ir.IRNull:
		return true
	}
	return false
}
