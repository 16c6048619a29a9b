package predicate

import "github.com/roach88/pipeopt/internal/ir"

// Simplify normalizes p:
//   - single-child And/Or collapse to the child
//   - nested same-kind connectives flatten: And(And(x, y), z) -> And(x, y, z)
//   - Not(Not(x)) -> x
//   - Not of $eq/$ne/$in/$nin/$exists folds into the complementary comparison
//
// Simplify is total and deterministic. Its output is a fixed point:
// Simplify(Simplify(p)) equals Simplify(p).
func Simplify(p Predicate) Predicate {
	switch n := p.(type) {
	case And:
		children := flatten(n.Children, func(c Predicate) ([]Predicate, bool) {
			a, ok := c.(And)
			return a.Children, ok
		})
		if len(children) == 1 {
			return children[0]
		}
		return And{Children: children}
	case Or:
		children := flatten(n.Children, func(c Predicate) ([]Predicate, bool) {
			o, ok := c.(Or)
			return o.Children, ok
		})
		if len(children) == 1 {
			return children[0]
		}
		return Or{Children: children}
	case Not:
		return simplifyNot(Simplify(n.Child))
	default:
		return p
	}
}

// flatten simplifies each child and splices in the children of any child
// of the same connective kind. Children are simplified first, so one level
// of splicing is enough.
func flatten(children []Predicate, same func(Predicate) ([]Predicate, bool)) []Predicate {
	out := make([]Predicate, 0, len(children))
	for _, c := range children {
		s := Simplify(c)
		if grand, ok := same(s); ok {
			out = append(out, grand...)
			continue
		}
		out = append(out, s)
	}
	return out
}

// simplifyNot negates an already simplified child.
func simplifyNot(child Predicate) Predicate {
	switch c := child.(type) {
	case Not:
		return c.Child
	case Comparison:
		if neg, ok := complement(c); ok {
			return neg
		}
	}
	return Not{Child: child}
}

// complement returns the comparison equivalent to Not(c), when one exists.
// Range operators have none: Not(a > 1) also matches documents where a is
// missing or of another type, which no single range comparison expresses.
func complement(c Comparison) (Comparison, bool) {
	switch c.Op {
	case OpEq:
		return Comparison{Field: c.Field, Op: OpNe, Value: c.Value}, true
	case OpNe:
		return Comparison{Field: c.Field, Op: OpEq, Value: c.Value}, true
	case OpIn:
		return Comparison{Field: c.Field, Op: OpNin, Value: c.Value}, true
	case OpNin:
		return Comparison{Field: c.Field, Op: OpIn, Value: c.Value}, true
	case OpExists:
		b, ok := c.Value.(ir.IRBool)
		if !ok {
			return Comparison{}, false
		}
		return Comparison{Field: c.Field, Op: OpExists, Value: !b}, true
	}
	return Comparison{}, false
}
