package predicate

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
)

// Render converts p into match-document form, the shape used by explain
// output and accepted back by the pipeline parser.
//
//	Ne("a", 2)                       {a: {$not: {$eq: 2}}}
//	AllOf(Eq("a", 1), Expr(...))     {$and: [{a: {$eq: 1}}, {$expr: ...}]}
//	Negate(AnyOf(...))               {$nor: [{$or: [...]}]}
//
// A nil predicate renders as the empty document, which matches everything.
func Render(p Predicate) ir.IRObject {
	switch n := p.(type) {
	case nil:
		return ir.IRObject{}
	case Comparison:
		return renderComparison(n)
	case And:
		return ir.IRObject{"$and": renderAll(n.Children)}
	case Or:
		return ir.IRObject{"$or": renderAll(n.Children)}
	case Not:
		if c, ok := n.Child.(Comparison); ok && c.Op != OpNe && c.Op != OpNin {
			return ir.IRObject{c.Field: ir.IRObject{"$not": operatorDoc(c.Op, c.Value)}}
		}
		return ir.IRObject{"$nor": ir.IRArray{Render(n.Child)}}
	case Opaque:
		return ir.IRObject{"$expr": expr.Render(n.Expr)}
	default:
		return ir.IRObject{}
	}
}

func renderAll(children []Predicate) ir.IRArray {
	out := make(ir.IRArray, len(children))
	for i, c := range children {
		out[i] = Render(c)
	}
	return out
}

func renderComparison(c Comparison) ir.IRObject {
	var cond ir.IRObject
	switch c.Op {
	case OpNe:
		cond = ir.IRObject{"$not": operatorDoc(OpEq, c.Value)}
	case OpNin:
		cond = ir.IRObject{"$not": operatorDoc(OpIn, c.Value)}
	default:
		cond = operatorDoc(c.Op, c.Value)
	}
	return ir.IRObject{c.Field: cond}
}

func operatorDoc(op Op, v ir.IRValue) ir.IRObject {
	if v == nil {
		v = ir.IRNull{}
	}
	return ir.IRObject{string(op): v}
}

var infix = map[Op]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpIn:  "in",
	OpNin: "not in",
}

// String renders p as a compact infix expression for logs and rewrite events,
// for example "(a != 2 AND $expr {"$ne":["$a","$b"]})".
func String(p Predicate) string {
	switch n := p.(type) {
	case nil:
		return "TRUE"
	case Comparison:
		if n.Op == OpExists {
			if b, ok := n.Value.(ir.IRBool); ok && !bool(b) {
				return fmt.Sprintf("!exists(%s)", n.Field)
			}
			return fmt.Sprintf("exists(%s)", n.Field)
		}
		op, ok := infix[n.Op]
		if !ok {
			op = string(n.Op)
		}
		return fmt.Sprintf("%s %s %s", n.Field, op, valueString(n.Value))
	case And:
		return joinChildren(n.Children, " AND ", "TRUE")
	case Or:
		return joinChildren(n.Children, " OR ", "FALSE")
	case Not:
		return "NOT " + String(n.Child)
	case Opaque:
		return "$expr " + expr.String(n.Expr)
	default:
		return fmt.Sprintf("<%T>", p)
	}
}

func joinChildren(children []Predicate, sep, empty string) string {
	if len(children) == 0 {
		return empty
	}
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = String(c)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func valueString(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// Fields returns the sorted, de-duplicated field paths p refers to, including
// fields read by opaque expressions.
func Fields(p Predicate) []string {
	var out []string
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch n := p.(type) {
		case Comparison:
			out = append(out, n.Field)
		case And:
			for _, c := range n.Children {
				walk(c)
			}
		case Or:
			for _, c := range n.Children {
				walk(c)
			}
		case Not:
			walk(n.Child)
		case Opaque:
			out = append(out, expr.Fields(n.Expr)...)
		}
	}
	walk(p)

	sort.Strings(out)
	return slices.Compact(out)
}

// Equal reports whether a and b are structurally identical.
// Children are compared in order; And(x, y) and And(y, x) are not Equal.
func Equal(a, b Predicate) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Comparison:
		y, ok := b.(Comparison)
		return ok && x.Field == y.Field && x.Op == y.Op && ir.Equal(x.Value, y.Value)
	case And:
		y, ok := b.(And)
		return ok && equalChildren(x.Children, y.Children)
	case Or:
		y, ok := b.(Or)
		return ok && equalChildren(x.Children, y.Children)
	case Not:
		y, ok := b.(Not)
		return ok && Equal(x.Child, y.Child)
	case Opaque:
		y, ok := b.(Opaque)
		return ok && expr.String(x.Expr) == expr.String(y.Expr)
	default:
		return false
	}
}

func equalChildren(a, b []Predicate) bool {
	return slices.EqualFunc(a, b, Equal)
}

// Fingerprint returns the domain-separated hash of p's rendered form.
func Fingerprint(p Predicate) string {
	return ir.MustFingerprint(ir.DomainPredicate, Render(p))
}
